// Package server exposes the trust service over HTTP with gin.
//
// Routes:
//
//	GET|POST /graph/neighbors/:blockchain  JSON array of seed addresses;
//	                                       query k (depth, 1..10, default 5)
//	                                       and limit (1..1000, default 100)
//	GET      /_health                      liveness
//	GET      /metrics                      Prometheus exposition
//
// A successful lookup answers {"result": [{"address": ..., "score": ...}]}.
// Invalid input answers 422 with a detail message. Any other failure answers
// 500 {"detail": "Unknown error"}; the cause is only logged.
package server
