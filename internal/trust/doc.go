// Package trust turns a set of seed addresses into ranked trust scores.
//
// A Service owns the long-lived parts of the process: the neighbor API
// client, the concurrency gate shared by every crawl, the scoring engine
// client, the blocklist and the metrics. Each request gets a fresh
// model.TrustReport and a fresh pipeline (crawl, matrix, score, filter,
// rank); nothing else is shared between requests.
//
// Callers only ever see ErrService for a failed request. The underlying
// cause stays in the logs and in the report.
package trust
