// Package eigentrust is a client for an external EigenTrust compute service.
//
// The client sends the pretrust vector and the local trust matrix built by
// graph.BuildMatrix to POST /basic/v1/compute and maps the returned
// (index, score) pairs back to addresses. Every failure is fatal for the
// request that triggered it; the client never retries.
package eigentrust
