// Package pipeline runs a trust crawl request as a sequence of steps.
//
// Each step receives the request's model.TrustReport and fills in its part:
// the crawl step gathers the graph, the matrix step indexes it, the score
// step calls the scoring engine and the filter and rank steps shape the
// result. The first failing step stops the pipeline and its error is recorded
// in the report.
//
// BatchProcessor runs several pipelines concurrently with errgroup, one per
// report, for example one per chain.
package pipeline
