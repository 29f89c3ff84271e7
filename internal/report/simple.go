package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/trustcrawl/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
// It uses plain ASCII so the output can be piped to files.
type SimpleWriter struct {
	baseWriter

	// top is the number of scores printed. Zero prints all.
	top int

	// verbose adds the crawl statistics and the time window.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithTop limits the number of printed scores.
func WithTop(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n >= 0 {
			w.top = n
		}
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.TrustReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	if w.verbose {
		w.writeStats(&sb, report)
	}
	w.writeScores(&sb, report)
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.TrustReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                       TRUSTCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Request:   %s\n", report.RequestID)
	fmt.Fprintf(sb, "Chain:     %s\n", report.Chain)
	fmt.Fprintf(sb, "Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Depth:     %d\n", report.MaxDepth)
	fmt.Fprintf(sb, "Limit:     %d\n", report.MaxResults)
	fmt.Fprintf(sb, "Seeds:     %d\n", len(report.Seeds))
	fmt.Fprintf(sb, "Status:    %s\n", statusText(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, report *model.TrustReport) {
	writeSection(sb, "CRAWL")

	st := report.Stats
	fmt.Fprintf(sb, "  Window:        %d .. %d\n", report.Query.FromTS, report.Query.ToTS)
	fmt.Fprintf(sb, "  Lookups:       %d (%d failed, %d retried)\n", st.Fetches, st.FailedFetches, st.Retries)
	fmt.Fprintf(sb, "  Skipped:       %d blocklisted, %d without inbound transfers\n", st.BlockedNeighbors, st.ZeroTransferNeighbors)
	fmt.Fprintf(sb, "  Addresses:     %d\n", st.Addresses)
	fmt.Fprintf(sb, "  Edges:         %d\n", st.Edges)
	fmt.Fprintf(sb, "  Deepest level: %d\n", st.MaxDepthReached)
	fmt.Fprintf(sb, "  Duration:      %s\n", st.Duration)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeScores(sb *strings.Builder, report *model.TrustReport) {
	writeSection(sb, "SCORES")

	if len(report.Scores) == 0 {
		sb.WriteString("  No scored addresses\n\n")
		return
	}

	scores := report.Scores
	if w.top > 0 && len(scores) > w.top {
		scores = scores[:w.top]
	}
	for i, s := range scores {
		fmt.Fprintf(sb, "  %4d  %-44s %.6g\n", i+1, s.Address.Checksum(), s.Score)
	}
	if len(scores) < len(report.Scores) {
		fmt.Fprintf(sb, "  ... %d more\n", len(report.Scores)-len(scores))
	}
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
