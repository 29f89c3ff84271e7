package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/trustcrawl/internal/model"
)

// chartSlices is the number of top scores drawn in the pie chart.
const chartSlices = 8

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing. Tables, alerts and the mermaid chart come from nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.TrustReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCrawl(md, report)
	w.writeScores(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.TrustReport) {
	md.H1("Trust Report: " + report.Chain)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Request", "`" + report.RequestID + "`"},
			{"Chain", report.Chain},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Depth", strconv.Itoa(report.MaxDepth)},
			{"Limit", strconv.Itoa(report.MaxResults)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	if report.Failed() {
		md.Cautionf("The request failed: %s", statusText(report))
		md.PlainText("")
	}

	md.H2("Seeds")
	md.PlainText("")
	seeds := make([]string, 0, len(report.Seeds))
	for _, s := range report.Seeds {
		seeds = append(seeds, "`"+s.Checksum()+"`")
	}
	md.BulletList(seeds...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeCrawl(md *markdown.Markdown, report *model.TrustReport) {
	st := report.Stats

	md.H2("Crawl")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Lookups", strconv.Itoa(st.Fetches)},
			{"Failed lookups", strconv.Itoa(st.FailedFetches)},
			{"Large-account retries", strconv.Itoa(st.Retries)},
			{"Blocklisted neighbors", strconv.Itoa(st.BlockedNeighbors)},
			{"Neighbors without inbound transfers", strconv.Itoa(st.ZeroTransferNeighbors)},
			{"Addresses", strconv.Itoa(st.Addresses)},
			{"Edges", strconv.Itoa(st.Edges)},
			{"Deepest level", strconv.Itoa(st.MaxDepthReached)},
			{"Duration", st.Duration.String()},
		},
	})
	md.PlainText("")

	if st.FailedFetches > 0 {
		md.Warningf("%d lookup(s) failed; their branches are missing from the graph.", st.FailedFetches)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeScores(md *markdown.Markdown, report *model.TrustReport) {
	md.H2("Scores")
	md.PlainText("")

	if len(report.Scores) == 0 {
		md.Note("No addresses were scored.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Scores))
	for i, s := range report.Scores {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			"`" + truncateString(s.Address.Checksum(), 44) + "`",
			strconv.FormatFloat(s.Score, 'g', 6, 64),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Address", "Score"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, report.Scores)
}

// writePieChart draws the top scores in basis points of the total.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, scores []model.ScoredAddress) {
	var total float64
	for _, s := range scores {
		total += s.Score
	}
	if total <= 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Score share (basis points)"),
		piechart.WithShowData(true),
	)

	var rest float64
	for i, s := range scores {
		if i >= chartSlices {
			rest += s.Score
			continue
		}
		chart.LabelAndIntValue(truncateString(s.Address.Checksum(), 12), basisPoints(s.Score, total))
	}
	if rest > 0 {
		chart.LabelAndIntValue("others", basisPoints(rest, total))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func basisPoints(v, total float64) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(v/total*10000 + 0.5)
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [trustcrawl](https://github.com/nao1215/trustcrawl)*")
}
