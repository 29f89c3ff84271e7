package report

import (
	"io"

	"github.com/nao1215/trustcrawl/internal/model"
)

// Writer renders a finished trust report.
type Writer interface {
	// Write renders report and returns the number of bytes written.
	Write(report *model.TrustReport) (int, error)
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText is "Complete" or "ERROR - " followed by the failure.
func statusText(report *model.TrustReport) string {
	if !report.Failed() {
		return "Complete"
	}
	msg := report.ErrorMessage
	if msg == "" && report.Error != nil {
		msg = report.Error.Error()
	}
	return "ERROR - " + msg
}

// truncateString shortens s to maxLen bytes, ending in "..." when there is room.
func truncateString(s string, maxLen int) string {
	switch {
	case len(s) <= maxLen:
		return s
	case maxLen <= 3:
		return s[:maxLen]
	default:
		return s[:maxLen-3] + "..."
	}
}
