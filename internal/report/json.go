package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/trustcrawl/internal/model"
)

// Envelope is the document written by a JSONWriter with WithEnvelope.
type Envelope struct {
	// Version is the trustcrawl version that produced the report.
	Version string `json:"version"`

	Report *model.TrustReport `json:"report"`

	// Checksums maps every scored hex address to its EIP-55 form.
	Checksums map[model.Address]string `json:"checksums,omitempty"`
}

// NewEnvelope wraps report for JSON output.
func NewEnvelope(report *model.TrustReport, version string) *Envelope {
	env := &Envelope{Version: version, Report: report}
	for _, s := range report.Scores {
		if !s.Address.IsHex() {
			continue
		}
		if env.Checksums == nil {
			env.Checksums = make(map[model.Address]string, len(report.Scores))
		}
		env.Checksums[s.Address] = s.Address.Checksum()
	}
	return env
}

// JSONWriter writes one JSON document per report, each followed by a
// newline, so compact output is valid JSON Lines.
type JSONWriter struct {
	baseWriter

	prefix, indent string
	envelope       bool
	version        string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent pretty-prints with the given line prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix, w.indent = prefix, indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithEnvelope wraps every report in an Envelope carrying version.
func WithEnvelope(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.envelope = true
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter. Without options it writes the bare
// report on a single line.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *JSONWriter) Write(report *model.TrustReport) (int, error) {
	var v any = report
	if w.envelope {
		v = NewEnvelope(report, w.version)
	}

	var (
		data []byte
		err  error
	)
	if w.prefix == "" && w.indent == "" {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, w.prefix, w.indent)
	}
	if err != nil {
		return 0, err
	}
	return w.output.Write(append(data, '\n'))
}
