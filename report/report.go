// Package report renders a preflight.Report as human readable text and as a structured,
// JSON-friendly document.
package report

import (
	"encoding/json"
	"time"

	"github.com/cleitonmarx/preflight"
)

// Rendered holds both renderings of a report.
type Rendered struct {
	Text     string
	Document Document
}

// Render renders r in both forms. It has no side effects.
func Render(r preflight.Report, opts ...Option) Rendered {
	return Rendered{
		Text:     Text(r, opts...),
		Document: NewDocument(r),
	}
}

// Document is a JSON-friendly representation of a report.
type Document struct {
	Status     string          `json:"status"`
	RootCause  string          `json:"rootCause,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	DurationMs int64           `json:"durationMs"`
	DeadlineMs int64           `json:"deadlineMs"`
	Services   []ServiceResult `json:"services"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// ServiceResult is the final outcome of one service.
type ServiceResult struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Stage     string  `json:"stage"`
	Required  bool    `json:"required"`
	Status    string  `json:"status"`
	Attempts  int     `json:"attempts"`
	LatencyMs float64 `json:"latencyMs"`
	Skipped   bool    `json:"skipped,omitempty"`
	ErrorKind string  `json:"errorKind,omitempty"`
	Error     string  `json:"error,omitempty"`
	Info      string  `json:"info,omitempty"`
	Hint      string  `json:"hint,omitempty"`
}

// NewDocument converts r into its structured form. Services keep the stage graph order.
func NewDocument(r preflight.Report) Document {
	results := r.Results()
	doc := Document{
		Status:     string(r.Status()),
		RootCause:  r.RootCause(),
		StartedAt:  r.StartedAt(),
		DurationMs: r.Duration().Milliseconds(),
		DeadlineMs: r.Deadline().Milliseconds(),
		Services:   make([]ServiceResult, 0, len(results)),
	}
	for _, res := range results {
		sr := ServiceResult{
			Name:      res.Service,
			Kind:      string(res.Kind),
			Stage:     stageLabel(res),
			Required:  res.Required,
			Status:    string(res.Status),
			Attempts:  res.Attempts,
			LatencyMs: float64(res.Latency.Microseconds()) / 1000,
			Skipped:   res.Skipped,
			Info:      res.Info,
		}
		if !res.Ready() {
			sr.ErrorKind = string(preflight.KindOf(res.Err))
			sr.Error = res.Detail()
			sr.Hint = res.Hint
		}
		doc.Services = append(doc.Services, sr)
	}
	for _, w := range r.Warnings() {
		doc.Warnings = append(doc.Warnings, w.Service+": "+w.Detail())
	}
	return doc
}

// ToJSON returns the indented JSON encoding of the document.
func (d Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
