// Package extract turns a photo of a charger screen or receipt into a
// best-effort partial charging record.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/runnerr0/chargebook/internal/storage"
)

// ErrExtraction matches every *Error.
var ErrExtraction = errors.New("extraction failed")

// Error reports a failed or unusable extraction. The draft being filled is
// never modified when one is returned.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "extract " + e.Op + ": " + ErrExtraction.Error()
	}
	return fmt.Sprintf("extract %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrExtraction }

// Request is one image to read.
type Request struct {
	Image    []byte
	MIMEType string // sniffed from Image when empty
}

// Result holds the values the backend recognized. A nil field means the
// value was absent, zero or not usable.
type Result struct {
	EnergyKWh       *float64 `json:"energyKwh,omitempty"`
	DurationMinutes *int     `json:"durationMinutes,omitempty"`
	Cost            *float64 `json:"cost,omitempty"`
	Balance         *float64 `json:"balance,omitempty"`
}

// Client reads charging values from an image.
type Client interface {
	Extract(ctx context.Context, req Request) (Result, error)
}

// Empty reports whether nothing was recognized.
func (r Result) Empty() bool {
	return r.EnergyKWh == nil && r.DurationMinutes == nil && r.Cost == nil && r.Balance == nil
}

// Apply merges r into d. Recognized values replace the draft's; anything
// not recognized, balance included, keeps the draft's value.
func (r Result) Apply(d storage.Draft) storage.Draft {
	if r.EnergyKWh != nil {
		d.EnergyKWh = *r.EnergyKWh
	}
	if r.DurationMinutes != nil {
		d.DurationMinutes = *r.DurationMinutes
	}
	if r.Cost != nil {
		d.Cost = *r.Cost
	}
	if r.Balance != nil {
		d.Balance = storage.Float(*r.Balance)
	} else if d.Balance != nil {
		d.Balance = storage.Float(*d.Balance)
	}
	return d
}

// rawResult is the backend's answer before cleanup. Numbers may be zero,
// negative or missing.
type rawResult struct {
	EnergyKWh       *float64 `json:"energyKwh"`
	DurationMinutes *float64 `json:"durationMinutes"`
	Cost            *float64 `json:"cost"`
	Balance         *float64 `json:"balance"`
}

// ParseResult decodes a JSON answer. Markdown code fences around the object
// are tolerated.
func ParseResult(text string) (Result, error) {
	text = stripFence(text)
	if text == "" {
		return Result{}, &Error{Op: "parse", Err: errors.New("empty response")}
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Result{}, &Error{Op: "parse", Err: fmt.Errorf("decode response: %w", err)}
	}

	res := Result{
		EnergyKWh: positive(raw.EnergyKWh),
		Cost:      positive(raw.Cost),
		Balance:   positive(raw.Balance),
	}
	if m := positive(raw.DurationMinutes); m != nil {
		if n := int(math.Round(*m)); n > 0 {
			res.DurationMinutes = &n
		}
	}
	return res, nil
}

func positive(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) || *p <= 0 {
		return nil
	}
	v := *p
	return &v
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DetectMIMEType returns req's MIME type, sniffing the image when none was
// given. Only image types are accepted.
func DetectMIMEType(req Request) (string, error) {
	if len(req.Image) == 0 {
		return "", &Error{Op: "read image", Err: errors.New("image is empty")}
	}
	mime := req.MIMEType
	if mime == "" {
		mime = http.DetectContentType(req.Image)
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", &Error{Op: "read image", Err: fmt.Errorf("unsupported content type %q", mime)}
	}
	return mime, nil
}
