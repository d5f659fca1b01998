package complaint

import (
	"context"

	"hostelmon/internal/classify"
	"hostelmon/internal/extract"
)

// SummaryLimit caps Payload.Summary, counted in characters. Truncation may
// cut a word in half.
const SummaryLimit = 100

// Confidence tags. They are fixed per extraction path, not probabilities.
const (
	// ConfidenceRules: rule pipeline, at least one category keyword matched.
	ConfidenceRules = 60.0
	// ConfidenceFallback: rule pipeline, category defaulted to OTHER.
	ConfidenceFallback = 30.0
	// ConfidenceRemote: remote classifier answered with parseable JSON.
	ConfidenceRemote = 96.0
	// ConfidenceFailed: remote classifier failed, fallback payload used.
	ConfidenceFailed = 0.0
)

// RemoteResult is what an LLM-backed classifier returns. Labels are raw
// strings; the assembler coerces them into the closed enumerations.
type RemoteResult struct {
	Facility *string
	SubUnit  *string
	Category string
	Priority string
	Summary  string
}

// RemoteClassifier is the alternate extraction path.
type RemoteClassifier interface {
	Classify(ctx context.Context, text string) (RemoteResult, error)
}

// Assembler turns raw text into a Payload. It holds no mutable state.
type Assembler struct {
	routes    RoutingTable
	extractor *extract.Extractor
}

// NewAssembler builds an Assembler over routes using the default
// extraction cascades.
func NewAssembler(routes RoutingTable) *Assembler {
	return &Assembler{routes: routes, extractor: extract.Default}
}

// WithExtractor returns a copy of a that uses e for location fields.
func (a *Assembler) WithExtractor(e *extract.Extractor) *Assembler {
	return &Assembler{routes: a.routes, extractor: e}
}

// Routes exposes the routing table the assembler was built with.
func (a *Assembler) Routes() RoutingTable {
	return a.routes
}

// Assemble runs the rule pipeline over rawText.
func (a *Assembler) Assemble(rawText, sender string) Payload {
	score := classify.Score(rawText)

	confidence := ConfidenceRules
	if score.Fallback {
		confidence = ConfidenceFallback
	}

	return Payload{
		ReporterHandle: sender,
		RawText:        rawText,
		Facility:       a.extractor.Facility(rawText),
		SubUnit:        a.extractor.SubUnit(rawText),
		Category:       score.Category,
		Priority:       classify.Prioritize(rawText),
		Summary:        Truncate(rawText, SummaryLimit),
		RouteAddress:   a.routes.Lookup(score.Category),
		Confidence:     confidence,
	}
}

// AssembleRemote asks rc for the fields. The returned error is informational:
// on failure the payload is still usable, with OTHER/MEDIUM, no location
// and zero confidence.
func (a *Assembler) AssembleRemote(ctx context.Context, rawText, sender string, rc RemoteClassifier) (Payload, error) {
	res, err := rc.Classify(ctx, rawText)
	if err != nil {
		return a.failedPayload(rawText, sender), err
	}

	category := classify.ParseCategory(res.Category)
	summary := Truncate(res.Summary, SummaryLimit)
	if summary == "" {
		summary = Truncate(rawText, SummaryLimit)
	}

	return Payload{
		ReporterHandle: sender,
		RawText:        rawText,
		Facility:       nonEmpty(res.Facility),
		SubUnit:        nonEmpty(res.SubUnit),
		Category:       category,
		Priority:       classify.ParsePriority(res.Priority),
		Summary:        summary,
		RouteAddress:   a.routes.Lookup(category),
		Confidence:     ConfidenceRemote,
	}, nil
}

func (a *Assembler) failedPayload(rawText, sender string) Payload {
	return Payload{
		ReporterHandle: sender,
		RawText:        rawText,
		Category:       classify.Other,
		Priority:       classify.Medium,
		Summary:        Truncate(rawText, SummaryLimit),
		RouteAddress:   a.routes.Lookup(classify.Other),
		Confidence:     ConfidenceFailed,
	}
}

// Truncate returns the first limit characters of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
