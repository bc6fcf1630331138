package module

import (
	"context"
	"errors"
	"fmt"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/gateway"
)

// ErrNilGateway is returned by Run when no gateway is supplied.
var ErrNilGateway = errors.New("module: gateway is nil")

// Definition describes one module. The function fields are pure; Run supplies
// the shared steps around them.
type Definition[I, S any] struct {
	// ID is the stable module identifier used for cache keys.
	ID ID
	// Name is the display name.
	Name string
	// MaxOutputTokens is the module's completion budget.
	MaxOutputTokens int
	// System is the fixed instruction: domain framing plus the response schema.
	System string

	// Prompt renders the per-call user instruction from the input.
	Prompt func(in I) string
	// Hash projects the input onto the fields that decide staleness.
	Hash func(in I) any
	// Normalize coerces the service's record into the structured result.
	// fallback is the raw completion text when it did not parse as a record,
	// otherwise empty.
	Normalize func(raw Raw, fallback string, in I) S
	// Score optionally supplies a numeric score for the confidence fallback.
	Score func(s S) *float64
	// Format renders structured fields as text.
	Format func(s S) string
}

// Run executes the module once: one gateway call, field-by-field coercion,
// confidence derivation and formatting. Gateway errors are returned wrapped;
// a malformed or unparseable response is not an error.
func (d Definition[I, S]) Run(ctx context.Context, gw gateway.Gateway, in I) (Output[S], error) {
	if gw == nil {
		return Output[S]{}, ErrNilGateway
	}

	resp, err := gw.Call(ctx, gateway.Request{
		System:           d.System,
		User:             d.Prompt(in),
		MaxOutputTokens:  d.MaxOutputTokens,
		ExpectStructured: true,
	})
	if err != nil {
		return Output[S]{}, fmt.Errorf("module %s: %w", d.ID, err)
	}

	return d.Shape(resp, in), nil
}

// Shape turns a gateway response into an Output without calling anything.
func (d Definition[I, S]) Shape(resp gateway.Response, in I) Output[S] {
	raw := Raw{}
	fallback := resp.Text
	if resp.HasParsed {
		if m, ok := resp.Parsed.(map[string]any); ok {
			raw = Raw(m)
			fallback = ""
		}
	}

	structured := d.Normalize(raw, fallback, in)
	warnings := raw.Strings("warnings")

	confidence, ok := raw.Confidence("confidence")
	if !ok {
		var score *float64
		if d.Score != nil {
			score = d.Score(structured)
		}
		confidence = DeriveConfidence(warnings, score)
	}

	return Output[S]{
		Structured: structured,
		Formatted:  WithWarnings(d.Format(structured), warnings),
		Confidence: confidence,
		Warnings:   warnings,
	}
}

// SourceInput returns the staleness projection of in.
func (d Definition[I, S]) SourceInput(in I) any {
	if d.Hash == nil {
		return in
	}
	return d.Hash(in)
}
