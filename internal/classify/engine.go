// ABOUTME: Classification engine: primary LLM provider with confidence-gated
// ABOUTME: fallback to a second provider.
package classify

import (
	"context"
	"fmt"
	"log/slog"
)

// Source identifies which path produced a classification. Values match the
// classifications.source CHECK constraint.
type Source string

const (
	SourcePrimary  Source = "llm_primary"
	SourceFallback Source = "llm_fallback"
	SourceManual   Source = "manual"
)

// Result is one classification decision.
type Result struct {
	HSCode      string
	Description string
	Confidence  float64
	Rationale   string
	Source      Source
	Model       string
}

// Engine runs product classification through a primary provider, consulting a
// fallback provider when primary confidence is below the threshold. A nil
// fallback disables the second opinion.
type Engine struct {
	primary       *Provider
	fallback      *Provider
	minConfidence float64
}

// NewEngine creates a classification engine. fallback may be nil.
func NewEngine(primary, fallback *Provider, minConfidence float64) *Engine {
	return &Engine{primary: primary, fallback: fallback, minConfidence: minConfidence}
}

// Classify determines the HS code for a product.
//
// The primary result is returned directly when its confidence meets the
// threshold. Below threshold, the fallback is consulted and the higher
// confidence answer wins; ties go to the primary. A fallback failure degrades
// to the low-confidence primary result rather than failing the operation.
func (e *Engine) Classify(ctx context.Context, title, description, originCountry string) (*Result, error) {
	primary, err := e.primary.Classify(ctx, title, description, originCountry)
	if err != nil {
		return nil, fmt.Errorf("primary classifier: %w", err)
	}

	result := &Result{
		HSCode:      primary.HSCode,
		Description: primary.Description,
		Confidence:  primary.Confidence,
		Rationale:   primary.Rationale,
		Source:      SourcePrimary,
		Model:       e.primary.Model(),
	}

	if primary.Confidence >= e.minConfidence || e.fallback == nil {
		return result, nil
	}

	second, err := e.fallback.Classify(ctx, title, description, originCountry)
	if err != nil {
		slog.WarnContext(ctx, "fallback classifier failed; keeping low-confidence primary result",
			"err", err,
			"primary_confidence", primary.Confidence,
		)
		return result, nil
	}

	if second.Confidence > primary.Confidence {
		return &Result{
			HSCode:      second.HSCode,
			Description: second.Description,
			Confidence:  second.Confidence,
			Rationale:   second.Rationale,
			Source:      SourceFallback,
			Model:       e.fallback.Model(),
		}, nil
	}
	return result, nil
}
