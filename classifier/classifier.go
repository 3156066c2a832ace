package classifier

import (
	"context"
)

// Flagging is the upstream classifier's read on a piece of text.
type Flagging struct {
	Flagged bool `json:"flagged"`
	// per-category confidence scores, category names are upstream-defined
	CategoryScores map[string]float64 `json:"category_scores"`
}

// Classifier is the opaque, possibly-unavailable upstream text classifier.
// Callers are expected to fail open on error: an outage must never block
// content.
type Classifier interface {
	Check(ctx context.Context, text string) (*Flagging, error)
}
