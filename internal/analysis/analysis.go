package analysis

import (
	"context"
	"errors"
)

// FallbackCategory is the category reported when no analysis is available.
const FallbackCategory = "Uncategorized"

// ErrMissingCredential is returned by backends constructed without an API key.
var ErrMissingCredential = errors.New("analysis credential is missing")

// Result contains the fields suggested for a found item
type Result struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Category          string   `json:"category"`
	Tags              []string `json:"tags"`
	SuggestedLocation string   `json:"suggestedLocation,omitempty"`
	IsLikelyAI        bool     `json:"isLikelyAI"`
}

// Fallback returns the result used when analysis is unavailable. Callers treat
// it as "use manual entry".
func Fallback() Result {
	return Result{
		Name:        "",
		Description: "",
		Category:    FallbackCategory,
		Tags:        []string{},
		IsLikelyAI:  false,
	}
}

// Analyzer defines the interface for image analysis backends
type Analyzer interface {
	// Analyze describes the item shown in the image
	Analyze(ctx context.Context, imageData []byte, mimeType string) (*Result, error)
	// Close releases resources held by the backend
	Close() error
}
