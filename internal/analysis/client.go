package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/campusfind/internal/imaging"
)

// Client wraps an Analyzer so that callers always get a usable Result.
// A nil analyzer stands for a missing credential.
type Client struct {
	analyzer Analyzer
}

// NewClient creates a new Client
func NewClient(analyzer Analyzer) *Client {
	return &Client{analyzer: analyzer}
}

// Analyze strips the data URL prefix from image and asks the backend for a
// description. Any failure yields Fallback(); no error reaches the caller.
func (c *Client) Analyze(ctx context.Context, image string) (result Result) {
	if c == nil || c.analyzer == nil {
		slog.Warn("Image analysis unavailable, falling back to manual entry", "error", ErrMissingCredential)
		return Fallback()
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Image analysis panicked", "error", fmt.Sprint(r))
			result = Fallback()
		}
	}()

	data, mimeType, err := imaging.ParseDataURL(image)
	if err != nil {
		slog.Error("Image analysis failed", "error", err)
		return Fallback()
	}

	res, err := c.analyzer.Analyze(ctx, data, mimeType)
	if err != nil {
		slog.Error("Image analysis failed",
			"content_type", mimeType,
			"image_size", len(data),
			"error", err,
		)
		return Fallback()
	}
	if res == nil {
		slog.Error("Image analysis returned no result")
		return Fallback()
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return *res
}

// Close closes the underlying analyzer
func (c *Client) Close() error {
	if c == nil || c.analyzer == nil {
		return nil
	}
	return c.analyzer.Close()
}
