package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL is returned when an inline image cannot be decoded.
var ErrInvalidDataURL = errors.New("invalid inline image")

// DataURL encodes image bytes as an inline base64 data URL.
func DataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL strips the data URL prefix and decodes the payload.
// A bare base64 string is accepted and reported as image/jpeg.
func ParseDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidDataURL)
	}

	mimeType := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		meta, rest, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
		}
		mediaType, encoding, _ := strings.Cut(meta, ";")
		if encoding != "base64" {
			return nil, "", fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURL)
		}
		if mediaType != "" {
			mimeType = strings.ToLower(mediaType)
		}
		payload = rest
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, mimeType, nil
}
