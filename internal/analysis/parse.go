package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawResult mirrors Result with pointers so missing fields can be detected
type rawResult struct {
	Name              *string   `json:"name"`
	Description       *string   `json:"description"`
	Category          *string   `json:"category"`
	Tags              *[]string `json:"tags"`
	SuggestedLocation *string   `json:"suggestedLocation"`
	IsLikelyAI        *bool     `json:"isLikelyAI"`
}

// parseAnalysisJSON parses a model response into a Result
func parseAnalysisJSON(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	switch {
	case raw.Name == nil:
		return nil, fmt.Errorf("missing required field: name")
	case raw.Description == nil:
		return nil, fmt.Errorf("missing required field: description")
	case raw.Category == nil:
		return nil, fmt.Errorf("missing required field: category")
	case raw.Tags == nil:
		return nil, fmt.Errorf("missing required field: tags")
	}

	result := &Result{
		Name:        strings.TrimSpace(*raw.Name),
		Description: strings.TrimSpace(*raw.Description),
		Category:    strings.TrimSpace(*raw.Category),
		Tags:        cleanTags(*raw.Tags),
	}
	if raw.SuggestedLocation != nil {
		result.SuggestedLocation = strings.TrimSpace(*raw.SuggestedLocation)
	}
	// Local models sometimes drop the flag; absent means not flagged.
	if raw.IsLikelyAI != nil {
		result.IsLikelyAI = *raw.IsLikelyAI
	}
	if result.Category == "" {
		result.Category = FallbackCategory
	}

	return result, nil
}

// cleanTags trims tags and drops empty and case-insensitive duplicates
func cleanTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, tag)
	}
	return cleaned
}
