package submission

import (
	"errors"
	"strings"

	"github.com/zombor/campusfind/internal/analysis"
	"github.com/zombor/campusfind/internal/item"
)

// State is the stage of a draft report
type State string

const (
	StateIdle           State = "Idle"
	StateImageSelected  State = "ImageSelected"
	StateAnalyzing      State = "Analyzing"
	StateReadyToPublish State = "ReadyToPublish"
	StatePublished      State = "Published"
)

var (
	ErrNoImage            = errors.New("an image is required")
	ErrAnalysisInProgress = errors.New("image analysis is still running")
	ErrNotAnalyzable      = errors.New("no image is waiting for analysis")
)

// Form is a snapshot of a draft report. Transitions return a new Form and
// never modify the receiver.
type Form struct {
	State       State    `json:"state"`
	Generation  uint64   `json:"generation"`
	Image       string   `json:"image,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FoundDate   string   `json:"dateFound"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category,omitempty"`
	IsLikelyAI  bool     `json:"isLikelyAI"`

	original *item.Upload
}

// Edits holds user changes to a draft; nil fields are left alone
type Edits struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	FoundDate   *string   `json:"dateFound"`
	Location    *string   `json:"location"`
	Tags        *[]string `json:"tags"`
}

// NewForm returns an empty draft dated today
func NewForm(today string) Form {
	return Form{
		State:     StateIdle,
		FoundDate: today,
		Tags:      []string{},
	}
}

func (f Form) copy() Form {
	f.Tags = append([]string{}, f.Tags...)
	return f
}

// SelectImage attaches an encoded image. Choosing an image starts a new
// generation so that analysis of a previous image can no longer land.
func (f Form) SelectImage(image string, original *item.Upload) Form {
	next := f.copy()
	next.State = StateImageSelected
	next.Generation++
	next.Image = image
	next.original = original
	return next
}

// BeginAnalysis marks the draft as analysing and returns the token the
// result must present to CompleteAnalysis
func (f Form) BeginAnalysis() (Form, uint64, error) {
	if f.State != StateImageSelected || f.Image == "" {
		return f, 0, ErrNotAnalyzable
	}
	next := f.copy()
	next.State = StateAnalyzing
	return next, next.Generation, nil
}

// CompleteAnalysis fills the draft from result. It reports false and returns
// the receiver unchanged when token is stale or nothing is being analysed.
// A suggested location never replaces one the user already entered.
func (f Form) CompleteAnalysis(token uint64, result analysis.Result) (Form, bool) {
	if f.State != StateAnalyzing || token != f.Generation {
		return f, false
	}
	next := f.copy()
	next.State = StateReadyToPublish
	next.Name = result.Name
	next.Description = result.Description
	next.Tags = append([]string{}, result.Tags...)
	next.Category = result.Category
	next.IsLikelyAI = result.IsLikelyAI
	if strings.TrimSpace(next.Location) == "" && result.SuggestedLocation != "" {
		next.Location = result.SuggestedLocation
	}
	return next, true
}

// Edit applies user changes
func (f Form) Edit(e Edits) Form {
	next := f.copy()
	if e.Name != nil {
		next.Name = *e.Name
	}
	if e.Description != nil {
		next.Description = *e.Description
	}
	if e.FoundDate != nil {
		next.FoundDate = *e.FoundDate
	}
	if e.Location != nil {
		next.Location = *e.Location
	}
	if e.Tags != nil {
		next.Tags = cleanTags(*e.Tags)
	}
	return next
}

// Clear resets every field, not just the image, and invalidates any
// analysis still in flight
func (f Form) Clear(today string) Form {
	next := NewForm(today)
	next.Generation = f.Generation + 1
	return next
}

// CanPublish reports why the draft cannot be published, if it cannot
func (f Form) CanPublish() error {
	if f.State == StateAnalyzing {
		return ErrAnalysisInProgress
	}
	if f.Image == "" {
		return ErrNoImage
	}
	return nil
}

// Publish returns the final snapshot of the draft
func (f Form) Publish() (Form, error) {
	if err := f.CanPublish(); err != nil {
		return f, err
	}
	next := f.copy()
	next.State = StatePublished
	return next, nil
}

// report builds the item request for the published draft
func (f Form) report(author item.Actor) item.ReportRequest {
	return item.ReportRequest{
		CollegeID:   author.CollegeID,
		FinderID:    author.UserID,
		Image:       f.Image,
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		FoundDate:   f.FoundDate,
		Location:    strings.TrimSpace(f.Location),
		Category:    f.Category,
		Tags:        append([]string{}, f.Tags...),
		Original:    f.original,
	}
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
