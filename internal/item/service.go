package item

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidReport    = errors.New("invalid item report")
	ErrNotUnclaimed     = errors.New("item is not available to claim")
	ErrNotPending       = errors.New("item has no pending claim")
	ErrOwnItem          = errors.New("cannot claim an item you reported")
	ErrWrongInstitution = errors.New("item belongs to another institution")
	ErrNotAdmin         = errors.New("only the institution can confirm claims")
	ErrNoOriginal       = errors.New("item has no original upload")
)

// IDGenerator generates unique IDs for items
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates millisecond timestamp IDs, bumping the value
// when two reports land in the same millisecond
type defaultIDGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *defaultIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return strconv.FormatInt(id, 10)
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Actor identifies who is acting on an item
type Actor struct {
	UserID    string
	CollegeID string
	Admin     bool
}

// Upload is an original file kept alongside a published item
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportRequest carries the fields of a new found item
type ReportRequest struct {
	CollegeID   string `validate:"required"`
	FinderID    string `validate:"required"`
	Image       string `validate:"required"`
	Name        string `validate:"max=200"`
	Description string `validate:"max=4000"`
	FoundDate   string `validate:"required,datetime=2006-01-02"`
	Location    string `validate:"max=200"`
	Category    string
	Tags        []string `validate:"max=20,dive,max=50"`
	Original    *Upload
}

// Service handles item operations
type Service struct {
	store       *Store
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
	validate    *validator.Validate
}

// NewService creates a new Service with default ID generator and time source
func NewService(store *Store, storage Storage) *Service {
	return NewServiceWithDeps(store, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store *Store, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Report builds a new unclaimed item and appends it to the store. The
// original upload, if any, is saved first and removed again if the append
// fails.
func (s *Service) Report(req ReportRequest) (*Item, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	it := &Item{
		ID:          id,
		CollegeID:   req.CollegeID,
		FinderID:    req.FinderID,
		Image:       req.Image,
		Name:        req.Name,
		Description: req.Description,
		FoundDate:   req.FoundDate,
		Location:    req.Location,
		Status:      StatusUnclaimed,
		Tags:        append([]string{}, req.Tags...),
		Category:    req.Category,
		CreatedAt:   now,
	}

	if req.Original != nil && s.storage != nil {
		savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(req.Original.Filename)), req.Original.Data, req.Original.ContentType)
		if err != nil {
			return nil, fmt.Errorf("saving original upload: %w", err)
		}
		it.OriginalFile = savedPath
		it.ContentType = req.Original.ContentType
	}

	if err := s.store.Append(it); err != nil {
		if it.OriginalFile != "" {
			if delErr := s.storage.Delete(it.OriginalFile); delErr != nil {
				slog.Warn("Failed to delete original upload", "filename", it.OriginalFile, "error", delErr)
			}
		}
		return nil, fmt.Errorf("appending item: %w", err)
	}

	return it, nil
}

// Claim moves an unclaimed item of the actor's institution to pending with
// the actor as claimer
func (s *Service) Claim(id string, actor Actor) (*Item, error) {
	it, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if it.CollegeID != actor.CollegeID {
		return nil, ErrWrongInstitution
	}
	if it.FinderID == actor.UserID {
		return nil, ErrOwnItem
	}
	if it.Status != StatusUnclaimed {
		return nil, ErrNotUnclaimed
	}

	updated, err := s.store.SetStatus(id, StatusPending, actor.UserID)
	if errors.Is(err, ErrInvalidTransition) {
		// someone else claimed it since the read above
		return nil, ErrNotUnclaimed
	}
	if err != nil {
		return nil, fmt.Errorf("claiming item: %w", err)
	}
	return updated, nil
}

// ConfirmClaim hands a pending item over to its claimer. Only the owning
// institution may confirm.
func (s *Service) ConfirmClaim(id string, actor Actor) (*Item, error) {
	if !actor.Admin {
		return nil, ErrNotAdmin
	}
	it, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if it.CollegeID != actor.CollegeID {
		return nil, ErrWrongInstitution
	}
	if it.Status != StatusPending {
		return nil, ErrNotPending
	}

	updated, err := s.store.SetStatus(id, StatusClaimed, "")
	if errors.Is(err, ErrInvalidTransition) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("confirming claim: %w", err)
	}
	return updated, nil
}

// GetItem retrieves an item by ID
func (s *Service) GetItem(id string) (*Item, error) {
	it, err := s.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return it, nil
}

// Browse returns the actor's institution items matching query
func (s *Service) Browse(actor Actor, query string) []*Item {
	return Visible(s.store.List(), actor.CollegeID, query)
}

// Found returns the items the actor reported
func (s *Service) Found(actor Actor) []*Item {
	return FoundBy(s.store.List(), actor.UserID)
}

// Claimed returns the items the actor claimed
func (s *Service) Claimed(actor Actor) []*Item {
	return ClaimedBy(s.store.List(), actor.UserID)
}

// GetOriginalFile retrieves the original upload of an item
func (s *Service) GetOriginalFile(id string) ([]byte, string, error) {
	it, err := s.store.Get(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting item: %w", err)
	}
	if it.OriginalFile == "" || s.storage == nil {
		return nil, "", ErrNoOriginal
	}

	data, err := s.storage.Get(it.OriginalFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting original upload: %w", err)
	}
	return data, it.ContentType, nil
}

// Today returns the current calendar date in DateLayout
func (s *Service) Today() string {
	return s.timeSource.Now().Format(DateLayout)
}
