package item

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrDuplicateID       = errors.New("item id already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidClaimer    = errors.New("claimer does not match status")
)

// transitions lists the only allowed status changes
var transitions = map[Status]Status{
	StatusUnclaimed: StatusPending,
	StatusPending:   StatusClaimed,
}

// Store is the ordered, most-recent-first item collection. Every mutation
// rewrites the whole collection to the DB before it becomes visible.
type Store struct {
	mu    sync.RWMutex
	db    DB
	seed  []*Item
	items []*Item
}

// NewStore creates a Store backed by db. seed is persisted by Load when the
// slot has never been written.
func NewStore(db DB, seed []*Item) *Store {
	return &Store{
		db:   db,
		seed: seed,
	}
}

// Load reads the persisted collection. A missing slot yields the seed set,
// which is persisted immediately; a corrupt slot yields an empty collection.
func (s *Store) Load() ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.db.LoadItems()
	switch {
	case errors.Is(err, ErrSlotNotFound):
		items = cloneAll(s.seed)
		if err := s.db.SaveItems(items); err != nil {
			return nil, fmt.Errorf("persisting seed items: %w", err)
		}
		slog.Info("Seeded item store", "items", len(items))
	case errors.Is(err, ErrCorruptSlot):
		slog.Warn("Persisted items are unreadable, starting empty", "error", err)
		items = []*Item{}
	case err != nil:
		return nil, fmt.Errorf("loading items: %w", err)
	}

	s.items = validRecords(items)
	return cloneAll(s.items), nil
}

// validRecords drops persisted records that break the status rules or reuse
// an earlier id. The first record with a given id wins.
func validRecords(items []*Item) []*Item {
	out := make([]*Item, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		var reason error
		switch {
		case it == nil || it.ID == "":
			reason = errors.New("missing id")
		case seen[it.ID]:
			reason = ErrDuplicateID
		case !it.Status.Valid():
			reason = fmt.Errorf("unknown status %q", it.Status)
		default:
			reason = checkClaimer(it.Status, it.ClaimerID)
		}
		if reason != nil {
			slog.Warn("Dropping invalid persisted item", "index", i, "error", reason)
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}

// Append prepends item and persists the collection
func (s *Store) Append(item *Item) error {
	if err := checkClaimer(item.Status, item.ClaimerID); err != nil {
		return err
	}
	if !item.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, item.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(item.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
	}

	next := make([]*Item, 0, len(s.items)+1)
	next = append(next, item.clone())
	next = append(next, s.items...)
	if err := s.db.SaveItems(next); err != nil {
		return fmt.Errorf("saving items: %w", err)
	}
	s.items = next
	return nil
}

// SetStatus moves the matching item to status. An empty claimerID keeps the
// current claimer, which is how a pending claim is confirmed.
func (s *Store) SetStatus(id string, status Status, claimerID string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	current := s.items[idx]
	if transitions[current.Status] != status {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
	}

	updated := current.clone()
	updated.Status = status
	if claimerID != "" {
		updated.ClaimerID = claimerID
	}
	if err := checkClaimer(updated.Status, updated.ClaimerID); err != nil {
		return nil, err
	}

	next := append([]*Item{}, s.items...)
	next[idx] = updated
	if err := s.db.SaveItems(next); err != nil {
		return nil, fmt.Errorf("saving items: %w", err)
	}
	s.items = next
	return updated.clone(), nil
}

// Get returns a copy of the item with the given ID
func (s *Store) Get(id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return s.items[idx].clone(), nil
}

// List returns copies of all items, most recent first
func (s *Store) List() []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.items)
}

// Len returns the number of stored items
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// checkClaimer enforces that only pending or claimed items carry a claimer
func checkClaimer(status Status, claimerID string) error {
	hasClaimer := claimerID != ""
	needsClaimer := status == StatusPending || status == StatusClaimed
	if hasClaimer != needsClaimer {
		return fmt.Errorf("%w: status %s", ErrInvalidClaimer, status)
	}
	return nil
}

func cloneAll(items []*Item) []*Item {
	out := make([]*Item, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}
