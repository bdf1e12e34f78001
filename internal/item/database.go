package item

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName = "slots"

	// SlotName is the key under which the item collection is persisted
	SlotName = "campusfind_items"
)

var (
	// ErrSlotNotFound is returned when the item slot has never been written
	ErrSlotNotFound = errors.New("item slot not found")
	// ErrCorruptSlot is returned when the item slot cannot be parsed
	ErrCorruptSlot = errors.New("item slot is corrupt")
)

// DB defines the interface for the key-value slot holding the item collection
type DB interface {
	// LoadItems reads the persisted collection in stored order
	LoadItems() ([]*Item, error)

	// SaveItems replaces the persisted collection
	SaveItems(items []*Item) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// LoadItems reads the item slot
func (b *BoltDB) LoadItems() ([]*Item, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if v := bucket.Get([]byte(SlotName)); v != nil {
			// bbolt values are only valid for the life of the transaction
			data = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading item slot: %w", err)
	}
	if data == nil {
		return nil, ErrSlotNotFound
	}
	return decodeItems(data)
}

// SaveItems writes the whole collection to the item slot
func (b *BoltDB) SaveItems(items []*Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling items: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(SlotName), data)
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// decodeItems parses a JSON array of items, dropping null entries
func decodeItems(data []byte) ([]*Item, error) {
	var items []*Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSlot, err)
	}
	cleaned := make([]*Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			cleaned = append(cleaned, it)
		}
	}
	return cleaned, nil
}
