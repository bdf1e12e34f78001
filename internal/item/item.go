package item

import "time"

// Status is the claim state of a found item
type Status string

const (
	StatusUnclaimed Status = "Unclaimed"
	StatusPending   Status = "Pending"
	StatusClaimed   Status = "Claimed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusUnclaimed, StatusPending, StatusClaimed:
		return true
	}
	return false
}

// DateLayout is the calendar date format of FoundDate
const DateLayout = "2006-01-02"

// Item represents a found item reported by a campus member
type Item struct {
	ID           string    `json:"id" bson:"id"`
	CollegeID    string    `json:"collegeId" bson:"collegeId"`
	FinderID     string    `json:"finderId" bson:"finderId"`
	ClaimerID    string    `json:"claimerId,omitempty" bson:"claimerId,omitempty"`
	Image        string    `json:"image" bson:"image"` // data URL, or https URL for seed items
	Name         string    `json:"name" bson:"name"`
	Description  string    `json:"description" bson:"description"`
	FoundDate    string    `json:"dateFound" bson:"dateFound"`
	Location     string    `json:"location,omitempty" bson:"location,omitempty"`
	Status       Status    `json:"status" bson:"status"`
	Tags         []string  `json:"tags" bson:"tags"`
	Category     string    `json:"category,omitempty" bson:"category,omitempty"`
	OriginalFile string    `json:"originalFile,omitempty" bson:"originalFile,omitempty"`
	ContentType  string    `json:"contentType,omitempty" bson:"contentType,omitempty"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// clone returns a copy that shares no slices with i
func (i *Item) clone() *Item {
	c := *i
	c.Tags = append([]string{}, i.Tags...)
	return &c
}

// SeedItems returns the demo items used when nothing has been persisted yet
func SeedItems(now time.Time) []*Item {
	today := now.Format(DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(DateLayout)
	return []*Item{
		{
			ID:          "1",
			CollegeID:   "MIT",
			FinderID:    "Alex Rivera",
			Image:       "https://images.unsplash.com/photo-1602143399344-185f8376228f?auto=format&fit=crop&q=80&w=400",
			Name:        "Blue Hydroflask",
			Description: "Found a blue 32oz Hydroflask with stickers on the side. Left near the library entrance.",
			FoundDate:   today,
			Location:    "Hayden Library",
			Status:      StatusUnclaimed,
			Tags:        []string{"bottle", "blue", "water"},
			CreatedAt:   now,
		},
		{
			ID:          "2",
			CollegeID:   "MIT",
			FinderID:    "Sarah Jenkins",
			Image:       "https://images.unsplash.com/photo-1587145820266-a5951ee6f620?auto=format&fit=crop&q=80&w=400",
			Name:        "Graphing Calculator",
			Description: "TI-84 Plus CE, silver edition. Found in Room 2-105 after calculus class.",
			FoundDate:   yesterday,
			Location:    "Building 2",
			Status:      StatusUnclaimed,
			Tags:        []string{"electronics", "calculator", "math"},
			CreatedAt:   now,
		},
		{
			ID:          "3",
			CollegeID:   "STANFORD",
			FinderID:    "Jordan Smith",
			Image:       "https://images.unsplash.com/photo-1556821840-3a63f95609a7?auto=format&fit=crop&q=80&w=400",
			Name:        "Red Hoodie",
			Description: "Generic red hoodie, size M. Found on the oval.",
			FoundDate:   today,
			Location:    "The Oval",
			Status:      StatusUnclaimed,
			Tags:        []string{"clothing", "red", "hoodie"},
			CreatedAt:   now,
		},
	}
}
