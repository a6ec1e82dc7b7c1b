package storage

import (
	"errors"
	"time"

	"github.com/kalambet/mentor/internal/roadmap"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Roadmap is a persisted learning plan.
type Roadmap struct {
	ID         int64               `json:"id"`
	UserQuery  string              `json:"user_query"`
	Title      string              `json:"title"`
	Content    string              `json:"content"`
	VisualData *roadmap.VisualData `json:"visual_data"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  *time.Time          `json:"updated_at,omitempty"`
}

// RoadmapSummary is the list view of a Roadmap without content and timeline.
type RoadmapSummary struct {
	ID        int64     `json:"id"`
	UserQuery string    `json:"user_query"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRoadmap holds the caller-supplied fields of a roadmap to create.
type NewRoadmap struct {
	UserQuery  string
	Title      string
	Content    string
	VisualData *roadmap.VisualData
}
