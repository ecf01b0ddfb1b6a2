package domain

import (
	"context"
	"time"
)

// Change is a frame that was reported as different from its reference
type Change struct {
	ID         string
	Service    string
	Camera     string
	Difference float64
	Threshold  float64
	SHA256     string
	Width      int
	Height     int
	MimeType   string
	ObjectKey  string
	DetectedAt time.Time
}

// ChangeStats summarizes the recorded changes
type ChangeStats struct {
	TotalChanges   int64
	Cameras        int64
	MeanDifference float64
	LastDetectedAt time.Time
}

// ChangeRepository defines the interface for change storage operations
type ChangeRepository interface {
	// Create stores a change
	Create(ctx context.Context, change *Change) error

	// Get retrieves a change by ID, nil when absent
	Get(ctx context.Context, id string) (*Change, error)

	// GetBySHA256 retrieves the changes whose frame has the given hash
	GetBySHA256(ctx context.Context, sha256 string) ([]*Change, error)

	// List retrieves changes newest first; an empty camera matches all
	List(ctx context.Context, camera string, limit, offset int) ([]*Change, error)

	// Count returns the number of changes; an empty camera matches all
	Count(ctx context.Context, camera string) (int64, error)

	// Stats returns change statistics; an empty camera matches all
	Stats(ctx context.Context, camera string) (*ChangeStats, error)

	// DeleteBefore removes changes detected before t
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}
