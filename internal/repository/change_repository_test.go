package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lewtec/dupclassifier/internal/domain"
)

func setupTestRepository(t *testing.T) (*ChangeRepository, context.Context) {
	t.Helper()
	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })

	return NewChangeRepository(db), context.Background()
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testChange(id, camera string, offset time.Duration) *domain.Change {
	return &domain.Change{
		ID:         id,
		Service:    "dup",
		Camera:     camera,
		Difference: 40,
		Threshold:  20,
		SHA256:     "sha-" + id,
		Width:      640,
		Height:     480,
		MimeType:   "image/png",
		DetectedAt: baseTime.Add(offset),
	}
}

func TestChangeRepository_Create(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	t.Run("creates change successfully", func(t *testing.T) {
		c := testChange("a", "front", 0)
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := repo.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got == nil {
			t.Fatal("Expected change, got nil")
		}
		if got.Camera != "front" {
			t.Errorf("Camera = %v, want front", got.Camera)
		}
		if got.Difference != 40 || got.Threshold != 20 {
			t.Errorf("Difference/Threshold = %v/%v, want 40/20", got.Difference, got.Threshold)
		}
		if !got.DetectedAt.Equal(baseTime) {
			t.Errorf("DetectedAt = %v, want %v", got.DetectedAt, baseTime)
		}
	})

	t.Run("fills in detection time", func(t *testing.T) {
		c := testChange("b", "front", 0)
		c.DetectedAt = time.Time{}
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if c.DetectedAt.IsZero() {
			t.Error("DetectedAt should not be zero")
		}
	})

	t.Run("rejects duplicate ID", func(t *testing.T) {
		if err := repo.Create(ctx, testChange("a", "front", 0)); err == nil {
			t.Error("Expected error for duplicate ID")
		}
	})
}

func TestChangeRepository_Get(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	t.Run("returns nil for missing change", func(t *testing.T) {
		got, err := repo.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
	})
}

func TestChangeRepository_GetBySHA256(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	first := testChange("1", "front", time.Minute)
	second := testChange("2", "front", 0)
	first.SHA256 = "same"
	second.SHA256 = "same"
	for _, c := range []*domain.Change{first, second, testChange("3", "front", 0)} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.GetBySHA256(ctx, "same")
	if err != nil {
		t.Fatalf("GetBySHA256() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "2" || got[1].ID != "1" {
		t.Errorf("order = %s,%s, want oldest first", got[0].ID, got[1].ID)
	}
}

func TestChangeRepository_ListAndCount(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	for i := 0; i < 5; i++ {
		camera := "front"
		if i%2 == 1 {
			camera = "back"
		}
		if err := repo.Create(ctx, testChange(fmt.Sprintf("c%d", i), camera, time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	t.Run("lists newest first", func(t *testing.T) {
		got, err := repo.List(ctx, "", 0, 0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 5 {
			t.Fatalf("len = %d, want 5", len(got))
		}
		if got[0].ID != "c4" || got[4].ID != "c0" {
			t.Errorf("unexpected order: first %s last %s", got[0].ID, got[4].ID)
		}
	})

	t.Run("filters by camera", func(t *testing.T) {
		got, err := repo.List(ctx, "back", 0, 0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
		for _, c := range got {
			if c.Camera != "back" {
				t.Errorf("Camera = %v, want back", c.Camera)
			}
		}
	})

	t.Run("paginates", func(t *testing.T) {
		got, err := repo.List(ctx, "", 2, 1)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != "c3" || got[1].ID != "c2" {
			t.Errorf("unexpected page: %+v", got)
		}
	})

	t.Run("counts", func(t *testing.T) {
		all, err := repo.Count(ctx, "")
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if all != 5 {
			t.Errorf("Count() = %d, want 5", all)
		}
		front, _ := repo.Count(ctx, "front")
		if front != 3 {
			t.Errorf("Count(front) = %d, want 3", front)
		}
	})
}

func TestChangeRepository_Stats(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	t.Run("empty database", func(t *testing.T) {
		stats, err := repo.Stats(ctx, "")
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalChanges != 0 || !stats.LastDetectedAt.IsZero() {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("aggregates changes", func(t *testing.T) {
		a := testChange("a", "front", 0)
		b := testChange("b", "back", time.Hour)
		a.Difference = 30
		b.Difference = 50
		repo.Create(ctx, a)
		repo.Create(ctx, b)

		stats, err := repo.Stats(ctx, "")
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalChanges != 2 {
			t.Errorf("TotalChanges = %d, want 2", stats.TotalChanges)
		}
		if stats.Cameras != 2 {
			t.Errorf("Cameras = %d, want 2", stats.Cameras)
		}
		if stats.MeanDifference != 40 {
			t.Errorf("MeanDifference = %v, want 40", stats.MeanDifference)
		}
		if !stats.LastDetectedAt.Equal(baseTime.Add(time.Hour)) {
			t.Errorf("LastDetectedAt = %v", stats.LastDetectedAt)
		}
	})

	t.Run("filters by camera", func(t *testing.T) {
		stats, err := repo.Stats(ctx, "front")
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalChanges != 1 || stats.Cameras != 1 {
			t.Errorf("TotalChanges, Cameras = %d, %d, want 1, 1", stats.TotalChanges, stats.Cameras)
		}
		if stats.MeanDifference != 30 {
			t.Errorf("MeanDifference = %v, want 30", stats.MeanDifference)
		}
		if !stats.LastDetectedAt.Equal(baseTime) {
			t.Errorf("LastDetectedAt = %v, want %v", stats.LastDetectedAt, baseTime)
		}

		stats, err = repo.Stats(ctx, "side")
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalChanges != 0 || !stats.LastDetectedAt.IsZero() {
			t.Errorf("unknown camera stats = %+v", stats)
		}
	})
}

func TestChangeRepository_DeleteBefore(t *testing.T) {
	repo, ctx := setupTestRepository(t)

	repo.Create(ctx, testChange("old", "front", -time.Hour))
	repo.Create(ctx, testChange("new", "front", time.Hour))

	deleted, err := repo.DeleteBefore(ctx, baseTime)
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if got, _ := repo.Get(ctx, "old"); got != nil {
		t.Error("old change should be gone")
	}
	if got, _ := repo.Get(ctx, "new"); got == nil {
		t.Error("new change should remain")
	}
}

func TestChangeRepository_WithTx(t *testing.T) {
	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if err := NewChangeRepositoryWithTx(tx).Create(ctx, testChange("tx", "front", 0)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if got, _ := NewChangeRepository(db).Get(ctx, "tx"); got != nil {
		t.Error("rolled back change should not exist")
	}
}
