package progression

import (
	"errors"
	"testing"

	"videopath-backend/internal/models"
)

func TestNewCatalogRanksPublishedVideosDensely(t *testing.T) {
	catalog, err := NewCatalog([]models.Video{
		publishedVideo(7, 50),
		{ID: 8, Order: 5, DurationSeconds: 10},
		publishedVideo(3, 2),
		publishedVideo(9, 900),
	})
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}

	expected := map[uint]int{3: 1, 7: 2, 9: 3}
	for id, rank := range expected {
		got, ok := catalog.Rank(id)
		if !ok || got != rank {
			t.Fatalf("expected video %d to have rank %d, got %d (present %v)", id, rank, got, ok)
		}
	}
	if catalog.Contains(8) {
		t.Fatalf("expected unpublished video to be left out of the catalog")
	}
	if ids := catalog.IDs(); len(ids) != 3 || ids[0] != 3 || ids[2] != 9 {
		t.Fatalf("unexpected catalog order: %v", ids)
	}
}

func TestNewCatalogRejectsDuplicateOrder(t *testing.T) {
	_, err := NewCatalog([]models.Video{publishedVideo(1, 10), publishedVideo(2, 10)})
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}

	// An unpublished video may share an order with a published one.
	if _, err := NewCatalog([]models.Video{publishedVideo(1, 10), {ID: 2, Order: 10}}); err != nil {
		t.Fatalf("expected unpublished duplicate to be ignored, got %v", err)
	}
}

func TestResolveInitialStateUnlocksOnlyFirstVideo(t *testing.T) {
	catalog := threeVideoCatalog(t)

	for _, progress := range []*models.UserProgress{nil, models.NewUserProgress(42)} {
		statuses := catalog.Resolve(progress)
		if statuses[1] != StatusUnlocked {
			t.Fatalf("expected first video unlocked, got %s", statuses[1])
		}
		if statuses[2] != StatusLocked || statuses[3] != StatusLocked {
			t.Fatalf("expected remaining videos locked, got %v", statuses)
		}
	}
}

func TestResolveHasSingleFrontier(t *testing.T) {
	catalog := threeVideoCatalog(t)
	progress := models.NewUserProgress(1)
	progress.CompletedVideos = models.CompletedVideos{1}
	progress.CurrentPosition = 2

	statuses := catalog.Resolve(progress)
	want := map[uint]Status{1: StatusCompleted, 2: StatusUnlocked, 3: StatusLocked}
	for id, status := range want {
		if statuses[id] != status {
			t.Fatalf("video %d: expected %s, got %s", id, status, statuses[id])
		}
	}

	unlocked := 0
	for _, status := range statuses {
		if status == StatusUnlocked {
			unlocked++
		}
	}
	if unlocked != 1 {
		t.Fatalf("expected exactly one unlocked video, got %d", unlocked)
	}
}

func TestResolveAllCompletedHasNoFrontier(t *testing.T) {
	catalog := threeVideoCatalog(t)
	progress := models.NewUserProgress(1)
	progress.CompletedVideos = models.CompletedVideos{1, 2, 3}

	for id, status := range catalog.Resolve(progress) {
		if status != StatusCompleted {
			t.Fatalf("expected video %d completed, got %s", id, status)
		}
	}
	if _, ok := catalog.Frontier(progress); ok {
		t.Fatalf("expected no frontier once everything is completed")
	}
}

func TestResolveStatusPropagatesIntegrityError(t *testing.T) {
	_, err := ResolveStatus([]models.Video{publishedVideo(1, 1), publishedVideo(2, 1)}, nil)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
}

func TestEnsureAccessible(t *testing.T) {
	catalog := threeVideoCatalog(t)
	progress := models.NewUserProgress(1)

	if err := catalog.EnsureAccessible(progress, 1); err != nil {
		t.Fatalf("expected first video accessible, got %v", err)
	}
	if err := catalog.EnsureAccessible(progress, 2); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected access denied for locked video, got %v", err)
	}
	if err := catalog.EnsureAccessible(progress, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown video, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	err := AccessDenied("video %d is locked", 3)
	if KindOf(err) != ErrAccessDenied {
		t.Fatalf("expected access denied kind, got %v", KindOf(err))
	}
	if err.Error() != "video 3 is locked" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if KindOf(errors.New("boom")) != nil {
		t.Fatalf("expected plain errors to have no kind")
	}
}
