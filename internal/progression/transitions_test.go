package progression

import (
	"errors"
	"testing"
	"time"

	"videopath-backend/internal/models"
)

func passingResult(quiz models.Quiz) Result {
	return Result{QuizID: quiz.ID, VideoID: quiz.VideoID, Score: 1, TotalPoints: 1, Percentage: 100, Passed: true}
}

func TestApplyQuizResultCompletesPathOnlyAfterLastVideo(t *testing.T) {
	catalog := threeVideoCatalog(t)
	progress := models.NewUserProgress(7)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, videoID := range []uint{1, 2} {
		quiz := models.Quiz{ID: videoID * 10, VideoID: videoID}
		if _, err := ApplyQuizResult(progress, catalog, quiz, nil, passingResult(quiz), now); err != nil {
			t.Fatalf("ApplyQuizResult returned error: %v", err)
		}
	}
	if progress.CompletedAt != nil {
		t.Fatalf("expected path to stay open with one video left")
	}
	if progress.CurrentPosition != 3 {
		t.Fatalf("expected current position 3, got %d", progress.CurrentPosition)
	}

	quiz := models.Quiz{ID: 30, VideoID: 3}
	outcome, err := ApplyQuizResult(progress, catalog, quiz, nil, passingResult(quiz), now)
	if err != nil {
		t.Fatalf("ApplyQuizResult returned error: %v", err)
	}
	if !outcome.PathCompleted || progress.CompletedAt == nil || !progress.CompletedAt.Equal(now) {
		t.Fatalf("expected path to be completed at %v, got %v", now, progress.CompletedAt)
	}
	if progress.CurrentPosition != 4 {
		t.Fatalf("expected current position past the last video, got %d", progress.CurrentPosition)
	}
	if len(progress.QuizAttempts) != 3 {
		t.Fatalf("expected three attempts, got %d", len(progress.QuizAttempts))
	}
}

func TestApplyQuizResultFailedAttemptOnlyAppends(t *testing.T) {
	catalog := threeVideoCatalog(t)
	progress := models.NewUserProgress(7)
	quiz := models.Quiz{ID: 10, VideoID: 1}

	outcome, err := ApplyQuizResult(progress, catalog, quiz, models.AnswerSheet{1: models.OptionAnswer(2)}, Result{QuizID: 10, VideoID: 1, TotalPoints: 1}, time.Now())
	if err != nil {
		t.Fatalf("ApplyQuizResult returned error: %v", err)
	}
	if outcome.VideoCompleted || len(progress.CompletedVideos) != 0 {
		t.Fatalf("expected failed attempt not to complete the video")
	}
	if progress.CurrentPosition != models.InitialPosition {
		t.Fatalf("expected position unchanged, got %d", progress.CurrentPosition)
	}
	if outcome.Attempt == nil || outcome.Attempt.ID == "" || outcome.Attempt.Passed {
		t.Fatalf("expected a failed attempt with an id, got %+v", outcome.Attempt)
	}
	if _, ok := outcome.Attempt.Answers[1]; !ok {
		t.Fatalf("expected answers to be stored with the attempt")
	}
}

func TestCompleteVideoIsIdempotentAndMonotonic(t *testing.T) {
	catalog := threeVideoCatalog(t)
	progress := models.NewUserProgress(7)
	progress.CompletedVideos = models.CompletedVideos{1, 2}
	progress.CurrentPosition = 3

	outcome, err := CompleteVideo(progress, catalog, 1, time.Now())
	if err != nil {
		t.Fatalf("CompleteVideo returned error: %v", err)
	}
	if outcome.VideoCompleted {
		t.Fatalf("expected completing a completed video to change nothing")
	}
	if len(progress.CompletedVideos) != 2 {
		t.Fatalf("expected no duplicate ids, got %v", progress.CompletedVideos)
	}
	if progress.CurrentPosition != 3 {
		t.Fatalf("expected position not to move backwards, got %d", progress.CurrentPosition)
	}

	if _, err := CompleteVideo(progress, catalog, 99, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown video, got %v", err)
	}
}

func TestRecomputeCompletionReopensWhenCatalogGrows(t *testing.T) {
	catalog := threeVideoCatalog(t)
	progress := models.NewUserProgress(7)
	progress.CompletedVideos = models.CompletedVideos{1, 2, 3}

	completed, _ := RecomputeCompletion(progress, catalog, time.Now())
	if !completed || progress.CompletedAt == nil {
		t.Fatalf("expected path to be completed")
	}

	grown, err := NewCatalog(append(catalog.Videos(), publishedVideo(4, 40)))
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}
	_, reopened := RecomputeCompletion(progress, grown, time.Now())
	if !reopened || progress.CompletedAt != nil {
		t.Fatalf("expected completion to be cleared once a new video is published")
	}
}
