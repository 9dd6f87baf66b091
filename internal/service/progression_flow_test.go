package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"videopath-backend/internal/events"
	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
)

func TestWatchingLockedVideoIsRejectedUntilPreviousQuizPassed(t *testing.T) {
	h := newHarness(t)
	first, firstQuiz := h.addLesson(t, 10)
	second, _ := h.addLesson(t, 20)
	const userID = 7

	if _, err := h.watchTo(t, userID, second.ID, 95); !errors.Is(err, progression.ErrAccessDenied) {
		t.Fatalf("expected access denied for locked video, got %v", err)
	}

	update, err := h.watchTo(t, userID, first.ID, 95)
	if err != nil {
		t.Fatalf("RecordSession returned error: %v", err)
	}
	if !update.QuizOfferable {
		t.Fatalf("expected quiz to be offerable at 95%%")
	}
	if update.VideoCompleted {
		t.Fatalf("a video with a quiz must not complete from watching alone")
	}
	if update.Status != progression.StatusUnlocked {
		t.Fatalf("expected first video unlocked, got %s", update.Status)
	}

	submission, err := h.submit(userID, firstQuiz, true)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !submission.Passed || submission.Percentage != 100 {
		t.Fatalf("expected passing submission, got %+v", submission.Result)
	}
	if submission.AttemptID == "" {
		t.Fatalf("expected attempt id to be returned")
	}
	if submission.Progress.CurrentPosition != 2 {
		t.Fatalf("expected current position 2, got %d", submission.Progress.CurrentPosition)
	}

	update, err = h.watchTo(t, userID, second.ID, 95)
	if err != nil {
		t.Fatalf("expected second video to be watchable after passing, got %v", err)
	}
	if !update.QuizOfferable || update.WatchTime.CompletionPercentage != 95 {
		t.Fatalf("unexpected watch update: %+v", update)
	}

	access, err := h.progress.Access(context.Background(), userID)
	if err != nil {
		t.Fatalf("Access returned error: %v", err)
	}
	if access[first.ID] != progression.StatusCompleted || access[second.ID] != progression.StatusUnlocked {
		t.Fatalf("unexpected access map: %v", access)
	}
}

func TestFailedAttemptKeepsNextVideoLocked(t *testing.T) {
	h := newHarness(t)
	_, firstQuiz := h.addLesson(t, 10)
	second, _ := h.addLesson(t, 20)
	const userID = 8

	submission, err := h.submit(userID, firstQuiz, false)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if submission.Passed {
		t.Fatalf("expected failing submission")
	}
	if len(submission.Progress.AttemptsFor(firstQuiz.ID)) != 1 {
		t.Fatalf("expected failed attempt to be recorded")
	}
	if submission.Progress.CurrentPosition != models.InitialPosition {
		t.Fatalf("failed attempt must not advance position")
	}

	access, err := h.progress.Access(context.Background(), userID)
	if err != nil {
		t.Fatalf("Access returned error: %v", err)
	}
	if access[second.ID] != progression.StatusLocked {
		t.Fatalf("expected second video locked, got %s", access[second.ID])
	}
	if h.publisher.count(events.TypeQuizAttempted) != 1 || h.publisher.count(events.TypeVideoCompleted) != 0 {
		t.Fatalf("unexpected events: %+v", h.publisher.events)
	}
}

func TestRetakeOfPassedQuizIsRejected(t *testing.T) {
	h := newHarness(t)
	_, quiz := h.addLesson(t, 10)
	const userID = 9

	if _, err := h.submit(userID, quiz, true); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if _, err := h.submit(userID, quiz, true); !errors.Is(err, progression.ErrRetakeNotAllowed) {
		t.Fatalf("expected retake not allowed, got %v", err)
	}

	snapshot, err := h.progress.Snapshot(context.Background(), userID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if len(snapshot.AttemptsFor(quiz.ID)) != 1 {
		t.Fatalf("rejected retake must not be recorded, got %d attempts", len(snapshot.AttemptsFor(quiz.ID)))
	}
}

func TestMaxAttemptsAreEnforced(t *testing.T) {
	h := newHarness(t)
	video := h.addVideo(t, 10)
	quiz := h.addQuiz(t, video.ID, true, 2)
	const userID = 10

	for i := 0; i < 2; i++ {
		if _, err := h.submit(userID, quiz, false); err != nil {
			t.Fatalf("attempt %d returned error: %v", i+1, err)
		}
	}
	if _, err := h.submit(userID, quiz, true); !errors.Is(err, progression.ErrMaxAttemptsExceeded) {
		t.Fatalf("expected max attempts exceeded, got %v", err)
	}
}

func TestConcurrentSubmissionsRecordSinglePass(t *testing.T) {
	h := newHarness(t)
	_, quiz := h.addLesson(t, 10)
	const userID = 11

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
		others    []error
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.submit(userID, quiz, true)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, progression.ErrRetakeNotAllowed):
				rejected++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || rejected != 5 {
		t.Fatalf("expected 1 success and 5 rejections, got %d and %d", successes, rejected)
	}

	snapshot, err := h.progress.Snapshot(context.Background(), userID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if len(snapshot.QuizAttempts) != 1 {
		t.Fatalf("expected exactly one stored attempt, got %d", len(snapshot.QuizAttempts))
	}
}

func TestPathCompletesOnLastVideo(t *testing.T) {
	h := newHarness(t)
	_, q1 := h.addLesson(t, 10)
	_, q2 := h.addLesson(t, 20)
	_, q3 := h.addLesson(t, 30)
	const userID = 12

	for _, quiz := range []*models.Quiz{q1, q2} {
		submission, err := h.submit(userID, quiz, true)
		if err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
		if submission.Progress.CompletedAt != nil {
			t.Fatalf("path completed too early after quiz %d", quiz.ID)
		}
	}

	submission, err := h.submit(userID, q3, true)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if submission.Progress.CompletedAt == nil {
		t.Fatalf("expected path to be completed")
	}
	if submission.Progress.CurrentPosition != 4 {
		t.Fatalf("expected current position 4, got %d", submission.Progress.CurrentPosition)
	}
	if h.publisher.count(events.TypePathCompleted) != 1 {
		t.Fatalf("expected one path completed event, got %d", h.publisher.count(events.TypePathCompleted))
	}
	if h.publisher.count(events.TypeVideoCompleted) != 3 {
		t.Fatalf("expected three video completed events, got %d", h.publisher.count(events.TypeVideoCompleted))
	}
}

func TestVideoWithoutQuizCompletesAtThreshold(t *testing.T) {
	h := newHarness(t)
	first := h.addVideo(t, 10)
	second := h.addVideo(t, 20)
	const userID = 13

	update, err := h.watchTo(t, userID, first.ID, 50)
	if err != nil {
		t.Fatalf("RecordSession returned error: %v", err)
	}
	if update.VideoCompleted || update.Status != progression.StatusUnlocked {
		t.Fatalf("video should not complete at 50%%: %+v", update)
	}

	update, err = h.watchTo(t, userID, first.ID, 92)
	if err != nil {
		t.Fatalf("RecordSession returned error: %v", err)
	}
	if !update.VideoCompleted || update.Status != progression.StatusCompleted {
		t.Fatalf("expected video to complete at 92%%: %+v", update)
	}

	videos, err := h.progress.Videos(context.Background(), userID)
	if err != nil {
		t.Fatalf("Videos returned error: %v", err)
	}
	if len(videos) != 2 || videos[1].Video.ID != second.ID || videos[1].Status != progression.StatusUnlocked {
		t.Fatalf("unexpected video list: %+v", videos)
	}
	if videos[0].WatchTime == nil || videos[0].WatchTime.TotalWatchTimeSeconds != 142 {
		t.Fatalf("expected accumulated watch time, got %+v", videos[0].WatchTime)
	}
}

func TestQuizWithMissingVideoLinkStillGatesVideo(t *testing.T) {
	h := newHarness(t)
	video, quiz := h.addLesson(t, 10)
	next := h.addVideo(t, 20)
	const userID = 17

	if err := h.db.Model(&models.Video{}).Where("id = ?", video.ID).Update("quiz_id", nil).Error; err != nil {
		t.Fatalf("failed to clear quiz link: %v", err)
	}

	update, err := h.watchTo(t, userID, video.ID, 100)
	if err != nil {
		t.Fatalf("RecordSession returned error: %v", err)
	}
	if update.VideoCompleted || update.Status != progression.StatusUnlocked {
		t.Fatalf("video with a quiz must not complete by watching alone: %+v", update)
	}

	if _, err := h.submit(userID, quiz, true); !errors.Is(err, progression.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error for a one-sided link, got %v", err)
	}

	statuses, err := h.progress.Access(context.Background(), userID)
	if err != nil {
		t.Fatalf("Access returned error: %v", err)
	}
	if statuses[next.ID] != progression.StatusLocked {
		t.Fatalf("expected next video to stay locked, got %s", statuses[next.ID])
	}
}

func TestSessionValidation(t *testing.T) {
	h := newHarness(t)
	video := h.addVideo(t, 10)

	start, end := 30.0, 10.0
	_, err := h.watch.RecordSession(context.Background(), 14, models.RecordWatchSessionRequest{
		VideoID:       video.ID,
		StartPosition: &start,
		EndPosition:   &end,
	})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := h.watchTo(t, 14, 999, 10); !errors.Is(err, progression.ErrNotFound) {
		t.Fatalf("expected not found for unknown video, got %v", err)
	}
}

func TestLearnerQuizIsGatedAndHidesAnswers(t *testing.T) {
	h := newHarness(t)
	_, firstQuiz := h.addLesson(t, 10)
	_, secondQuiz := h.addLesson(t, 20)
	const userID = 15

	if _, err := h.quizzes.LearnerQuiz(context.Background(), userID, secondQuiz.ID); !errors.Is(err, progression.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}

	view, err := h.quizzes.LearnerQuiz(context.Background(), userID, firstQuiz.ID)
	if err != nil {
		t.Fatalf("LearnerQuiz returned error: %v", err)
	}
	if len(view.Questions) != 1 || len(view.Questions[0].Options) != 2 {
		t.Fatalf("unexpected quiz view: %+v", view)
	}

	if _, err := h.quizzes.LearnerQuiz(context.Background(), userID, 999); !errors.Is(err, progression.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuizOfUnpublishedVideoIsNotFound(t *testing.T) {
	h := newHarness(t)
	video, quiz := h.addLesson(t, 10)
	if _, err := h.catalog.SetPublished(context.Background(), video.ID, false); err != nil {
		t.Fatalf("SetPublished returned error: %v", err)
	}

	if _, err := h.submit(16, quiz, true); !errors.Is(err, progression.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	h := newHarness(t)
	video := h.addVideo(t, 10)
	const userID = 17

	if _, err := h.watchTo(t, userID, video.ID, 100); err != nil {
		t.Fatalf("RecordSession returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		progress, err := h.progress.Reset(context.Background(), userID)
		if err != nil {
			t.Fatalf("Reset %d returned error: %v", i+1, err)
		}
		if progress.CurrentPosition != models.InitialPosition || len(progress.CompletedVideos) != 0 ||
			len(progress.VideoWatchTimes) != 0 || len(progress.QuizAttempts) != 0 || progress.CompletedAt != nil {
			t.Fatalf("expected initial state after reset, got %+v", progress)
		}
	}

	unknown, err := h.progress.Reset(context.Background(), 404)
	if err != nil {
		t.Fatalf("Reset of unknown user returned error: %v", err)
	}
	if unknown.UserID != 404 || unknown.CurrentPosition != models.InitialPosition {
		t.Fatalf("unexpected state for unknown user: %+v", unknown)
	}
	if _, err := h.progress.progressRepo.GetByUserID(context.Background(), 404); !isRecordNotFound(err) {
		t.Fatalf("reset must not create a record, got %v", err)
	}
	if h.publisher.count(events.TypeProgressReset) != 2 {
		t.Fatalf("expected two reset events, got %d", h.publisher.count(events.TypeProgressReset))
	}
}

func TestSnapshotDoesNotCreateRecord(t *testing.T) {
	h := newHarness(t)
	h.addVideo(t, 10)

	progress, err := h.progress.Snapshot(context.Background(), 18)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if progress.CurrentPosition != models.InitialPosition || progress.CompletedAt != nil {
		t.Fatalf("unexpected initial state: %+v", progress)
	}
	if _, err := h.progress.progressRepo.GetByUserID(context.Background(), 18); !isRecordNotFound(err) {
		t.Fatalf("snapshot must not create a record, got %v", err)
	}
}
