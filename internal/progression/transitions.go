package progression

import (
	"time"

	"github.com/google/uuid"

	"videopath-backend/internal/models"
)

// Outcome describes what a transition changed, for logging and event publishing.
type Outcome struct {
	Attempt        *models.QuizAttempt
	VideoCompleted bool
	PathCompleted  bool
	PathReopened   bool
}

// CompleteVideo adds videoID to the completed set, advances the current position
// past it and refreshes CompletedAt. Completing an already completed video
// changes nothing.
func CompleteVideo(progress *models.UserProgress, catalog *Catalog, videoID uint, now time.Time) (Outcome, error) {
	rank, ok := catalog.Rank(videoID)
	if !ok {
		return Outcome{}, NotFound("video %d is not published", videoID)
	}

	outcome := Outcome{}
	outcome.VideoCompleted = progress.CompletedVideos.Add(videoID)
	if next := rank + 1; next > progress.CurrentPosition {
		progress.CurrentPosition = next
	}

	completed, reopened := RecomputeCompletion(progress, catalog, now)
	outcome.PathCompleted = completed
	outcome.PathReopened = reopened
	return outcome, nil
}

// ApplyQuizResult records result as a new attempt and, when it passed, completes
// the quiz's video. Earlier attempts are never touched.
func ApplyQuizResult(progress *models.UserProgress, catalog *Catalog, quiz models.Quiz, answers models.AnswerSheet, result Result, now time.Time) (Outcome, error) {
	if !catalog.Contains(quiz.VideoID) {
		return Outcome{}, NotFound("video %d is not published", quiz.VideoID)
	}

	attempt := models.QuizAttempt{
		ID:               uuid.NewString(),
		QuizID:           quiz.ID,
		VideoID:          quiz.VideoID,
		Answers:          answers,
		Score:            result.Score,
		TotalPoints:      result.TotalPoints,
		Percentage:       result.Percentage,
		Passed:           result.Passed,
		TimedOut:         result.TimedOut,
		TimeSpentSeconds: result.TimeSpentSeconds,
		CompletedAt:      now.UTC(),
	}
	progress.QuizAttempts = append(progress.QuizAttempts, attempt)

	outcome := Outcome{Attempt: &progress.QuizAttempts[len(progress.QuizAttempts)-1]}
	if !result.Passed {
		return outcome, nil
	}

	completion, err := CompleteVideo(progress, catalog, quiz.VideoID, now)
	if err != nil {
		return Outcome{}, err
	}
	completion.Attempt = outcome.Attempt
	return completion, nil
}

// RecomputeCompletion sets CompletedAt when the completed set covers every
// published video and clears it otherwise. It reports whether the path became
// completed or was reopened by this call.
func RecomputeCompletion(progress *models.UserProgress, catalog *Catalog, now time.Time) (completed bool, reopened bool) {
	covered := catalog.CoveredBy(progress.CompletedVideos)
	switch {
	case covered && progress.CompletedAt == nil:
		at := now.UTC()
		progress.CompletedAt = &at
		return true, false
	case !covered && progress.CompletedAt != nil:
		progress.CompletedAt = nil
		return false, true
	}
	return false, false
}
