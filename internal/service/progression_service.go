package service

import (
	"context"
	"errors"
	"time"

	"videopath-backend/internal/events"
	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
	"videopath-backend/internal/repository"
	"videopath-backend/pkg/logger"
)

// ProgressionService is the only writer of progress records: every change
// goes through one locked repository update per learner.
type ProgressionService struct {
	progressRepo repository.ProgressRepository
	catalog      *CatalogService
	publisher    events.Publisher
	now          func() time.Time
}

func NewProgressionService(progressRepo repository.ProgressRepository, catalog *CatalogService, publisher events.Publisher) *ProgressionService {
	initMetrics()
	return &ProgressionService{
		progressRepo: progressRepo,
		catalog:      catalog,
		publisher:    publisher,
		now:          time.Now,
	}
}

// ApplyQuizResult records a scored attempt and, when it passed, completes the
// quiz's video and unlocks the next one. Access and retake policy are checked
// again under the row lock, so concurrent submissions cannot both slip past
// them.
func (s *ProgressionService) ApplyQuizResult(ctx context.Context, userID uint, quiz models.Quiz, answers models.AnswerSheet, result progression.Result) (*models.UserProgress, progression.Outcome, error) {
	if s == nil || s.progressRepo == nil || s.catalog == nil {
		return nil, progression.Outcome{}, errors.New("progression service is not configured")
	}

	catalog, err := s.catalog.Catalog()
	if err != nil {
		return nil, progression.Outcome{}, err
	}

	var outcome progression.Outcome
	progress, err := s.progressRepo.Mutate(ctx, userID, func(p *models.UserProgress) error {
		if err := catalog.EnsureAccessible(p, quiz.VideoID); err != nil {
			return err
		}
		if err := progression.CheckRetakePolicy(quiz, p.AttemptsFor(quiz.ID)); err != nil {
			return err
		}
		applied, err := progression.ApplyQuizResult(p, catalog, quiz, answers, result, s.now())
		if err != nil {
			return err
		}
		outcome = applied
		return nil
	})
	if err != nil {
		return nil, progression.Outcome{}, err
	}

	s.publishOutcome(ctx, userID, quiz.VideoID, quiz.ID, outcome)
	return progress, outcome, nil
}

// Reset reinitialises a learner's record. Resetting a learner without a
// record is a no-op that returns the initial state.
func (s *ProgressionService) Reset(ctx context.Context, userID uint) (*models.UserProgress, error) {
	if s == nil || s.progressRepo == nil {
		return nil, errors.New("progression service is not configured")
	}

	progress, err := s.progressRepo.MutateExisting(ctx, userID, func(p *models.UserProgress) error {
		p.Reinitialize()
		return nil
	})
	if err != nil {
		if isRecordNotFound(err) {
			return models.NewUserProgress(userID), nil
		}
		return nil, err
	}

	progressResetsTotal.Inc()
	logger.FromContext(ctx).WithField("user_id", userID).Info("Progress reset")
	s.publish(ctx, events.New(events.TypeProgressReset, userID))
	return progress, nil
}

// RecomputeCompletion brings one learner's CompletedAt in line with catalog.
func (s *ProgressionService) RecomputeCompletion(ctx context.Context, userID uint, catalog *progression.Catalog) (bool, error) {
	var completed, reopened bool
	_, err := s.progressRepo.MutateExisting(ctx, userID, func(p *models.UserProgress) error {
		completed, reopened = progression.RecomputeCompletion(p, catalog, s.now())
		return nil
	})
	if err != nil {
		return false, err
	}
	s.publishOutcome(ctx, userID, 0, 0, progression.Outcome{PathCompleted: completed, PathReopened: reopened})
	return completed || reopened, nil
}

func (s *ProgressionService) publishOutcome(ctx context.Context, userID, videoID, quizID uint, outcome progression.Outcome) {
	if outcome.Attempt != nil {
		quizSubmissionsTotal.WithLabelValues(outcomeLabel(outcome.Attempt.Passed)).Inc()
		quizScorePercent.Observe(float64(outcome.Attempt.Percentage))

		event := events.New(events.TypeQuizAttempted, userID)
		event.VideoID = videoID
		event.QuizID = quizID
		event.Data = map[string]interface{}{
			"attempt_id": outcome.Attempt.ID,
			"score":      outcome.Attempt.Score,
			"percentage": outcome.Attempt.Percentage,
			"passed":     outcome.Attempt.Passed,
			"timed_out":  outcome.Attempt.TimedOut,
		}
		s.publish(ctx, event)
	}
	if outcome.VideoCompleted {
		videosCompletedTotal.Inc()
		event := events.New(events.TypeVideoCompleted, userID)
		event.VideoID = videoID
		event.QuizID = quizID
		s.publish(ctx, event)
	}
	if outcome.PathCompleted {
		pathsCompletedTotal.Inc()
		logger.FromContext(ctx).WithField("user_id", userID).Info("Learning path completed")
		s.publish(ctx, events.New(events.TypePathCompleted, userID))
	}
	if outcome.PathReopened {
		s.publish(ctx, events.New(events.TypePathReopened, userID))
	}
}

func (s *ProgressionService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("type", event.Type).Warn("Failed to publish progression event")
	}
}

func outcomeLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
