package service

import (
	"context"
	"errors"
	"time"

	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
	"videopath-backend/internal/repository"
	"videopath-backend/pkg/logger"
)

// WatchTimeUpdate is what a learner gets back after reporting a session.
type WatchTimeUpdate struct {
	VideoID        uint               `json:"video_id"`
	WatchTime      models.WatchTime   `json:"watch_time"`
	QuizOfferable  bool               `json:"quiz_offerable"`
	Status         progression.Status `json:"status"`
	VideoCompleted bool               `json:"video_completed"`
}

type WatchService struct {
	progressRepo repository.ProgressRepository
	catalog      *CatalogService
	progression  *ProgressionService
	threshold    int
	now          func() time.Time
}

func NewWatchService(progressRepo repository.ProgressRepository, catalog *CatalogService, progressionService *ProgressionService, threshold int) *WatchService {
	initMetrics()
	if threshold <= 0 || threshold > 100 {
		threshold = progression.DefaultCompletionThreshold
	}
	return &WatchService{
		progressRepo: progressRepo,
		catalog:      catalog,
		progression:  progressionService,
		threshold:    threshold,
		now:          time.Now,
	}
}

// RecordSession folds one playback interval into the learner's watch data.
// Sessions for locked videos are rejected. A published video without a quiz is
// completed once its completion reaches the threshold.
func (s *WatchService) RecordSession(ctx context.Context, userID uint, req models.RecordWatchSessionRequest) (*WatchTimeUpdate, error) {
	if s == nil || s.progressRepo == nil || s.catalog == nil {
		return nil, errors.New("watch service is not configured")
	}
	if userID == 0 {
		return nil, newValidationError("user id is required")
	}
	if req.StartPosition == nil || req.EndPosition == nil {
		return nil, newValidationError("start and end positions are required")
	}

	session := progression.Session{
		StartPosition: *req.StartPosition,
		EndPosition:   *req.EndPosition,
	}
	if req.ObservedDurationSeconds != nil {
		session.ObservedDurationSeconds = *req.ObservedDurationSeconds
	}
	if err := session.Validate(); err != nil {
		watchSessionsTotal.WithLabelValues("invalid").Inc()
		return nil, newValidationError("%s", err.Error())
	}

	catalog, err := s.catalog.Catalog()
	if err != nil {
		return nil, err
	}
	video, ok := catalog.Video(req.VideoID)
	if !ok {
		return nil, progression.NotFound("video %d is not published", req.VideoID)
	}
	gated, err := s.catalog.HasQuiz(video)
	if err != nil {
		return nil, err
	}

	update := WatchTimeUpdate{VideoID: video.ID}
	var outcome progression.Outcome
	progress, err := s.progressRepo.Mutate(ctx, userID, func(p *models.UserProgress) error {
		if err := catalog.EnsureAccessible(p, video.ID); err != nil {
			return err
		}

		entry, err := progression.FoldSession(p.VideoWatchTimes[video.ID], video, session, s.now())
		if err != nil {
			return err
		}
		p.VideoWatchTimes[video.ID] = entry
		update.WatchTime = entry
		update.QuizOfferable = progression.QuizOfferable(entry, s.threshold)

		if !gated && update.QuizOfferable {
			completed, err := progression.CompleteVideo(p, catalog, video.ID, s.now())
			if err != nil {
				return err
			}
			outcome = completed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, progression.ErrAccessDenied) {
			watchSessionsTotal.WithLabelValues("denied").Inc()
		}
		return nil, err
	}

	watchSessionsTotal.WithLabelValues("recorded").Inc()
	update.Status = catalog.StatusOf(progress, video.ID)
	update.VideoCompleted = outcome.VideoCompleted

	if s.progression != nil {
		s.progression.publishOutcome(ctx, userID, video.ID, 0, outcome)
	}

	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id":    userID,
		"video_id":   video.ID,
		"completion": update.WatchTime.CompletionPercentage,
	}).Debug("Watch session recorded")

	return &update, nil
}
