package service

import (
	"context"
	"errors"

	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
	"videopath-backend/internal/repository"
	"videopath-backend/pkg/logger"
)

// VideoStatus is one catalog entry as seen by a learner.
type VideoStatus struct {
	Video         models.Video       `json:"video"`
	Rank          int                `json:"rank"`
	Status        progression.Status `json:"status"`
	WatchTime     *models.WatchTime  `json:"watch_time,omitempty"`
	QuizOfferable bool               `json:"quiz_offerable"`
}

type ProgressService struct {
	progressRepo repository.ProgressRepository
	catalog      *CatalogService
	progression  *ProgressionService
	threshold    int
}

func NewProgressService(progressRepo repository.ProgressRepository, catalog *CatalogService, progressionService *ProgressionService, threshold int) *ProgressService {
	if threshold <= 0 || threshold > 100 {
		threshold = progression.DefaultCompletionThreshold
	}
	return &ProgressService{
		progressRepo: progressRepo,
		catalog:      catalog,
		progression:  progressionService,
		threshold:    threshold,
	}
}

// Snapshot returns the learner's progress. Learners without a record get the
// initial state; reads never create one.
func (s *ProgressService) Snapshot(ctx context.Context, userID uint) (*models.UserProgress, error) {
	if s == nil || s.progressRepo == nil {
		return nil, errors.New("progress repository is not configured")
	}
	if userID == 0 {
		return nil, newValidationError("user id is required")
	}

	progress, err := s.progressRepo.GetByUserID(ctx, userID)
	if err != nil {
		if isRecordNotFound(err) {
			return models.NewUserProgress(userID), nil
		}
		return nil, err
	}
	return progress, nil
}

// Access resolves the status of every published video for the learner.
func (s *ProgressService) Access(ctx context.Context, userID uint) (map[uint]progression.Status, error) {
	progress, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog()
	if err != nil {
		return nil, err
	}
	return catalog.Resolve(progress), nil
}

// Videos lists the published catalog in rank order with the learner's status
// and watch data for each video.
func (s *ProgressService) Videos(ctx context.Context, userID uint) ([]VideoStatus, error) {
	progress, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Catalog()
	if err != nil {
		return nil, err
	}

	statuses := catalog.Resolve(progress)
	result := make([]VideoStatus, 0, catalog.Len())
	for idx, video := range catalog.Videos() {
		item := VideoStatus{
			Video:  video,
			Rank:   idx + 1,
			Status: statuses[video.ID],
		}
		if entry, ok := progress.VideoWatchTimes[video.ID]; ok {
			watch := entry
			item.WatchTime = &watch
			item.QuizOfferable = item.Status != progression.StatusLocked && progression.QuizOfferable(entry, s.threshold)
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *ProgressService) Reset(ctx context.Context, userID uint) (*models.UserProgress, error) {
	if s == nil || s.progression == nil {
		return nil, errors.New("progression service is not configured")
	}
	if userID == 0 {
		return nil, newValidationError("user id is required")
	}
	return s.progression.Reset(ctx, userID)
}

// RecomputeAll walks every progress record and fixes CompletedAt against the
// current published set. It returns the number of records that changed.
func (s *ProgressService) RecomputeAll(ctx context.Context) (int, error) {
	if s == nil || s.progressRepo == nil || s.progression == nil {
		return 0, errors.New("progress service is not configured")
	}

	changed := 0
	err := s.progressRepo.FindInBatches(ctx, 200, func(batch []models.UserProgress) error {
		catalog, err := s.catalog.Catalog()
		if err != nil {
			return err
		}
		for idx := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			probe := batch[idx]
			covered := catalog.CoveredBy(probe.CompletedVideos)
			if covered == (probe.CompletedAt != nil) {
				continue
			}
			updated, err := s.progression.RecomputeCompletion(ctx, probe.UserID, catalog)
			if err != nil {
				return err
			}
			if updated {
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return changed, err
	}

	logger.Info("Completion recompute finished", map[string]interface{}{"changed": changed})
	return changed, nil
}

// RunRecompute adapts RecomputeAll to a background job.
func (s *ProgressService) RunRecompute(ctx context.Context) error {
	_, err := s.RecomputeAll(ctx)
	return err
}
