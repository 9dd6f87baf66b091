package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"videopath-backend/internal/models"
)

// ErrConcurrentUpdate is returned when a progress row changed between being
// loaded and being written back.
var ErrConcurrentUpdate = errors.New("progress was modified concurrently")

// MutateFunc changes a loaded progress record in place. Returning an error
// rolls the whole update back.
type MutateFunc func(progress *models.UserProgress) error

type ProgressRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.UserProgress, error)
	// Mutate loads the learner's record (creating it when missing), applies fn
	// and persists the result atomically.
	Mutate(ctx context.Context, userID uint, fn MutateFunc) (*models.UserProgress, error)
	// MutateExisting behaves like Mutate but returns gorm.ErrRecordNotFound
	// instead of creating a record.
	MutateExisting(ctx context.Context, userID uint, fn MutateFunc) (*models.UserProgress, error)
	CountAdvanced(ctx context.Context) (int64, error)
	FindInBatches(ctx context.Context, batchSize int, fn func(batch []models.UserProgress) error) error
	DuplicateUserIDs(ctx context.Context) ([]uint, error)
}

type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) GetByUserID(ctx context.Context, userID uint) (*models.UserProgress, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("progress repository is not initialised")
	}
	var progress models.UserProgress
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *progressRepository) Mutate(ctx context.Context, userID uint, fn MutateFunc) (*models.UserProgress, error) {
	return r.mutate(ctx, userID, true, fn)
}

func (r *progressRepository) MutateExisting(ctx context.Context, userID uint, fn MutateFunc) (*models.UserProgress, error) {
	return r.mutate(ctx, userID, false, fn)
}

func (r *progressRepository) mutate(ctx context.Context, userID uint, create bool, fn MutateFunc) (*models.UserProgress, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("progress repository is not initialised")
	}
	if userID == 0 {
		return nil, errors.New("user id is required")
	}
	if fn == nil {
		return nil, errors.New("mutation is required")
	}

	var progress models.UserProgress
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if create {
			seed := models.NewUserProgress(userID)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).Create(seed).Error; err != nil {
				return err
			}
		}

		query := tx.Where("user_id = ?", userID)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.First(&progress).Error; err != nil {
			return err
		}
		ensureCollections(&progress)

		version := progress.Version
		if err := fn(&progress); err != nil {
			return err
		}
		ensureCollections(&progress)

		now := time.Now().UTC()
		result := tx.Model(&models.UserProgress{}).
			Where("id = ? AND version = ?", progress.ID, version).
			Updates(map[string]interface{}{
				"current_position":  progress.CurrentPosition,
				"completed_videos":  progress.CompletedVideos,
				"video_watch_times": progress.VideoWatchTimes,
				"quiz_attempts":     progress.QuizAttempts,
				"completed_at":      progress.CompletedAt,
				"version":           version + 1,
				"updated_at":        now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}

		progress.Version = version + 1
		progress.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// CountAdvanced counts learners who have completed at least one video.
func (r *progressRepository) CountAdvanced(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("progress repository is not initialised")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserProgress{}).Where("current_position > ?", models.InitialPosition).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *progressRepository) FindInBatches(ctx context.Context, batchSize int, fn func(batch []models.UserProgress) error) error {
	if r == nil || r.db == nil {
		return errors.New("progress repository is not initialised")
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	var batch []models.UserProgress
	return r.db.WithContext(ctx).Order("id ASC").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		for idx := range batch {
			ensureCollections(&batch[idx])
		}
		return fn(batch)
	}).Error
}

// DuplicateUserIDs lists users that own more than one progress row.
func (r *progressRepository) DuplicateUserIDs(ctx context.Context) ([]uint, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("progress repository is not initialised")
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.UserProgress{}).
		Select("user_id").
		Group("user_id").
		Having("COUNT(*) > 1").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func ensureCollections(progress *models.UserProgress) {
	if progress.CompletedVideos == nil {
		progress.CompletedVideos = models.CompletedVideos{}
	}
	if progress.VideoWatchTimes == nil {
		progress.VideoWatchTimes = models.VideoWatchTimes{}
	}
	if progress.QuizAttempts == nil {
		progress.QuizAttempts = models.QuizAttempts{}
	}
	if progress.CurrentPosition < models.InitialPosition {
		progress.CurrentPosition = models.InitialPosition
	}
}
