package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"videopath-backend/internal/background"
	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
	"videopath-backend/internal/repository"
	"videopath-backend/pkg/cache"
	"videopath-backend/pkg/logger"
	"videopath-backend/pkg/validator"
)

const recomputeJobName = "progress-completion-recompute"

// ErrOrderFrozen is returned when an edit would shift the rank of published
// videos while learners already have progress along the path.
var ErrOrderFrozen = errors.New("the order of published videos cannot change while learners have progress")

// JobScheduler runs background work; *background.Scheduler satisfies it.
type JobScheduler interface {
	ScheduleUnique(job background.Job) error
}

type CatalogService struct {
	videoRepo    repository.VideoRepository
	quizRepo     repository.QuizRepository
	progressRepo repository.ProgressRepository
	cache        *cache.Cache

	scheduler JobScheduler
	recompute func(ctx context.Context) error
}

func NewCatalogService(
	videoRepo repository.VideoRepository,
	quizRepo repository.QuizRepository,
	progressRepo repository.ProgressRepository,
	cacheService *cache.Cache,
) *CatalogService {
	return &CatalogService{
		videoRepo:    videoRepo,
		quizRepo:     quizRepo,
		progressRepo: progressRepo,
		cache:        cacheService,
	}
}

// SetCompletionRecompute registers the job run whenever the published set
// changes. Without a scheduler the job runs inline.
func (s *CatalogService) SetCompletionRecompute(scheduler JobScheduler, recompute func(ctx context.Context) error) {
	if s == nil {
		return
	}
	s.scheduler = scheduler
	s.recompute = recompute
}

// Catalog returns the ranked published catalog.
func (s *CatalogService) Catalog() (*progression.Catalog, error) {
	videos, err := s.publishedVideos()
	if err != nil {
		return nil, err
	}
	return progression.NewCatalog(videos)
}

func (s *CatalogService) publishedVideos() ([]models.Video, error) {
	if s == nil || s.videoRepo == nil {
		return nil, errors.New("video repository is not configured")
	}

	var cached []models.Video
	if err := s.cache.GetCachedCatalog(&cached); err == nil {
		return cached, nil
	}

	videos, err := s.videoRepo.ListPublished()
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheCatalog(videos); err != nil {
		logger.Warn("Failed to cache catalog", map[string]interface{}{"error": err.Error()})
	}
	return videos, nil
}

// Quiz loads a quiz with its answer key. Unknown ids map to ErrNotFound.
func (s *CatalogService) Quiz(id uint) (*models.Quiz, error) {
	if s == nil || s.quizRepo == nil {
		return nil, errors.New("quiz repository is not configured")
	}

	var cached models.Quiz
	if err := s.cache.GetCachedQuiz(id, &cached); err == nil {
		return &cached, nil
	}

	quiz, err := s.quizRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, progression.NotFound("quiz %d does not exist", id)
		}
		return nil, err
	}
	if err := s.cache.CacheQuiz(id, quiz); err != nil {
		logger.Warn("Failed to cache quiz", map[string]interface{}{"quiz_id": id, "error": err.Error()})
	}
	return quiz, nil
}

// HasQuiz reports whether any quiz gates video, including a quiz whose link
// back from the video row is missing.
func (s *CatalogService) HasQuiz(video models.Video) (bool, error) {
	if video.QuizID != nil {
		return true, nil
	}
	if s == nil || s.quizRepo == nil {
		return false, errors.New("quiz repository is not configured")
	}
	if _, err := s.quizRepo.GetByVideoID(video.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *CatalogService) VideoExists(id uint) (bool, error) {
	if s == nil || s.videoRepo == nil {
		return false, errors.New("video repository is not configured")
	}
	return s.videoRepo.Exists(id)
}

func (s *CatalogService) ListVideos() ([]models.Video, error) {
	if s == nil || s.videoRepo == nil {
		return nil, errors.New("video repository is not configured")
	}
	return s.videoRepo.List()
}

func (s *CatalogService) GetVideo(id uint) (*models.Video, error) {
	if s == nil || s.videoRepo == nil {
		return nil, errors.New("video repository is not configured")
	}
	return s.videoRepo.GetByID(id)
}

func (s *CatalogService) CreateVideo(ctx context.Context, req models.CreateVideoRequest) (*models.Video, error) {
	if s == nil || s.videoRepo == nil {
		return nil, errors.New("video repository is not configured")
	}

	title := validator.SanitizeString(req.Title)
	if title == "" {
		return nil, newValidationError("video title is required")
	}
	if req.DurationSeconds <= 0 {
		return nil, newValidationError("video duration must be positive")
	}
	if req.Order <= 0 {
		return nil, newValidationError("video order must be positive")
	}

	video := models.Video{
		Title:           title,
		Description:     validator.SanitizeString(req.Description),
		FileURL:         strings.TrimSpace(req.FileURL),
		DurationSeconds: req.DurationSeconds,
		Order:           req.Order,
		IsPublished:     req.IsPublished,
	}

	if video.IsPublished {
		if err := s.checkPlacement(ctx, video); err != nil {
			return nil, err
		}
	}

	if err := s.videoRepo.Create(&video); err != nil {
		return nil, err
	}

	logger.Info("Video created", map[string]interface{}{"video_id": video.ID, "order": video.Order, "published": video.IsPublished})
	s.catalogChanged(ctx, video.IsPublished)
	return &video, nil
}

func (s *CatalogService) UpdateVideo(ctx context.Context, id uint, req models.UpdateVideoRequest) (*models.Video, error) {
	if s == nil || s.videoRepo == nil {
		return nil, errors.New("video repository is not configured")
	}

	video, err := s.videoRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := validator.SanitizeString(*req.Title)
		if title == "" {
			return nil, newValidationError("video title is required")
		}
		video.Title = title
	}
	if req.Description != nil {
		video.Description = validator.SanitizeString(*req.Description)
	}
	if req.FileURL != nil {
		video.FileURL = strings.TrimSpace(*req.FileURL)
	}
	if req.DurationSeconds != nil {
		if *req.DurationSeconds <= 0 {
			return nil, newValidationError("video duration must be positive")
		}
		video.DurationSeconds = *req.DurationSeconds
	}
	if req.Order != nil && *req.Order != video.Order {
		if *req.Order <= 0 {
			return nil, newValidationError("video order must be positive")
		}
		video.Order = *req.Order
		if video.IsPublished {
			if err := s.checkPlacement(ctx, *video); err != nil {
				return nil, err
			}
		}
	}

	if err := s.videoRepo.Update(video); err != nil {
		return nil, err
	}

	s.catalogChanged(ctx, false)
	return video, nil
}

// SetPublished publishes or unpublishes a video. Videos are never deleted;
// unpublishing removes them from the path without touching learner history.
func (s *CatalogService) SetPublished(ctx context.Context, id uint, published bool) (*models.Video, error) {
	if s == nil || s.videoRepo == nil {
		return nil, errors.New("video repository is not configured")
	}

	video, err := s.videoRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if video.IsPublished == published {
		return video, nil
	}

	video.IsPublished = published
	if published {
		if video.DurationSeconds <= 0 {
			return nil, newValidationError("video %d has no duration and cannot be published", video.ID)
		}
		if err := s.checkPlacement(ctx, *video); err != nil {
			return nil, err
		}
	}

	if err := s.videoRepo.Update(video); err != nil {
		return nil, err
	}

	logger.Info("Video publication changed", map[string]interface{}{"video_id": video.ID, "published": published})
	s.catalogChanged(ctx, true)
	return video, nil
}

// checkPlacement rejects a published video whose order collides with another
// published video, or whose placement would move already ranked videos once
// learners have progressed.
func (s *CatalogService) checkPlacement(ctx context.Context, candidate models.Video) error {
	published, err := s.videoRepo.ListPublished()
	if err != nil {
		return err
	}

	before := make([]models.Video, 0, len(published))
	after := make([]models.Video, 0, len(published)+1)
	for _, video := range published {
		if video.ID == candidate.ID {
			before = append(before, video)
			continue
		}
		if video.Order == candidate.Order {
			return newValidationError("order %d is already used by published video %d", candidate.Order, video.ID)
		}
		before = append(before, video)
		after = append(after, video)
	}
	after = append(after, candidate)

	current, err := progression.NewCatalog(before)
	if err != nil {
		return err
	}
	next, err := progression.NewCatalog(after)
	if err != nil {
		return err
	}

	shifted := false
	for _, id := range current.IDs() {
		oldRank, _ := current.Rank(id)
		if newRank, ok := next.Rank(id); ok && newRank != oldRank {
			shifted = true
			break
		}
	}
	if !shifted {
		return nil
	}

	if s.progressRepo == nil {
		return nil
	}
	advanced, err := s.progressRepo.CountAdvanced(ctx)
	if err != nil {
		return err
	}
	if advanced > 0 {
		return ErrOrderFrozen
	}
	return nil
}

func (s *CatalogService) CreateQuiz(ctx context.Context, req models.CreateQuizRequest) (*models.Quiz, error) {
	if s == nil || s.quizRepo == nil || s.videoRepo == nil {
		return nil, errors.New("quiz repository is not configured")
	}

	video, err := s.videoRepo.GetByID(req.VideoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newValidationError("video %d does not exist", req.VideoID)
		}
		return nil, err
	}

	if existing, err := s.quizRepo.GetByVideoID(video.ID); err == nil {
		return nil, newValidationError("video %d already has quiz %d", video.ID, existing.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	quiz := models.Quiz{VideoID: video.ID}
	if err := applyQuizSettings(&quiz, req.Title, req.PassingScorePercent, req.TimeLimitSeconds, req.AllowRetake, req.MaxAttempts); err != nil {
		return nil, err
	}

	questions, err := buildQuestionModels(req.Questions)
	if err != nil {
		return nil, err
	}

	if err := s.quizRepo.Save(&quiz, questions); err != nil {
		if isDuplicateKeyError(err) {
			return nil, newValidationError("video %d already has a quiz", video.ID)
		}
		return nil, err
	}

	logger.Info("Quiz created", map[string]interface{}{"quiz_id": quiz.ID, "video_id": quiz.VideoID, "questions": len(quiz.Questions)})
	s.quizChanged(quiz.ID)
	return &quiz, nil
}

func (s *CatalogService) UpdateQuiz(ctx context.Context, id uint, req models.UpdateQuizRequest) (*models.Quiz, error) {
	if s == nil || s.quizRepo == nil {
		return nil, errors.New("quiz repository is not configured")
	}

	quiz, err := s.quizRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := applyQuizSettings(quiz, req.Title, req.PassingScorePercent, req.TimeLimitSeconds, req.AllowRetake, req.MaxAttempts); err != nil {
		return nil, err
	}

	questions, err := buildQuestionModels(req.Questions)
	if err != nil {
		return nil, err
	}

	quiz.Questions = nil
	if err := s.quizRepo.Save(quiz, questions); err != nil {
		return nil, err
	}

	s.quizChanged(quiz.ID)
	return quiz, nil
}

// AdminQuiz returns a quiz including its answer key, bypassing the cache.
func (s *CatalogService) AdminQuiz(id uint) (*models.Quiz, error) {
	if s == nil || s.quizRepo == nil {
		return nil, errors.New("quiz repository is not configured")
	}
	return s.quizRepo.GetByID(id)
}

func (s *CatalogService) catalogChanged(ctx context.Context, publishedSetChanged bool) {
	if err := s.cache.InvalidateCatalog(); err != nil {
		logger.Warn("Failed to invalidate catalog cache", map[string]interface{}{"error": err.Error()})
	}
	if publishedSetChanged {
		s.scheduleRecompute(ctx)
	}
}

func (s *CatalogService) quizChanged(quizID uint) {
	if err := s.cache.InvalidateQuiz(quizID); err != nil {
		logger.Warn("Failed to invalidate quiz cache", map[string]interface{}{"quiz_id": quizID, "error": err.Error()})
	}
	if err := s.cache.InvalidateCatalog(); err != nil {
		logger.Warn("Failed to invalidate catalog cache", map[string]interface{}{"error": err.Error()})
	}
}

func (s *CatalogService) scheduleRecompute(ctx context.Context) {
	if s.recompute == nil {
		return
	}
	if _, err := s.RequestRecompute(ctx); err != nil {
		logger.Error(err, "Completion recompute failed", nil)
	}
}

// RequestRecompute schedules the completion recompute, or runs it inline when
// no scheduler is configured. It reports false when a run is already pending.
func (s *CatalogService) RequestRecompute(ctx context.Context) (bool, error) {
	if s == nil || s.recompute == nil {
		return false, errors.New("completion recompute is not configured")
	}

	if s.scheduler == nil {
		return true, s.recompute(ctx)
	}

	err := s.scheduler.ScheduleUnique(background.Job{
		Name:        recomputeJobName,
		Run:         s.recompute,
		Timeout:     15 * time.Minute,
		RetryPolicy: background.RetryPolicy{MaxRetries: 2, Backoff: 30 * time.Second},
	})
	if errors.Is(err, background.ErrJobAlreadyScheduled) {
		logger.Debug("Completion recompute already scheduled", nil)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func applyQuizSettings(quiz *models.Quiz, title string, passing, timeLimit int, allowRetake bool, maxAttempts int) error {
	cleaned := validator.SanitizeString(title)
	if cleaned == "" {
		return newValidationError("quiz title is required")
	}
	if passing < 1 || passing > 100 {
		return newValidationError("passing score must be between 1 and 100")
	}
	if timeLimit < 0 {
		return newValidationError("time limit must not be negative")
	}
	if maxAttempts < 0 {
		return newValidationError("max attempts must not be negative")
	}

	quiz.Title = cleaned
	quiz.PassingScorePercent = passing
	quiz.TimeLimitSeconds = timeLimit
	quiz.AllowRetake = allowRetake
	quiz.MaxAttempts = maxAttempts
	return nil
}

func buildQuestionModels(questions []models.QuizQuestionRequest) ([]models.QuizQuestion, error) {
	if len(questions) == 0 {
		return nil, newValidationError("a quiz needs at least one question")
	}

	result := make([]models.QuizQuestion, 0, len(questions))
	for idx, question := range questions {
		qType := models.QuestionType(strings.ToLower(strings.TrimSpace(question.Type)))
		if !qType.Valid() {
			return nil, newValidationError("question %d has unsupported type: %s", idx+1, question.Type)
		}

		prompt := validator.SanitizeString(question.Prompt)
		if prompt == "" {
			return nil, newValidationError("question %d prompt is required", idx+1)
		}

		points := question.Points
		if points == 0 {
			points = 1
		}
		if points < 1 {
			return nil, newValidationError("question %d must be worth at least one point", idx+1)
		}

		modelQuestion := models.QuizQuestion{
			Prompt:           prompt,
			Type:             qType,
			Points:           points,
			TimeLimitSeconds: question.TimeLimitSeconds,
			Explanation:      validator.SanitizeString(question.Explanation),
			Position:         idx,
		}

		switch qType {
		case models.QuestionTypeFreeText:
			if len(question.Options) > 0 {
				return nil, newValidationError("question %d is free text and cannot have options", idx+1)
			}
			modelQuestion.CorrectAnswer = strings.TrimSpace(question.CorrectAnswer)
			if progression.NormalizeText(modelQuestion.CorrectAnswer) == "" {
				return nil, newValidationError("question %d answer is required", idx+1)
			}
		case models.QuestionTypeSingleChoice, models.QuestionTypeTrueFalse, models.QuestionTypeMultiChoice:
			options, err := buildOptions(question.Options, qType, idx)
			if err != nil {
				return nil, err
			}
			modelQuestion.Options = options
		}

		result = append(result, modelQuestion)
	}

	return result, nil
}

func buildOptions(options []models.QuizOptionRequest, qType models.QuestionType, questionIndex int) ([]models.QuizOption, error) {
	if len(options) < 2 {
		return nil, newValidationError("question %d must include at least two options", questionIndex+1)
	}
	if qType == models.QuestionTypeTrueFalse && len(options) != 2 {
		return nil, newValidationError("question %d is true/false and must have exactly two options", questionIndex+1)
	}

	result := make([]models.QuizOption, 0, len(options))
	correctCount := 0
	for idx, option := range options {
		text := validator.SanitizeString(option.Text)
		if text == "" {
			return nil, newValidationError("question %d option %d text is required", questionIndex+1, idx+1)
		}
		if option.IsCorrect {
			correctCount++
		}
		result = append(result, models.QuizOption{
			Text:      text,
			IsCorrect: option.IsCorrect,
			Position:  idx,
		})
	}

	switch qType {
	case models.QuestionTypeMultiChoice:
		if correctCount == 0 {
			return nil, newValidationError("question %d must have at least one correct option", questionIndex+1)
		}
	default:
		if correctCount != 1 {
			return nil, newValidationError("question %d must have exactly one correct option", questionIndex+1)
		}
	}

	return result, nil
}
