package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
	"videopath-backend/pkg/logger"
)

const maxFreeTextAnswerLength = 2000

// QuizSubmission is the scored result of one submission together with the
// learner's progress after it was applied.
type QuizSubmission struct {
	progression.Result
	AttemptID string               `json:"attempt_id"`
	Progress  *models.UserProgress `json:"progress"`
}

type QuizService struct {
	catalog     *CatalogService
	progress    *ProgressService
	progression *ProgressionService
}

func NewQuizService(catalog *CatalogService, progressService *ProgressService, progressionService *ProgressionService) *QuizService {
	initMetrics()
	return &QuizService{
		catalog:     catalog,
		progress:    progressService,
		progression: progressionService,
	}
}

// LearnerQuiz returns the quiz without its answer key, provided the learner can
// reach the video it gates.
func (s *QuizService) LearnerQuiz(ctx context.Context, userID, quizID uint) (*models.LearnerQuiz, error) {
	if s == nil || s.catalog == nil || s.progress == nil {
		return nil, errors.New("quiz service is not configured")
	}

	quiz, catalog, err := s.loadGatedQuiz(quizID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.progress.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := catalog.EnsureAccessible(snapshot, quiz.VideoID); err != nil {
		return nil, err
	}

	view := quiz.WithoutAnswers()
	return &view, nil
}

// Submit scores answers and applies the result to the learner's progress.
func (s *QuizService) Submit(ctx context.Context, userID, quizID uint, req models.SubmitQuizRequest) (*QuizSubmission, error) {
	if s == nil || s.catalog == nil || s.progress == nil || s.progression == nil {
		return nil, errors.New("quiz service is not configured")
	}
	if userID == 0 {
		return nil, newValidationError("user id is required")
	}
	if req.TimeSpentSeconds < 0 {
		return nil, newValidationError("time spent must not be negative")
	}

	quiz, catalog, err := s.loadGatedQuiz(quizID)
	if err != nil {
		return nil, err
	}

	answers, err := relevantAnswers(*quiz, req.Answers)
	if err != nil {
		return nil, err
	}

	// Cheap rejection before scoring; the authoritative check runs under the row lock.
	snapshot, err := s.progress.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := catalog.EnsureAccessible(snapshot, quiz.VideoID); err != nil {
		return nil, err
	}
	if err := progression.CheckRetakePolicy(*quiz, snapshot.AttemptsFor(quiz.ID)); err != nil {
		quizSubmissionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	result, err := progression.Evaluate(*quiz, answers, req.TimeSpentSeconds)
	if err != nil {
		if errors.Is(err, progression.ErrDataIntegrity) {
			logger.FromContext(ctx).WithError(err).WithField("quiz_id", quiz.ID).Error("Quiz cannot be scored")
		}
		return nil, err
	}

	progress, outcome, err := s.progression.ApplyQuizResult(ctx, userID, *quiz, answers, result)
	if err != nil {
		if errors.Is(err, progression.ErrRetakeNotAllowed) || errors.Is(err, progression.ErrMaxAttemptsExceeded) {
			quizSubmissionsTotal.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	submission := &QuizSubmission{Result: result, Progress: progress}
	if outcome.Attempt != nil {
		submission.AttemptID = outcome.Attempt.ID
	}

	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id":    userID,
		"quiz_id":    quiz.ID,
		"score":      result.Score,
		"percentage": result.Percentage,
		"passed":     result.Passed,
		"timed_out":  result.TimedOut,
	}).Info("Quiz submitted")

	return submission, nil
}

// loadGatedQuiz loads a quiz and checks that it is correctly linked to a
// published video.
func (s *QuizService) loadGatedQuiz(quizID uint) (*models.Quiz, *progression.Catalog, error) {
	quiz, err := s.catalog.Quiz(quizID)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := s.catalog.Catalog()
	if err != nil {
		return nil, nil, err
	}

	video, ok := catalog.Video(quiz.VideoID)
	if !ok {
		exists, err := s.catalog.VideoExists(quiz.VideoID)
		if err != nil {
			return nil, nil, err
		}
		if !exists {
			return nil, nil, progression.DataIntegrity("quiz %d references missing video %d", quiz.ID, quiz.VideoID)
		}
		return nil, nil, progression.NotFound("quiz %d belongs to an unpublished video", quiz.ID)
	}
	if video.QuizID == nil {
		return nil, nil, progression.DataIntegrity("video %d has no link back to quiz %d", video.ID, quiz.ID)
	}
	if *video.QuizID != quiz.ID {
		return nil, nil, progression.DataIntegrity("video %d is linked to quiz %d, not quiz %d", video.ID, *video.QuizID, quiz.ID)
	}
	return quiz, catalog, nil
}

// relevantAnswers keeps only answers to questions of quiz. Answers to unknown
// questions are dropped rather than stored.
func relevantAnswers(quiz models.Quiz, answers models.AnswerSheet) (models.AnswerSheet, error) {
	result := make(models.AnswerSheet, len(quiz.Questions))
	for _, question := range quiz.Questions {
		answer, ok := answers[question.ID]
		if !ok {
			continue
		}
		if answer.Kind == models.AnswerKindText && utf8.RuneCountInString(answer.Text) > maxFreeTextAnswerLength {
			return nil, newValidationError("answer to question %d is longer than %d characters", question.ID, maxFreeTextAnswerLength)
		}
		result[question.ID] = answer
	}
	return result, nil
}
