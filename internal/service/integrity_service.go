package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"videopath-backend/internal/models"
	"videopath-backend/internal/progression"
	"videopath-backend/internal/repository"
	"videopath-backend/pkg/logger"
)

const (
	IssueDuplicateOrder         = "duplicate_order"
	IssueDanglingQuizReference  = "dangling_quiz_reference"
	IssueDanglingVideoReference = "dangling_video_reference"
	IssueQuizLinkMismatch       = "quiz_link_mismatch"
	IssueZeroPointQuiz          = "zero_point_quiz"
	IssueInvalidAnswerKey       = "invalid_answer_key"
	IssueUnknownCompletedVideo  = "unknown_completed_video"
	IssueCompletionMismatch     = "completion_mismatch"
	IssueDuplicateProgress      = "duplicate_progress"
)

var issueKinds = []string{
	IssueDuplicateOrder,
	IssueDanglingQuizReference,
	IssueDanglingVideoReference,
	IssueQuizLinkMismatch,
	IssueZeroPointQuiz,
	IssueInvalidAnswerKey,
	IssueUnknownCompletedVideo,
	IssueCompletionMismatch,
	IssueDuplicateProgress,
}

type IntegrityIssue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	VideoID uint   `json:"video_id,omitempty"`
	QuizID  uint   `json:"quiz_id,omitempty"`
	UserID  uint   `json:"user_id,omitempty"`
}

type IntegrityReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Issues      []IntegrityIssue `json:"issues"`
	Counts      map[string]int   `json:"counts"`
}

func (r *IntegrityReport) add(issue IntegrityIssue) {
	r.Issues = append(r.Issues, issue)
	r.Counts[issue.Kind]++
}

// Healthy reports whether the audit found nothing.
func (r *IntegrityReport) Healthy() bool {
	return len(r.Issues) == 0
}

// IntegrityService reports inconsistencies between the catalog, quizzes and
// progress records. It never modifies data.
type IntegrityService struct {
	videoRepo    repository.VideoRepository
	quizRepo     repository.QuizRepository
	progressRepo repository.ProgressRepository
}

func NewIntegrityService(videoRepo repository.VideoRepository, quizRepo repository.QuizRepository, progressRepo repository.ProgressRepository) *IntegrityService {
	initMetrics()
	return &IntegrityService{
		videoRepo:    videoRepo,
		quizRepo:     quizRepo,
		progressRepo: progressRepo,
	}
}

func (s *IntegrityService) Audit(ctx context.Context) (*IntegrityReport, error) {
	if s == nil || s.videoRepo == nil || s.quizRepo == nil || s.progressRepo == nil {
		return nil, errors.New("integrity service is not configured")
	}

	report := &IntegrityReport{
		GeneratedAt: time.Now().UTC(),
		Issues:      []IntegrityIssue{},
		Counts:      make(map[string]int, len(issueKinds)),
	}

	videos, err := s.videoRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load videos: %w", err)
	}
	quizzes, err := s.quizRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load quizzes: %w", err)
	}

	checkVideoOrder(report, videos)
	checkQuizLinks(report, videos, quizzes)
	checkAnswerKeys(report, quizzes)

	if err := s.checkProgress(ctx, report, videos); err != nil {
		return nil, err
	}

	for _, kind := range issueKinds {
		integrityIssues.WithLabelValues(kind).Set(float64(report.Counts[kind]))
	}

	fields := map[string]interface{}{"issues": len(report.Issues)}
	if report.Healthy() {
		logger.Info("Integrity audit finished", fields)
	} else {
		for kind, count := range report.Counts {
			fields[kind] = count
		}
		logger.Warn("Integrity audit found issues", fields)
	}
	return report, nil
}

// RunAudit adapts Audit to a background job.
func (s *IntegrityService) RunAudit(ctx context.Context) error {
	_, err := s.Audit(ctx)
	return err
}

func checkVideoOrder(report *IntegrityReport, videos []models.Video) {
	byOrder := make(map[int][]uint)
	for _, video := range videos {
		if video.IsPublished {
			byOrder[video.Order] = append(byOrder[video.Order], video.ID)
		}
	}

	orders := make([]int, 0, len(byOrder))
	for order, ids := range byOrder {
		if len(ids) > 1 {
			orders = append(orders, order)
		}
	}
	sort.Ints(orders)
	for _, order := range orders {
		ids := byOrder[order]
		for _, id := range ids {
			report.add(IntegrityIssue{
				Kind:    IssueDuplicateOrder,
				Message: fmt.Sprintf("published videos %v share order %d", ids, order),
				VideoID: id,
			})
		}
	}
}

func checkQuizLinks(report *IntegrityReport, videos []models.Video, quizzes []models.Quiz) {
	videoByID := make(map[uint]models.Video, len(videos))
	for _, video := range videos {
		videoByID[video.ID] = video
	}
	quizByID := make(map[uint]models.Quiz, len(quizzes))
	for _, quiz := range quizzes {
		quizByID[quiz.ID] = quiz
	}

	for _, video := range videos {
		if video.QuizID == nil {
			continue
		}
		quiz, ok := quizByID[*video.QuizID]
		if !ok {
			report.add(IntegrityIssue{
				Kind:    IssueDanglingQuizReference,
				Message: fmt.Sprintf("video %d references missing quiz %d", video.ID, *video.QuizID),
				VideoID: video.ID,
				QuizID:  *video.QuizID,
			})
			continue
		}
		if quiz.VideoID != video.ID {
			report.add(IntegrityIssue{
				Kind:    IssueQuizLinkMismatch,
				Message: fmt.Sprintf("video %d references quiz %d, which gates video %d", video.ID, quiz.ID, quiz.VideoID),
				VideoID: video.ID,
				QuizID:  quiz.ID,
			})
		}
	}

	for _, quiz := range quizzes {
		video, ok := videoByID[quiz.VideoID]
		if !ok {
			report.add(IntegrityIssue{
				Kind:    IssueDanglingVideoReference,
				Message: fmt.Sprintf("quiz %d gates missing video %d", quiz.ID, quiz.VideoID),
				VideoID: quiz.VideoID,
				QuizID:  quiz.ID,
			})
			continue
		}
		if video.QuizID == nil || *video.QuizID != quiz.ID {
			report.add(IntegrityIssue{
				Kind:    IssueQuizLinkMismatch,
				Message: fmt.Sprintf("quiz %d gates video %d, but the video does not reference it", quiz.ID, video.ID),
				VideoID: video.ID,
				QuizID:  quiz.ID,
			})
		}
	}
}

func checkAnswerKeys(report *IntegrityReport, quizzes []models.Quiz) {
	for _, quiz := range quizzes {
		if quiz.TotalPoints() <= 0 {
			report.add(IntegrityIssue{
				Kind:    IssueZeroPointQuiz,
				Message: fmt.Sprintf("quiz %d has no scoreable points", quiz.ID),
				VideoID: quiz.VideoID,
				QuizID:  quiz.ID,
			})
		}
		for _, question := range quiz.Questions {
			if message := answerKeyProblem(question); message != "" {
				report.add(IntegrityIssue{
					Kind:    IssueInvalidAnswerKey,
					Message: fmt.Sprintf("quiz %d question %d %s", quiz.ID, question.ID, message),
					VideoID: quiz.VideoID,
					QuizID:  quiz.ID,
				})
			}
		}
	}
}

func answerKeyProblem(question models.QuizQuestion) string {
	switch question.Type {
	case models.QuestionTypeSingleChoice, models.QuestionTypeTrueFalse:
		if count := len(question.CorrectOptionIDs()); count != 1 {
			return fmt.Sprintf("has %d correct options, expected exactly one", count)
		}
	case models.QuestionTypeMultiChoice:
		if len(question.CorrectOptionIDs()) == 0 {
			return "has no correct option"
		}
	case models.QuestionTypeFreeText:
		if progression.NormalizeText(question.CorrectAnswer) == "" {
			return "has no expected answer"
		}
	default:
		return fmt.Sprintf("has unsupported type %q", question.Type)
	}
	return ""
}

func (s *IntegrityService) checkProgress(ctx context.Context, report *IntegrityReport, videos []models.Video) error {
	known := make(map[uint]struct{}, len(videos))
	for _, video := range videos {
		known[video.ID] = struct{}{}
	}

	// A catalog with duplicate orders is already reported above; completion
	// checks are skipped rather than run against an ambiguous ranking.
	catalog, catalogErr := progression.NewCatalog(videos)

	err := s.progressRepo.FindInBatches(ctx, 500, func(batch []models.UserProgress) error {
		for _, progress := range batch {
			for _, videoID := range progress.CompletedVideos {
				if _, ok := known[videoID]; !ok {
					report.add(IntegrityIssue{
						Kind:    IssueUnknownCompletedVideo,
						Message: fmt.Sprintf("user %d completed unknown video %d", progress.UserID, videoID),
						VideoID: videoID,
						UserID:  progress.UserID,
					})
				}
			}

			if catalogErr != nil {
				continue
			}
			covered := catalog.CoveredBy(progress.CompletedVideos)
			if covered != (progress.CompletedAt != nil) {
				report.add(IntegrityIssue{
					Kind:    IssueCompletionMismatch,
					Message: fmt.Sprintf("user %d completion flag is %v but covered is %v", progress.UserID, progress.CompletedAt != nil, covered),
					UserID:  progress.UserID,
				})
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan progress: %w", err)
	}

	duplicates, err := s.progressRepo.DuplicateUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to look for duplicate progress: %w", err)
	}
	for _, userID := range duplicates {
		report.add(IntegrityIssue{
			Kind:    IssueDuplicateProgress,
			Message: fmt.Sprintf("user %d has more than one progress record", userID),
			UserID:  userID,
		})
	}
	return nil
}
