package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"videopath-backend/internal/events"
	"videopath-backend/internal/models"
	"videopath-backend/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, event := range p.events {
		if event.Type == eventType {
			count++
		}
	}
	return count
}

type harness struct {
	db          *gorm.DB
	catalog     *CatalogService
	progression *ProgressionService
	progress    *ProgressService
	watch       *WatchService
	quizzes     *QuizService
	integrity   *IntegrityService
	publisher   *recordingPublisher
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Video{}, &models.Quiz{}, &models.QuizQuestion{}, &models.QuizOption{}, &models.UserProgress{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)

	videoRepo := repository.NewVideoRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	publisher := &recordingPublisher{}

	catalog := NewCatalogService(videoRepo, quizRepo, progressRepo, nil)
	progressionService := NewProgressionService(progressRepo, catalog, publisher)
	progressService := NewProgressService(progressRepo, catalog, progressionService, 90)
	catalog.SetCompletionRecompute(nil, progressService.RunRecompute)

	return &harness{
		db:          db,
		catalog:     catalog,
		progression: progressionService,
		progress:    progressService,
		watch:       NewWatchService(progressRepo, catalog, progressionService, 90),
		quizzes:     NewQuizService(catalog, progressService, progressionService),
		integrity:   NewIntegrityService(videoRepo, quizRepo, progressRepo),
		publisher:   publisher,
	}
}

func (h *harness) addVideo(t *testing.T, order int) *models.Video {
	t.Helper()
	video, err := h.catalog.CreateVideo(context.Background(), models.CreateVideoRequest{
		Title:           fmt.Sprintf("Lesson %d", order),
		DurationSeconds: 100,
		Order:           order,
		IsPublished:     true,
	})
	if err != nil {
		t.Fatalf("CreateVideo returned error: %v", err)
	}
	return video
}

func (h *harness) addQuiz(t *testing.T, videoID uint, allowRetake bool, maxAttempts int) *models.Quiz {
	t.Helper()
	quiz, err := h.catalog.CreateQuiz(context.Background(), models.CreateQuizRequest{
		VideoID:             videoID,
		Title:               "Check your understanding",
		PassingScorePercent: 60,
		AllowRetake:         allowRetake,
		MaxAttempts:         maxAttempts,
		Questions: []models.QuizQuestionRequest{
			{
				Prompt: "Which one is right?",
				Type:   string(models.QuestionTypeSingleChoice),
				Points: 1,
				Options: []models.QuizOptionRequest{
					{Text: "right", IsCorrect: true},
					{Text: "wrong"},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuiz returned error: %v", err)
	}
	return quiz
}

// addLesson creates a published video gated by a single question quiz.
func (h *harness) addLesson(t *testing.T, order int) (*models.Video, *models.Quiz) {
	t.Helper()
	video := h.addVideo(t, order)
	return video, h.addQuiz(t, video.ID, false, 0)
}

func answersFor(quiz *models.Quiz, correct bool) models.AnswerSheet {
	sheet := models.AnswerSheet{}
	for _, question := range quiz.Questions {
		for _, option := range question.Options {
			if option.IsCorrect == correct {
				sheet[question.ID] = models.OptionAnswer(option.ID)
				break
			}
		}
	}
	return sheet
}

func (h *harness) watchTo(t *testing.T, userID, videoID uint, end float64) (*WatchTimeUpdate, error) {
	t.Helper()
	start := 0.0
	return h.watch.RecordSession(context.Background(), userID, models.RecordWatchSessionRequest{
		VideoID:       videoID,
		StartPosition: &start,
		EndPosition:   &end,
	})
}

func (h *harness) submit(userID uint, quiz *models.Quiz, correct bool) (*QuizSubmission, error) {
	return h.quizzes.Submit(context.Background(), userID, quiz.ID, models.SubmitQuizRequest{
		Answers:          answersFor(quiz, correct),
		TimeSpentSeconds: 20,
	})
}
