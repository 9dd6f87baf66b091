package progression

import (
	"testing"

	"videopath-backend/internal/models"
)

func publishedVideo(id uint, order int) models.Video {
	return models.Video{ID: id, Title: "video", DurationSeconds: 100, Order: order, IsPublished: true}
}

func threeVideoCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog([]models.Video{
		publishedVideo(1, 10),
		publishedVideo(2, 20),
		publishedVideo(3, 30),
	})
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}
	return catalog
}

func singleChoiceQuestion(id uint, points int, correct uint, others ...uint) models.QuizQuestion {
	question := models.QuizQuestion{ID: id, Type: models.QuestionTypeSingleChoice, Points: points}
	question.Options = append(question.Options, models.QuizOption{ID: correct, IsCorrect: true})
	for _, other := range others {
		question.Options = append(question.Options, models.QuizOption{ID: other})
	}
	return question
}

func multiChoiceQuestion(id uint, points int, correct []uint, others []uint) models.QuizQuestion {
	question := models.QuizQuestion{ID: id, Type: models.QuestionTypeMultiChoice, Points: points}
	for _, option := range correct {
		question.Options = append(question.Options, models.QuizOption{ID: option, IsCorrect: true})
	}
	for _, option := range others {
		question.Options = append(question.Options, models.QuizOption{ID: option})
	}
	return question
}
