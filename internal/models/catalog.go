package models

import (
	"time"
)

type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multi_choice"
	QuestionTypeTrueFalse    QuestionType = "true_false"
	QuestionTypeFreeText     QuestionType = "free_text"
)

// QuestionTypes lists every supported question type.
var QuestionTypes = []QuestionType{
	QuestionTypeSingleChoice,
	QuestionTypeMultiChoice,
	QuestionTypeTrueFalse,
	QuestionTypeFreeText,
}

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultiChoice, QuestionTypeTrueFalse, QuestionTypeFreeText:
		return true
	}
	return false
}

// UsesOptions reports whether answers to the question reference option ids.
func (t QuestionType) UsesOptions() bool {
	return t != QuestionTypeFreeText
}

// Video is a lesson in the learning path. Order is the administrative sort key;
// the engine only relies on its relative position among published videos.
type Video struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title           string `gorm:"not null" json:"title"`
	Description     string `json:"description"`
	FileURL         string `json:"file_url"`
	DurationSeconds int    `gorm:"not null" json:"duration_seconds"`
	Order           int    `gorm:"column:sort_order;not null;index" json:"order"`
	IsPublished     bool   `gorm:"not null;default:false;index" json:"is_published"`
	QuizID          *uint  `gorm:"index" json:"quiz_id,omitempty"`
}

// Quiz gates the video it belongs to.
type Quiz struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	VideoID             uint   `gorm:"not null;uniqueIndex" json:"video_id"`
	Title               string `gorm:"not null" json:"title"`
	PassingScorePercent int    `gorm:"not null" json:"passing_score_percent"`
	TimeLimitSeconds    int    `gorm:"not null;default:0" json:"time_limit_seconds"`
	AllowRetake         bool   `gorm:"not null" json:"allow_retake"`
	MaxAttempts         int    `gorm:"not null;default:0" json:"max_attempts"`

	Questions []QuizQuestion `gorm:"-" json:"questions"`
}

// TotalPoints sums the points of every question.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// WithoutAnswers returns the projection shown to learners: no correct flags,
// no expected free-text answers, no explanations.
func (q Quiz) WithoutAnswers() LearnerQuiz {
	view := LearnerQuiz{
		ID:                  q.ID,
		VideoID:             q.VideoID,
		Title:               q.Title,
		PassingScorePercent: q.PassingScorePercent,
		TimeLimitSeconds:    q.TimeLimitSeconds,
		AllowRetake:         q.AllowRetake,
		MaxAttempts:         q.MaxAttempts,
		Questions:           make([]LearnerQuestion, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		item := LearnerQuestion{
			ID:               question.ID,
			Prompt:           question.Prompt,
			Type:             question.Type,
			Points:           question.Points,
			TimeLimitSeconds: question.TimeLimitSeconds,
			Options:          make([]LearnerOption, 0, len(question.Options)),
		}
		for _, option := range question.Options {
			item.Options = append(item.Options, LearnerOption{ID: option.ID, Text: option.Text})
		}
		view.Questions = append(view.Questions, item)
	}
	return view
}

type QuizQuestion struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuizID           uint         `gorm:"not null;index" json:"quiz_id"`
	Prompt           string       `gorm:"not null" json:"prompt"`
	Type             QuestionType `gorm:"type:varchar(32);not null" json:"type"`
	Points           int          `gorm:"not null;default:1" json:"points"`
	TimeLimitSeconds int          `gorm:"not null;default:0" json:"time_limit_seconds"`
	CorrectAnswer    string       `json:"correct_answer,omitempty"`
	Explanation      string       `json:"explanation,omitempty"`
	Position         int          `gorm:"not null;default:0" json:"position"`

	Options []QuizOption `gorm:"-" json:"options"`
}

// CorrectOptionIDs returns the ids of options flagged as correct, in display order.
func (q QuizQuestion) CorrectOptionIDs() []uint {
	ids := make([]uint, 0, 1)
	for _, option := range q.Options {
		if option.IsCorrect {
			ids = append(ids, option.ID)
		}
	}
	return ids
}

type QuizOption struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Text       string `gorm:"not null" json:"text"`
	IsCorrect  bool   `gorm:"not null" json:"is_correct"`
	Position   int    `gorm:"not null;default:0" json:"position"`
}
