package models

// RecordWatchSessionRequest reports one interval of playback.
type RecordWatchSessionRequest struct {
	VideoID                 uint     `json:"video_id" binding:"required"`
	StartPosition           *float64 `json:"start_position" binding:"required,gte=0"`
	EndPosition             *float64 `json:"end_position" binding:"required,gte=0"`
	ObservedDurationSeconds *float64 `json:"observed_duration_seconds" binding:"omitempty,gte=0"`
}

// SubmitQuizRequest carries a learner's answers. TimeSpentSeconds is measured by the client.
type SubmitQuizRequest struct {
	Answers          AnswerSheet `json:"answers"`
	TimeSpentSeconds int         `json:"time_spent_seconds" binding:"gte=0"`
}

// CreateVideoRequest represents a request to create a video
type CreateVideoRequest struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	FileURL         string `json:"file_url"`
	DurationSeconds int    `json:"duration_seconds" binding:"required,gt=0"`
	Order           int    `json:"order" binding:"required,gt=0"`
	IsPublished     bool   `json:"is_published"`
}

// UpdateVideoRequest represents a request to update a video
type UpdateVideoRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	FileURL         *string `json:"file_url"`
	DurationSeconds *int    `json:"duration_seconds" binding:"omitempty,gt=0"`
	Order           *int    `json:"order" binding:"omitempty,gt=0"`
}

// CreateQuizRequest represents a request to create the quiz gating a video
type CreateQuizRequest struct {
	VideoID             uint                  `json:"video_id" binding:"required"`
	Title               string                `json:"title" binding:"required"`
	PassingScorePercent int                   `json:"passing_score_percent" binding:"required,min=1,max=100"`
	TimeLimitSeconds    int                   `json:"time_limit_seconds" binding:"gte=0"`
	AllowRetake         bool                  `json:"allow_retake"`
	MaxAttempts         int                   `json:"max_attempts" binding:"gte=0"`
	Questions           []QuizQuestionRequest `json:"questions" binding:"dive"`
}

// UpdateQuizRequest replaces a quiz's settings and question structure
type UpdateQuizRequest struct {
	Title               string                `json:"title" binding:"required"`
	PassingScorePercent int                   `json:"passing_score_percent" binding:"required,min=1,max=100"`
	TimeLimitSeconds    int                   `json:"time_limit_seconds" binding:"gte=0"`
	AllowRetake         bool                  `json:"allow_retake"`
	MaxAttempts         int                   `json:"max_attempts" binding:"gte=0"`
	Questions           []QuizQuestionRequest `json:"questions" binding:"dive"`
}

type QuizQuestionRequest struct {
	Prompt           string              `json:"prompt"`
	Type             string              `json:"type" binding:"required,question_type"`
	Points           int                 `json:"points" binding:"gte=0"`
	TimeLimitSeconds int                 `json:"time_limit_seconds" binding:"gte=0"`
	CorrectAnswer    string              `json:"correct_answer"`
	Explanation      string              `json:"explanation"`
	Options          []QuizOptionRequest `json:"options"`
}

type QuizOptionRequest struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// LearnerQuiz is a quiz without its answer key.
type LearnerQuiz struct {
	ID                  uint              `json:"id"`
	VideoID             uint              `json:"video_id"`
	Title               string            `json:"title"`
	PassingScorePercent int               `json:"passing_score_percent"`
	TimeLimitSeconds    int               `json:"time_limit_seconds"`
	AllowRetake         bool              `json:"allow_retake"`
	MaxAttempts         int               `json:"max_attempts"`
	Questions           []LearnerQuestion `json:"questions"`
}

type LearnerQuestion struct {
	ID               uint            `json:"id"`
	Prompt           string          `json:"prompt"`
	Type             QuestionType    `json:"type"`
	Points           int             `json:"points"`
	TimeLimitSeconds int             `json:"time_limit_seconds"`
	Options          []LearnerOption `json:"options"`
}

type LearnerOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}
