package progression

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"videopath-backend/internal/models"
)

// QuestionResult is the outcome of scoring one question.
type QuestionResult struct {
	QuestionID   uint `json:"question_id"`
	Correct      bool `json:"correct"`
	Answered     bool `json:"answered"`
	PointsEarned int  `json:"points_earned"`
	Points       int  `json:"points"`
}

// Result is the outcome of scoring one submission.
type Result struct {
	QuizID           uint             `json:"quiz_id"`
	VideoID          uint             `json:"video_id"`
	Score            int              `json:"score"`
	TotalPoints      int              `json:"total_points"`
	Percentage       int              `json:"percentage"`
	Passed           bool             `json:"passed"`
	TimedOut         bool             `json:"timed_out"`
	TimeSpentSeconds int              `json:"time_spent_seconds"`
	Questions        []QuestionResult `json:"question_results"`
}

// Evaluate scores answers against the quiz's answer key. It has no side effects.
//
// Missing answers score zero. An answer of the wrong shape for its question fails
// the whole submission with ErrInvalidAnswerShape. Going over the time limit only
// sets TimedOut; the score is unaffected. A quiz worth zero points yields a zero
// result together with ErrDataIntegrity.
func Evaluate(quiz models.Quiz, answers models.AnswerSheet, timeSpentSeconds int) (Result, error) {
	if timeSpentSeconds < 0 {
		timeSpentSeconds = 0
	}

	result := Result{
		QuizID:           quiz.ID,
		VideoID:          quiz.VideoID,
		TimeSpentSeconds: timeSpentSeconds,
		TimedOut:         quiz.TimeLimitSeconds > 0 && timeSpentSeconds > quiz.TimeLimitSeconds,
		Questions:        make([]QuestionResult, 0, len(quiz.Questions)),
	}

	for _, question := range quiz.Questions {
		answer, answered := answers[question.ID]
		correct, err := scoreQuestion(question, answer, answered)
		if err != nil {
			return Result{}, err
		}

		item := QuestionResult{
			QuestionID: question.ID,
			Correct:    correct,
			Answered:   answered,
			Points:     question.Points,
		}
		if correct {
			item.PointsEarned = question.Points
		}

		result.Score += item.PointsEarned
		result.TotalPoints += question.Points
		result.Questions = append(result.Questions, item)
	}

	if result.TotalPoints <= 0 {
		return result, DataIntegrity("quiz %d has no scoreable points", quiz.ID)
	}

	result.Percentage = Percentage(result.Score, result.TotalPoints)
	result.Passed = result.Percentage >= quiz.PassingScorePercent
	return result, nil
}

// Percentage rounds score/total to a whole percent, half up, in integers so that
// exact halves such as 29/200 round to 15.
func Percentage(score, total int) int {
	if total <= 0 || score <= 0 {
		return 0
	}
	return (score*200 + total) / (2 * total)
}

func scoreQuestion(question models.QuizQuestion, answer models.Answer, answered bool) (bool, error) {
	switch question.Type {
	case models.QuestionTypeSingleChoice, models.QuestionTypeTrueFalse:
		if !answered {
			return false, nil
		}
		if answer.Kind != models.AnswerKindOption {
			return false, newError(ErrInvalidAnswerShape, "question %d expects a single option id", question.ID)
		}
		correct := question.CorrectOptionIDs()
		if len(correct) != 1 {
			return false, DataIntegrity("question %d must have exactly one correct option, has %d", question.ID, len(correct))
		}
		return answer.OptionID == correct[0], nil

	case models.QuestionTypeMultiChoice:
		if !answered {
			return false, nil
		}
		if answer.Kind != models.AnswerKindOptions {
			return false, newError(ErrInvalidAnswerShape, "question %d expects a list of option ids", question.ID)
		}
		correct := question.CorrectOptionIDs()
		if len(correct) == 0 {
			return false, DataIntegrity("question %d has no correct option", question.ID)
		}
		return sameSet(answer.OptionSet(), correct), nil

	case models.QuestionTypeFreeText:
		if !answered {
			return false, nil
		}
		if answer.Kind != models.AnswerKindText {
			return false, newError(ErrInvalidAnswerShape, "question %d expects a text answer", question.ID)
		}
		expected := NormalizeText(question.CorrectAnswer)
		if expected == "" {
			return false, DataIntegrity("question %d has no expected answer", question.ID)
		}
		return NormalizeText(answer.Text) == expected, nil
	}

	return false, DataIntegrity("question %d has unsupported type %q", question.ID, question.Type)
}

func sameSet(submitted map[uint]struct{}, correct []uint) bool {
	if len(submitted) != len(correct) {
		return false
	}
	for _, id := range correct {
		if _, ok := submitted[id]; !ok {
			return false
		}
	}
	return true
}

// NormalizeText prepares free text for comparison: trimmed, NFKC normalised and case folded.
func NormalizeText(text string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(text)))
}
