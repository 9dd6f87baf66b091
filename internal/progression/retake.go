package progression

import (
	"videopath-backend/internal/models"
)

// CheckRetakePolicy decides whether another attempt at quiz may be scored given
// the learner's previous attempts at it.
//
// Without retakes, a passing attempt closes the quiz. With retakes, every
// attempt except the first passing one counts against MaxAttempts, so passing
// retakes use up the allowance too; zero or less means unlimited.
func CheckRetakePolicy(quiz models.Quiz, attempts []models.QuizAttempt) error {
	passed := false
	counted := 0
	for _, attempt := range attempts {
		if attempt.QuizID != quiz.ID {
			continue
		}
		if attempt.Passed && !passed {
			passed = true
			continue
		}
		counted++
	}

	if !quiz.AllowRetake {
		if passed {
			return newError(ErrRetakeNotAllowed, "quiz %d has already been passed and cannot be retaken", quiz.ID)
		}
		return nil
	}

	if quiz.MaxAttempts > 0 && counted >= quiz.MaxAttempts {
		return newError(ErrMaxAttemptsExceeded, "quiz %d allows %d attempts and all of them have been used", quiz.ID, quiz.MaxAttempts)
	}
	return nil
}
