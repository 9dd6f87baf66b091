package progression

import (
	"fmt"
	"math"
	"time"

	"videopath-backend/internal/models"
)

// DefaultCompletionThreshold is the completion percentage at which a video's quiz is offered.
const DefaultCompletionThreshold = 90

// Session is one reported interval of playback, in seconds into the video.
// ObservedDurationSeconds is the wall-clock time the learner spent; when zero
// the positional span is used instead.
type Session struct {
	StartPosition           float64
	EndPosition             float64
	ObservedDurationSeconds float64
}

// Validate checks 0 <= start <= end.
func (s Session) Validate() error {
	if math.IsNaN(s.StartPosition) || math.IsNaN(s.EndPosition) || math.IsNaN(s.ObservedDurationSeconds) {
		return fmt.Errorf("positions must be numbers")
	}
	if s.StartPosition < 0 {
		return fmt.Errorf("start position must not be negative")
	}
	if s.EndPosition < s.StartPosition {
		return fmt.Errorf("end position must not be before start position")
	}
	if s.ObservedDurationSeconds < 0 {
		return fmt.Errorf("observed duration must not be negative")
	}
	return nil
}

// WallClockSpan is the time credited to the learner for the session.
func (s Session) WallClockSpan() float64 {
	if s.ObservedDurationSeconds > 0 {
		return s.ObservedDurationSeconds
	}
	return s.EndPosition - s.StartPosition
}

// CompletionPercentage is min(100, round(position / duration * 100)).
func CompletionPercentage(position float64, durationSeconds int) int {
	if durationSeconds <= 0 || position <= 0 {
		return 0
	}
	pct := int(math.Round(position / float64(durationSeconds) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// FoldSession merges a session into the learner's watch entry for video.
// The observed maximum and the completion percentage never decrease, whatever
// order sessions arrive in.
func FoldSession(entry models.WatchTime, video models.Video, session Session, now time.Time) (models.WatchTime, error) {
	if err := session.Validate(); err != nil {
		return entry, err
	}
	if video.DurationSeconds <= 0 {
		return entry, DataIntegrity("video %d has no duration", video.ID)
	}

	entry.TotalWatchTimeSeconds += session.WallClockSpan()
	entry.LastWatchedPosition = session.EndPosition
	if session.EndPosition > entry.MaxObservedPosition {
		entry.MaxObservedPosition = session.EndPosition
	}
	if pct := CompletionPercentage(entry.MaxObservedPosition, video.DurationSeconds); pct > entry.CompletionPercentage {
		entry.CompletionPercentage = pct
	}
	entry.LastWatchedAt = now.UTC()
	return entry, nil
}

// QuizOfferable reports whether a learner has watched enough of a video to be offered its quiz.
func QuizOfferable(entry models.WatchTime, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultCompletionThreshold
	}
	return entry.CompletionPercentage >= threshold
}
