package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// InitialPosition is the current position of a learner who has not completed anything.
const InitialPosition = 1

// UserProgress is the single progress record of a learner. UserID is unique at
// the storage layer; every write goes through the repository's locked update.
type UserProgress struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID          uint            `gorm:"not null;uniqueIndex:idx_user_progresses_user" json:"user_id"`
	CurrentPosition int             `gorm:"not null;default:1;index" json:"current_position"`
	CompletedVideos CompletedVideos `gorm:"type:jsonb" json:"completed_videos"`
	VideoWatchTimes VideoWatchTimes `gorm:"type:jsonb" json:"video_watch_times"`
	QuizAttempts    QuizAttempts    `gorm:"type:jsonb" json:"quiz_attempts"`
	CompletedAt     *time.Time      `json:"completed_at"`
	Version         int64           `gorm:"not null;default:0" json:"-"`
}

// NewUserProgress returns the empty state a learner starts from.
func NewUserProgress(userID uint) *UserProgress {
	p := &UserProgress{UserID: userID}
	p.Reinitialize()
	return p
}

// Reinitialize clears every collection and resets the position, keeping the identity.
func (p *UserProgress) Reinitialize() {
	p.CurrentPosition = InitialPosition
	p.CompletedVideos = CompletedVideos{}
	p.VideoWatchTimes = VideoWatchTimes{}
	p.QuizAttempts = QuizAttempts{}
	p.CompletedAt = nil
}

// HasCompleted reports whether videoID is in the completed set.
func (p *UserProgress) HasCompleted(videoID uint) bool {
	return p.CompletedVideos.Contains(videoID)
}

// AttemptsFor returns the attempts recorded for quizID in submission order.
func (p *UserProgress) AttemptsFor(quizID uint) []QuizAttempt {
	attempts := make([]QuizAttempt, 0)
	for _, attempt := range p.QuizAttempts {
		if attempt.QuizID == quizID {
			attempts = append(attempts, attempt)
		}
	}
	return attempts
}

// CompletedVideos is an insertion-ordered, duplicate-free list of video ids.
type CompletedVideos []uint

func (c CompletedVideos) Contains(videoID uint) bool {
	for _, id := range c {
		if id == videoID {
			return true
		}
	}
	return false
}

// Add appends videoID unless it is already present and reports whether it was added.
func (c *CompletedVideos) Add(videoID uint) bool {
	if c.Contains(videoID) {
		return false
	}
	*c = append(*c, videoID)
	return true
}

func (c CompletedVideos) Value() (driver.Value, error) {
	if c == nil {
		c = CompletedVideos{}
	}
	return json.Marshal([]uint(c))
}

func (c *CompletedVideos) Scan(value interface{}) error {
	data, err := jsonColumnBytes(value, "CompletedVideos")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*c = CompletedVideos{}
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*c = CompletedVideos(ids)
	return nil
}

// WatchTime is the folded result of every watch session a learner reported for one video.
type WatchTime struct {
	TotalWatchTimeSeconds float64   `json:"total_watch_time_seconds"`
	LastWatchedPosition   float64   `json:"last_watched_position"`
	MaxObservedPosition   float64   `json:"max_observed_position"`
	CompletionPercentage  int       `json:"completion_percentage"`
	LastWatchedAt         time.Time `json:"last_watched_at"`
}

type VideoWatchTimes map[uint]WatchTime

func (w VideoWatchTimes) Value() (driver.Value, error) {
	if w == nil {
		w = VideoWatchTimes{}
	}
	return json.Marshal(map[uint]WatchTime(w))
}

func (w *VideoWatchTimes) Scan(value interface{}) error {
	data, err := jsonColumnBytes(value, "VideoWatchTimes")
	if err != nil {
		return err
	}
	decoded := map[uint]WatchTime{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			return err
		}
	}
	*w = VideoWatchTimes(decoded)
	return nil
}

// QuizAttempt is one scored submission. Attempts are appended, never rewritten.
type QuizAttempt struct {
	ID               string      `json:"id"`
	QuizID           uint        `json:"quiz_id"`
	VideoID          uint        `json:"video_id"`
	Answers          AnswerSheet `json:"answers"`
	Score            int         `json:"score"`
	TotalPoints      int         `json:"total_points"`
	Percentage       int         `json:"percentage"`
	Passed           bool        `json:"passed"`
	TimedOut         bool        `json:"timed_out"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
	CompletedAt      time.Time   `json:"completed_at"`
}

type QuizAttempts []QuizAttempt

func (a QuizAttempts) Value() (driver.Value, error) {
	if a == nil {
		a = QuizAttempts{}
	}
	return json.Marshal([]QuizAttempt(a))
}

func (a *QuizAttempts) Scan(value interface{}) error {
	data, err := jsonColumnBytes(value, "QuizAttempts")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*a = QuizAttempts{}
		return nil
	}
	var attempts []QuizAttempt
	if err := json.Unmarshal(data, &attempts); err != nil {
		return err
	}
	*a = QuizAttempts(attempts)
	return nil
}

func jsonColumnBytes(value interface{}, name string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("failed to scan " + name)
	}
}
