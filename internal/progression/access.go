package progression

import (
	"videopath-backend/internal/models"
)

// Status is the access state of one video for one learner. It is always derived,
// never stored.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusUnlocked  Status = "unlocked"
	StatusCompleted Status = "completed"
)

// ResolveStatus ranks videos and resolves the status of each published one.
func ResolveStatus(videos []models.Video, progress *models.UserProgress) (map[uint]Status, error) {
	catalog, err := NewCatalog(videos)
	if err != nil {
		return nil, err
	}
	return catalog.Resolve(progress), nil
}

// Resolve walks the catalog in rank order. Completed videos are those in the
// learner's completed set; the first video that is not completed is the single
// unlocked frontier and everything else is locked. A nil progress is the
// initial empty state.
func (c *Catalog) Resolve(progress *models.UserProgress) map[uint]Status {
	statuses := make(map[uint]Status, c.Len())
	frontierFound := false
	for _, video := range c.Videos() {
		switch {
		case progress != nil && progress.HasCompleted(video.ID):
			statuses[video.ID] = StatusCompleted
		case !frontierFound:
			statuses[video.ID] = StatusUnlocked
			frontierFound = true
		default:
			statuses[video.ID] = StatusLocked
		}
	}
	return statuses
}

// StatusOf resolves a single video. Unknown or unpublished videos are locked.
func (c *Catalog) StatusOf(progress *models.UserProgress, videoID uint) Status {
	status, ok := c.Resolve(progress)[videoID]
	if !ok {
		return StatusLocked
	}
	return status
}

// Frontier returns the unlocked video, if any.
func (c *Catalog) Frontier(progress *models.UserProgress) (models.Video, bool) {
	for _, video := range c.Videos() {
		if progress == nil || !progress.HasCompleted(video.ID) {
			return video, true
		}
	}
	return models.Video{}, false
}

// EnsureAccessible returns NotFound for videos outside the published catalog and
// AccessDenied for locked ones.
func (c *Catalog) EnsureAccessible(progress *models.UserProgress, videoID uint) error {
	if !c.Contains(videoID) {
		return NotFound("video %d is not published", videoID)
	}
	if c.StatusOf(progress, videoID) == StatusLocked {
		return AccessDenied("video %d is locked: pass the quiz of the previous video to unlock it", videoID)
	}
	return nil
}
