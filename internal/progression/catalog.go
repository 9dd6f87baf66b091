package progression

import (
	"sort"

	"videopath-backend/internal/models"
)

// Catalog is the published part of the video list, ranked densely by Order.
// Unpublished videos and gaps in Order do not take a rank.
type Catalog struct {
	videos []models.Video
	rank   map[uint]int
}

// NewCatalog filters videos down to the published ones and ranks them.
// Two published videos sharing an Order are a data integrity error.
func NewCatalog(videos []models.Video) (*Catalog, error) {
	published := make([]models.Video, 0, len(videos))
	for _, video := range videos {
		if video.IsPublished {
			published = append(published, video)
		}
	}

	sort.SliceStable(published, func(i, j int) bool {
		if published[i].Order == published[j].Order {
			return published[i].ID < published[j].ID
		}
		return published[i].Order < published[j].Order
	})

	rank := make(map[uint]int, len(published))
	for idx, video := range published {
		if idx > 0 && published[idx-1].Order == video.Order {
			return nil, DataIntegrity("videos %d and %d share order %d", published[idx-1].ID, video.ID, video.Order)
		}
		if _, exists := rank[video.ID]; exists {
			return nil, DataIntegrity("video %d is listed twice in the catalog", video.ID)
		}
		rank[video.ID] = idx + 1
	}

	return &Catalog{videos: published, rank: rank}, nil
}

// Videos returns the published videos in rank order.
func (c *Catalog) Videos() []models.Video {
	if c == nil {
		return nil
	}
	return append([]models.Video(nil), c.videos...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.videos)
}

// Rank returns the 1-based dense rank of a published video.
func (c *Catalog) Rank(videoID uint) (int, bool) {
	if c == nil {
		return 0, false
	}
	rank, ok := c.rank[videoID]
	return rank, ok
}

// Video looks up a published video by id.
func (c *Catalog) Video(videoID uint) (models.Video, bool) {
	rank, ok := c.Rank(videoID)
	if !ok {
		return models.Video{}, false
	}
	return c.videos[rank-1], true
}

// Contains reports whether videoID is published.
func (c *Catalog) Contains(videoID uint) bool {
	_, ok := c.Rank(videoID)
	return ok
}

// IDs returns the published video ids in rank order.
func (c *Catalog) IDs() []uint {
	if c == nil {
		return nil
	}
	ids := make([]uint, 0, len(c.videos))
	for _, video := range c.videos {
		ids = append(ids, video.ID)
	}
	return ids
}

// CoveredBy reports whether every published video is in completed.
// An empty catalog is never covered: there is no path to finish.
func (c *Catalog) CoveredBy(completed models.CompletedVideos) bool {
	if c.Len() == 0 {
		return false
	}
	for _, video := range c.videos {
		if !completed.Contains(video.ID) {
			return false
		}
	}
	return true
}
