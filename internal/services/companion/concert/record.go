package concert

import "time"

// Record describes one scheduled or live event. Records are immutable once
// the catalog is built.
type Record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Artist      string     `json:"artist"`
	Description string     `json:"description"`
	Thumbnail   string     `json:"thumbnail"`
	StreamURL   string     `json:"streamUrl"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	IsLive      bool       `json:"isLive"`
}

// Status is the coarse schedule state used by filters and views.
func (r Record) Status(now time.Time) string {
	switch {
	case r.IsLive:
		return StatusLive
	case r.StartTime.After(now):
		return StatusUpcoming
	default:
		return StatusEnded
	}
}

// Schedule states.
const (
	StatusLive     = "live"
	StatusUpcoming = "upcoming"
	StatusEnded    = "ended"
)

// DefaultRecords returns the built-in event table with start times relative
// to now.
func DefaultRecords(now time.Time) []Record {
	return []Record{
		{
			ID:          "1",
			Title:       "The Eras Tour",
			Artist:      "Taylor Swift",
			Description: "Experience Taylor Swift's record-breaking Eras Tour live from Tokyo Dome.",
			Thumbnail:   "https://images.pexels.com/photos/1105666/pexels-photo-1105666.jpeg",
			StreamURL:   "https://example.com/stream/1",
			StartTime:   now.Add(time.Hour),
		},
		{
			ID:          "2",
			Title:       "Renaissance World Tour",
			Artist:      "Beyoncé",
			Description: "Join Beyoncé for her spectacular Renaissance World Tour, live from London Stadium.",
			Thumbnail:   "https://images.pexels.com/photos/1190297/pexels-photo-1190297.jpeg",
			StreamURL:   "https://example.com/stream/2",
			StartTime:   now.Add(-30 * time.Minute),
			IsLive:      true,
		},
		{
			ID:          "3",
			Title:       "Permission to Dance on Stage",
			Artist:      "BTS",
			Description: "BTS brings their energetic Permission to Dance on Stage tour to Los Angeles.",
			Thumbnail:   "https://images.pexels.com/photos/1763075/pexels-photo-1763075.jpeg",
			StreamURL:   "https://example.com/stream/3",
			StartTime:   now.Add(24 * time.Hour),
		},
		{
			ID:          "4",
			Title:       "After Hours Til Dawn Tour",
			Artist:      "The Weeknd",
			Description: "The Weeknd delivers his chart-topping hits in this spectacular stadium show.",
			Thumbnail:   "https://images.pexels.com/photos/1587927/pexels-photo-1587927.jpeg",
			StreamURL:   "https://example.com/stream/4",
			StartTime:   now.Add(2 * time.Hour),
		},
	}
}
