package room

// Timestamp is the last playback position broadcast for a space.
type Timestamp struct {
	SongID        string  `json:"songId"`
	CurrentTime   float64 `json:"currentTime"`
	IsPlaying     bool    `json:"isPlaying"`
	Timestamp     int64   `json:"timestamp"`
	TotalDuration int     `json:"totalDuration"`
}
