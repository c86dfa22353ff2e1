package room

import "github.com/sharetube/syncspace/internal/repository/room"

const (
	EventRoomInfo          = "room-info"
	EventUserUpdate        = "user-update"
	EventCurrentQueue      = "current-queue"
	EventQueueUpdate       = "queue-update"
	EventSongAdded         = "song-added"
	EventCurrentSong       = "current-song-update"
	EventTimestampSync     = "timestamp-sync"
	EventPlay              = "play"
	EventPause             = "pause"
	EventSeek              = "seek"
	EventQueueEmpty        = "queue-empty"
	EventSpaceImageUpdate  = "space-image-update"
	EventError             = "error"
	EventBatchAddCompleted = "batch-add-result"
)

// Event is the outbound envelope written to sockets.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type User struct {
	Id        string `json:"userId"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	ImageURL  string `json:"imageUrl,omitempty"`
	IsCreator bool   `json:"isCreator"`
}

type RoomInfo struct {
	SpaceId   string `json:"spaceId"`
	Name      string `json:"name"`
	CreatorId string `json:"creatorId"`
	IsCreator bool   `json:"isCreator"`
	Users     []User `json:"users"`
	State     string `json:"state"`
}

type UserUpdate struct {
	Users   []User `json:"users"`
	Joined  string `json:"joined,omitempty"`
	Left    string `json:"left,omitempty"`
	Creator string `json:"creatorId"`
}

type Queue struct {
	Songs []room.QueueEntry `json:"songs"`
}

type SongAdded struct {
	Song    room.Song `json:"song"`
	AddedBy string    `json:"addedBy"`
}

type CurrentSong struct {
	Song        *room.Song `json:"song"`
	State       string     `json:"state"`
	CurrentTime float64    `json:"currentTime"`
}

type TimestampSync struct {
	SongId        string  `json:"songId"`
	CurrentTime   float64 `json:"currentTime"`
	IsPlaying     bool    `json:"isPlaying"`
	Timestamp     int64   `json:"timestamp"`
	TotalDuration int     `json:"totalDuration"`
	IsInitialSync bool    `json:"isInitialSync"`
}

type PlaybackChange struct {
	SongId      string  `json:"songId"`
	CurrentTime float64 `json:"currentTime"`
	ChangedBy   string  `json:"changedBy"`
	// ForceSync tells clients to jump to CurrentTime regardless of drift.
	ForceSync bool `json:"forceSync"`
}

type SpaceImage struct {
	SmallImg string `json:"smallImg"`
	BigImg   string `json:"bigImg"`
}

type SkippedItem struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type BatchAddResult struct {
	Added   []room.Song   `json:"added"`
	Skipped []SkippedItem `json:"skipped"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
