package room

type Song struct {
	ID string `redis:"id" json:"id"`
	// ExtractedID is the id of the track in its own catalog.
	ExtractedID string `redis:"extracted_id" json:"extractedId"`
	Title       string `redis:"title" json:"title"`
	Artist      string `redis:"artist" json:"artist"`
	Album       string `redis:"album" json:"album,omitempty"`
	URL         string `redis:"url" json:"url"`
	SmallImg    string `redis:"small_img" json:"smallImg"`
	BigImg      string `redis:"big_img" json:"bigImg"`
	Duration    int    `redis:"duration" json:"duration"`
	Source      string `redis:"source" json:"source"`
	AddedBy     string `redis:"added_by" json:"addedBy"`
	// AddedAt is unix milliseconds and breaks vote ties.
	AddedAt int64 `redis:"added_at" json:"addedAt"`
}

type QueueEntry struct {
	Song
	Votes int64 `json:"votes"`
}

type VoteOutcome string

const (
	VoteAdded   VoteOutcome = "added"
	VoteMoved   VoteOutcome = "moved"
	VoteRemoved VoteOutcome = "removed"
	VoteNoop    VoteOutcome = "noop"
)
