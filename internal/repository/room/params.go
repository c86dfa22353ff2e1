package room

import "time"

type AddSongParams struct {
	SpaceId string
	Song    Song
	Limit   int
}

type RemoveSongParams struct {
	SpaceId string
	SongId  string
}

type VoteParams struct {
	SpaceId string
	SongId  string
	UserId  string
	Upvote  bool
	// Cooldown of zero exempts the voter from rate limiting.
	Cooldown time.Duration
	VotedAt  time.Time
}

type SetSpaceDetailsParams struct {
	SpaceId string
	Details SpaceDetails
}

type SetTimestampParams struct {
	SpaceId   string
	Timestamp Timestamp
	TTL       time.Duration
}
