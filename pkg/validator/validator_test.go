package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voteInput struct {
	SongId   string `json:"songId" validate:"required"`
	VoteType string `json:"voteType" validate:"required,oneof=upvote downvote"`
	Position int    `json:"position" validate:"min=0,max=10"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	_, ok := v.Validate(voteInput{SongId: "a", VoteType: "upvote"})
	assert.True(t, ok)

	errs, ok := v.Validate(voteInput{VoteType: "sideways", Position: 11})
	require.False(t, ok)
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "REQUIRED", byField["songId"].Code)
	assert.Equal(t, "ONEOF", byField["voteType"].Code)
	assert.Equal(t, "position must not exceed 10", byField["position"].Message)
}
