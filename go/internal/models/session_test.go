package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDestinationValid(t *testing.T) {
	assert.True(t, Destination{Kind: DestinationChannel, ID: "general"}.Valid())
	assert.True(t, Destination{Kind: DestinationDirect, ID: "alice"}.Valid())
	assert.False(t, Destination{Kind: DestinationChannel}.Valid())
	assert.False(t, Destination{ID: "general"}.Valid())
	assert.False(t, Destination{Kind: "GROUP", ID: "general"}.Valid())
}

func TestParticipantCount(t *testing.T) {
	s := &Session{Answered: map[string]time.Time{}}
	assert.Equal(t, 0, s.ParticipantCount())
	s.Answered["alice"] = time.Now()
	s.Answered["bob"] = time.Now()
	assert.Equal(t, 2, s.ParticipantCount())
}
