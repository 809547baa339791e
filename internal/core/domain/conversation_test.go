package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestConversation_Append tests Append does not mutate the receiver
func TestConversation_Append(t *testing.T) {
	base := Conversation{Turns: []Turn{{Role: RoleUser, Content: "first"}}}

	next := base.Append(Turn{Role: RoleAssistant, Content: "reply"})

	assert.Len(t, base.Turns, 1)
	assert.Len(t, next.Turns, 2)
	assert.Equal(t, RoleAssistant, next.Turns[1].Role)
}

// TestConversation_Recent tests the latest turns are returned oldest first
func TestConversation_Recent(t *testing.T) {
	c := Conversation{}
	for _, s := range []string{"a", "b", "c", "d"} {
		c = c.Append(Turn{Role: RoleUser, Content: s})
	}

	recent := c.Recent(2)
	assert.Equal(t, "c", recent[0].Content)
	assert.Equal(t, "d", recent[1].Content)
	assert.Len(t, c.Recent(10), 4)
	assert.Nil(t, c.Recent(0))
}

// TestAnswer_Failed tests error answers are distinguishable
func TestAnswer_Failed(t *testing.T) {
	assert.False(t, Answer{Text: "ok"}.Failed())
	assert.True(t, Answer{Text: "Error generating response: boom", Err: errors.New("boom")}.Failed())
}
