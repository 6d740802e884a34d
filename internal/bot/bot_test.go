package bot

import (
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
)

func TestIsPrivileged(t *testing.T) {
	msg := func(badges map[string]int) twitch.PrivateMessage {
		return twitch.PrivateMessage{User: twitch.User{Badges: badges}}
	}

	assert.True(t, isPrivileged(msg(map[string]int{"moderator": 1})))
	assert.True(t, isPrivileged(msg(map[string]int{"broadcaster": 1})))
	assert.False(t, isPrivileged(msg(map[string]int{"subscriber": 12})))
	assert.False(t, isPrivileged(msg(nil)))
}
