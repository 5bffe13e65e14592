package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUserIDShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := newUserID()
		assert.Len(t, id, idLength)
		for _, c := range id {
			assert.True(t, strings.ContainsRune(userIDAlphabet, c), "unexpected rune %q in user id %s", c, id)
		}
	}
}

func TestNewRoomIDShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := newRoomID()
		assert.Len(t, id, idLength)
		for _, c := range id {
			assert.True(t, strings.ContainsRune(roomIDAlphabet, c), "unexpected rune %q in room id %s", c, id)
		}
		assert.NotContains(t, id, "I")
		assert.NotContains(t, id, "O")
		assert.NotContains(t, id, "0")
	}
}
