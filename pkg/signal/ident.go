package signal

import (
	"crypto/rand"
	"math/big"
)

// User ids are short numeric codes, room ids come from a restricted
// alphabet with ambiguous characters (I, O, 0) excluded so they can be
// read over the phone.
const (
	userIDAlphabet = "0123456789"
	roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789"
	idLength       = 5
)

func randomCode(alphabet string, length int) string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b)
}

// newUserID returns a short numeric identifier. Ids are random with no
// uniqueness guarantee against currently active users; with a 5 digit
// space collisions become likely around a few hundred concurrent users.
func newUserID() string {
	return randomCode(userIDAlphabet, idLength)
}

// newRoomID returns a short room code. The registry re-rolls on
// collision with a live room, the generator itself is a pure function.
func newRoomID() string {
	return randomCode(roomIDAlphabet, idLength)
}
