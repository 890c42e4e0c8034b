package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// digest hashes length-prefixed parts so ("ab", "c") and ("a", "bc") differ.
func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// LikeKey identifies one like of viewer for target in a batch week.
func LikeKey(userID, batchWeek, targetUserID string) string {
	return "like:" + digest(userID, batchWeek, targetUserID)
}

// FormKey identifies one submission of a form token by a user.
func FormKey(userID, route, token string) string {
	return "form:" + digest(userID, route, token)
}
