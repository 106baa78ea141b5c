package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const confirmationPrefix = "CCS-"

// ConfirmationCode derives the customer-facing confirmation code for a
// checkout session. The code is stable for a given session and salt so it can
// be recomputed on demand instead of being stored.
func ConfirmationCode(sessionID, salt string) string {
	sum := sha256.Sum256([]byte(sessionID + salt))
	return confirmationPrefix + strings.ToUpper(hex.EncodeToString(sum[:])[:8])
}
