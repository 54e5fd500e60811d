package audit

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// ContentDigest returns a short BLAKE2b digest of record content, used for
// cheap equality checks and as a tamper-evidence fingerprint in reports.
func ContentDigest(content []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
