package password

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
)

const legacyPrefix = "legacy:"

// legacyHash reproduce el esquema SHA1 histórico bit a bit:
// hex(SHA1("Do androids dream of " + s + "?"))[0:40].
func legacyHash(s string) string {
	sum := sha1.Sum([]byte("Do androids dream of " + s + "?"))
	return hex.EncodeToString(sum[:])[:40]
}

// legacyMatch checks a candidate against a stored legacy hash (the part after
// the "legacy:" prefix). The stored value is the nested hash of a fixed
// constant concatenated with the candidate.
func legacyMatch(stored, candidate string) bool {
	derived := legacyHash(legacyHash("(H3aP") + candidate)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(derived)) == 1
}
