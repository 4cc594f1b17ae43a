package dbcrypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"os"

	"github.com/Mikedan37/BlazeDB"
)

// keyTagSalt is the fixed payload MAC'd into the key-tag sidecar. Its
// value doesn't need to be secret; only whether the MAC verifies under the
// caller's derived key matters.
var keyTagSalt = []byte("blazedb-key-tag")

// EnsureKeyTag creates the key-tag sidecar at path if absent (first
// opener), or verifies it against key if present (subsequent openers).
// Returns KeyMismatch if the sidecar exists but was written under a
// different key.
func EnsureKeyTag(path string, key []byte) error {
	existing, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return blazedb.NewError(blazedb.Unknown, err, path)
		}
		tag := computeTag(key)
		if err := os.WriteFile(path, tag, 0644); err != nil {
			return blazedb.NewError(blazedb.Unknown, err, path)
		}
		return nil
	}
	want := computeTag(key)
	if !bytes.Equal(existing, want) {
		return blazedb.NewError(blazedb.KeyMismatch, nil, path)
	}
	return nil
}

func computeTag(key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(keyTagSalt)
	return mac.Sum(nil)
}
