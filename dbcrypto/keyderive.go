// Package dbcrypto derives a page-encryption key from a user password and
// verifies/creates the key-tag sidecar that detects a password mismatch on
// reopen. It also provides Seal/Open for the optional AES-256-GCM payload
// encryption, which is orthogonal to page framing (see page package).
//
// golang.org/x/crypto/pbkdf2 is already a transitive dependency of the
// teacher's stack (pulled in via lestrrat-go/jwx); this package promotes
// it to a direct, exercised one, since the teacher has no password-based
// key derivation of its own to imitate.
package dbcrypto

import (
	"crypto/sha256"

	"github.com/Mikedan37/BlazeDB"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinPasswordLength is the minimum accepted password length; shorter
	// passwords fail Open with PasswordTooWeak.
	MinPasswordLength = 8

	// saltLiteral is the process-wide salt specified for key derivation.
	saltLiteral = "AshPileSalt"

	iterations = 10000
	keyLenBits = 256
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over password with the fixed salt,
// producing a 256-bit key. Returns PasswordTooWeak if password is shorter
// than MinPasswordLength.
func DeriveKey(password string) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, blazedb.NewError(blazedb.PasswordTooWeak, nil, len(password))
	}
	key := pbkdf2.Key([]byte(password), []byte(saltLiteral), iterations, keyLenBits/8, sha256.New)
	return key, nil
}
