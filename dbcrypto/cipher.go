package dbcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/Mikedan37/BlazeDB"
)

// Seal optionally AES-256-GCM-encrypts plaintext under key, prefixing the
// output with a random nonce. This happens between document serialization
// and page framing (see page.frame): the page header itself is never
// encrypted, so Store.Stats' orphan check keeps working regardless of
// whether encryption is enabled.
func Seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	ns := gcm.NonceSize()
	if len(sealed) < ns {
		return nil, blazedb.NewError(blazedb.InvalidHeader, nil, len(sealed))
	}
	nonce, ct := sealed[:ns], sealed[ns:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, nil)
	}
	return plaintext, nil
}
