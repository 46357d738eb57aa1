// Package crypto seals and opens the vault's at-rest byte payload using a
// fixed PBKDF2-HMAC-SHA-256 + AES-256-GCM suite. The suite is intentionally
// not configurable — see spec's Non-goals on cryptographic agility.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/personafy/personafy-core/internal/vaulttypes"
)

const (
	pbkdf2Iterations = 600_000
	saltLen          = 16
	keyLen           = 32
	ivLen            = 12
	tagLen           = 16
)

// KeyProvider wraps a derived key for an external key-management system
// instead of the local passphrase. The default suite never requires one;
// this seam exists only so a host can plug in key wrapping without this
// package growing cloud-SDK dependencies of its own. Seal and Open do not
// take a KeyProvider; they always derive the key from the passphrase.
type KeyProvider interface {
	WrapKey(key []byte) ([]byte, error)
	UnwrapKey(wrapped []byte) ([]byte, error)
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLen, sha256.New)
}

// Seal encrypts plaintext with a key derived from passphrase and returns the
// base64-encoded salt‖iv‖tag‖ciphertext envelope.
func Seal(plaintext []byte, passphrase string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: reading salt: %v", vaulttypes.ErrIOFailure, err)
	}
	key := deriveKey(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: building cipher: %v", vaulttypes.ErrIOFailure, err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagLen)
	if err != nil {
		return "", fmt.Errorf("%w: building gcm: %v", vaulttypes.ErrIOFailure, err)
	}

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%w: reading iv: %v", vaulttypes.ErrIOFailure, err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	// gcm.Seal appends the tag to the end of ciphertext; split it out so the
	// on-disk layout matches salt‖iv‖tag‖ciphertext exactly.
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	buf := make([]byte, 0, saltLen+ivLen+tagLen+len(ciphertext))
	buf = append(buf, salt...)
	buf = append(buf, iv...)
	buf = append(buf, tag...)
	buf = append(buf, ciphertext...)

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Open decrypts an envelope produced by Seal. On AEAD tag mismatch it
// returns ErrBadPassphrase without leaking any plaintext.
func Open(envelope string, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding envelope: %v", vaulttypes.ErrCorruptFile, err)
	}
	if len(raw) < saltLen+ivLen+tagLen {
		return nil, fmt.Errorf("%w: envelope too short", vaulttypes.ErrCorruptFile)
	}

	salt := raw[:saltLen]
	iv := raw[saltLen : saltLen+ivLen]
	tag := raw[saltLen+ivLen : saltLen+ivLen+tagLen]
	ciphertext := raw[saltLen+ivLen+tagLen:]

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: building cipher: %v", vaulttypes.ErrCorruptFile, err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, tagLen)
	if err != nil {
		return nil, fmt.Errorf("%w: building gcm: %v", vaulttypes.ErrCorruptFile, err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, vaulttypes.ErrBadPassphrase
	}
	return plaintext, nil
}
