package crypto

import (
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

// sealedPrefix marks stored values produced by TextCipher.Seal.
const sealedPrefix = "enc:v1:"

var ErrEmptyPassphrase = errors.New("encryption passphrase is empty")

// Argon2id parameters for passphrase-derived keys.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// TextCipher encrypts message text bound to its session id, so a sealed
// value copied to another session fails to open.
type TextCipher struct {
	key []byte
}

// DeriveKey stretches passphrase into an AES-256 key with Argon2id.
func DeriveKey(passphrase, salt string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return argon2.IDKey([]byte(passphrase), []byte(salt), argonTime, argonMemory, argonThreads, KeySize), nil
}

// NewTextCipher derives the key from passphrase and salt.
func NewTextCipher(passphrase, salt string) (*TextCipher, error) {
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return &TextCipher{key: key}, nil
}

// NewTextCipherWithKey uses a raw 32-byte key.
func NewTextCipherWithKey(key []byte) (*TextCipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return &TextCipher{key: append([]byte(nil), key...)}, nil
}

func (c *TextCipher) Seal(sessionID, text string) (string, error) {
	sealed, err := Encrypt(text, c.key, []byte(sessionID))
	if err != nil {
		return "", err
	}
	return sealedPrefix + sealed, nil
}

// Open decrypts a sealed value. Values stored before encryption was
// enabled carry no prefix and are returned unchanged.
func (c *TextCipher) Open(sessionID, stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	return Decrypt(strings.TrimPrefix(stored, sealedPrefix), c.key, []byte(sessionID))
}
