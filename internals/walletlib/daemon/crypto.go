package daemon

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// DefaultScryptN is the scrypt cost used when the config leaves it unset.
const DefaultScryptN = 1 << 15

type sealed struct {
	salt  []byte
	nonce [24]byte
	box   []byte
}

func deriveKey(password string, salt []byte, n int) (*[32]byte, error) {
	raw, err := scrypt.Key([]byte(password), salt, n, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

func seal(seed, password string, n int) (sealed, error) {
	out := sealed{salt: make([]byte, 16)}
	if _, err := io.ReadFull(rand.Reader, out.salt); err != nil {
		return sealed{}, err
	}
	if _, err := io.ReadFull(rand.Reader, out.nonce[:]); err != nil {
		return sealed{}, err
	}
	key, err := deriveKey(password, out.salt, n)
	if err != nil {
		return sealed{}, err
	}
	out.box = secretbox.Seal(nil, []byte(seed), &out.nonce, key)
	return out, nil
}

// open returns false when password does not unlock s.
func (s sealed) open(password string, n int) (string, bool, error) {
	key, err := deriveKey(password, s.salt, n)
	if err != nil {
		return "", false, err
	}
	plain, ok := secretbox.Open(nil, s.box, &s.nonce, key)
	return string(plain), ok, nil
}
