// Package credcrypto encrypts control credentials at rest. Each
// (person, community) pair gets its own subkey derived from the master key,
// so one compromised row does not expose the rest of the table.
package credcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyLen = 32

// Argon2id parameters for deriving a master key from a passphrase.
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
)

// passphraseSalt is fixed so the same passphrase derives the same master key
// across restarts. Changing it orphans all existing ciphertexts.
var passphraseSalt = []byte("pulsegate_master_v1")

// Keeper seals and opens credentials with per-(person, community) subkeys.
type Keeper struct {
	master []byte
}

// New builds a Keeper from a configured master key: either a base64-encoded
// 32-byte key (as produced by GenerateKey) or an arbitrary passphrase, which
// is stretched with Argon2id.
func New(masterKey string) (*Keeper, error) {
	if masterKey == "" {
		return nil, errors.New("credcrypto: empty master key")
	}
	if raw, err := base64.URLEncoding.DecodeString(masterKey); err == nil && len(raw) == keyLen {
		return &Keeper{master: raw}, nil
	}
	derived := argon2.IDKey([]byte(masterKey), passphraseSalt, argonTime, argonMemory, argonThreads, keyLen)
	return &Keeper{master: derived}, nil
}

// GenerateKey returns a fresh base64-encoded master key.
func GenerateKey() (string, error) {
	raw := make([]byte, keyLen)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// subkey derives the per-row key via HKDF-SHA256 with the identity pair as info.
func (k *Keeper) subkey(personID, communityID int64) ([]byte, error) {
	info := fmt.Appendf(nil, "person:%d:community:%d", personID, communityID)
	r := hkdf.New(sha256.New, k.master, nil, info)
	key := make([]byte, keyLen)
	if _, err := r.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts a credential for one (person, community) row. Output layout
// is nonce || ciphertext.
func (k *Keeper) Seal(credential string, personID, communityID int64) ([]byte, error) {
	key, err := k.subkey(personID, communityID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(credential)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(credential), nil)...)
	return out, nil
}

// Open decrypts a credential previously sealed for the same identity pair.
func (k *Keeper) Open(sealed []byte, personID, communityID int64) (string, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return "", errors.New("credcrypto: sealed blob too short")
	}
	key, err := k.subkey(personID, communityID)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ct := sealed[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
