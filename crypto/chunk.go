package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	KeyLen   = 32 // AES-256
	NonceLen = 12 // 96-bit GCM nonce
	TagLen   = 16
)

// ErrIntegrity is returned when a chunk's authentication tag does not verify.
// Callers must abort the whole request; corrupted plaintext is never exposed.
var ErrIntegrity = errors.New("chunk integrity check failed")

func GenerateKey() ([]byte, error) {
	key := make([]byte, KeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func GenerateBaseIV() ([]byte, error) {
	iv := make([]byte, NonceLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate base iv: %w", err)
	}
	return iv, nil
}

// DeriveNonce produces the nonce for one chunk: the object's base IV with its
// trailing 8 bytes XORed with the big-endian chunk index. The base IV is never
// used verbatim for more than one chunk; GCM nonce reuse under one key leaks
// keystream and breaks forgery resistance.
func DeriveNonce(baseIV []byte, index int) []byte {
	nonce := make([]byte, NonceLen)
	copy(nonce, baseIV)
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], uint64(index))
	for i := 0; i < 8; i++ {
		nonce[NonceLen-8+i] ^= ctr[i]
	}
	return nonce
}

// SealChunk encrypts one chunk and returns ciphertext and authentication tag
// separately. The same (key, nonce, plaintext) always yields the same output,
// which is what makes chunk retries byte-comparable.
func SealChunk(key, nonce, plaintext []byte) (ciphertext, tag []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	n := len(sealed) - TagLen
	return sealed[:n], sealed[n:], nil
}

// OpenChunk decrypts one chunk, verifying its tag. A tag mismatch is reported
// as ErrIntegrity.
func OpenChunk(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}
