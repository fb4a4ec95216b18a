// Package encryption protects stored service credentials with
// AES-256-GCM. Ciphertexts and keys travel base64-encoded so they can live
// in the settings table and the key file.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const keySize = 32

// Encryptor seals and opens credential strings with a fixed key.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from key and returns the encoded key
// alongside it. An empty key means generate a fresh random one; the caller
// is responsible for persisting what comes back.
func NewEncryptor(key string) (*Encryptor, string, error) {
	keyBytes, err := resolveKey(key)
	if err != nil {
		return nil, "", err
	}
	if key == "" {
		key = base64.StdEncoding.EncodeToString(keyBytes)
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, "", fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", fmt.Errorf("creating GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, key, nil
}

// resolveKey turns the configured key into raw bytes: empty generates,
// base64 decodes, and a raw 32-byte string passes through.
func resolveKey(key string) ([]byte, error) {
	if key == "" {
		keyBytes := make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("generating encryption key: %w", err)
		}
		return keyBytes, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		if len(key) == keySize {
			return []byte(key), nil
		}
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(decoded) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(decoded))
	}
	return decoded, nil
}

// Encrypt encrypts plaintext and returns a base64-encoded ciphertext with
// the nonce prepended.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded ciphertext and returns the plaintext.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}

	return string(plaintext), nil
}
