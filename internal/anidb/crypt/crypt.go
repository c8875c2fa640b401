// Package crypt implements the text transforms applied to AniDB UDP
// packets: none at all before ENCRYPT negotiation succeeds, and
// AES-128 in ECB mode with PKCS7 padding afterward.
package crypt

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/md5"
	"fmt"
)

// Cipher is the per-session wire transform. A session starts with
// Plain and swaps to an AES128ECB instance once ENCRYPT succeeds.
type Cipher interface {
	Encrypt(message string) ([]byte, error)
	Decrypt(message []byte) (string, error)
}

// Plain passes packets through unchanged, UTF-8 encoded.
type Plain struct{}

func (Plain) Encrypt(message string) ([]byte, error) { return []byte(message), nil }

func (Plain) Decrypt(message []byte) (string, error) { return string(message), nil }

// DeriveKey computes the AES-128 session key from the client's API
// key and the salt the server returned from ENCRYPT: MD5(apiKey+salt).
func DeriveKey(apiKey, salt string) [16]byte {
	return md5.Sum([]byte(apiKey + salt))
}

// AES128ECB implements Cipher over AES-128 in ECB mode, the transform
// AniDB's UDP API negotiates via ENCRYPT/AUTH.
type AES128ECB struct {
	block gocipher.Block
}

// NewAES128ECB builds an AES128ECB cipher from a 16-byte key, as
// produced by DeriveKey.
func NewAES128ECB(key [16]byte) (*AES128ECB, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypt: aes.NewCipher: %w", err)
	}
	return &AES128ECB{block: block}, nil
}

// Encrypt UTF-8 encodes, PKCS7-pads to the AES block size, and
// encrypts message under ECB mode.
func (c *AES128ECB) Encrypt(message string) ([]byte, error) {
	plaintext := pad(aes.BlockSize, []byte(message))
	out := make([]byte, len(plaintext))
	NewECBEncrypter(c.block).CryptBlocks(out, plaintext)
	return out, nil
}

// Decrypt decrypts message under ECB mode and strips PKCS7 padding.
// A message starting with "598 " means the server never completed the
// encryption handshake (or the client skipped it); that is reported
// verbatim rather than attempted as ciphertext, since decrypting it
// would just produce garbage.
func (c *AES128ECB) Decrypt(message []byte) (string, error) {
	if len(message) >= 4 && string(message[:4]) == "598 " {
		return "", fmt.Errorf("crypt: invalid session or encryption handshake skipped: %s", string(message))
	}
	if len(message)%aes.BlockSize != 0 {
		return "", fmt.Errorf("crypt: ciphertext length %d not a multiple of block size %d", len(message), aes.BlockSize)
	}
	plain := make([]byte, len(message))
	NewECBDecrypter(c.block).CryptBlocks(plain, message)
	unpadded, err := unpad(aes.BlockSize, plain)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}
