package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/geocoder89/lifeplus/internal/apperr"
)

var (
	ErrMalformedToken   = apperr.New(apperr.KindValidation, "malformed_token", "encrypted value is malformed")
	ErrDecryptionFailed = apperr.New(apperr.KindInternal, "decryption_failed", "encrypted value could not be decrypted")
	ErrEmptySecret      = errors.New("field cipher: secret must not be empty")
)

const tokenDelimiter = ":"

// FieldCipher protects single text fields at rest with AES-256-CBC.
//
// Tokens are hex(iv) + ":" + hex(ciphertext) with a fresh random IV per call.
// The construction carries no MAC, so a tampered token may decrypt to garbage
// instead of failing; the format is kept stable for stored data.
type FieldCipher struct {
	block cipher.Block
	rand  io.Reader
}

// NewFieldCipher derives the AES-256 key as SHA-256(secret).
func NewFieldCipher(secret string) (*FieldCipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("field cipher: create block: %w", err)
	}

	return &FieldCipher{block: block, rand: rand.Reader}, nil
}

func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("field cipher: generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + tokenDelimiter + hex.EncodeToString(out), nil
}

func (c *FieldCipher) Decrypt(token string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(token, tokenDelimiter)
	if !ok {
		return "", ErrMalformedToken
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrMalformedToken
	}

	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrMalformedToken
	}

	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plain), nil
}

// EncryptOptional leaves a nil value nil.
func (c *FieldCipher) EncryptOptional(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	tok, err := c.Encrypt(*v)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (c *FieldCipher) DecryptOptional(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	plain, err := c.Decrypt(*v)
	if err != nil {
		return nil, err
	}
	return &plain, nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("bad block length")
	}

	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, errors.New("bad padding")
	}

	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("bad padding")
		}
	}

	return b[:len(b)-n], nil
}
