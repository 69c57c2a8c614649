package builtin

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	saltSize        = 16
	nonceSize       = 12
	keySize         = 32
	encryptedPrefix = "enc:v1:"
)

// Crypto returns hashing and symmetric encryption helpers.
func Crypto() map[string]any {
	return map[string]any{
		"sha256": func(text string) string {
			sum := sha256.Sum256([]byte(text))
			return hex.EncodeToString(sum[:])
		},
		"sha512": func(text string) string {
			sum := sha512.Sum512([]byte(text))
			return hex.EncodeToString(sum[:])
		},
		"hmac": func(key, text string) string {
			mac := hmac.New(sha256.New, []byte(key))
			mac.Write([]byte(text))
			return hex.EncodeToString(mac.Sum(nil))
		},
		"hashPassword":   hashPassword,
		"verifyPassword": verifyPassword,
		"encrypt":        encrypt,
		"decrypt":        decrypt,
		"uuid": func() string {
			return uuid.NewString()
		},
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, keySize)
}

// encrypt seals plaintext with AES-256-GCM under an argon2id key derived from
// password, returning "enc:v1:<base64(salt || nonce || ciphertext)>".
func encrypt(plaintext, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	payload := make([]byte, 0, saltSize+nonceSize+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return encryptedPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

func decrypt(token, password string) (string, error) {
	encoded, ok := strings.CutPrefix(token, encryptedPrefix)
	if !ok {
		return "", fmt.Errorf("value is not an encrypted token")
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}
	if len(payload) < saltSize+nonceSize {
		return "", fmt.Errorf("token too short")
	}

	salt := payload[:saltSize]
	nonce := payload[saltSize : saltSize+nonceSize]
	sealed := payload[saltSize+nonceSize:]

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: wrong password or corrupted token")
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
