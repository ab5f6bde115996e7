// FILE: src/internal/auth/token.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"logrelay/src/internal/core"

	"golang.org/x/crypto/argon2"
)

// argonHash is a parsed argon2id encoded hash in the standard
// $argon2id$v=19$m=...,t=...,p=...$salt$digest form
type argonHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	digest  []byte
}

func parseArgonHash(encoded string) (*argonHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("malformed version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	h := &argonHash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, fmt.Errorf("malformed parameters: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("malformed salt: %w", err)
	}
	if h.digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("malformed digest: %w", err)
	}

	return h, nil
}

func (h *argonHash) derive(token string) []byte {
	return argon2.IDKey([]byte(token), h.salt, h.time, h.memory, h.threads, uint32(len(h.digest)))
}

// GenerateToken creates a random access token and its argon2id encoded hash
// for the config file
func GenerateToken() (token string, encodedHash string, err error) {
	raw := make([]byte, core.AccessTokenLength)
	if _, err = rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(raw)

	encodedHash, err = HashToken(token)
	return token, encodedHash, err
}

// HashToken produces the argon2id encoded hash of a caller-chosen token
func HashToken(token string) (string, error) {
	salt := make([]byte, core.Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := argon2.IDKey([]byte(token), salt,
		core.Argon2Time, core.Argon2Memory, core.Argon2Threads, core.Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, core.Argon2Memory, core.Argon2Time, core.Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest)), nil
}
