// FILE: src/internal/core/const.go
package core

// Argon2id parameters for access token hashing, shared by the
// authenticator and the token-gen tool
const (
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2SaltLen = 16
	Argon2KeyLen  = 32
)

// AccessTokenLength is the byte length of generated access tokens
const AccessTokenLength = 32
