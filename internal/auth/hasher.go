// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters. Three passes over 64 MB keep a single hash above
// 100ms on commodity hardware.
const (
	argon2Time    = 3         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// Prefixes written by bcrypt implementations, including the legacy service.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// legacyBcryptCost is the cost the legacy service hashed with.
const legacyBcryptCost = 12

// bcryptPadPassword is compared against the padding hash; the result is
// discarded.
const bcryptPadPassword = "tollgate-bcrypt-padding"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted slow hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be upgraded to argon2id.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. It also verifies
// bcrypt hashes so accounts created by the legacy service can still log in.
//
// Every Verify performs one argon2id derivation and one bcrypt comparison at
// the legacy cost, whichever kind of hash it is given, so argon2id accounts,
// legacy accounts and the unknown-email dummy all cost the same.
type Argon2idHasher struct {
	padOnce sync.Once
	padHash []byte

	// Primitives, replaceable in tests.
	deriveKey     func(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte
	compareBcrypt func(hash, password []byte) error
}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC string: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks the password against an argon2id or bcrypt hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		ok, err := h.verifyBcrypt(password, encodedHash)
		h.padArgon2(password)
		return ok, err
	}

	p, err := parseArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := h.argon2Key([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	h.padBcrypt(password)
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

func (h *Argon2idHasher) argon2Key(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
	if h.deriveKey != nil {
		return h.deriveKey(password, salt, time, memory, threads, keyLen)
	}
	return argon2.IDKey(password, salt, time, memory, threads, keyLen)
}

func (h *Argon2idHasher) bcryptCompare(hash, password []byte) error {
	if h.compareBcrypt != nil {
		return h.compareBcrypt(hash, password)
	}
	return bcrypt.CompareHashAndPassword(hash, password)
}

// padArgon2 spends one argon2id derivation at the current parameters.
func (h *Argon2idHasher) padArgon2(password string) {
	salt := make([]byte, argon2SaltLen)
	h.argon2Key([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// padBcrypt spends one bcrypt comparison at the legacy cost.
func (h *Argon2idHasher) padBcrypt(password string) {
	h.padOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(bcryptPadPassword), legacyBcryptCost)
		if err == nil {
			h.padHash = hash
		}
	})
	if h.padHash == nil {
		return
	}
	_ = h.bcryptCompare(h.padHash, []byte(password)) //nolint:errcheck // timing only
}

// NeedsUpgrade reports whether hash was produced by bcrypt or by argon2id
// with parameters other than the current ones.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	p, err := parseArgon2Hash(hash)
	if err != nil {
		return true
	}
	return p.memory != argon2Memory || p.time != argon2Time || p.threads != argon2Threads
}

// argon2Params is a decoded PHC string.
type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2Hash(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2Params{
		memory:  memory,
		time:    iterations,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}

func isBcrypt(hash string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(hash, p) {
			return true
		}
	}
	return false
}

func (h *Argon2idHasher) verifyBcrypt(password, hash string) (bool, error) {
	err := h.bcryptCompare([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}
