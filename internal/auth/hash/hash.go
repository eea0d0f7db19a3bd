// Package hash derives and verifies Argon2id password hashes in PHC
// string format.
package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // KiB
	argonThreads uint8  = 1
	saltLen             = 16
	keyLen       uint32 = 32
)

var errMalformed = errors.New("malformed password hash")

// Password derives an Argon2id hash over plain with a fresh random salt
// and returns it as $argon2id$v=19$m=...,t=...,p=...$<salt>$<sum>.
func Password(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(plain), salt, argonTime, argonMemory, argonThreads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify re-derives the hash with the parameters encoded in phc and
// compares in constant time relative to the stored digest.
func Verify(phc, plain string) bool {
	memory, time, threads, salt, sum, err := parse(phc)
	if err != nil {
		return false
	}
	calc := argon2.IDKey([]byte(plain), salt, time, memory, threads, uint32(len(sum)))
	return subtle.ConstantTimeCompare(calc, sum) == 1
}

func parse(phc string) (memory, time uint32, threads uint8, salt, sum []byte, err error) {
	parts := strings.Split(phc, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, sum
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, errMalformed
	}
	var version int
	if _, serr := fmt.Sscanf(parts[2], "v=%d", &version); serr != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, errMalformed
	}
	if _, serr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); serr != nil {
		return 0, 0, 0, nil, nil, errMalformed
	}
	if memory == 0 || time == 0 || threads == 0 {
		return 0, 0, 0, nil, nil, errMalformed
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return 0, 0, 0, nil, nil, errMalformed
	}
	sum, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return 0, 0, 0, nil, nil, errMalformed
	}
	return memory, time, threads, salt, sum, nil
}
