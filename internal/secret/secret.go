// Package secret generates the one-shot authentication token shared
// between the broker and the JavaScript payload it injects into Steam.
package secret

import (
	"crypto/rand"
	"fmt"
)

const (
	length   = 16
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// maxMultiple is the largest multiple of len(alphabet) that still fits
// in a byte; bytes at or above it are rejected and redrawn so every kept
// byte maps onto the alphabet with exactly equal probability instead
// of the slight low-end bias a plain modulo would introduce.
const maxMultiple = 256 - 256%len(alphabet)

// Generate returns a uniformly random 16-character alphanumeric string
// drawn from a cryptographically strong source. It returns no error: if
// the system entropy source is unavailable, it panics, since that is a
// process-fatal condition.
func Generate() string {
	out := make([]byte, length)
	buf := make([]byte, 1)

	for i := 0; i < length; {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("secret: reading random bytes: %v", err))
		}
		if int(buf[0]) >= maxMultiple {
			continue
		}
		out[i] = alphabet[int(buf[0])%len(alphabet)]
		i++
	}
	return string(out)
}
