package authprovider

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// KeyStrategy selects what a cache key is derived from.
type KeyStrategy string

const (
	// KeyStrategyCredentials digests identity and secret. A cached entry is
	// only served to a caller presenting the same password.
	KeyStrategyCredentials KeyStrategy = "credentials"

	// KeyStrategyIdentity digests the identity only. The first successful
	// password is trusted for the entry's lifetime, and any secret
	// presented for a cached identity is accepted. Weaker; kept for
	// deployments that relied on this behavior.
	KeyStrategyIdentity KeyStrategy = "identity"
)

// ParseKeyStrategy converts a configuration value to a KeyStrategy.
// The empty string selects KeyStrategyCredentials.
func ParseKeyStrategy(s string) (KeyStrategy, error) {
	switch KeyStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyStrategyCredentials:
		return KeyStrategyCredentials, nil
	case KeyStrategyIdentity:
		return KeyStrategyIdentity, nil
	default:
		return "", fmt.Errorf("unknown key strategy %q (want %q or %q)", s, KeyStrategyCredentials, KeyStrategyIdentity)
	}
}

// Key is a cache key: a SHA-256 digest. Comparable, so usable as a map key.
type Key [sha256.Size]byte

// DeriveKey computes the cache key for the given credentials.
//
// The identity is length-prefixed so that no two distinct (identity, secret)
// pairs share an encoding: ("a", "b/c") and ("a/b", "c") hash differently.
// A leading tag keeps the two strategies in separate key spaces.
func DeriveKey(strategy KeyStrategy, identity, secret string) Key {
	h := sha256.New()

	var prefix [9]byte
	if strategy == KeyStrategyIdentity {
		prefix[0] = 'i'
	} else {
		prefix[0] = 'c'
	}
	binary.BigEndian.PutUint64(prefix[1:], uint64(len(identity)))
	h.Write(prefix[:])
	h.Write([]byte(identity))
	if strategy != KeyStrategyIdentity {
		h.Write([]byte(secret))
	}

	var k Key
	h.Sum(k[:0])
	return k
}
