// Package tenancy maps client keys to vector collection names.
//
// The mapping is a namespacing convenience, not an isolation boundary:
// clients sharing a key (for example behind one NAT address) share a
// collection.
package tenancy

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// Prefix starts every collection name.
const Prefix = "client_"

// Namer names accepted by New.
const (
	NameSanitized = "sanitized"
	NameHashed    = "hashed"
)

// ErrEmptyKey is returned for a blank client key.
var ErrEmptyKey = errors.New("client key is empty")

// Namer derives a collection name from a client key.
type Namer interface {
	Collection(clientKey string) (string, error)
}

// Sanitized keeps the key readable: lowercase, with every rune outside
// [a-z0-9_-] replaced by '_'. "192.168.1.5" becomes "client_192_168_1_5".
type Sanitized struct{}

// Collection implements Namer.
func (Sanitized) Collection(clientKey string) (string, error) {
	key := strings.TrimSpace(clientKey)
	if key == "" {
		return "", ErrEmptyKey
	}
	var b strings.Builder
	b.Grow(len(Prefix) + len(key))
	b.WriteString(Prefix)
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String(), nil
}

// Hashed names collections by a 64-bit BLAKE2b digest of the key, so
// distinct keys that sanitize alike ("a.b" and "a:b") stay apart.
type Hashed struct{}

// Collection implements Namer.
func (Hashed) Collection(clientKey string) (string, error) {
	key := strings.TrimSpace(clientKey)
	if key == "" {
		return "", ErrEmptyKey
	}
	h, err := blake2b.New(8, nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(key))
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// New returns the namer called name. An empty name means sanitized.
func New(name string) (Namer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameSanitized:
		return Sanitized{}, nil
	case NameHashed:
		return Hashed{}, nil
	default:
		return nil, fmt.Errorf("unknown tenancy namer %q", name)
	}
}
