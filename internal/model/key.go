package model

import (
	"encoding/hex"
	"errors"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Key errors.
var (
	// ErrInvalidKey is returned when a string is not a 64-character lowercase hex key.
	ErrInvalidKey = errors.New("invalid drive key format")
	// ErrEmptyKey is returned when the key is empty.
	ErrEmptyKey = errors.New("drive key cannot be empty")
)

const (
	// Scheme is the URI scheme prefix of drive addresses.
	Scheme = "hyper://"
	// KeyLength is the length of a drive key in hex characters.
	KeyLength = 64
	// shortKeyLength is the length of the abbreviated key used in logs.
	shortKeyLength = 8
	// discoveryNamespace is the message hashed to derive a discovery key.
	discoveryNamespace = "hypercore"
)

// keyPattern matches a complete, canonical drive key.
var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Key is an immutable value object identifying a drive.
// It wraps a 64-character lowercase hexadecimal string (an ed25519 public key).
// Key is comparable and can be used as a map key; the zero value means "no key".
type Key struct {
	hex string
}

// NormalizeKey resolves an address reference into a Key.
// A reference starting with "hyper://" contributes the 64 characters that follow
// the scheme; any other reference contributes its first 64 characters verbatim.
// The second return value is false when the result is not a valid key.
// Invalid references are not errors: callers are expected to discard them.
func NormalizeKey(ref string) (Key, bool) {
	candidate := strings.TrimPrefix(ref, Scheme)
	if len(candidate) < KeyLength {
		return Key{}, false
	}
	candidate = candidate[:KeyLength]
	if !keyPattern.MatchString(candidate) {
		return Key{}, false
	}
	return Key{hex: candidate}, true
}

// NewKey creates a Key from user input such as a CLI argument or config value.
// Unlike NormalizeKey it rejects trailing characters and reports why the input
// was refused. Surrounding whitespace is ignored; case is not normalized.
func NewKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == Scheme {
		return Key{}, ErrEmptyKey
	}
	if len(strings.TrimPrefix(s, Scheme)) != KeyLength {
		return Key{}, ErrInvalidKey
	}
	k, ok := NormalizeKey(s)
	if !ok {
		return Key{}, ErrInvalidKey
	}
	return k, nil
}

// MustNewKey creates a new Key or panics if invalid.
// Use only for known-valid keys in tests or initialization.
func MustNewKey(s string) Key {
	k, err := NewKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the 64-character hex form of the key.
func (k Key) String() string {
	return k.hex
}

// URI returns the key as a hyper:// address.
func (k Key) URI() string {
	if k.IsZero() {
		return ""
	}
	return Scheme + k.hex
}

// Short returns the first characters of the key for compact log output.
func (k Key) Short() string {
	if len(k.hex) < shortKeyLength {
		return k.hex
	}
	return k.hex[:shortKeyLength]
}

// IsZero returns true if this is a zero value (empty) Key.
func (k Key) IsZero() bool {
	return k.hex == ""
}

// Equals returns true if two Key values are equal.
func (k Key) Equals(other Key) bool {
	return k.hex == other.hex
}

// DiscoveryKey returns the hex-encoded discovery key peers announce for this drive.
// It is the BLAKE2b-256 hash of "hypercore" keyed with the public key, so it
// identifies the drive on the network without revealing the key itself.
// The zero Key has no discovery key.
func (k Key) DiscoveryKey() string {
	if k.IsZero() {
		return ""
	}
	raw, err := hex.DecodeString(k.hex)
	if err != nil {
		return ""
	}
	h, err := blake2b.New256(raw)
	if err != nil {
		return ""
	}
	h.Write([]byte(discoveryNamespace))
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalText implements encoding.TextMarshaler so keys serialize as plain hex.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.hex), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// An empty value decodes to the zero Key.
func (k *Key) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = Key{}
		return nil
	}
	parsed, err := NewKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SortKeys orders keys lexically in place.
func SortKeys(keys []Key) {
	slices.SortFunc(keys, func(a, b Key) int {
		return strings.Compare(a.hex, b.hex)
	})
}
