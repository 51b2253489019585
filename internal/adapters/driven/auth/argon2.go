package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2idID = "argon2id"

var errInvalidPHC = errors.New("invalid argon2id hash")

// argon2idHash is a decoded PHC string:
// $argon2id$v=19$m=<kib>,t=<iterations>,p=<threads>$<salt>$<hash>
type argon2idHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h *argon2idHash) matches(password string) bool {
	computed := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1
}

func parseArgon2id(encoded string) (*argon2idHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2idID {
		return nil, errInvalidPHC
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, errInvalidPHC
	}

	h := &argon2idHash{}
	for _, kv := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errInvalidPHC
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return nil, errInvalidPHC
		}
		switch name {
		case "m":
			h.memory = uint32(n)
		case "t":
			h.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, errInvalidPHC
			}
			h.parallelism = uint8(n)
		default:
			return nil, errInvalidPHC
		}
	}
	if h.memory == 0 || h.time == 0 || h.parallelism == 0 {
		return nil, errInvalidPHC
	}

	// Encoders differ on padding
	if h.salt, err = decodePHCBase64(parts[4]); err != nil || len(h.salt) == 0 {
		return nil, errInvalidPHC
	}
	if h.key, err = decodePHCBase64(parts[5]); err != nil || len(h.key) == 0 {
		return nil, errInvalidPHC
	}
	return h, nil
}

func decodePHCBase64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
