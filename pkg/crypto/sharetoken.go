package crypto

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cuemby/warren-sync/pkg/types"
)

// shareTokenPrefix is the normalized textual form's scheme, in the style
// of a URL so share links can be handled by the same dispatch a browser
// or messaging app would use for any other link.
const shareTokenPrefix = "warrensync://share/"

// ShareToken encodes (access_mode, access_secrets, suggested_name), per
// §6.3. The access secret is the read key (AccessRead), the write key
// seed (AccessWrite, which also implies read), or empty (AccessBlind: a
// blind holder replicates using the repository id the token carries and
// gets no key).
type ShareToken struct {
	Mode          types.AccessMode
	RepositoryID  types.RepositoryID
	Secret        []byte // read key, write key seed when Mode == AccessWrite, empty when Mode == AccessBlind
	SuggestedName string
}

// Encode renders the token in its normalized, URL-safe textual form.
// Encoding and decoding round-trip idempotently: Decode(Encode(t)) == t.
func (t ShareToken) Encode() string {
	var buf []byte
	buf = append(buf, byte(t.Mode))
	buf = append(buf, t.RepositoryID[:]...)

	var secretLen [2]byte
	binary.BigEndian.PutUint16(secretLen[:], uint16(len(t.Secret)))
	buf = append(buf, secretLen[:]...)
	buf = append(buf, t.Secret...)

	buf = append(buf, []byte(t.SuggestedName)...)

	return shareTokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
}

// ParseShareToken parses a token produced by Encode.
func ParseShareToken(s string) (ShareToken, error) {
	var tok ShareToken

	if !strings.HasPrefix(s, shareTokenPrefix) {
		return tok, fmt.Errorf("%w: missing scheme", ErrMalformedShareToken)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, shareTokenPrefix))
	if err != nil {
		return tok, fmt.Errorf("%w: %v", ErrMalformedShareToken, err)
	}

	const headerLen = 1 + len(types.RepositoryID{}) + 2
	if len(raw) < headerLen {
		return tok, fmt.Errorf("%w: too short", ErrMalformedShareToken)
	}

	mode := types.AccessMode(raw[0])
	if mode != types.AccessBlind && mode != types.AccessRead && mode != types.AccessWrite {
		return tok, fmt.Errorf("%w: unknown access mode %d", ErrMalformedShareToken, raw[0])
	}
	tok.Mode = mode

	offset := 1
	copy(tok.RepositoryID[:], raw[offset:offset+len(tok.RepositoryID)])
	offset += len(tok.RepositoryID)

	secretLen := int(binary.BigEndian.Uint16(raw[offset : offset+2]))
	offset += 2
	if len(raw) < offset+secretLen {
		return tok, fmt.Errorf("%w: truncated secret", ErrMalformedShareToken)
	}
	tok.Secret = append([]byte(nil), raw[offset:offset+secretLen]...)
	offset += secretLen

	tok.SuggestedName = string(raw[offset:])

	return tok, nil
}

// String implements fmt.Stringer, returning the normalized encoding.
func (t ShareToken) String() string {
	return t.Encode()
}
