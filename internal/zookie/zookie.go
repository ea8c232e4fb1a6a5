// Package zookie implements the opaque, URL-safe, HMAC-authenticated
// revision token clients use to request causally or exactly ordered reads.
package zookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/snapshot"
	"github.com/vertexdb/vertexdb/internal/xid"
)

// versionSnapshot and versionXid tag the two zookie payload shapes.
// Decoding any other value is rejected with INVALID_ZOOKIE so the wire
// format can evolve later without breaking older tokens silently.
const (
	versionSnapshot byte = 1
	versionXid      byte = 2
)

const hmacTagSize = 8

// Zookie is the decoded form of a token: either a full snapshot, or a
// single xid that the holder resolves against the oracle's live in-flight
// set at lookup time.
type Zookie struct {
	Snapshot snapshot.Snapshot
	AtXid    xid.Xid
	HasXid   bool
}

// Codec encodes and decodes zookies, authenticating every payload with an
// HMAC-SHA256 tag truncated to 8 bytes so tampering with a token is
// detectable without a round-trip to the backend.
type Codec struct {
	secret []byte
}

// NewCodec builds a Codec from the configured zookie HMAC secret. The
// secret must be non-empty; an empty secret is a configuration error, not
// something this package defends against at runtime.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: append([]byte(nil), secret...)}
}

// EncodeSnapshot produces a zookie carrying a full snapshot.
func (c *Codec) EncodeSnapshot(s snapshot.Snapshot) string {
	payload := []byte{versionSnapshot}
	payload = binary.AppendUvarint(payload, uint64(s.Xmin))
	payload = binary.AppendUvarint(payload, uint64(s.Xmax))
	payload = binary.AppendUvarint(payload, uint64(len(s.InFlight)))
	for _, x := range s.InFlight {
		payload = binary.AppendUvarint(payload, uint64(x))
	}
	return c.seal(payload)
}

// EncodeXid produces a zookie carrying a single xid, resolved against the
// oracle's in-flight set at decode/lookup time rather than a frozen snapshot.
func (c *Codec) EncodeXid(x xid.Xid) string {
	payload := []byte{versionXid}
	payload = binary.AppendUvarint(payload, uint64(x))
	return c.seal(payload)
}

func (c *Codec) seal(payload []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	tag := mac.Sum(nil)[:hmacTagSize]
	return base64.RawURLEncoding.EncodeToString(append(payload, tag...))
}

// Decode parses and authenticates a zookie string. Any HMAC mismatch,
// truncation, or unknown version byte yields INVALID_ZOOKIE.
func (c *Codec) Decode(token string) (Zookie, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Zookie{}, apierrors.InvalidZookie(fmt.Sprintf("not valid base64: %v", err))
	}
	if len(raw) < 1+hmacTagSize {
		return Zookie{}, apierrors.InvalidZookie("token too short")
	}
	payload, tag := raw[:len(raw)-hmacTagSize], raw[len(raw)-hmacTagSize:]

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	expected := mac.Sum(nil)[:hmacTagSize]
	if !hmac.Equal(tag, expected) {
		return Zookie{}, apierrors.InvalidZookie("hmac mismatch")
	}

	if len(payload) < 1 {
		return Zookie{}, apierrors.InvalidZookie("empty payload")
	}
	body := payload[1:]

	switch payload[0] {
	case versionXid:
		x, n := binary.Uvarint(body)
		if n <= 0 {
			return Zookie{}, apierrors.InvalidZookie("malformed xid payload")
		}
		return Zookie{AtXid: xid.Xid(x), HasXid: true}, nil
	case versionSnapshot:
		// falls through to the snapshot parse below
	default:
		return Zookie{}, apierrors.InvalidZookie("unsupported version byte")
	}

	xmin, n1 := binary.Uvarint(body)
	if n1 <= 0 {
		return Zookie{}, apierrors.InvalidZookie("malformed xmin")
	}
	body = body[n1:]
	xmax, n2 := binary.Uvarint(body)
	if n2 <= 0 {
		return Zookie{}, apierrors.InvalidZookie("malformed xmax")
	}
	body = body[n2:]
	count, n3 := binary.Uvarint(body)
	if n3 <= 0 {
		return Zookie{}, apierrors.InvalidZookie("malformed in-flight count")
	}
	body = body[n3:]

	inFlight := make([]xid.Xid, 0, count)
	for i := uint64(0); i < count; i++ {
		v, n := binary.Uvarint(body)
		if n <= 0 {
			return Zookie{}, apierrors.InvalidZookie("malformed in-flight entry")
		}
		inFlight = append(inFlight, xid.Xid(v))
		body = body[n:]
	}

	return Zookie{Snapshot: snapshot.New(xid.Xid(xmin), xid.Xid(xmax), inFlight)}, nil
}
