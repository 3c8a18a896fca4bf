package session

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/kolkov/inlinemock/internal/dispatch/ref"
)

// IdentityHash returns the identity hash of x: a hash of its address, never
// of its contents. Values without identity hash to 0.
//
// The hash is stable for as long as x is alive and not moved. Go's
// collector does not move heap objects.
func IdentityHash(x any) uint64 {
	r := ref.Of(x)
	if !r.Valid() {
		return 0
	}

	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(r.Addr()))
	return xxh3.Hash(b[:])
}

// IdentityEquals reports whether a and b are the same object.
func IdentityEquals(a, b any) bool {
	ra := ref.Of(a)
	return ra.Valid() && ra == ref.Of(b)
}

// identityResult answers an Equal or Hash method by identity.
func identityResult(c Call) []any {
	if c.m.kind() == KindEquals {
		var other any
		if len(c.args) > 0 {
			other = c.args[0]
		}
		return []any{IdentityEquals(c.self, other)}
	}
	return []any{IdentityHash(c.self)}
}
