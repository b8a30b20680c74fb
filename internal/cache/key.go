package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Cache key of a layer, built by chaining its inputs.
//
// Each input is folded into the running hash together with its kind, so
// the same value supplied as a step and as a source yields different keys.
// Keys are values; every method returns a new key.
type Key struct {
	sum [sha256.Size]byte
}

// Creates a key rooted at a base image manifest and target platform.
func NewKey(base digest.Digest, platform string) Key {
	return Key{}.chain("base", base.String()).chain("platform", platform)
}

// Returns the key extended with a recipe step.
func (k Key) Step(step string) Key {
	return k.chain("step", step)
}

// Returns the key extended with the content digest of a copied source.
func (k Key) Source(src string, dgst digest.Digest) Key {
	return k.chain("source", src+"@"+dgst.String())
}

// Returns the key as a digest.
func (k Key) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(digest.SHA256, hex.EncodeToString(k.sum[:]))
}

// Returns the key as a string.
func (k Key) String() string {
	return k.Digest().String()
}

// Parses a key from its string form.
func ParseKey(s string) (Key, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return Key{}, fault.Wrap(ErrCache, err)
	}
	if d.Algorithm() != digest.SHA256 {
		return Key{}, fault.Wrapf(ErrCache, "unsupported key algorithm %s", d.Algorithm())
	}

	var k Key
	if _, err := hex.Decode(k.sum[:], []byte(d.Encoded())); err != nil {
		return Key{}, fault.Wrap(ErrCache, err)
	}
	return k, nil
}

func (k Key) chain(kind, value string) Key {
	h := sha256.New()
	h.Write(k.sum[:])
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(value))

	var next Key
	h.Sum(next.sum[:0])
	return next
}
