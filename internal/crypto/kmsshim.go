package crypto

import (
	"crypto/rand"
	"errors"
)

// MemoryKeyProvider is a non-production KeyProvider that XORs the key
// against a fixed wrapping key held in memory. It exercises the KeyProvider
// seam in tests without pulling in a real cloud KMS SDK.
type MemoryKeyProvider struct {
	wrapKey []byte
}

// NewMemoryKeyProvider builds a provider with a freshly generated wrapping
// key of the same length as the keys it will wrap.
func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	wk := make([]byte, keyLen)
	if _, err := rand.Read(wk); err != nil {
		return nil, err
	}
	return &MemoryKeyProvider{wrapKey: wk}, nil
}

func (p *MemoryKeyProvider) WrapKey(key []byte) ([]byte, error) {
	if len(key) != len(p.wrapKey) {
		return nil, errors.New("crypto: key length mismatch")
	}
	out := make([]byte, len(key))
	for i := range key {
		out[i] = key[i] ^ p.wrapKey[i]
	}
	return out, nil
}

func (p *MemoryKeyProvider) UnwrapKey(wrapped []byte) ([]byte, error) {
	return p.WrapKey(wrapped) // XOR is its own inverse
}
