package jwtx

import (
	"crypto"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

type verificationKey struct {
	alg string
	pub crypto.PublicKey
}

// KeySet holds public verification keys by kid along with the JWKS view
// served to relying parties. It's safe for concurrent use.
type KeySet struct {
	mu   sync.RWMutex
	jwks JWKS
	keys map[string]verificationKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		keys: make(map[string]verificationKey),
	}
}

// AddSigner registers a Signer's public key under its kid.
func (k *KeySet) AddSigner(s Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.keys[s.KID()]; exists {
		return
	}
	k.keys[s.KID()] = verificationKey{alg: s.Alg(), pub: s.PublicKey()}
	k.jwks.Keys = append(k.jwks.Keys, s.PublicJWK())
}

// Get returns the public key and algorithm registered for kid.
func (k *KeySet) Get(kid string) (crypto.PublicKey, string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if vk, ok := k.keys[kid]; ok {
		return vk.pub, vk.alg, nil
	}
	return nil, "", ErrNoKey
}

// Algs lists the distinct algorithms of the registered keys.
func (k *KeySet) Algs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	seen := make(map[string]struct{}, len(k.keys))
	out := make([]string, 0, len(k.keys))
	for _, vk := range k.keys {
		if _, ok := seen[vk.alg]; !ok {
			seen[vk.alg] = struct{}{}
			out = append(out, vk.alg)
		}
	}
	return out
}

// PublicJWKS returns a snapshot of the KeySet's JWKS for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK(nil), k.jwks.Keys...)}
}

// IsReady returns true if the KeySet has at least one key loaded. A nil
// KeySet is not ready.
func (k *KeySet) IsReady() bool {
	if k == nil {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}
