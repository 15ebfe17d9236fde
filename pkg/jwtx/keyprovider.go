package jwtx

import (
	"crypto"
	"os"
	"sync"
)

// KeyStoreConfig locates the signing key material. Data wins over Path when
// both are set.
type KeyStoreConfig struct {
	Path       string
	Data       []byte
	Passphrase string
}

func (c KeyStoreConfig) source() string {
	if len(c.Data) > 0 {
		return "<inline>"
	}
	return c.Path
}

// KeyProvider loads the process signing key on first use and caches it for
// the process lifetime. A failed load caches nothing, so a later call retries.
// Concurrent callers during the first load wait for a single loader.
type KeyProvider struct {
	cfg      KeyStoreConfig
	readFile func(string) ([]byte, error)

	mu     sync.RWMutex
	signer Signer
	keys   *KeySet
}

// NewKeyProvider returns a provider for the configured key store. Nothing is
// read until Load or the first key access.
func NewKeyProvider(cfg KeyStoreConfig) *KeyProvider {
	return &KeyProvider{cfg: cfg, readFile: os.ReadFile}
}

// Load forces the key to be loaded, returning a *ConfigurationError when no
// key store is configured and a *KeyLoadError when it cannot be decoded.
func (p *KeyProvider) Load() error {
	_, _, err := p.load()
	return err
}

// SigningKey returns the signer for newly issued tokens.
func (p *KeyProvider) SigningKey() (Signer, error) {
	s, _, err := p.load()
	return s, err
}

// VerificationKey returns the public half of the signing key.
func (p *KeyProvider) VerificationKey() (crypto.PublicKey, error) {
	s, _, err := p.load()
	if err != nil {
		return nil, err
	}
	return s.PublicKey(), nil
}

// KeySet returns the verification keys by kid.
func (p *KeyProvider) KeySet() (*KeySet, error) {
	_, ks, err := p.load()
	return ks, err
}

// IsReady reports whether the key has been loaded, without triggering a load.
func (p *KeyProvider) IsReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.signer != nil && p.keys.IsReady()
}

func (p *KeyProvider) load() (Signer, *KeySet, error) {
	p.mu.RLock()
	signer, keys := p.signer, p.keys
	p.mu.RUnlock()
	if signer != nil {
		return signer, keys, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.signer != nil {
		return p.signer, p.keys, nil
	}

	data := p.cfg.Data
	if len(data) == 0 {
		if p.cfg.Path == "" {
			return nil, nil, &ConfigurationError{Reason: "no key store path or data"}
		}
		raw, err := p.readFile(p.cfg.Path)
		if err != nil {
			return nil, nil, &KeyLoadError{Source: p.cfg.source(), Err: err}
		}
		data = raw
	}

	key, err := ParseKeyStore(data, p.cfg.Passphrase)
	if err != nil {
		return nil, nil, &KeyLoadError{Source: p.cfg.source(), Err: err}
	}

	signer, err = NewSigner(key)
	if err != nil {
		return nil, nil, &KeyLoadError{Source: p.cfg.source(), Err: err}
	}

	keys = NewKeySet()
	keys.AddSigner(signer)

	p.signer, p.keys = signer, keys
	return signer, keys, nil
}
