package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

// envelopePrefix marks a sealed project in the Source field.
const envelopePrefix = "aoide-enc:v1:"

var (
	// ErrNotEncrypted is returned when a stored project carries no envelope.
	ErrNotEncrypted = errors.New("project is missing encrypted data envelope")
	// ErrDecrypt is returned when no configured key opens an envelope.
	ErrDecrypt = errors.New("no configured key opens the envelope")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys only open, in order, so old keys can be rotated out.
	FallbackKeys [][]byte
}

// ParseKey decodes a hex encoded 32-byte key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("encryption key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type encryptionMiddleware struct {
	next ports.ProjectStore
	seal cipher.AEAD
	// open holds the active cipher first, then the fallbacks.
	open []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that seals whole projects with
// AES-GCM. The stored envelope only exposes the ID and timestamps, and the
// project ID is authenticated so an envelope cannot be replayed under another ID.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	active, err := newAEAD(config.ActiveKey)
	if err != nil {
		return nil, err
	}
	open := []cipher.AEAD{active}
	for i, key := range config.FallbackKeys {
		aead, err := newAEAD(key)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		open = append(open, aead)
	}

	return func(next ports.ProjectStore) ports.ProjectStore {
		return &encryptionMiddleware{next: next, seal: active, open: open}
	}, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (m *encryptionMiddleware) Save(ctx context.Context, project *domain.Project) error {
	plain, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	nonce := make([]byte, m.seal.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to read nonce: %w", err)
	}
	sealed := m.seal.Seal(nonce, nonce, plain, []byte(project.ID))

	return m.next.Save(ctx, &domain.Project{
		ID:        project.ID,
		Source:    envelopePrefix + base64.StdEncoding.EncodeToString(sealed),
		CreatedAt: project.CreatedAt,
		UpdatedAt: project.UpdatedAt,
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	envelope, err := m.next.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// Once encryption is on, plain projects are refused.
	encoded, ok := strings.CutPrefix(envelope.Source, envelopePrefix)
	if !ok {
		return nil, ErrNotEncrypted
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	plain, err := m.unseal(sealed, []byte(envelope.ID))
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	var project domain.Project
	if err := json.Unmarshal(plain, &project); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted project: %w", err)
	}
	return &project, nil
}

func (m *encryptionMiddleware) unseal(sealed, id []byte) ([]byte, error) {
	for _, aead := range m.open {
		n := aead.NonceSize()
		if len(sealed) < n {
			return nil, errors.New("envelope too short")
		}
		if plain, err := aead.Open(nil, sealed[:n], sealed[n:], id); err == nil {
			return plain, nil
		}
	}
	return nil, ErrDecrypt
}

func (m *encryptionMiddleware) Delete(ctx context.Context, projectID string) error {
	return m.next.Delete(ctx, projectID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
