// Package wallet loads an RSA credential in JWK form and signs node requests
// with it using HTTP message signatures (RFC 9421, rsa-pss-sha512).
package wallet

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/yaronf/httpsign"

	"github.com/aretw0/aoide/pkg/ports"
)

const (
	HeaderContentDigest  = "Content-Digest"
	HeaderSignatureInput = "Signature-Input"
	HeaderSignature      = "Signature"

	signatureLabel = "sig1"
)

var digestSchemes = []string{httpsign.DigestSha256}

// ErrInvalidKey is returned for keyfiles that do not hold an RSA private key.
var ErrInvalidKey = errors.New("wallet: invalid RSA JWK")

// Wallet is a loaded credential.
type Wallet struct {
	key     *rsa.PrivateKey
	address string
}

var _ ports.Signer = (*Wallet)(nil)

// Load reads a JWK keyfile.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JWK document holding an RSA private key.
func Parse(data []byte) (*Wallet, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if _, ok := key.(jwk.RSAPrivateKey); !ok {
		return nil, fmt.Errorf("%w: %s key without private part", ErrInvalidKey, key.KeyType())
	}

	var raw rsa.PrivateKey
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	raw.Precompute()
	return FromKey(&raw), nil
}

// FromKey wraps an existing private key.
func FromKey(key *rsa.PrivateKey) *Wallet {
	sum := sha256.Sum256(key.N.Bytes())
	return &Wallet{
		key:     key,
		address: base64.RawURLEncoding.EncodeToString(sum[:]),
	}
}

// Generate creates a new credential of the given size.
func Generate(bits int) (*Wallet, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return FromKey(key), nil
}

// Address is the base64url SHA-256 of the public modulus.
func (w *Wallet) Address() string {
	return w.address
}

// PublicKey returns the verification key.
func (w *Wallet) PublicKey() *rsa.PublicKey {
	return &w.key.PublicKey
}

// JWK exports the credential.
func (w *Wallet) JWK() (jwk.Key, error) {
	key, err := jwk.FromRaw(w.key)
	if err != nil {
		return nil, fmt.Errorf("export key: %w", err)
	}
	return key, nil
}

// Save writes the credential to path with owner-only permissions.
func (w *Wallet) Save(path string) error {
	key, err := w.JWK()
	if err != nil {
		return err
	}
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SignRequest adds Content-Digest, Signature-Input and Signature headers.
// The signature covers the digest, the method and the path.
func (w *Wallet) SignRequest(ctx context.Context, req *http.Request, body []byte) error {
	digest, err := contentDigest(body)
	if err != nil {
		return fmt.Errorf("content digest: %w", err)
	}
	req.Header.Set(HeaderContentDigest, digest)

	config := httpsign.NewSignConfig().SignAlg(true).SetKeyID(w.address)
	signer, err := httpsign.NewRSAPSSSigner(*w.key, config, coveredFields())
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}
	input, sig, err := httpsign.SignRequest(signatureLabel, *signer, req)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	req.Header.Set(HeaderSignatureInput, input)
	req.Header.Set(HeaderSignature, sig)
	return nil
}

// Verify checks a request signed by SignRequest against pub.
func Verify(pub *rsa.PublicKey, req *http.Request, body []byte) error {
	rc := io.NopCloser(bytes.NewReader(body))
	if err := httpsign.ValidateContentDigestHeader(req.Header.Values(HeaderContentDigest), &rc, digestSchemes); err != nil {
		return fmt.Errorf("content digest: %w", err)
	}

	verifier, err := httpsign.NewRSAPSSVerifier(*pub, httpsign.NewVerifyConfig(), coveredFields())
	if err != nil {
		return fmt.Errorf("verifier: %w", err)
	}
	return httpsign.VerifyRequest(signatureLabel, *verifier, req)
}

func coveredFields() httpsign.Fields {
	return httpsign.Headers("content-digest", "@method", "@path")
}

func contentDigest(body []byte) (string, error) {
	rc := io.NopCloser(bytes.NewReader(body))
	return httpsign.GenerateContentDigestHeader(&rc, digestSchemes)
}
