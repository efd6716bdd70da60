package wallet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaronf/httpsign"
)

var (
	sharedOnce sync.Once
	shared     *Wallet
	sharedErr  error
)

// testWallet generates one 2048-bit key per test binary.
func testWallet(t *testing.T) *Wallet {
	t.Helper()
	sharedOnce.Do(func() {
		shared, sharedErr = Generate(2048)
	})
	require.NoError(t, sharedErr)
	return shared
}

func TestAddress_IsHashOfModulus(t *testing.T) {
	w := testWallet(t)
	sum := sha256.Sum256(w.PublicKey().N.Bytes())
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), w.Address())
	assert.Len(t, w.Address(), 43)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	w := testWallet(t)
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, w.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), loaded.Address())
	assert.True(t, w.PublicKey().Equal(loaded.PublicKey()))
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":     `{`,
		"wrong kty":    `{"kty":"EC","n":"AQ","e":"AQAB","d":"AQ","p":"AQ","q":"AQ"}`,
		"missing d":    `{"kty":"RSA","n":"AQ","e":"AQAB"}`,
		"bad base64":   `{"kty":"RSA","n":"!!","e":"AQAB","d":"AQ","p":"AQ","q":"AQ"}`,
		"inconsistent": `{"kty":"RSA","n":"AQ","e":"AQAB","d":"AQ","p":"Aw","q":"BQ"}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSignRequest_Verifies(t *testing.T) {
	w := testWallet(t)

	body := []byte(`{"type":"Message"}`)
	req, err := http.NewRequest(http.MethodPost, "http://node/P1/push", bytes.NewReader(body))
	require.NoError(t, err)

	require.NoError(t, w.SignRequest(context.Background(), req, body))

	sum := sha256.Sum256(body)
	assert.Equal(t, "sha-256=:"+base64.StdEncoding.EncodeToString(sum[:])+":", req.Header.Get(HeaderContentDigest))

	input := req.Header.Get(HeaderSignatureInput)
	assert.True(t, strings.HasPrefix(input, `sig1=("content-digest" "@method" "@path")`), input)
	assert.Contains(t, input, `keyid="`+w.Address()+`"`)
	assert.Contains(t, input, `alg="rsa-pss-sha512"`)
	assert.Contains(t, input, ";created=")
	assert.True(t, strings.HasPrefix(req.Header.Get(HeaderSignature), "sig1=:"))

	verifier, err := httpsign.NewRSAPSSVerifier(*w.PublicKey(), httpsign.NewVerifyConfig().SetKeyID(w.Address()),
		httpsign.Headers("content-digest", "@method", "@path"))
	require.NoError(t, err)
	require.NoError(t, httpsign.VerifyRequest("sig1", *verifier, req))
	require.NoError(t, Verify(w.PublicKey(), req, body))

	t.Run("tampered body", func(t *testing.T) {
		assert.Error(t, Verify(w.PublicKey(), req, []byte(`{"type":"Process"}`)))
	})
	t.Run("tampered path", func(t *testing.T) {
		other := req.Clone(context.Background())
		other.URL.Path = "/P2/push"
		assert.Error(t, Verify(w.PublicKey(), other, body))
	})
	t.Run("other key", func(t *testing.T) {
		stranger, err := Generate(2048)
		require.NoError(t, err)
		assert.Error(t, Verify(stranger.PublicKey(), req, body))
	})
	t.Run("unsigned", func(t *testing.T) {
		plain, _ := http.NewRequest(http.MethodPost, "http://node/push", nil)
		assert.Error(t, Verify(w.PublicKey(), plain, nil))
	})
}

func TestSave_WritesRSAJWK(t *testing.T) {
	w := testWallet(t)
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, w.Save(path))

	set, err := jwk.ReadFile(path)
	require.NoError(t, err)
	key, ok := set.Key(0)
	require.True(t, ok)
	_, private := key.(jwk.RSAPrivateKey)
	assert.True(t, private)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
