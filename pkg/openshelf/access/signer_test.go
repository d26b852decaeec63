package access_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/url"
	"testing"
	"time"

	"github.com/openshelf/openshelf/pkg/openshelf/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	block := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, string(block)
}

func TestNew(t *testing.T) {
	_, keyPEM := generateKeyPEM(t)

	t.Run("valid configuration", func(t *testing.T) {
		signer, err := access.New(access.Config{
			Domain:        "cdn.example.com",
			KeyPairID:     "K123",
			PrivateKeyPEM: keyPEM,
		})
		require.NoError(t, err)
		assert.NotNil(t, signer)
	})

	t.Run("base64-wrapped key", func(t *testing.T) {
		signer, err := access.New(access.Config{
			Domain:        "cdn.example.com",
			KeyPairID:     "K123",
			PrivateKeyPEM: base64.StdEncoding.EncodeToString([]byte(keyPEM)),
		})
		require.NoError(t, err)
		assert.NotNil(t, signer)
	})

	t.Run("missing pieces", func(t *testing.T) {
		_, err := access.New(access.Config{KeyPairID: "K123", PrivateKeyPEM: keyPEM})
		assert.Error(t, err)

		_, err = access.New(access.Config{Domain: "cdn.example.com", PrivateKeyPEM: keyPEM})
		assert.Error(t, err)

		_, err = access.New(access.Config{Domain: "cdn.example.com", KeyPairID: "K123"})
		assert.Error(t, err)
	})

	t.Run("garbage key", func(t *testing.T) {
		_, err := access.New(access.Config{
			Domain:        "cdn.example.com",
			KeyPairID:     "K123",
			PrivateKeyPEM: "not a key",
		})
		assert.Error(t, err)
	})
}

func TestSignRead(t *testing.T) {
	key, _ := generateKeyPEM(t)
	signer := access.NewWithKey("cdn.example.com", "K123", key)

	ra, err := signer.SignRead("public/abc/book.pdf", "book.pdf", time.Hour)
	require.NoError(t, err)

	parsed, err := url.Parse(ra.URL)
	require.NoError(t, err)
	assert.Equal(t, "https", parsed.Scheme)
	assert.Equal(t, "cdn.example.com", parsed.Host)
	assert.Equal(t, "/public/abc/book.pdf", parsed.Path)

	q := parsed.Query()
	assert.NotEmpty(t, q.Get("Signature"))
	assert.NotEmpty(t, q.Get("Key-Pair-Id"))
	assert.Contains(t, q.Get("response-content-disposition"), "book.pdf")

	assert.WithinDuration(t, time.Now().Add(time.Hour), ra.ExpiresAt, time.Minute)
}
