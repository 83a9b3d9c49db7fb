package vault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukudarovv/instachecker-sub000/internal/vault"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := vault.New("test-vault-key")
	require.NoError(t, err)

	plaintext := []byte(`{"sessionid":"abc123","csrftoken":"xyz"}`)
	token, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, string(plaintext), token)

	decrypted, err := c.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestCipherTokensDiffer(t *testing.T) {
	c, err := vault.New("test-vault-key")
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "random nonce must make tokens unique")
}

func TestCipherRejectsGarbage(t *testing.T) {
	c, err := vault.New("test-vault-key")
	require.NoError(t, err)

	_, err = c.Decrypt("not-a-token!!!")
	assert.ErrorIs(t, err, vault.ErrInvalidToken)

	_, err = c.Decrypt("c2hvcnQ")
	assert.ErrorIs(t, err, vault.ErrInvalidToken)
}

func TestPassthroughWhenNoKey(t *testing.T) {
	c, err := vault.New("")
	require.NoError(t, err)

	token, err := c.Encrypt([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", token)

	out, err := c.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), out)
}
