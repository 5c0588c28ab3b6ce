package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAEAD(t *testing.T) *AEAD {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(k)
	require.NoError(t, err)
	a, err := New(raw)
	require.NoError(t, err)
	return a
}

func TestRoundTrip(t *testing.T) {
	a := newAEAD(t)
	ct, err := a.EncryptToString("token-abc")
	require.NoError(t, err)
	assert.NotContains(t, ct, "token-abc")

	ct2, err := a.EncryptToString("token-abc")
	require.NoError(t, err)
	assert.NotEqual(t, ct, ct2, "nonce must differ per call")

	pt, err := a.DecryptString(ct)
	require.NoError(t, err)
	assert.Equal(t, "token-abc", pt)
}

func TestDecryptRejectsForeignKey(t *testing.T) {
	ct, err := newAEAD(t).EncryptToString("secret")
	require.NoError(t, err)
	_, err = newAEAD(t).DecryptString(ct)
	assert.Error(t, err)
}

func TestDecryptShort(t *testing.T) {
	_, err := newAEAD(t).DecryptString("AAAA")
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestNewKeySize(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
}
