package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSeed(t *testing.T) []byte {
	t.Helper()
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	return seed
}

func TestDeriveKeypairDeterministic(t *testing.T) {
	seed := randomSeed(t)

	a, err := New(seed)
	require.NoError(t, err)
	b, err := New(seed)
	require.NoError(t, err)

	kpA, err := a.DeriveKeypair("authority")
	require.NoError(t, err)
	kpB, err := b.DeriveKeypair("authority")
	require.NoError(t, err)
	assert.Equal(t, kpA.Identity, kpB.Identity)
	assert.Equal(t, kpA.PrivateKey, kpB.PrivateKey)

	other, err := a.DeriveKeypair("treasury")
	require.NoError(t, err)
	assert.NotEqual(t, kpA.Identity, other.Identity)
}

func TestDeriveKeypairSigns(t *testing.T) {
	ks, err := New(randomSeed(t))
	require.NoError(t, err)

	kp, err := ks.DeriveKeypair("authority")
	require.NoError(t, err)

	msg := []byte("registry state transition")
	sig := kp.Sign(msg)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(kp.Identity.Bytes()), msg, sig))
}

func TestNewRejectsShortSeed(t *testing.T) {
	_, err := New(make([]byte, 16))
	assert.Error(t, err)
}

func TestDeriveKeypairRejectsEmptyLabel(t *testing.T) {
	ks, err := New(randomSeed(t))
	require.NoError(t, err)
	_, err = ks.DeriveKeypair("")
	assert.Error(t, err)
}

func TestFromPassphraseDeterministic(t *testing.T) {
	a, err := FromPassphrase("correct horse battery staple", "deployment-1")
	require.NoError(t, err)
	b, err := FromPassphrase("correct horse battery staple", "deployment-1")
	require.NoError(t, err)
	c, err := FromPassphrase("correct horse battery staple", "deployment-2")
	require.NoError(t, err)

	kpA, err := a.DeriveKeypair("authority")
	require.NoError(t, err)
	kpB, err := b.DeriveKeypair("authority")
	require.NoError(t, err)
	kpC, err := c.DeriveKeypair("authority")
	require.NoError(t, err)

	assert.Equal(t, kpA.Identity, kpB.Identity)
	assert.NotEqual(t, kpA.Identity, kpC.Identity, "salt must namespace deployments")
}

func TestSplitAndCombineSeed(t *testing.T) {
	ks, err := New(randomSeed(t))
	require.NoError(t, err)

	shares, err := ks.SplitSeed(5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	// Any threshold subset reconstructs the same keystore.
	recovered, err := CombineSeed([][]byte{shares[4], shares[0], shares[2]})
	require.NoError(t, err)

	want, err := ks.DeriveKeypair("authority")
	require.NoError(t, err)
	got, err := recovered.DeriveKeypair("authority")
	require.NoError(t, err)
	assert.Equal(t, want.Identity, got.Identity)
}

func TestSplitSeedValidatesParameters(t *testing.T) {
	ks, err := New(randomSeed(t))
	require.NoError(t, err)

	_, err = ks.SplitSeed(5, 1)
	assert.Error(t, err)
	_, err = ks.SplitSeed(2, 3)
	assert.Error(t, err)
}
