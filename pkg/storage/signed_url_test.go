package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("42", "documents/101/ijazah.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	documentID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "42", documentID)
	require.Equal(t, "documents/101/ijazah.pdf", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("42", "documents/101/ijazah.pdf")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	documentID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "42", documentID)
	require.Equal(t, "documents/101/ijazah.pdf", path)
}

func TestSignedURLSignerRejectsTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("42", "documents/101/ijazah.pdf")
	require.NoError(t, err)

	otherSigner := NewSignedURLSigner("different-secret", time.Hour)
	_, _, _, err = otherSigner.Parse(token, false)
	require.Error(t, err)
}
