package dedup

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	content := []byte("some media bytes")

	fp1, err := Fingerprint(bytes.NewReader(content), "user-1")
	require.NoError(t, err)
	fp2, err := Fingerprint(bytes.NewReader(content), "user-1")
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 32)
}

func TestFingerprintNamespacedByOwner(t *testing.T) {
	content := []byte("same bytes, different owners")

	fp1, err := Fingerprint(bytes.NewReader(content), "user-1")
	require.NoError(t, err)
	fp2, err := Fingerprint(bytes.NewReader(content), "user-2")
	require.NoError(t, err)

	assert.NotEqual(t, fp1, fp2)
}

func TestFingerprintComposition(t *testing.T) {
	content := []byte("known content")

	inner := md5.Sum(content)
	outer := md5.Sum([]byte(hex.EncodeToString(inner[:]) + ":owner-9"))
	want := hex.EncodeToString(outer[:])

	got, err := Fingerprint(bytes.NewReader(content), "owner-9")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFingerprintDiffersByContent(t *testing.T) {
	fp1, err := Fingerprint(strings.NewReader("a"), "user-1")
	require.NoError(t, err)
	fp2, err := Fingerprint(strings.NewReader("b"), "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, fp1, fp2)
}
