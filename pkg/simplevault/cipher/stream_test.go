package cipher

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	s, err := NewFromSecret("test-secret")
	require.NoError(t, err)
	return s
}

func encryptAll(t *testing.T, s *Stream, plaintext []byte) []byte {
	t.Helper()
	r, err := s.Encrypt(bytes.NewReader(plaintext))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestRoundTrip(t *testing.T) {
	s := newTestStream(t)

	sizes := []int{0, 1, 15, 16, 17, 4096, 1 << 20, 10 << 20}
	for _, size := range sizes {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		object := encryptAll(t, s, plaintext)
		require.Len(t, object, IVSize+size)

		r, err := s.Decrypt(bytes.NewReader(object))
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plaintext, got), "size %d", size)
	}
}

func TestEncrypt_CiphertextDiffersFromPlaintext(t *testing.T) {
	s := newTestStream(t)
	plaintext := bytes.Repeat([]byte("a"), 64)

	object := encryptAll(t, s, plaintext)
	assert.NotEqual(t, plaintext, object[IVSize:])
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	s := newTestStream(t)
	plaintext := []byte("identical content")

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		object := encryptAll(t, s, plaintext)
		iv := string(object[:IVSize])
		assert.False(t, seen[iv], "iv repeated after %d trials", i)
		seen[iv] = true
	}
}

func TestDecrypt_ShortObject(t *testing.T) {
	s := newTestStream(t)

	for _, n := range []int{0, 1, IVSize - 1} {
		_, err := s.Decrypt(bytes.NewReader(make([]byte, n)))
		assert.ErrorIs(t, err, ErrCorruptObject, "length %d", n)
	}
}

func TestDecrypt_IVOnlyIsEmptyPlaintext(t *testing.T) {
	s := newTestStream(t)
	object := encryptAll(t, s, nil)

	r, err := s.Decrypt(bytes.NewReader(object))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecrypt_OneByteReads(t *testing.T) {
	s := newTestStream(t)
	plaintext := []byte("the iv arrives one byte at a time")
	object := encryptAll(t, s, plaintext)

	r, err := s.Decrypt(iotest.OneByteReader(bytes.NewReader(object)))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecrypt_WrongKey(t *testing.T) {
	a := newTestStream(t)
	b, err := NewFromSecret("another-secret")
	require.NoError(t, err)

	plaintext := []byte("secret payload")
	object := encryptAll(t, a, plaintext)

	r, err := b.Decrypt(bytes.NewReader(object))
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, got)
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey("secret")
	require.NoError(t, err)
	k2, err := DeriveKey("secret")
	require.NoError(t, err)
	k3, err := DeriveKey("other")
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)

	_, err = DeriveKey("")
	assert.Error(t, err)
}

func TestNew_RejectsShortKey(t *testing.T) {
	_, err := New(make([]byte, 16))
	assert.Error(t, err)
}
