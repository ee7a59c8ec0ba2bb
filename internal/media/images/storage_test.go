package images

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)
	return s
}

func TestNewStorage(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "images")

		s, err := NewStorage(dir)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, dir, s.Root())
	})

	t.Run("rejects empty path", func(t *testing.T) {
		s, err := NewStorage("")
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestStorage_Save(t *testing.T) {
	t.Run("content addressed with blake2b checksum", func(t *testing.T) {
		s := setupTestStorage(t)
		data := []byte("pretend image bytes")
		want := blake2b.Sum256(data)
		wantHex := hex.EncodeToString(want[:])

		stored, err := s.Save(bytes.NewReader(data), ".PNG", 0)
		require.NoError(t, err)

		assert.Equal(t, wantHex, stored.Checksum)
		assert.Equal(t, int64(len(data)), stored.Size)
		assert.Equal(t, filepath.Join(wantHex[:2], wantHex+".png"), stored.Path)
		assert.False(t, stored.Existed)
		assert.True(t, s.Exists(stored.Path))
	})

	t.Run("identical content is stored once", func(t *testing.T) {
		s := setupTestStorage(t)

		first, err := s.Save(strings.NewReader("same"), "jpeg", 0)
		require.NoError(t, err)
		second, err := s.Save(strings.NewReader("same"), ".jpg", 0)
		require.NoError(t, err)

		assert.Equal(t, first.Path, second.Path)
		assert.True(t, second.Existed)
	})

	t.Run("size limit", func(t *testing.T) {
		s := setupTestStorage(t)

		_, err := s.Save(strings.NewReader("12345"), ".png", 4)
		assert.ErrorIs(t, err, ErrTooLarge)

		stored, err := s.Save(strings.NewReader("1234"), ".png", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(4), stored.Size)
	})

	t.Run("empty input", func(t *testing.T) {
		s := setupTestStorage(t)
		_, err := s.Save(strings.NewReader(""), ".png", 0)
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		s := setupTestStorage(t)
		_, err := s.Save(strings.NewReader("too long"), ".png", 2)
		require.Error(t, err)

		entries, err := os.ReadDir(s.Root())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("drops unsafe extensions", func(t *testing.T) {
		s := setupTestStorage(t)
		stored, err := s.Save(strings.NewReader("x"), "./../evil", 0)
		require.NoError(t, err)
		assert.Equal(t, stored.Checksum, filepath.Base(stored.Path))
	})
}

func TestStorage_OpenAndDelete(t *testing.T) {
	s := setupTestStorage(t)
	stored, err := s.Save(strings.NewReader("content"), ".gif", 0)
	require.NoError(t, err)

	f, err := s.Open(stored.Path)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "content", string(data))

	require.NoError(t, s.Delete(stored.Path))
	assert.False(t, s.Exists(stored.Path))

	// Deleting twice is fine.
	require.NoError(t, s.Delete(stored.Path))

	_, err = s.Open(stored.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStorage_PathTraversal(t *testing.T) {
	s := setupTestStorage(t)

	for _, rel := range []string{"", "../outside.png", "/etc/passwd", "a/../../b"} {
		_, err := s.Path(rel)
		assert.ErrorIs(t, err, ErrInvalidPath, rel)
		assert.False(t, s.Exists(rel))
		_, err = s.Open(rel)
		assert.ErrorIs(t, err, ErrInvalidPath, rel)
	}
}
