package sink

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles_ExistingLength(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	var files Files

	length := files.ExistingLength(path)
	assert.True(length.IsNone())

	require.NoError(t, os.WriteFile(path, make([]byte, 1234), 0644))
	length = files.ExistingLength(path)
	assert.True(length.IsSome())
	assert.Equal(int64(1234), length.Unwrap())

	// Directories don't count
	length = files.ExistingLength(dir)
	assert.True(length.IsNone())
}

func TestFiles_Open_Truncate(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.bin")
	var files Files

	f, err := files.Open(path, false)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	assert.NoError(err)
	// Buffered, so nothing on disk yet
	assert.Equal(int64(0), files.ExistingLength(path).Unwrap())
	assert.NoError(f.Flush())
	assert.Equal(int64(5), files.ExistingLength(path).Unwrap())
	assert.NoError(f.Close())
	assert.NoError(f.Close(), "Close should be idempotent")

	_, err = f.Write([]byte("x"))
	assert.ErrorIs(err, ErrClosed)

	f, err = files.Open(path, false)
	require.NoError(t, err)
	assert.NoError(f.Close())
	assert.Equal(int64(0), files.ExistingLength(path).Unwrap(), "truncate mode should discard content")
}

func TestFiles_Open_Append(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	f, err := Files{BufferSize: -1}.Open(path, true)
	require.NoError(t, err)
	assert.Equal(path, f.Name())
	_, err = f.Write([]byte("def"))
	assert.NoError(err)
	assert.NoError(f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal("abcdef", string(data))
}

func TestFiles_Open_Failure(t *testing.T) {
	dir := t.TempDir()
	// Opening a directory for writing fails
	_, err := Files{}.Open(dir, false)
	assert_.Error(t, err)
}
