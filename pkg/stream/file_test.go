package stream

import (
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "test_stream_file-")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestFile_Open(t *testing.T) {
	path := tempFile(t)

	s, err := OpenFile(path, ModeRead)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenFile(path, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenFile(path, 0xFF)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
	_, err = OpenFile(path, 0)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestFile_WriteModeCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "created")

	s, err := OpenFile(path, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFile_ReadModeRequiresExistingFile(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing"), ModeRead)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_WriteAndRead(t *testing.T) {
	path := tempFile(t)
	data := []byte("TEST\x00")

	s, err := OpenFile(path, ModeRead|ModeWrite)
	require.NoError(t, err)
	require.NoError(t, s.Write(data))
	require.NoError(t, s.Write(nil))

	require.NoError(t, s.Reset())
	buf := make([]byte, 2*len(data))
	n, eof, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.True(t, eof)
	assert.Equal(t, data, buf[:n])
	require.NoError(t, s.Close())

	s, err = OpenFile(path, ModeRead)
	require.NoError(t, err)
	defer s.Close()
	err = s.Write(data)
	assert.ErrorIs(t, err, syscall.EBADF)
}

func TestFile_SeekPeekAndRead(t *testing.T) {
	path := tempFile(t)

	s, err := OpenFile(path, ModeRead)
	require.NoError(t, err)

	n, eof, err := s.Read(nil)
	require.NoError(t, err)
	assert.False(t, eof)
	assert.Equal(t, 0, n)

	n, eof, err = s.Read(make([]byte, 1))
	require.NoError(t, err)
	assert.True(t, eof)
	assert.Equal(t, 0, n)

	_, err = s.Peek(0)
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Peek(9001)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, s.Close())
}

func TestFile_Peek(t *testing.T) {
	path := tempFile(t)
	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0o644))

	s, err := OpenFile(path, ModeRead)
	require.NoError(t, err)
	defer s.Close()

	b, err := s.Peek(2)
	require.NoError(t, err)
	assert.Equal(t, byte('c'), b)

	buf := make([]byte, 2)
	_, eof, err := s.Read(buf)
	require.NoError(t, err)
	assert.False(t, eof)
	assert.Equal(t, "ab", string(buf))

	// Peek相对当前读位置
	b, err = s.Peek(0)
	require.NoError(t, err)
	assert.Equal(t, byte('c'), b)
}

func TestFile_Seek(t *testing.T) {
	path := tempFile(t)

	s, err := OpenFile(path, ModeRead|ModeWrite)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Seek(9001))
	_, err = s.Peek(0)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, s.Reset())
	require.NoError(t, s.Write([]byte("TEST\x00")))
}

func TestFile_Length(t *testing.T) {
	path := tempFile(t)
	data := []byte("TEST\x00")

	s, err := OpenFile(path, ModeWrite)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(data))
	require.NoError(t, s.Write(data))
	length, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(2*len(data)), length)
}

func TestFile_Closed(t *testing.T) {
	s, err := OpenFile(tempFile(t), ModeWrite)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Write([]byte{1}), ErrClosed)
	_, err = s.Length()
	assert.ErrorIs(t, err, ErrClosed)
}
