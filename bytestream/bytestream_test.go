package bytestream

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSinkBounds(t *testing.T) {
	sink := NewBufferSink(8)

	n, err := sink.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = sink.Write([]byte{6, 7, 8, 9})
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(5), sink.Position())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, sink.Bytes())

	// the rejected write must not have touched the spare capacity
	assert.Equal(t, make([]byte, 3), sink.buf[5:])

	n, err = sink.Write([]byte{6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, sink.Bytes())

	_, err = sink.Write([]byte{0})
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestBufferSinkSeek(t *testing.T) {
	sink := NewBufferSink(16)
	_, err := sink.Write([]byte("abcdef"))
	require.NoError(t, err)

	require.NoError(t, sink.Rewind())
	_, err = sink.Write([]byte("XY"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), sink.Position())
	assert.Equal(t, 6, sink.Len())
	assert.Equal(t, "XYcdef", string(sink.Bytes()))

	require.NoError(t, sink.Seek(6))
	assert.ErrorIs(t, sink.Seek(7), ErrInvalidPosition)
	assert.ErrorIs(t, sink.Seek(-1), ErrInvalidPosition)
	assert.True(t, sink.Seekable())
}

func TestBufferSourceReadFull(t *testing.T) {
	src := NewBufferSource([]byte{1, 2, 3, 4, 5})

	buf := make([]byte, 3)
	require.NoError(t, src.ReadFull(buf))
	assert.Equal(t, []byte{1, 2, 3}, buf)

	err := src.ReadFull(buf)
	assert.ErrorIs(t, err, ErrBufferUnderrun)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(3), src.Position())
	assert.Equal(t, 2, src.Remaining())

	require.NoError(t, src.ReadFull(buf[:2]))
	assert.ErrorIs(t, src.ReadFull(buf), io.EOF)
}

func TestBufferSourceRead(t *testing.T) {
	src := NewBufferSource([]byte("hello"))
	data, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), src.Position())
}

type writeOnly struct {
	bytes.Buffer
}

func TestStreamSinkNotSeekable(t *testing.T) {
	sink := NewStreamSink(&writeOnly{})
	_, err := sink.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), sink.Position())
	assert.False(t, sink.Seekable())
	assert.ErrorIs(t, sink.Seek(0), ErrNotSeekable)
	assert.ErrorIs(t, sink.Rewind(), ErrNotSeekable)
}

func TestStreamSinkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	sink, err := Create(path)
	require.NoError(t, err)

	_, err = sink.Write([]byte("0000payload"))
	require.NoError(t, err)
	require.True(t, sink.Seekable())
	require.NoError(t, sink.Rewind())
	_, err = sink.Write([]byte("1111"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), sink.Position())
	require.NoError(t, sink.Seek(11))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1111payload", string(data))

	_, err = sink.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamSource(t *testing.T) {
	src := NewStreamSource(bytes.NewReader([]byte{1, 2, 3, 4}))
	buf := make([]byte, 3)
	require.NoError(t, src.ReadFull(buf))
	assert.Equal(t, int64(3), src.Position())

	err := src.ReadFull(buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, src.ReadFull(buf), io.EOF)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.ivf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
