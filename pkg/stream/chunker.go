package stream

import (
	"bytes"
	"errors"
	"io"
)

// DefaultChunkSize is used when a non-positive chunk size is requested
const DefaultChunkSize = 64 * 1024

// ChunkedReader provides chunked reading of upload bodies
type ChunkedReader struct {
	reader    io.Reader
	chunkSize int
	buffer    []byte
	eof       bool
}

// NewChunkedReader creates a new chunked reader
func NewChunkedReader(reader io.Reader, chunkSize int) *ChunkedReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkedReader{
		reader:    reader,
		chunkSize: chunkSize,
		buffer:    make([]byte, chunkSize),
	}
}

// NextChunk reads the next chunk from the reader. The returned slice is only
// valid until the next call.
func (cr *ChunkedReader) NextChunk() ([]byte, error) {
	if cr.eof {
		return nil, io.EOF
	}

	n, err := io.ReadFull(cr.reader, cr.buffer)
	switch {
	case err == nil:
		return cr.buffer[:n], nil
	case errors.Is(err, io.EOF):
		cr.eof = true
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		cr.eof = true
		return cr.buffer[:n], nil
	default:
		return nil, err
	}
}

// ReadAtMost reads chunks until EOF or until more than limit bytes have been
// seen. In the second case the result holds exactly limit+1 bytes, enough for a
// caller to tell that the source was over the limit without buffering all of it.
func (cr *ChunkedReader) ReadAtMost(limit int64) ([]byte, error) {
	var out bytes.Buffer
	for int64(out.Len()) <= limit {
		chunk, err := cr.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		if room := limit + 1 - int64(out.Len()); int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		out.Write(chunk)
	}
	return out.Bytes(), nil
}

// ReadLimited reads r in chunkSize pieces, stopping after limit+1 bytes
func ReadLimited(r io.Reader, chunkSize int, limit int64) ([]byte, error) {
	return NewChunkedReader(r, chunkSize).ReadAtMost(limit)
}
