package vfscache

import (
	"sync"

	cerrors "github.com/auriora/onemount-vfscache/pkg/errors"
)

// StreamState is per-handle streaming reader state for a file that was not
// admitted to the disk cache. Reads are strictly sequential.
type StreamState struct {
	mu         sync.Mutex
	currentPos uint64
	fileSize   uint64
	tail       []byte
	chunks     <-chan []byte
}

func newStreamState(fileSize uint64, chunks <-chan []byte) *StreamState {
	return &StreamState{fileSize: fileSize, chunks: chunks}
}

// Read fails with NonsequentialRead if offset != current_pos. Otherwise it
// drains chunks -- starting with any leftover tail from a previous read --
// until size bytes are collected or the sender closes. A short read fails
// with UnexpectedEndOfDownload; current_pos advances by the bytes actually
// returned either way.
func (s *StreamState) Read(offset, size uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset != s.currentPos {
		return nil, cerrors.NewNonsequentialReadError(s.currentPos, offset)
	}

	out := make([]byte, 0, size)
	if len(s.tail) > 0 {
		take := s.tail
		if uint64(len(take)) > size {
			take = take[:size]
		}
		out = append(out, take...)
		s.tail = s.tail[len(take):]
	}

	for uint64(len(out)) < size {
		chunk, ok := <-s.chunks
		if !ok {
			break
		}
		need := size - uint64(len(out))
		if uint64(len(chunk)) > need {
			out = append(out, chunk[:need]...)
			s.tail = append(s.tail, chunk[need:]...)
		} else {
			out = append(out, chunk...)
		}
	}

	s.currentPos += uint64(len(out))
	if uint64(len(out)) != size {
		return nil, cerrors.NewUnexpectedEndOfDownloadError(s.currentPos, s.fileSize)
	}
	return out, nil
}
