package crypto

import (
	"crypto/rand"
	"io"
	"sync"
)

// Reader is the default secure random source. crypto/rand.Reader is safe for
// concurrent use.
var Reader io.Reader = rand.Reader

// RandomBytes returns n bytes read from the default secure random source.
func RandomBytes(n int) ([]byte, error) {
	return ReadRandom(Reader, n)
}

// ReadRandom returns n bytes read from r. A nil r uses the default source.
func ReadRandom(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// lockedReader serializes reads from an underlying reader.
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}

// NewLockedReader wraps r so that it can be shared between goroutines.
// Injected deterministic sources (tests, simulators) should be wrapped before
// being handed to concurrent components.
func NewLockedReader(r io.Reader) io.Reader {
	if r == nil {
		return Reader
	}
	if _, ok := r.(*lockedReader); ok {
		return r
	}
	return &lockedReader{r: r}
}
