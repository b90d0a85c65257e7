package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a read is abandoned because its context ended.
var ErrInputCancelled = errors.New("input canceled")

// NonBlockingReader provides context-aware line reading from a terminal.
// A read abandoned on cancellation keeps running in the background and the
// next read waits for it.
type NonBlockingReader struct {
	reader      *bufio.Reader
	readingLock sync.Mutex
}

// NewNonBlockingReader creates a new non-blocking reader.
func NewNonBlockingReader(reader io.Reader) *NonBlockingReader {
	if reader == nil {
		panic("reader cannot be nil")
	}

	return &NonBlockingReader{
		reader: bufio.NewReader(reader),
	}
}

// ReadString reads a string until delim, returning early when ctx ends.
// The returned error wraps both ErrInputCancelled and the context error.
func (r *NonBlockingReader) ReadString(ctx context.Context, delim byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Join(ErrInputCancelled, err)
	}

	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		r.readingLock.Lock()
		defer r.readingLock.Unlock()

		value, err := r.reader.ReadString(delim)
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", errors.Join(ErrInputCancelled, ctx.Err())
	case res := <-resultCh:
		return res.value, res.err
	}
}

// ReadLine reads one trimmed line. A final line without a newline is returned
// without error; io.EOF is returned only when nothing was read.
func (r *NonBlockingReader) ReadLine(ctx context.Context) (string, error) {
	line, err := r.ReadString(ctx, '\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
