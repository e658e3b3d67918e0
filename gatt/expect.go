// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package gatt

import (
	"context"
	"io"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

// Match describes the text consumed by a successful Expect.
type Match struct {
	Index  int
	Before string
	Text   string
}

// Expecter is a line protocol helper for interactive programs: it sends
// commands and waits for patterns in the output. Output is read by a
// background goroutine so waits can be bounded; the goroutine exits when
// the reader returns an error.
type Expecter struct {
	w      io.Writer
	chunks chan []byte
	err    error
	buf    []byte
	closed bool
}

func NewExpecter(r io.Reader, w io.Writer) *Expecter {
	e := &Expecter{w: w, chunks: make(chan []byte, 16)}
	go e.read(r)
	return e
}

func (e *Expecter) read(r io.Reader) {
	defer close(e.chunks)
	b := make([]byte, 4096)
	for {
		n, err := r.Read(b)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, b[:n])
			e.chunks <- chunk
		}
		if err != nil {
			e.err = err
			return
		}
	}
}

// Send writes one command line.
func (e *Expecter) Send(line string) error {
	if _, err := io.WriteString(e.w, line+"\n"); err != nil {
		return errors.Wrapf(ErrClosed, "send %q: %v", line, err)
	}
	return nil
}

// Discard drops any output that has not been consumed yet.
func (e *Expecter) Discard() {
	e.buf = e.buf[:0]
	for {
		select {
		case _, ok := <-e.chunks:
			if !ok {
				e.closed = true
				return
			}
		default:
			return
		}
	}
}

// Expect waits until one of the patterns appears in the output. When more
// than one matches, the earliest match wins, then the earliest pattern.
// A timeout of zero waits until the context is done.
func (e *Expecter) Expect(ctx context.Context, timeout time.Duration, patterns ...*regexp.Regexp) (Match, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if m, ok := e.match(patterns); ok {
			return m, nil
		}
		if e.closed {
			if e.err != nil && e.err != io.EOF {
				return Match{Index: -1}, errors.Wrap(ErrClosed, e.err.Error())
			}
			return Match{Index: -1}, ErrClosed
		}

		select {
		case chunk, ok := <-e.chunks:
			if !ok {
				e.closed = true
				continue
			}
			e.buf = append(e.buf, chunk...)
		case <-expired:
			return Match{Index: -1, Before: string(e.buf)}, errors.Wrapf(ErrTimeout, "after %s", timeout)
		case <-ctx.Done():
			return Match{Index: -1, Before: string(e.buf)}, ctx.Err()
		}
	}
}

func (e *Expecter) match(patterns []*regexp.Regexp) (Match, bool) {
	best := Match{Index: -1}
	var start, end int
	for i, p := range patterns {
		loc := p.FindIndex(e.buf)
		if loc == nil {
			continue
		}
		if best.Index < 0 || loc[0] < start {
			best.Index = i
			start, end = loc[0], loc[1]
		}
	}
	if best.Index < 0 {
		return best, false
	}
	best.Before = string(e.buf[:start])
	best.Text = string(e.buf[start:end])
	e.buf = append([]byte(nil), e.buf[end:]...)
	return best, true
}
