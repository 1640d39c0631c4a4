package core

// streaming.go holds the reader chain every uploaded file passes through:
// a size cap, then BOM removal and UTF-8 repair for text formats.

import (
	"bufio"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// textReader strips a leading UTF-8 BOM and replaces every byte that is not
// part of a valid UTF-8 sequence with '?'. Memory use is bounded by the
// bufio buffer regardless of input size.
type textReader struct {
	br         *bufio.Reader
	bomChecked bool
	pending    []byte // tail of a rune that did not fit in the last Read
}

// NewTextReader wraps r for CSV parsing.
func NewTextReader(r io.Reader) io.Reader {
	return &textReader{br: bufio.NewReaderSize(r, 64<<10)}
}

func (t *textReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !t.bomChecked {
		t.bomChecked = true
		if head, err := t.br.Peek(len(utf8BOM)); err == nil && string(head) == string(utf8BOM) {
			t.br.Discard(len(utf8BOM))
		}
	}

	n := 0
	for n < len(p) {
		if len(t.pending) > 0 {
			c := copy(p[n:], t.pending)
			t.pending = t.pending[c:]
			n += c
			continue
		}

		ch, size, err := t.br.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		switch {
		case ch == utf8.RuneError && size == 1:
			p[n] = '?'
			n++
		case size <= len(p)-n:
			n += utf8.EncodeRune(p[n:], ch)
		default:
			var buf [utf8.UTFMax]byte
			utf8.EncodeRune(buf[:], ch)
			c := copy(p[n:], buf[:size])
			t.pending = append(t.pending[:0], buf[c:size]...)
			n += c
		}

		// Hand back what we have rather than block on a slow source.
		if t.br.Buffered() == 0 {
			break
		}
	}
	return n, nil
}

// sizeLimitReader fails with ErrFileTooLarge once more than max bytes
// have been read. A max of zero or less disables the check.
type sizeLimitReader struct {
	r    io.Reader
	max  int64
	read int64
}

// NewSizeLimitReader caps r at max bytes.
func NewSizeLimitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return &sizeLimitReader{r: r, max: max}
}

func (s *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.read += int64(n)
	if s.read > s.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, s.max)
	}
	return n, err
}
