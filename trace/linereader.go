package trace

import (
	"bufio"
	"io"
)

// lineReader only ever hands out whole newline-terminated lines, so a CSV
// parser sitting on top of a trace that is still being written never sees a
// half-written record. Lines longer than the caller's buffer are handed out
// across several reads.
type lineReader struct {
	r       *bufio.Reader
	partial []byte
	ready   []byte
}

var _ io.Reader = (*lineReader)(nil)

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r: bufio.NewReader(r),
	}
}

func (l *lineReader) Read(b []byte) (int, error) {
	if len(l.ready) == 0 {
		data, err := l.r.ReadBytes('\n')
		if err != nil {
			l.partial = append(l.partial, data...)
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, err
		}
		if len(l.partial) > 0 {
			data = append(l.partial, data...)
			l.partial = nil
		}
		l.ready = data
	}
	n := copy(b, l.ready)
	l.ready = l.ready[n:]
	return n, nil
}
