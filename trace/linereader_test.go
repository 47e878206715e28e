package trace

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func expectToRead(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()
	var scratch [1024]byte
	n, err := reader.Read(scratch[:])
	if err != nil {
		t.Errorf("expected read to succeed, got: %v", err)
	} else if !bytes.Equal(scratch[:n], expected) {
		t.Errorf("expected read to yield %q, got: %q", expected, scratch[:n])
	}
}

func expectReadEOF(t *testing.T, reader io.Reader) {
	t.Helper()
	var scratch [1024]byte
	n, err := reader.Read(scratch[:])
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected read to give EOF, got: %v", err)
	} else if n != 0 {
		t.Errorf("expected read to read nothing, read %q", scratch[:n])
	}
}

func TestLineReader(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	heading := "timestamp (ns), x (µT), y (µT), z (µT)\n"
	first := "1, 3, 4, 0\n"
	buf.WriteString(heading)
	buf.WriteString(first)
	l := newLineReader(buf)
	expectToRead(t, l, []byte(heading))
	expectToRead(t, l, []byte(first))
	half := "2, 10"
	buf.WriteString(half)
	expectReadEOF(t, l)
	rest := ", 0, 0\n"
	buf.WriteString(rest)
	expectToRead(t, l, []byte(half+rest))
	buf.WriteString("3, ")
	expectReadEOF(t, l)
	buf.WriteString("1, ")
	expectReadEOF(t, l)
	buf.WriteString("1, 1\n4, ")
	expectToRead(t, l, []byte("3, 1, 1, 1\n"))
	expectReadEOF(t, l)
}

func TestLineReaderSmallBuffer(t *testing.T) {
	buf := bytes.NewBufferString("0123456789\nab\n")
	l := newLineReader(buf)
	var out []byte
	scratch := make([]byte, 4)
	for {
		n, err := l.Read(scratch)
		out = append(out, scratch[:n]...)
		if err != nil {
			break
		}
	}
	if string(out) != "0123456789\nab\n" {
		t.Errorf("expected every byte to be delivered, got %q", out)
	}
}
