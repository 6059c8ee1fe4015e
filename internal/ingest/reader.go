package ingest

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// LineReader yields one line at a time without the trailing "\n" or "\r\n".
// Memory use is bounded by the longest line, not the input size.
type LineReader struct {
	r   *bufio.Reader
	err error
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next line and true, or "" and false at end of input or on
// a read error (see Err).
func (l *LineReader) Next() (string, bool) {
	if l.err != nil {
		return "", false
	}
	line, err := l.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.err = eris.Wrap(err, "ingest: read line")
			return "", false
		}
		l.err = io.EOF
		if line == "" {
			return "", false
		}
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), true
}

// Err returns the first non-EOF read error.
func (l *LineReader) Err() error {
	if errors.Is(l.err, io.EOF) {
		return nil
	}
	return l.err
}

// rowSource yields split rows; the first row is the header.
type rowSource interface {
	Next() ([]string, bool)
	Err() error
}

type lineRows struct {
	lines *LineReader
}

func (s lineRows) Next() ([]string, bool) {
	line, ok := s.lines.Next()
	if !ok {
		return nil, false
	}
	return SplitLine(line), true
}

func (s lineRows) Err() error { return s.lines.Err() }

// sliceRows serves rows already split, e.g. read from a workbook.
type sliceRows struct {
	rows [][]string
	pos  int
}

func (s *sliceRows) Next() ([]string, bool) {
	if s.pos >= len(s.rows) {
		return nil, false
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true
}

func (s *sliceRows) Err() error { return nil }
