package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"
)

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Fprintf(format string, a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, a...)
}

func (e *errWriter) Fprintln(a ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, a...)
}

// ASCII preview: printable -> itself, else '.'
func asciiPreview(b []byte) string {
	var buf bytes.Buffer
	for _, c := range b {
		r := rune(c)
		if c < unicode.MaxASCII && unicode.IsPrint(r) {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

const dumpRow = 32

// Dump prints the page header and a hex view of the body. Runs of all-zero
// rows are collapsed.
func (p *Page) Dump(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.Fprintf("=== Page %d:%d ===\n", p.FileID(), p.PageID())
	ew.Fprintf("lsn=%d checksum=%016x next_free=%d records=%d\n",
		p.LSN(), p.Checksum(), p.NextFreePageID(), p.RecordNum())

	ew.Fprintln("-- Body --")
	body := p.Body()
	skipped := 0
	for off := 0; off < len(body) && ew.err == nil; off += dumpRow {
		row := body[off:min(off+dumpRow, len(body))]
		if isZero(row) {
			skipped++
			continue
		}
		if skipped > 0 {
			ew.Fprintf("  ... %d zero rows\n", skipped)
			skipped = 0
		}
		ew.Fprintf("%06x  %-64s  %s\n", PageHeaderSize+off, hex.EncodeToString(row), asciiPreview(row))
	}
	if skipped > 0 {
		ew.Fprintf("  ... %d zero rows\n", skipped)
	}
	ew.Fprintln("=== End Page ===")
	return ew.err
}

func (p *Page) DumpString() string {
	var b bytes.Buffer
	if err := p.Dump(&b); err != nil {
		_, _ = b.WriteString("\n<dump write error: " + err.Error() + ">\n")
	}
	return b.String()
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
