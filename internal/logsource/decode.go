package logsource

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sniffLen is how many leading bytes are inspected to detect the file type.
const sniffLen = 3072

var (
	// ErrSourceUnavailable marks a source that is missing or unreadable.
	ErrSourceUnavailable = errors.New("logsource: source unavailable")
	// ErrUnsupportedSourceType marks a source whose content cannot be decoded.
	ErrUnsupportedSourceType = errors.New("logsource: unsupported source type")
)

// textTypes are read as plain text in addition to every text/* type.
var textTypes = []string{"application/octet-stream", "application/json"}

// decoded is a line-ready view over a raw stream.
type decoded struct {
	reader io.Reader
	mime   string
	close  func() error
}

// decodeStream sniffs br and returns a reader yielding UTF-8 text. Gzip input
// is decompressed; invalid UTF-8 sequences are replaced with U+FFFD.
func decodeStream(br *bufio.Reader) (*decoded, error) {
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: sniff: %v", ErrSourceUnavailable, err)
	}

	mtype := mimetype.Detect(head)
	out := &decoded{mime: mtype.String(), close: func() error { return nil }}

	switch {
	case isGzip(mtype):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrUnsupportedSourceType, err)
		}
		out.reader = gz
		out.close = gz.Close
	case isText(mtype):
		out.reader = br
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, mtype.String())
	}

	out.reader = transform.NewReader(out.reader, unicode.UTF8.NewDecoder())
	return out, nil
}

func isGzip(mtype *mimetype.MIME) bool {
	return mtype.Is("application/gzip") || mtype.Is("application/x-gzip")
}

func isText(mtype *mimetype.MIME) bool {
	if strings.HasPrefix(mtype.String(), "text/") {
		return true
	}
	for _, t := range textTypes {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

// countingReader tracks raw bytes consumed from the underlying reader.
type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
