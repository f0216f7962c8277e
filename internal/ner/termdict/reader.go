package termdict

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/resilience"
)

// tsvReader reads termlist records: tab-separated fields, records
// terminated by newline, no quoting. A backslash escapes the following
// byte, so fields may contain literal tabs, newlines and backslashes.
// Blank lines are skipped, in line with encoding/csv.
type tsvReader struct {
	r    *bufio.Reader
	line int
}

func newTSVReader(r io.Reader) *tsvReader {
	return &tsvReader{r: bufio.NewReaderSize(r, 64<<10)}
}

// Read returns the next record and its 1-based line number, or io.EOF
// after the last record.
func (t *tsvReader) Read() ([]string, int, error) {
	for {
		t.line++
		record, err := t.readRecord()
		if err == io.EOF && record == nil {
			return nil, 0, io.EOF
		}
		if err != nil && err != io.EOF {
			return nil, 0, fmt.Errorf("line %d: %w", t.line, err)
		}
		if record == nil {
			// Blank line.
			continue
		}
		return record, t.line, nil
	}
}

func (t *tsvReader) readRecord() ([]string, error) {
	var (
		record []string
		field  strings.Builder
		any    bool
	)
	for {
		b, err := t.r.ReadByte()
		if err == io.EOF {
			if !any {
				return nil, io.EOF
			}
			record = append(record, field.String())
			return record, io.EOF
		}
		if err != nil {
			return nil, err
		}
		switch b {
		case '\\':
			next, err := t.r.ReadByte()
			if err == io.EOF {
				field.WriteByte(b)
				record = append(record, field.String())
				return record, io.EOF
			}
			if err != nil {
				return nil, err
			}
			field.WriteByte(next)
			any = true
		case '\t':
			record = append(record, field.String())
			field.Reset()
			any = true
		case '\r':
			// Dropped only as part of a \r\n terminator.
			if peek, err := t.r.Peek(1); err == nil && peek[0] == '\n' {
				continue
			}
			field.WriteByte(b)
			any = true
		case '\n':
			if !any {
				return nil, nil
			}
			record = append(record, field.String())
			return record, nil
		default:
			field.WriteByte(b)
			any = true
		}
	}
}

// openSource opens the termlist for reading. Local paths open
// directly; http and https URLs are fetched with retry. Any other URL
// scheme is a configuration error.
func openSource(ctx context.Context, path string) (io.ReadCloser, error) {
	scheme, _, isURL := strings.Cut(path, "://")
	if !isURL {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open termlist: %w", err)
		}
		return f, nil
	}
	switch scheme {
	case "http", "https":
		return fetchRemote(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported termlist scheme %q", scheme)
	}
}

// isRemote reports whether the termlist path is a URL rather than a
// local file.
func isRemote(path string) bool {
	return strings.Contains(path, "://")
}

func fetchRemote(ctx context.Context, url string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := resilience.Retry(ctx, "termlist fetch", resilience.RetryConfig{}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("fetch %s: %s", url, resp.Status)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
