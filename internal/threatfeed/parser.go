package threatfeed

import (
	"bufio"
	"bytes"
	"io"
	"net/url"
	"strings"
)

// Parser extracts entries from a threat feed format.
type Parser interface {
	Parse(r io.Reader) ([]string, error)
}

// HostfileParser reads "0.0.0.0 host" style block lists.
type HostfileParser struct{}

var hostfileReserved = map[string]bool{
	"localhost": true, "localhost.localdomain": true, "broadcasthost": true, "local": true,
}

func (HostfileParser) Parse(r io.Reader) ([]string, error) {
	return parseLines(r, func(line string) (string, bool) {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", false
		}
		host := strings.ToLower(fields[1])
		return host, !hostfileReserved[host]
	})
}

// DomainListParser reads one domain per line.
type DomainListParser struct{}

func (DomainListParser) Parse(r io.Reader) ([]string, error) {
	return parseLines(r, func(line string) (string, bool) {
		return strings.ToLower(line), true
	})
}

// URLListParser reads one URL (or bare domain) per line, as published by
// OpenPhish. Scheme and host are lower-cased; paths keep their case.
type URLListParser struct{}

func (URLListParser) Parse(r io.Reader) ([]string, error) {
	return parseLines(r, func(line string) (string, bool) {
		return canonicalEntry(line), true
	})
}

// maxLineBytes bounds a single feed line. Longer lines are skipped.
const maxLineBytes = 1 << 20

// parseLines feeds every non-blank, non-comment line to entry and returns
// the accepted results in first-seen order without duplicates.
func parseLines(r io.Reader, entry func(line string) (string, bool)) ([]string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	seen := make(map[string]struct{})
	var out []string
	for {
		raw, tooLong, err := readLine(br)
		if line := strings.TrimSpace(string(raw)); !tooLong && line != "" && line[0] != '#' {
			if e, ok := entry(line); ok {
				if _, dup := seen[e]; !dup {
					seen[e] = struct{}{}
					out = append(out, e)
				}
			}
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxLineBytes is consumed to its end and reported with tooLong set.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineBytes {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		return bytes.TrimRight(line, "\r\n"), tooLong, rerr
	}
}

func canonicalEntry(line string) string {
	if !strings.Contains(line, "://") {
		return strings.ToLower(line)
	}
	u, err := url.Parse(line)
	if err != nil || u.Host == "" {
		return line
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// ParserForFormat maps a feed format name to its parser; unknown names are
// treated as URL lists.
func ParserForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "hostfile":
		return HostfileParser{}
	case "domain-list":
		return DomainListParser{}
	default:
		return URLListParser{}
	}
}
