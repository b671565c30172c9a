package nagios

import (
	"bufio"
	"io"
	"regexp"

	"github.com/pkg/errors"
)

// RawObject is one block from a monitoring source file:
// its type tag and the raw key/value fields.
type RawObject struct {
	Type   string
	Fields map[string]string
}

var (
	defStart    = regexp.MustCompile(`^\s*define\s+(\w+)\s*\{`)
	defField    = regexp.MustCompile(`^\s*([a-zA-Z0-9_]+)\s+(.*?)\s*$`)
	statusStart = regexp.MustCompile(`^\s*(\w+)\s*\{`)
	statusField = regexp.MustCompile(`^\s*([a-zA-Z0-9_]+)=(.*)$`)
	blockEnd    = regexp.MustCompile(`^\s*\}`)
)

// ParseObjects reads a configuration snapshot: "define <type> {" blocks of
// whitespace-separated key/value lines, terminated by "}". Text between
// blocks (comments, blank lines) is skipped; a malformed line inside a
// block is a hard parse error.
func ParseObjects(r io.Reader) ([]RawObject, error) {
	return parseBlocks(r, defStart, defField)
}

// ParseStatus reads a status snapshot: "<type> {" blocks of key=value
// lines, terminated by "}". Same error contract as ParseObjects.
func ParseStatus(r io.Reader) ([]RawObject, error) {
	return parseBlocks(r, statusStart, statusField)
}

func parseBlocks(r io.Reader, start, field *regexp.Regexp) ([]RawObject, error) {
	var objs []RawObject

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	var current *RawObject

	for scanner.Scan() {
		line := scanner.Text()
		lineno++

		if current == nil {
			if m := start.FindStringSubmatch(line); m != nil {
				objs = append(objs, RawObject{Type: m[1], Fields: map[string]string{}})
				current = &objs[len(objs)-1]
			}

			continue
		}

		if m := field.FindStringSubmatch(line); m != nil {
			current.Fields[m[1]] = m[2]
		} else if blockEnd.MatchString(line) {
			current = nil
		} else {
			return nil, errors.Errorf("unexpected line %d in %s block: %q", lineno, current.Type, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "can't read source")
	}

	if current != nil {
		return nil, errors.Errorf("unterminated %s block", current.Type)
	}

	return objs, nil
}
