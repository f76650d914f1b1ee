package xar

import (
	"strings"

	"github.com/luci/luci-go/common/errors"
)

// PathEscapeError is returned when an archive path contains a ".." component
// anywhere, not just a leading one: "foo/../../bar" would otherwise collapse
// to "bar" and silently escape its intended parent.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return "path escapes archive root: " + e.Path
}

// DuplicateNameError is returned when two siblings would share a name.
type DuplicateNameError struct {
	Path string
}

func (e *DuplicateNameError) Error() string {
	return "duplicate name: " + e.Path
}

// splitArchivePath normalizes a "/"-separated in-archive path and splits it
// into path components, rejecting anything that escapes the root. Unlike
// path.Clean, it inspects every raw component before any collapsing happens,
// so an interior ".." is rejected rather than silently resolved away.
func splitArchivePath(p string) ([]string, error) {
	var parts []string
	for _, c := range strings.Split(p, "/") {
		switch c {
		case "", ".":
			continue
		case "..":
			return nil, &PathEscapeError{Path: p}
		default:
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return nil, errors.New("empty path")
	}
	return parts, nil
}
