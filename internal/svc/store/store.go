package store

import (
	"strings"

	"github.com/seventv/chatsync/internal/instance"
)

// within reports whether path is base or lies beneath it.
func within(base, path string) bool {
	if base == "" {
		return true
	}

	return path == base || strings.HasPrefix(path, base+"/")
}

// relative returns path relative to base. The caller checks within first.
func relative(base, path string) string {
	if path == base {
		return ""
	}

	if base == "" {
		return path
	}

	return strings.TrimPrefix(path, base+"/")
}

func validPath(path string) bool {
	if path == "" {
		return false
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return false
		}
	}

	return true
}

func newSnapshot(path string, values map[string][]byte) instance.Snapshot {
	cp := make(map[string][]byte, len(values))

	for k, v := range values {
		b := make([]byte, len(v))
		copy(b, v)
		cp[k] = b
	}

	return instance.Snapshot{
		Path:   path,
		Values: cp,
	}
}
