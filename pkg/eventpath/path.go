// Package eventpath builds and interprets the materialized paths of project
// events. A path is the dot-separated list of ancestor ids ending with the
// node's own id, stored in PostgreSQL as an ltree.
package eventpath

import (
	"fmt"
	"regexp"
	"strings"
)

// Separator delimits path labels.
const Separator = "."

// ltree labels on PostgreSQL 16+: letters, digits, underscore and hyphen.
var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,1000}$`)

// Root returns the path of a root node: its own id.
func Root(id string) string {
	return id
}

// Child returns the path of a node with the given id under parentPath.
func Child(parentPath, id string) string {
	return parentPath + Separator + id
}

// IsDescendantOf reports whether candidate lies strictly below ancestor.
// A path is not its own descendant, and "a.bc" is not below "a.b".
func IsDescendantOf(candidate, ancestor string) bool {
	if ancestor == "" || len(candidate) <= len(ancestor) {
		return false
	}
	return strings.HasPrefix(candidate, ancestor+Separator)
}

// Segments splits a path into its labels.
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// Depth is the number of labels minus one; a root has depth 0.
func Depth(path string) int {
	return len(Segments(path)) - 1
}

// Parent returns the path one level up, or "" for a root.
func Parent(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Leaf returns the last label of the path (the node's own id).
func Leaf(path string) string {
	return path[strings.LastIndex(path, Separator)+1:]
}

// Validate checks that every label of path is a valid ltree label.
func Validate(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	for i, label := range Segments(path) {
		if !labelPattern.MatchString(label) {
			return fmt.Errorf("invalid path label %q at position %d", label, i)
		}
	}
	return nil
}
