package dataset

import (
	"bufio"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"
)

// DefaultChildLimit is the number of sessions ChildrenOf returns by default.
const DefaultChildLimit = 10

// Registry is the ordered list of sessions in one split. It is immutable once loaded.
type Registry struct {
	split    Split
	sessions []string
	index    map[string]struct{}
}

// LoadRegistry reads the session list of split under layout.
func LoadRegistry(layout Layout, split Split) (*Registry, error) {
	path, err := layout.SplitListPath(split)
	if err != nil {
		return nil, err
	}
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &SplitNotFoundError{Split: split, Path: path}
		}
		return nil, errors.Wrapf(err, "error opening session list %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	sessions, err := readSessionList(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading session list %q", path)
	}
	return NewRegistry(split, sessions), nil
}

// NewRegistry builds a registry from sessions in the given order.
func NewRegistry(split Split, sessions []string) *Registry {
	index := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		index[s] = struct{}{}
	}
	return &Registry{split: split, sessions: append([]string{}, sessions...), index: index}
}

// readSessionList keeps file order, strips trailing whitespace and skips blank lines.
func readSessionList(r io.Reader) ([]string, error) {
	var sessions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		if line == "" {
			continue
		}
		sessions = append(sessions, line)
	}
	return sessions, scanner.Err()
}

// Split is the split the registry was loaded for.
func (r *Registry) Split() Split {
	return r.split
}

// Len is the number of sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Sessions returns a copy of the sessions in file order.
func (r *Registry) Sessions() []string {
	return append([]string{}, r.sessions...)
}

// Contains reports whether session is listed.
func (r *Registry) Contains(session string) bool {
	_, ok := r.index[session]
	return ok
}

// ChildrenOf returns the sessions containing prefix as a substring, sorted ascending and
// truncated to limit. It returns fewer when fewer match and never pads.
func (r *Registry) ChildrenOf(prefix string, limit int) []string {
	children := lo.Filter(r.sessions, func(session string, _ int) bool {
		return strings.Contains(session, prefix)
	})
	slices.Sort(children)
	if limit < 0 {
		limit = 0
	}
	if len(children) > limit {
		children = children[:limit]
	}
	return children
}
