// vpath/path.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package vpath

import (
	"errors"
	"regexp"
	"strings"
	"sync"
)

// ErrInvalidPath is returned by Lookup when a path string contains a NUL
// byte or a newline, neither of which can be round-tripped through the
// textual directory index.
var ErrInvalidPath = errors.New("vpath: invalid path")

// Path is an interned chain of Atoms. Equality is pointer identity; the
// zero value is not a valid Path (use Root()).
type Path struct {
	parent *Path
	name   *Atom
	depth  int
	str    string
}

var driveLetter = regexp.MustCompile(`^[A-Za-z]:$`)

var (
	pathMu    sync.Mutex
	pathTable = make(map[string]*Path)
	root      = &Path{str: ""}
)

func init() {
	pathTable[""] = root
}

// Root returns the interned root path (the empty string, depth 0).
func Root() *Path {
	return root
}

// Lookup interns the given path string, normalising separators and
// stripping a trailing slash, and returns the (possibly newly created)
// canonical *Path for it.
func Lookup(s string) (*Path, error) {
	if strings.ContainsAny(s, "\x00\n") {
		return nil, ErrInvalidPath
	}
	s = normalize(s)

	pathMu.Lock()
	defer pathMu.Unlock()
	return lookupLocked(s)
}

// MustLookup is like Lookup but panics on error; useful for literals known
// to be valid at compile time (tests, constants).
func MustLookup(s string) *Path {
	p, err := Lookup(s)
	if err != nil {
		panic(err)
	}
	return p
}

func normalize(s string) string {
	if len(s) >= 2 && driveLetter.MatchString(s[:2]) {
		s = strings.ReplaceAll(s, "\\", "/")
	}
	for len(s) > 1 && strings.HasSuffix(s, "/") {
		s = s[:len(s)-1]
	}
	return s
}

func lookupLocked(s string) (*Path, error) {
	if p, ok := pathTable[s]; ok {
		return p, nil
	}

	idx := strings.LastIndex(s, "/")
	var parent *Path
	var name string
	var depth int

	switch {
	case idx < 0:
		// No separator: either a bare drive-letter component, which is a
		// first-level child of the implicit root, or a relative name with
		// no parent at all.
		name = s
		if driveLetter.MatchString(s) {
			parent = root
			depth = 1
		} else {
			parent = nil
			depth = 0
		}
	default:
		parentStr := s[:idx]
		name = s[idx+1:]
		var err error
		parent, err = lookupLocked(parentStr)
		if err != nil {
			return nil, err
		}
		depth = parent.depth + 1
	}

	p := &Path{parent: parent, name: InternAtom(name), depth: depth, str: s}
	pathTable[s] = p
	return p, nil
}

// Parent returns the path's parent, or nil if it has none (either it is
// the root, or it is a relative top-level component).
func (p *Path) Parent() *Path {
	return p.parent
}

// Name returns the final component of the path as an Atom.
func (p *Path) Name() *Atom {
	return p.name
}

// Depth returns the number of components between this path and a path
// with no parent (0 for the root and for parent-less top-level names).
func (p *Path) Depth() int {
	return p.depth
}

// Str returns the path's canonical string form.
func (p *Path) Str() string {
	return p.str
}

func (p *Path) String() string {
	return p.str
}

// ParentAtDepth returns the ancestor of p at the given depth, or nil if d
// is out of range (d > p.depth).
func (p *Path) ParentAtDepth(d int) *Path {
	if d < 0 || d > p.depth {
		return nil
	}
	for p != nil && p.depth > d {
		p = p.parent
	}
	return p
}

// Nodes returns the chain of ancestors from the root (or top) down to and
// including p.
func (p *Path) Nodes() []*Path {
	n := make([]*Path, 0, p.depth+1)
	for cur := p; cur != nil; cur = cur.parent {
		n = append(n, cur)
	}
	for i, j := 0, len(n)-1; i < j; i, j = i+1, j-1 {
		n[i], n[j] = n[j], n[i]
	}
	return n
}

// AppendName interns and returns the path for p joined with the given
// single component name.
func AppendName(p *Path, name string) (*Path, error) {
	var s string
	if p.str == "" {
		s = "/" + name
	} else {
		s = p.str + "/" + name
	}
	return Lookup(s)
}

// Subpath returns the sub-path of p starting at ancestor depth `from` and
// spanning `length` components. A length of 0 returns (nil, false), not
// the empty path — this mirrors the original implementation's behaviour
// and is preserved deliberately (see DESIGN.md).
func (p *Path) Subpath(from, length int) (*Path, bool) {
	if length == 0 {
		return nil, false
	}
	if from < 0 || from > p.depth {
		return nil, false
	}

	nodes := p.Nodes() // len == p.depth+1
	to := from + length
	if length < 0 {
		to = len(nodes)
	}
	if to > len(nodes) || to <= from {
		return nil, false
	}
	sub := nodes[from:to]

	cur, err := Lookup(sub[0].name.String())
	if err != nil {
		return nil, false
	}
	for _, n := range sub[1:] {
		cur, err = AppendName(cur, n.name.String())
		if err != nil {
			return nil, false
		}
	}
	return cur, true
}

// Prepend returns a path equal to other's chain followed by p's chain
// (other becomes p's new top-level ancestor).
func Prepend(other, p *Path) (*Path, error) {
	if p == nil {
		return other, nil
	}
	parent := other
	var err error
	if p.parent != nil {
		parent, err = Prepend(other, p.parent)
		if err != nil {
			return nil, err
		}
	}
	if parent == nil {
		return Lookup(p.name.String())
	}
	return AppendName(parent, p.name.String())
}

// Reparent returns p with its ancestor chain up to (and including)
// oldAncestor replaced by newAncestor.
func Reparent(p, oldAncestor, newAncestor *Path) (*Path, error) {
	if p == oldAncestor {
		return newAncestor, nil
	}
	if p.parent == nil {
		return p, nil
	}
	parent, err := Reparent(p.parent, oldAncestor, newAncestor)
	if err != nil {
		return nil, err
	}
	if parent == p.parent {
		return p, nil
	}
	return AppendName(parent, p.name.String())
}

// CommonPrefix returns the deepest path that is an ancestor of both a and
// b (possibly the root, or nil if they share no ancestor at all).
func CommonPrefix(a, b *Path) *Path {
	an, bn := a.Nodes(), b.Nodes()
	var common *Path
	for i := 0; i < len(an) && i < len(bn); i++ {
		if an[i] != bn[i] {
			break
		}
		common = an[i]
	}
	return common
}
