// vpath/order.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package vpath

// DepthFirstLess implements depthFirstSortPath: deeper paths sort first;
// among equal depths, ties break lexicographically component by component
// on the interned atoms, not on the joined string (a '/' byte can sort
// either side of a same-position byte in a sibling component's name, so
// the two orderings disagree -- see
// TestDepthFirstLessSameDepthTieBreaksOnComponents).
func DepthFirstLess(a, b *Path) bool {
	if a.depth != b.depth {
		return a.depth > b.depth
	}
	an, bn := a.Nodes(), b.Nodes()
	for i := 0; i < len(an) && i < len(bn); i++ {
		if an[i] != bn[i] {
			return an[i].name.Less(bn[i].name)
		}
	}
	return len(an) < len(bn)
}

// TarLess implements TarSort: a directory sorts before its contents,
// which sort before its siblings. Truncate both paths to the shallower
// depth; if the truncations are identical, the shallower path (the
// directory) sorts first, otherwise compare the truncations component by
// component.
func TarLess(a, b *Path) bool {
	if a == b {
		return false
	}

	d := a.depth
	if b.depth < d {
		d = b.depth
	}

	ta := a.ParentAtDepth(d)
	tb := b.ParentAtDepth(d)

	if ta == tb {
		// The truncations are the same path; the shallower of the two
		// original paths is the directory and sorts first.
		return a.depth < b.depth
	}

	an, bn := ta.Nodes(), tb.Nodes()
	for i := 0; i < len(an) && i < len(bn); i++ {
		if an[i] != bn[i] {
			return an[i].name.Less(bn[i].name)
		}
	}
	return len(an) < len(bn)
}
