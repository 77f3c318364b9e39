// fsys/memory.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package fsys

import (
	"errors"
	"sort"
	"strconv"

	"github.com/beakfs/beak/vpath"
)

// Memory is an in-RAM FS, used only for testing code built on top of FS so
// that tests don't need to touch disk; mirrors storage/memory.go's role
// in the teacher, one layer up the stack.
type Memory struct {
	files   map[*vpath.Path][]byte
	stats   map[*vpath.Path]FileStat
	dirs    map[*vpath.Path][]*vpath.Path
	symlink map[*vpath.Path]string
	tmpSeq  int
}

func NewMemory() *Memory {
	m := &Memory{
		files:   make(map[*vpath.Path][]byte),
		stats:   make(map[*vpath.Path]FileStat),
		dirs:    make(map[*vpath.Path][]*vpath.Path),
		symlink: make(map[*vpath.Path]string),
	}
	root := vpath.Root()
	m.stats[root] = FileStat{Type: TypeDirectory}
	return m
}

func (m *Memory) String() string {
	return "memory"
}

// AddFile registers a regular file with the given contents at p, creating
// parent directory entries as needed; it's the construction-time API used
// by tests, distinct from CreateFile which implements the FS interface.
func (m *Memory) AddFile(p *vpath.Path, contents []byte, stat FileStat) {
	stat.Type = TypeRegular
	stat.Size = int64(len(contents))
	m.files[p] = contents
	m.stats[p] = stat
	m.linkIntoParent(p)
}

func (m *Memory) AddDir(p *vpath.Path, stat FileStat) {
	stat.Type = TypeDirectory
	m.stats[p] = stat
	if _, ok := m.dirs[p]; !ok {
		m.dirs[p] = nil
	}
	m.linkIntoParent(p)
}

func (m *Memory) AddSymlink(p *vpath.Path, target string, stat FileStat) {
	stat.Type = TypeSymlink
	m.stats[p] = stat
	m.symlink[p] = target
	m.linkIntoParent(p)
}

func (m *Memory) linkIntoParent(p *vpath.Path) {
	parent := p.Parent()
	if parent == nil {
		parent = vpath.Root()
	}
	for _, c := range m.dirs[parent] {
		if c == p {
			return
		}
	}
	m.dirs[parent] = append(m.dirs[parent], p)
}

func (m *Memory) ReadDir(p *vpath.Path) ([]*vpath.Path, error) {
	children := append([]*vpath.Path(nil), m.dirs[p]...)
	sort.Slice(children, func(i, j int) bool { return children[i].Str() < children[j].Str() })
	return children, nil
}

func (m *Memory) Pread(p *vpath.Path, buf []byte, offset int64) (int, error) {
	data, ok := m.files[p]
	if !ok {
		return 0, errors.New("fsys: no such file")
	}
	if offset >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[offset:])
	return n, nil
}

func (m *Memory) Stat(p *vpath.Path) (FileStat, error) {
	s, ok := m.stats[p]
	if !ok {
		return FileStat{}, errors.New("fsys: no such file")
	}
	return s, nil
}

func (m *Memory) MkTempFile(prefix string, contents []byte) (*vpath.Path, error) {
	m.tmpSeq++
	p, err := vpath.AppendName(vpath.Root(), prefix+strconv.Itoa(m.tmpSeq))
	if err != nil {
		return nil, err
	}
	m.AddFile(p, contents, FileStat{})
	return p, nil
}

func (m *Memory) MkTempDir(prefix string) (*vpath.Path, error) {
	m.tmpSeq++
	p, err := vpath.AppendName(vpath.Root(), prefix+strconv.Itoa(m.tmpSeq))
	if err != nil {
		return nil, err
	}
	m.AddDir(p, FileStat{})
	return p, nil
}

func (m *Memory) MkDir(parent *vpath.Path, name string) (*vpath.Path, error) {
	p, err := vpath.AppendName(parent, name)
	if err != nil {
		return nil, err
	}
	m.AddDir(p, FileStat{})
	return p, nil
}

func (m *Memory) CreateFile(p *vpath.Path, stat FileStat, produce Producer) error {
	var out []byte
	buf := make([]byte, 64*1024)
	var offset int64
	for {
		n, err := produce(offset, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
		offset += int64(n)
	}
	m.AddFile(p, out, stat)
	return nil
}

func (m *Memory) DeleteFile(p *vpath.Path) error {
	if _, ok := m.files[p]; !ok {
		return errors.New("fsys: no such file")
	}
	delete(m.files, p)
	delete(m.stats, p)
	return nil
}

func (m *Memory) Readlink(p *vpath.Path) (string, error) {
	target, ok := m.symlink[p]
	if !ok {
		return "", errors.New("fsys: not a symlink")
	}
	return target, nil
}

