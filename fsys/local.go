// fsys/local.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package fsys

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"syscall"

	"github.com/beakfs/beak/vpath"
)

// Local implements FS against a real directory tree, rooted at Dir.
type Local struct {
	Dir string
}

// NewLocal returns an FS rooted at dir. dir must already exist.
func NewLocal(dir string) *Local {
	return &Local{Dir: dir}
}

func (l *Local) native(p *vpath.Path) string {
	return filepath.Join(l.Dir, p.Str())
}

func (l *Local) ReadDir(p *vpath.Path) ([]*vpath.Path, error) {
	entries, err := ioutil.ReadDir(l.native(p))
	if err != nil {
		return nil, err
	}
	out := make([]*vpath.Path, 0, len(entries))
	for _, e := range entries {
		c, err := vpath.AppendName(p, e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (l *Local) Pread(p *vpath.Path, buf []byte, offset int64) (int, error) {
	f, err := os.Open(l.native(p))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.ReadAt(buf, offset)
}

func (l *Local) Stat(p *vpath.Path) (FileStat, error) {
	fi, err := os.Lstat(l.native(p))
	if err != nil {
		return FileStat{}, err
	}
	return statFromFileInfo(fi), nil
}

func statFromFileInfo(fi os.FileInfo) FileStat {
	fs := FileStat{
		Perm:  uint32(fi.Mode().Perm()),
		Size:  fi.Size(),
		Mtime: fi.ModTime(),
	}
	switch {
	case fi.Mode().IsDir():
		fs.Type = TypeDirectory
	case fi.Mode()&os.ModeSymlink != 0:
		fs.Type = TypeSymlink
	case fi.Mode()&os.ModeNamedPipe != 0:
		fs.Type = TypeFIFO
	case fi.Mode()&os.ModeSocket != 0:
		fs.Type = TypeSocket
	case fi.Mode()&os.ModeDevice != 0:
		if fi.Mode()&os.ModeCharDevice != 0 {
			fs.Type = TypeCharDevice
		} else {
			fs.Type = TypeBlockDevice
		}
	default:
		fs.Type = TypeRegular
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		fs.Nlink = uint32(st.Nlink)
		fs.UID = st.Uid
		fs.GID = st.Gid
		fs.Rdev = uint64(st.Rdev)
		fs.Atime = fi.ModTime()
		fs.Ctime = fi.ModTime()
	}
	return fs
}

func (l *Local) MkTempFile(prefix string, contents []byte) (*vpath.Path, error) {
	f, err := ioutil.TempFile(l.Dir, prefix)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Write(contents); err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(l.Dir, f.Name())
	if err != nil {
		return nil, err
	}
	return vpath.Lookup("/" + rel)
}

func (l *Local) MkTempDir(prefix string) (*vpath.Path, error) {
	dir, err := ioutil.TempDir(l.Dir, prefix)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(l.Dir, dir)
	if err != nil {
		return nil, err
	}
	return vpath.Lookup("/" + rel)
}

func (l *Local) MkDir(parent *vpath.Path, name string) (*vpath.Path, error) {
	p, err := vpath.AppendName(parent, name)
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(l.native(p), 0755); err != nil {
		return nil, err
	}
	return p, nil
}

func (l *Local) CreateFile(p *vpath.Path, stat FileStat, produce Producer) error {
	f, err := os.OpenFile(l.native(p), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(stat.Perm))
	if err != nil {
		return err
	}
	defer f.Close()

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
		if _, err := f.WriteAt(buf[:n], offset); err != nil {
			return err
		}
		offset += int64(n)
	}
	return nil
}

func (l *Local) DeleteFile(p *vpath.Path) error {
	return os.Remove(l.native(p))
}

func (l *Local) Readlink(p *vpath.Path) (string, error) {
	return os.Readlink(l.native(p))
}

var _ fmt.Stringer = (*Local)(nil)

func (l *Local) String() string {
	return "local: " + l.Dir
}
