package fdclnt

import (
	"fmt"
	"sync"
)

// FileI is the part of an open file the syscall layer may touch: its
// recorded name and its position cookie.
type FileI interface {
	Name() string
	Pos() int64
	SetPos(int64)
}

// File is an open file object. Its reference count is owned by the
// FdTable: the table holds one reference while the fd is open, and
// every Fetch holds one more until the matching Release.
type File struct {
	sync.Mutex
	name string
	pos  int64
	ref  int
}

func newFile(name string) *File {
	return &File{name: name, ref: 1}
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Pos() int64 {
	f.Lock()
	defer f.Unlock()
	return f.pos
}

func (f *File) SetPos(pos int64) {
	f.Lock()
	defer f.Unlock()
	f.pos = pos
}

func (f *File) Refs() int {
	f.Lock()
	defer f.Unlock()
	return f.ref
}

func (f *File) String() string {
	f.Lock()
	defer f.Unlock()
	return fmt.Sprintf("{%q pos %d ref %d}", f.name, f.pos, f.ref)
}
