package fdclnt

import (
	"sync"

	db "dproc/debug"
	"dproc/serr"
)

const (
	MAXFD = 20
)

type FdTable struct {
	sync.Mutex
	fds     []*File
	freefds map[int]bool
}

func NewFdTable() *FdTable {
	fdt := &FdTable{}
	fdt.fds = make([]*File, 0, MAXFD)
	fdt.freefds = make(map[int]bool)
	return fdt
}

// Open allocates the lowest free fd for a file with the given name.
func (fdt *FdTable) Open(name string) int {
	fdt.Lock()
	defer fdt.Unlock()

	f := newFile(name)
	if len(fdt.freefds) > 0 {
		fd := -1
		for i := range fdt.freefds {
			if fd < 0 || i < fd {
				fd = i
			}
		}
		delete(fdt.freefds, fd)
		fdt.fds[fd] = f
		return fd
	}
	// no free one
	fdt.fds = append(fdt.fds, f)
	return len(fdt.fds) - 1
}

// Caller must have locked fdt
func (fdt *FdTable) lookupL(fd int) (*File, *serr.Err) {
	if fd < 0 || fd >= len(fdt.fds) || fdt.fds[fd] == nil {
		return nil, serr.NewErr(serr.TErrBadFd, fd)
	}
	return fdt.fds[fd], nil
}

func (fdt *FdTable) Close(fd int) *serr.Err {
	fdt.Lock()
	defer fdt.Unlock()

	f, err := fdt.lookupL(fd)
	if err != nil {
		return err
	}
	fdt.fds[fd] = nil
	fdt.freefds[fd] = true
	fdt.put(f)
	return nil
}

// Fetch takes a reference on the file open at fd. It returns nil if fd
// is not open. The reference must be dropped with Release.
func (fdt *FdTable) Fetch(fd int) FileI {
	fdt.Lock()
	defer fdt.Unlock()

	f, err := fdt.lookupL(fd)
	if err != nil {
		db.DPrintf(db.FDCLNT, "Fetch %v", err)
		return nil
	}
	f.Lock()
	f.ref++
	f.Unlock()
	return f
}

func (fdt *FdTable) Release(fi FileI) {
	fdt.put(fi.(*File))
}

func (fdt *FdTable) put(f *File) {
	f.Lock()
	defer f.Unlock()
	if f.ref <= 0 {
		db.DFatalf("put %v: no reference", f.name)
	}
	f.ref--
}

// Lookup returns the file at fd without taking a reference.
func (fdt *FdTable) Lookup(fd int) (*File, *serr.Err) {
	fdt.Lock()
	defer fdt.Unlock()
	return fdt.lookupL(fd)
}
