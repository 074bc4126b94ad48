// The usermem package moves bytes between the syscall layer and the
// calling process' memory. Any access outside a mapped region faults.
package usermem

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	db "dproc/debug"
	"dproc/serr"
)

type Addr uint64

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

type MemI interface {
	// CopyIn fills dst from user memory at src.
	CopyIn(dst []byte, src Addr) *serr.Err
	// StrnCopyIn copies a NUL-terminated string from src into dst and
	// returns its length without the NUL. If dst fills up before a NUL
	// is found, it returns len(dst).
	StrnCopyIn(dst []byte, src Addr) (int, *serr.Err)
	// CopyOut writes src to user memory at dst. It may fault after
	// writing a prefix of src.
	CopyOut(dst Addr, src []byte) *serr.Err
}

const (
	base  Addr = 0x10000
	guard Addr = 0x1000
)

type region struct {
	start Addr
	buf   []byte
}

func (r *region) end() Addr {
	return r.start + Addr(len(r.buf))
}

// AddrSpace is an in-memory MemI. Regions are separated by unmapped
// guard gaps.
type AddrSpace struct {
	sync.Mutex
	regions []*region
	next    Addr
}

func NewAddrSpace() *AddrSpace {
	return &AddrSpace{next: base}
}

// Alloc maps a zeroed region of n bytes.
func (as *AddrSpace) Alloc(n int) Addr {
	as.Lock()
	defer as.Unlock()
	return as.mapL(make([]byte, n))
}

// AllocString maps s followed by a NUL.
func (as *AddrSpace) AllocString(s string) Addr {
	as.Lock()
	defer as.Unlock()
	return as.mapL(append([]byte(s), 0))
}

func (as *AddrSpace) mapL(buf []byte) Addr {
	r := &region{start: as.next, buf: buf}
	as.regions = append(as.regions, r)
	as.next = r.end() + guard
	as.next = (as.next + guard - 1) &^ (guard - 1)
	return r.start
}

// Unmap removes the region starting at a, so later accesses fault.
func (as *AddrSpace) Unmap(a Addr) {
	as.Lock()
	defer as.Unlock()

	for i, r := range as.regions {
		if r.start == a {
			as.regions = append(as.regions[:i], as.regions[i+1:]...)
			return
		}
	}
}

func (as *AddrSpace) lookupL(a Addr) *region {
	i := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].end() > a
	})
	if i < len(as.regions) && as.regions[i].start <= a {
		return as.regions[i]
	}
	return nil
}

func (as *AddrSpace) CopyIn(dst []byte, src Addr) *serr.Err {
	as.Lock()
	defer as.Unlock()

	r := as.lookupL(src)
	if r == nil || src+Addr(len(dst)) > r.end() {
		db.DPrintf(db.USERMEM, "CopyIn fault %v len %d", src, len(dst))
		return serr.NewErr(serr.TErrFault, src)
	}
	copy(dst, r.buf[src-r.start:])
	return nil
}

func (as *AddrSpace) StrnCopyIn(dst []byte, src Addr) (int, *serr.Err) {
	as.Lock()
	defer as.Unlock()

	r := as.lookupL(src)
	if r == nil {
		db.DPrintf(db.USERMEM, "StrnCopyIn fault %v", src)
		return 0, serr.NewErr(serr.TErrFault, src)
	}
	b := r.buf[src-r.start:]
	if i := bytes.IndexByte(b, 0); i >= 0 && i < len(dst) {
		copy(dst, b[:i+1])
		return i, nil
	}
	if len(b) < len(dst) {
		// runs off the end of the region before a NUL
		return 0, serr.NewErr(serr.TErrFault, src)
	}
	copy(dst, b)
	return len(dst), nil
}

func (as *AddrSpace) CopyOut(dst Addr, src []byte) *serr.Err {
	as.Lock()
	defer as.Unlock()

	r := as.lookupL(dst)
	if r == nil {
		db.DPrintf(db.USERMEM, "CopyOut fault %v len %d", dst, len(src))
		return serr.NewErr(serr.TErrFault, dst)
	}
	n := copy(r.buf[dst-r.start:], src)
	if n < len(src) {
		db.DPrintf(db.USERMEM, "CopyOut fault %v after %d of %d", dst, n, len(src))
		return serr.NewErr(serr.TErrFault, dst+Addr(n))
	}
	return nil
}

// Bytes returns a copy of n bytes at a, for inspection.
func (as *AddrSpace) Bytes(a Addr, n int) ([]byte, *serr.Err) {
	b := make([]byte, n)
	if err := as.CopyIn(b, a); err != nil {
		return nil, err
	}
	return b, nil
}
