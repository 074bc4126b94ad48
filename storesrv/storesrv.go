// The storesrv package emulates a storage node's namespace in memory.
// It answers mkdir, rmdir, unlink and getdents requests exactly as a
// storage node puts them on the wire: a bare result code for the first
// three and for a failed listing, a header plus raw entries otherwise.
package storesrv

import (
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	db "dproc/debug"
	"dproc/p2s"
	"dproc/p2scodec"
	"dproc/path"
)

type inode struct {
	ino     uint64
	mode    uint32
	entries map[string]*inode // nil for files
}

func (i *inode) isDir() bool {
	return i.entries != nil
}

type StoreSrv struct {
	mu   sync.Mutex
	root *inode
	next uint64
	nreq int
}

func NewStoreSrv() *StoreSrv {
	ss := &StoreSrv{next: 2}
	ss.root = &inode{ino: 1, mode: unix.S_IFDIR | 0755, entries: make(map[string]*inode)}
	return ss
}

func (ss *StoreSrv) newInode(mode uint32, dir bool) *inode {
	i := &inode{ino: ss.next, mode: mode}
	ss.next++
	if dir {
		i.entries = make(map[string]*inode)
	}
	return i
}

// walkL returns the inode at pn, or an errno.
func (ss *StoreSrv) walkL(pn path.Tpathname) (*inode, unix.Errno) {
	i := ss.root
	for _, e := range pn {
		if !i.isDir() {
			return nil, unix.ENOTDIR
		}
		c, ok := i.entries[e]
		if !ok {
			return nil, unix.ENOENT
		}
		i = c
	}
	return i, 0
}

func (ss *StoreSrv) parentL(pn path.Tpathname) (*inode, unix.Errno) {
	d, eno := ss.walkL(pn.Dir())
	if eno != 0 {
		return nil, eno
	}
	if !d.isDir() {
		return nil, unix.ENOTDIR
	}
	return d, 0
}

func result(eno unix.Errno) int64 {
	return -int64(eno)
}

func (ss *StoreSrv) mkdir(fn string, mode uint32) int64 {
	pn := path.Split(fn)
	if len(pn) == 0 {
		return result(unix.EEXIST)
	}
	d, eno := ss.parentL(pn)
	if eno != 0 {
		return result(eno)
	}
	if _, ok := d.entries[pn.Base()]; ok {
		return result(unix.EEXIST)
	}
	d.entries[pn.Base()] = ss.newInode(unix.S_IFDIR|(mode&0777), true)
	return 0
}

func (ss *StoreSrv) rmdir(fn string) int64 {
	pn := path.Split(fn)
	if len(pn) == 0 {
		return result(unix.EBUSY)
	}
	d, eno := ss.parentL(pn)
	if eno != 0 {
		return result(eno)
	}
	i, ok := d.entries[pn.Base()]
	if !ok {
		return result(unix.ENOENT)
	}
	if !i.isDir() {
		return result(unix.ENOTDIR)
	}
	if len(i.entries) > 0 {
		return result(unix.ENOTEMPTY)
	}
	delete(d.entries, pn.Base())
	return 0
}

func (ss *StoreSrv) unlink(fn string) int64 {
	pn := path.Split(fn)
	if len(pn) == 0 {
		return result(unix.EISDIR)
	}
	d, eno := ss.parentL(pn)
	if eno != 0 {
		return result(eno)
	}
	i, ok := d.entries[pn.Base()]
	if !ok {
		return result(unix.ENOENT)
	}
	if i.isDir() {
		return result(unix.EISDIR)
	}
	delete(d.entries, pn.Base())
	return 0
}

// getdents packs entries of fn starting at index pos until count bytes
// are used. The position cookie is the index of the next entry.
func (ss *StoreSrv) getdents(fn string, pos int64, count uint32) []byte {
	pn := path.Split(fn)
	d, eno := ss.walkL(pn)
	if eno != 0 {
		return p2scodec.MarshalResult(result(eno))
	}
	if !d.isDir() {
		return p2scodec.MarshalResult(result(unix.ENOTDIR))
	}
	if pos < 0 {
		return p2scodec.MarshalResult(result(unix.EINVAL))
	}
	parent, _ := ss.walkL(pn.Dir())
	names := make([]string, 0, len(d.entries))
	for n := range d.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	ents := make([]*p2s.Dirent, 0, len(names)+2)
	ents = append(ents, &p2s.Dirent{Ino: d.ino, Name: "."}, &p2s.Dirent{Ino: parent.ino, Name: ".."})
	for _, n := range names {
		ents = append(ents, &p2s.Dirent{Ino: d.entries[n].ino, Name: n})
	}
	var blob []byte
	i := pos
	for ; i < int64(len(ents)); i++ {
		e := ents[i]
		if len(blob)+p2s.DirentSize(e.Name) > int(count) {
			break
		}
		e.Off = uint64(i + 1)
		blob = p2s.MarshalDirent(blob, e)
	}
	if len(blob) == 0 && i < int64(len(ents)) {
		// buffer too small for even one entry
		return p2scodec.MarshalResult(result(unix.EINVAL))
	}
	return p2scodec.MarshalGetdentsReply(&p2s.Rgetdents{Retval: int64(len(blob)), Pos: i}, blob)
}

// ServeRequest decodes one request and returns its encoded reply.
func (ss *StoreSrv) ServeRequest(b []byte) []byte {
	req, err := p2scodec.UnmarshalReq(b)
	if err != nil {
		db.DPrintf(db.STORESRV_ERR, "UnmarshalReq err %v", err)
		return p2scodec.MarshalResult(result(unix.EINVAL))
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.nreq++
	db.DPrintf(db.STORESRV, "ServeRequest %v", req)
	switch m := req.(type) {
	case *p2s.Tmkdir:
		return p2scodec.MarshalResult(ss.mkdir(m.Filename.String(), m.Mode))
	case *p2s.Trmdir:
		return p2scodec.MarshalResult(ss.rmdir(m.Filename.String()))
	case *p2s.Tunlink:
		return p2scodec.MarshalResult(ss.unlink(m.Filename.String()))
	case *p2s.Tgetdents:
		return ss.getdents(m.Filename.String(), m.Pos, m.Count)
	}
	return p2scodec.MarshalResult(result(unix.EINVAL))
}

// Create adds a regular file at fn. Regular files are created through
// other syscall paths; tests and the daemon use this to seed a
// namespace.
func (ss *StoreSrv) Create(fn string) unix.Errno {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	pn := path.Split(fn)
	if len(pn) == 0 {
		return unix.EEXIST
	}
	d, eno := ss.parentL(pn)
	if eno != 0 {
		return eno
	}
	if _, ok := d.entries[pn.Base()]; ok {
		return unix.EEXIST
	}
	d.entries[pn.Base()] = ss.newInode(unix.S_IFREG|0644, false)
	return 0
}

// Exists reports whether fn names a file or directory.
func (ss *StoreSrv) Exists(fn string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, eno := ss.walkL(path.Split(fn))
	return eno == 0
}

// Nreq is the number of requests served.
func (ss *StoreSrv) Nreq() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.nreq
}
