// The namei package implements the directory syscalls of a processor
// node. Each call resolves its pathname locally, ships one request to
// the process' storage home node, and turns the outcome into the
// syscall convention: a non-negative result or a negative errno.
package namei

import (
	"golang.org/x/sys/unix"

	db "dproc/debug"
	"dproc/fdclnt"
	"dproc/homenode"
	"dproc/p2s"
	"dproc/p2scodec"
	"dproc/path"
	"dproc/rpcclnt"
	"dproc/serr"
	"dproc/usermem"
)

type FdTableI interface {
	Fetch(fd int) fdclnt.FileI
	Release(fdclnt.FileI)
}

type Namei struct {
	fds  FdTableI
	home homenode.RouterI
	rpcc *rpcclnt.RpcClnt
	mem  usermem.MemI
}

func NewNamei(fds FdTableI, home homenode.RouterI, rpcc *rpcclnt.RpcClnt, mem usermem.MemI) *Namei {
	return &Namei{fds: fds, home: home, rpcc: rpcc, mem: mem}
}

func syscallExit(name string, ret int64) int64 {
	if ret < 0 {
		db.DPrintf(db.SYSCALL, "%v ret %d (%v)", name, ret, unix.Errno(-ret))
	} else {
		db.DPrintf(db.SYSCALL, "%v ret %d", name, ret)
	}
	return ret
}

// call sends a request whose reply is a bare result code. The storage
// node's code is returned unchanged.
func (nm *Namei) call(req p2s.Tmsg) int64 {
	ret, err := nm.rpcc.CallResult(nm.home.StorageHomeNode(), req)
	if err != nil {
		db.DPrintf(db.NAMEI_ERR, "%v err %v", req, err)
		return err.Errno()
	}
	return ret
}

func (nm *Namei) rmdir(dfd int, pathname usermem.Addr) int64 {
	fn, err := nm.Resolve(dfd, pathname)
	if err != nil {
		return err.Errno()
	}
	return nm.call(p2s.NewTrmdir(fn))
}

func (nm *Namei) unlinkat(dfd int, pathname usermem.Addr) int64 {
	fn, err := nm.Resolve(dfd, pathname)
	if err != nil {
		return err.Errno()
	}
	return nm.call(p2s.NewTunlink(fn))
}

func (nm *Namei) Mkdir(pathname usermem.Addr, mode uint32) int64 {
	db.DPrintf(db.SYSCALL, "mkdir %v mode %o", pathname, mode)
	fn, err := nm.Resolve(AT_FDCWD, pathname)
	if err != nil {
		return syscallExit("mkdir", err.Errno())
	}
	return syscallExit("mkdir", nm.call(p2s.NewTmkdir(fn, mode)))
}

func (nm *Namei) Rmdir(pathname usermem.Addr) int64 {
	db.DPrintf(db.SYSCALL, "rmdir %v", pathname)
	return syscallExit("rmdir", nm.rmdir(AT_FDCWD, pathname))
}

func (nm *Namei) Unlink(pathname usermem.Addr) int64 {
	db.DPrintf(db.SYSCALL, "unlink %v", pathname)
	return syscallExit("unlink", nm.unlinkat(AT_FDCWD, pathname))
}

// Unlinkat removes a directory if flags is AT_REMOVEDIR, a file if
// flags is 0. Any other flag is invalid.
func (nm *Namei) Unlinkat(dfd int, pathname usermem.Addr, flags int) int64 {
	db.DPrintf(db.SYSCALL, "unlinkat dfd %d %v flags %#x", dfd, pathname, flags)
	if flags&^unix.AT_REMOVEDIR != 0 {
		return syscallExit("unlinkat", -int64(unix.EINVAL))
	}
	if flags&unix.AT_REMOVEDIR != 0 {
		return syscallExit("unlinkat", nm.rmdir(dfd, pathname))
	}
	return syscallExit("unlinkat", nm.unlinkat(dfd, pathname))
}

// Getdents lists the directory open at fd into dirent, at most count
// bytes, and returns the number of bytes written. The file's position
// moves to the storage node's cookie before anything is copied out, so
// a fault in the copy still leaves the position right for a retry.
func (nm *Namei) Getdents(fd int, dirent usermem.Addr, count uint32) int64 {
	db.DPrintf(db.SYSCALL, "getdents fd %d count %d", fd, count)
	f := nm.fds.Fetch(fd)
	if f == nil {
		return syscallExit("getdents", -int64(unix.EBADF))
	}
	held := true
	release := func() {
		if held {
			nm.fds.Release(f)
			held = false
		}
	}
	defer release()

	if !path.IsAbs(f.Name()) {
		return syscallExit("getdents", -int64(unix.EBADF))
	}
	fn, err := path.NewCanon(f.Name())
	if err != nil {
		return syscallExit("getdents", err.Errno())
	}
	req := p2s.NewTgetdents(fn, f.Pos(), count)
	var ret int64
	err = nm.rpcc.Call(nm.home.StorageHomeNode(), req, p2s.GETDENTS_HDR_SZ+int(count), func(rep []byte) *serr.Err {
		hdr, blob, err := p2scodec.UnmarshalGetdentsReply(rep, count)
		if err != nil {
			return err
		}
		f.SetPos(hdr.Pos)
		release()
		if len(blob) > 0 {
			if err := nm.mem.CopyOut(dirent, blob); err != nil {
				return err
			}
		}
		ret = int64(len(blob))
		return nil
	})
	if err != nil {
		db.DPrintf(db.NAMEI_ERR, "getdents %v err %v", req, err)
		return syscallExit("getdents", err.Errno())
	}
	return syscallExit("getdents", ret)
}

// Getcwd copies the working directory, NUL included, into buf.
func (nm *Namei) Getcwd(buf usermem.Addr, size uint64) int64 {
	db.DPrintf(db.SYSCALL, "getcwd size %d", size)
	cwd := append([]byte(getcwd()), 0)
	if size < uint64(len(cwd)) {
		return syscallExit("getcwd", -int64(unix.ERANGE))
	}
	if err := nm.mem.CopyOut(buf, cwd); err != nil {
		return syscallExit("getcwd", err.Errno())
	}
	return syscallExit("getcwd", int64(len(cwd)))
}
