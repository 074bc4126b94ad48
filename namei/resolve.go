package namei

import (
	"golang.org/x/sys/unix"

	db "dproc/debug"
	"dproc/path"
	"dproc/serr"
	"dproc/usermem"
)

// AT_FDCWD as a dfd means "relative to the current working directory".
const AT_FDCWD = unix.AT_FDCWD

// Working directories are not tracked yet; every process lives in /.
func getcwd() string {
	return "/"
}

// Resolve turns (dfd, pathname) into an absolute canonical pathname.
// An absolute pathname is used as is and dfd is never looked at. A
// relative one is appended to the cwd (for AT_FDCWD) or to the name of
// the file open at dfd, with exactly one separator in between.
func (nm *Namei) Resolve(dfd int, pathname usermem.Addr) (path.Tcanon, *serr.Err) {
	var kbuf [path.FILENAME_LEN_DEFAULT]byte

	n, err := nm.mem.StrnCopyIn(kbuf[:], pathname)
	if err != nil {
		return path.Tcanon{}, err
	}
	if n == len(kbuf) {
		return path.Tcanon{}, serr.NewErr(serr.TErrNameTooLong, pathname)
	}
	p := string(kbuf[:n])
	if p == "" {
		return path.Tcanon{}, serr.NewErr(serr.TErrNotfound, "empty pathname")
	}
	if path.IsAbs(p) {
		return path.NewCanon(p)
	}
	if dfd == AT_FDCWD {
		return path.Join(getcwd(), p)
	}
	f := nm.fds.Fetch(dfd)
	if f == nil {
		db.DPrintf(db.NAMEI_ERR, "Resolve %q: bad dfd %d", p, dfd)
		return path.Tcanon{}, serr.NewErr(serr.TErrBadFd, dfd)
	}
	defer nm.fds.Release(f)
	if !path.IsAbs(f.Name()) {
		db.DPrintf(db.NAMEI_ERR, "Resolve %q: dfd %d has relative name %q", p, dfd, f.Name())
		return path.Tcanon{}, serr.NewErr(serr.TErrBadFd, dfd)
	}
	db.DPrintf(db.NAMEI, "Resolve %q at dfd %d (%v)", p, dfd, f.Name())
	return path.Join(f.Name(), p)
}
