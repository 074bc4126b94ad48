package namei_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thanhpk/randstr"
	"golang.org/x/sys/unix"

	"dproc/fdclnt"
	"dproc/homenode"
	"dproc/malloc"
	"dproc/namei"
	"dproc/p2s"
	"dproc/p2scodec"
	"dproc/path"
	"dproc/rpcclnt"
	"dproc/serr"
	"dproc/test"
	"dproc/usermem"
)

type tstate struct {
	*namei.Namei
	t    *testing.T
	fds  *fdclnt.FdTable
	mem  *usermem.AddrSpace
	pool *malloc.Pool
	home *homenode.ProcHome
	ft   *test.FakeTrans
}

func newTstate(t *testing.T, f test.ReplyFn) *tstate {
	ts := &tstate{
		t:    t,
		fds:  fdclnt.NewFdTable(),
		mem:  usermem.NewAddrSpace(),
		pool: malloc.NewPool(0),
		home: homenode.NewProcHome(homenode.Static(1)),
		ft:   test.NewFakeTrans(f),
	}
	ts.Namei = namei.NewNamei(ts.fds, ts.home, rpcclnt.NewRpcClnt(ts.ft, ts.pool), ts.mem)
	return ts
}

func (ts *tstate) done() {
	assert.Equal(ts.t, 0, ts.pool.Outstanding(), "scratch buffers leaked")
}

func (ts *tstate) refs(fd int) int {
	f, err := ts.fds.Lookup(fd)
	assert.Nil(ts.t, err)
	return f.Refs()
}

func ok(n p2s.Tnode, req []byte) ([]byte, *serr.Err) {
	return p2scodec.MarshalResult(0), nil
}

func reqOf(t *testing.T, b []byte) p2s.Tmsg {
	req, err := p2scodec.UnmarshalReq(b)
	assert.Nil(t, err)
	return req
}

func TestResolveAbsoluteIgnoresDfd(t *testing.T) {
	ts := newTstate(t, ok)
	for _, dfd := range []int{namei.AT_FDCWD, 0, 999, -7} {
		fn, err := ts.Resolve(dfd, ts.mem.AllocString("/a/b"))
		assert.Nil(t, err)
		assert.Equal(t, "/a/b", fn.String())
	}
}

func TestResolveCwd(t *testing.T) {
	ts := newTstate(t, ok)
	for i := 0; i < 10; i++ {
		p := randstr.Hex(1+i) + "/" + randstr.Hex(3)
		fn, err := ts.Resolve(namei.AT_FDCWD, ts.mem.AllocString(p))
		assert.Nil(t, err)
		assert.Equal(t, "/"+p, fn.String())
		assert.False(t, strings.HasPrefix(fn.String(), "//"))
	}
}

func TestResolveDfd(t *testing.T) {
	ts := newTstate(t, ok)
	fd := ts.fds.Open("/x")
	fdslash := ts.fds.Open("/x/")
	for _, d := range []int{fd, fdslash} {
		fn, err := ts.Resolve(d, ts.mem.AllocString("y"))
		assert.Nil(t, err)
		assert.Equal(t, "/x/y", fn.String())
		assert.Equal(t, 1, ts.refs(d))
	}
}

func TestResolveErrors(t *testing.T) {
	ts := newTstate(t, ok)

	_, err := ts.Resolve(42, ts.mem.AllocString("rel"))
	assert.True(t, err.IsErrCode(serr.TErrBadFd))

	// A fault is reported as such even when the dfd is bad too.
	_, err = ts.Resolve(42, 0)
	assert.True(t, err.IsErrCode(serr.TErrFault))

	_, err = ts.Resolve(namei.AT_FDCWD, ts.mem.AllocString(""))
	assert.True(t, err.IsErrCode(serr.TErrNotfound))

	_, err = ts.Resolve(namei.AT_FDCWD, ts.mem.AllocString(strings.Repeat("n", path.FILENAME_LEN_DEFAULT)))
	assert.True(t, err.IsErrCode(serr.TErrNameTooLong))
}

func TestResolveOverflow(t *testing.T) {
	ts := newTstate(t, ok)
	// "/" + 126 bytes + NUL fits exactly
	fn, err := ts.Resolve(namei.AT_FDCWD, ts.mem.AllocString(strings.Repeat("a", 126)))
	assert.Nil(t, err)
	assert.Equal(t, 127, fn.Len())

	_, err = ts.Resolve(namei.AT_FDCWD, ts.mem.AllocString(strings.Repeat("a", 127)))
	assert.True(t, err.IsErrCode(serr.TErrNameTooLong))

	fd := ts.fds.Open("/" + strings.Repeat("d", 100))
	_, err = ts.Resolve(fd, ts.mem.AllocString(strings.Repeat("e", 30)))
	assert.True(t, err.IsErrCode(serr.TErrNameTooLong))
	assert.Equal(t, 1, ts.refs(fd))
}

func TestMkdir(t *testing.T) {
	ts := newTstate(t, ok)
	assert.Equal(t, int64(0), ts.Mkdir(ts.mem.AllocString("d"), 0750))
	req := reqOf(t, ts.ft.LastReq()).(*p2s.Tmkdir)
	assert.Equal(t, "/d", req.Filename.String())
	assert.Equal(t, uint32(0750), req.Mode)
	ts.done()
}

func TestMkdirRemoteError(t *testing.T) {
	ts := newTstate(t, func(n p2s.Tnode, req []byte) ([]byte, *serr.Err) {
		return p2scodec.MarshalResult(-int64(unix.ENOENT)), nil
	})
	assert.Equal(t, -int64(unix.ENOENT), ts.Mkdir(ts.mem.AllocString("/x/y"), 0755))
	ts.done()
}

func TestMkdirLocalErrorsSkipTransport(t *testing.T) {
	ts := newTstate(t, ok)
	assert.Equal(t, -int64(unix.EFAULT), ts.Mkdir(0, 0755))
	assert.Equal(t, -int64(unix.ENAMETOOLONG), ts.Mkdir(ts.mem.AllocString(strings.Repeat("z", 200)), 0755))
	assert.Equal(t, 0, ts.ft.Ncall())
	ts.done()
}

func TestTransportErrorIsEIO(t *testing.T) {
	ts := newTstate(t, func(n p2s.Tnode, req []byte) ([]byte, *serr.Err) {
		return nil, serr.NewErr(serr.TErrUnreachable, n)
	})
	assert.Equal(t, -int64(unix.EIO), ts.Rmdir(ts.mem.AllocString("/d")))
	assert.Equal(t, 1, ts.ft.Ncall())
	ts.done()
}

func TestUnlinkat(t *testing.T) {
	ts := newTstate(t, ok)
	p := ts.mem.AllocString("/d")

	assert.Equal(t, int64(0), ts.Unlinkat(namei.AT_FDCWD, p, unix.AT_REMOVEDIR))
	assert.Equal(t, p2s.P2S_RMDIR, reqOf(t, ts.ft.LastReq()).Type())
	assert.Equal(t, int64(0), ts.Rmdir(p))
	assert.Equal(t, ts.ft.Reqs[0], ts.ft.LastReq())

	assert.Equal(t, int64(0), ts.Unlinkat(namei.AT_FDCWD, p, 0))
	assert.Equal(t, p2s.P2S_UNLINK, reqOf(t, ts.ft.LastReq()).Type())
	assert.Equal(t, int64(0), ts.Unlink(p))
	assert.Equal(t, ts.ft.Reqs[2], ts.ft.LastReq())

	n := ts.ft.Ncall()
	for _, flags := range []int{unix.AT_SYMLINK_NOFOLLOW, unix.AT_REMOVEDIR | unix.AT_SYMLINK_NOFOLLOW, 1, -1} {
		assert.Equal(t, -int64(unix.EINVAL), ts.Unlinkat(namei.AT_FDCWD, p, flags))
	}
	assert.Equal(t, n, ts.ft.Ncall())
	ts.done()
}

func TestUnlinkatDfd(t *testing.T) {
	ts := newTstate(t, ok)
	fd := ts.fds.Open("/dir")
	assert.Equal(t, int64(0), ts.Unlinkat(fd, ts.mem.AllocString("f"), 0))
	assert.Equal(t, "/dir/f", reqOf(t, ts.ft.LastReq()).(*p2s.Tunlink).Filename.String())
	assert.Equal(t, 1, ts.refs(fd))

	assert.Equal(t, -int64(unix.EBADF), ts.Unlinkat(fd+1, ts.mem.AllocString("f"), unix.AT_REMOVEDIR))
	ts.done()
}

func TestHomeNodeReadPerCall(t *testing.T) {
	ts := newTstate(t, ok)
	p := ts.mem.AllocString("/d")
	ts.Unlink(p)
	ts.home.SetStorageNode(9)
	ts.Unlink(p)
	assert.Equal(t, []p2s.Tnode{1, 9}, ts.ft.Nodes)
}

func getdentsReply(pos int64, blob []byte) test.ReplyFn {
	return func(n p2s.Tnode, req []byte) ([]byte, *serr.Err) {
		return p2scodec.MarshalGetdentsReply(&p2s.Rgetdents{Retval: 0, Pos: pos}, blob), nil
	}
}

func TestGetdents(t *testing.T) {
	blob := bytes.Repeat([]byte{0xab}, 37)
	ts := newTstate(t, getdentsReply(4096, blob))
	fd := ts.fds.Open("/d")
	buf := ts.mem.Alloc(4096)

	assert.Equal(t, int64(37), ts.Getdents(fd, buf, 4096))
	f, _ := ts.fds.Lookup(fd)
	assert.Equal(t, int64(4096), f.Pos())
	assert.Equal(t, 1, f.Refs())
	b, _ := ts.mem.Bytes(buf, 38)
	assert.Equal(t, blob, b[:37])
	assert.Equal(t, byte(0), b[37])

	req := reqOf(t, ts.ft.LastReq()).(*p2s.Tgetdents)
	assert.Equal(t, "/d", req.Filename.String())
	assert.Equal(t, int64(0), req.Pos)
	assert.Equal(t, uint32(4096), req.Count)

	// the next call continues from the new position
	ts.Getdents(fd, buf, 4096)
	assert.Equal(t, int64(4096), reqOf(t, ts.ft.LastReq()).(*p2s.Tgetdents).Pos)
	ts.done()
}

func TestGetdentsRemoteError(t *testing.T) {
	ts := newTstate(t, func(n p2s.Tnode, req []byte) ([]byte, *serr.Err) {
		return p2scodec.MarshalResult(-int64(unix.EIO)), nil
	})
	fd := ts.fds.Open("/d")
	f, _ := ts.fds.Lookup(fd)
	f.SetPos(17)
	buf := ts.mem.Alloc(64)
	assert.Nil(t, ts.mem.CopyOut(buf, bytes.Repeat([]byte{0x5a}, 64)))

	assert.Equal(t, -int64(unix.EIO), ts.Getdents(fd, buf, 64))
	assert.Equal(t, int64(17), f.Pos())
	assert.Equal(t, 1, f.Refs())
	b, _ := ts.mem.Bytes(buf, 64)
	assert.Equal(t, bytes.Repeat([]byte{0x5a}, 64), b)
	ts.done()
}

func TestGetdentsNegativeHeader(t *testing.T) {
	ts := newTstate(t, func(n p2s.Tnode, req []byte) ([]byte, *serr.Err) {
		return p2scodec.MarshalGetdentsReply(&p2s.Rgetdents{Retval: -int64(unix.ENOTDIR), Pos: 99}, nil), nil
	})
	fd := ts.fds.Open("/f")
	assert.Equal(t, -int64(unix.ENOTDIR), ts.Getdents(fd, ts.mem.Alloc(64), 64))
	f, _ := ts.fds.Lookup(fd)
	assert.Equal(t, int64(0), f.Pos())
	ts.done()
}

func TestGetdentsFault(t *testing.T) {
	ts := newTstate(t, getdentsReply(4096, bytes.Repeat([]byte{1}, 37)))
	fd := ts.fds.Open("/d")
	buf := ts.mem.Alloc(10) // too small: copy-out faults part way

	assert.Equal(t, -int64(unix.EFAULT), ts.Getdents(fd, buf, 4096))
	f, _ := ts.fds.Lookup(fd)
	assert.Equal(t, int64(4096), f.Pos())
	assert.Equal(t, 1, f.Refs())
	ts.done()
}

func TestGetdentsOversizedBlob(t *testing.T) {
	ts := newTstate(t, getdentsReply(1, make([]byte, 16)))
	fd := ts.fds.Open("/d")
	assert.Equal(t, -int64(unix.EIO), ts.Getdents(fd, ts.mem.Alloc(64), 8))
	f, _ := ts.fds.Lookup(fd)
	assert.Equal(t, int64(0), f.Pos())
	assert.Equal(t, 1, f.Refs())
	ts.done()
}

func TestGetdentsBadFd(t *testing.T) {
	ts := newTstate(t, ok)
	assert.Equal(t, -int64(unix.EBADF), ts.Getdents(3, ts.mem.Alloc(64), 64))
	assert.Equal(t, 0, ts.ft.Ncall())
}

func TestGetdentsOOM(t *testing.T) {
	ts := newTstate(t, ok)
	pool := malloc.NewPool(1 << 20)
	ts.Namei = namei.NewNamei(ts.fds, ts.home, rpcclnt.NewRpcClnt(ts.ft, pool), ts.mem)
	fd := ts.fds.Open("/d")
	assert.Equal(t, -int64(unix.ENOMEM), ts.Getdents(fd, ts.mem.Alloc(64), 1<<30))
	assert.Equal(t, 0, ts.ft.Ncall())
	assert.Equal(t, 0, pool.Outstanding())
	assert.Equal(t, 1, ts.refs(fd))
}

func TestGetdentsHugeCount(t *testing.T) {
	ts := newTstate(t, ok)
	fd := ts.fds.Open("/d")
	assert.Equal(t, -int64(unix.ENOMEM), ts.Getdents(fd, ts.mem.Alloc(64), 0xffffffff))
	assert.Equal(t, 0, ts.ft.Ncall())
	assert.Equal(t, 1, ts.refs(fd))
	ts.done()
}

func TestRelativeFdName(t *testing.T) {
	ts := newTstate(t, ok)
	fd := ts.fds.Open("x")
	_, err := ts.Resolve(fd, ts.mem.AllocString("y"))
	assert.True(t, err.IsErrCode(serr.TErrBadFd))
	assert.Equal(t, -int64(unix.EBADF), ts.Unlinkat(fd, ts.mem.AllocString("y"), 0))
	assert.Equal(t, -int64(unix.EBADF), ts.Getdents(fd, ts.mem.Alloc(64), 64))
	assert.Equal(t, 0, ts.ft.Ncall())
	assert.Equal(t, 1, ts.refs(fd))
}

func TestGetcwd(t *testing.T) {
	ts := newTstate(t, ok)
	buf := ts.mem.Alloc(8)
	assert.Equal(t, int64(2), ts.Getcwd(buf, 8))
	b, _ := ts.mem.Bytes(buf, 2)
	assert.Equal(t, []byte("/\x00"), b)
	assert.Equal(t, -int64(unix.ERANGE), ts.Getcwd(buf, 1))
	assert.Equal(t, -int64(unix.EFAULT), ts.Getcwd(0, 8))
	assert.Equal(t, 0, ts.ft.Ncall())
}

func TestRequestIsBitExact(t *testing.T) {
	ts := newTstate(t, ok)
	ts.Mkdir(ts.mem.AllocString("/d"), 0755)
	b := ts.ft.LastReq()
	assert.Equal(t, 4+path.FILENAME_LEN_DEFAULT+4, len(b))
	assert.Equal(t, uint32(p2s.P2S_MKDIR), binary.LittleEndian.Uint32(b))
	assert.Equal(t, uint32(0755), binary.LittleEndian.Uint32(b[4+path.FILENAME_LEN_DEFAULT:]))
}
