package namei_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thanhpk/randstr"
	"golang.org/x/sys/unix"

	db "dproc/debug"
	"dproc/namei"
	"dproc/p2s"
	"dproc/test"
)

// ls lists the directory open at fd by calling getdents until it
// returns 0.
func ls(ts *test.Tstate, fd int) []string {
	const count = 256
	buf := ts.Mem.Alloc(count)
	names := []string{}
	for {
		n := ts.Getdents(fd, buf, count)
		assert.True(ts.T, n >= 0, "getdents %d", n)
		if n <= 0 {
			break
		}
		b, err := ts.Mem.Bytes(buf, int(n))
		assert.Nil(ts.T, err)
		dents, err := p2s.UnmarshalDirents(b)
		assert.Nil(ts.T, err)
		for _, d := range dents {
			if d.Name != "." && d.Name != ".." {
				names = append(names, d.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func TestStorageMkdirLs(t *testing.T) {
	ts := test.NewTstate(t)
	defer ts.Shutdown()

	dn := "d-" + randstr.Hex(4)
	assert.Equal(t, int64(0), ts.Mkdir(ts.Str(dn), 0755))
	assert.Equal(t, -int64(unix.EEXIST), ts.Mkdir(ts.Str("/"+dn), 0755))

	want := []string{}
	for i := 0; i < 25; i++ {
		n := randstr.Hex(6)
		want = append(want, n)
		assert.Equal(t, int64(0), ts.Mkdir(ts.Str(dn+"/"+n), 0755))
	}
	sort.Strings(want)

	fd := ts.Fds.Open("/" + dn)
	got := ls(ts, fd)
	db.DPrintf(db.TEST, "ls %v: %v", dn, got)
	assert.Equal(t, want, got)
	f, _ := ts.Fds.Lookup(fd)
	assert.Equal(t, 1, f.Refs())

	for _, n := range want {
		assert.Equal(t, int64(0), ts.Unlinkat(fd, ts.Str(n), unix.AT_REMOVEDIR))
	}
	assert.Nil(t, ts.Fds.Close(fd))

	fd = ts.Fds.Open("/" + dn)
	assert.Equal(t, 0, len(ls(ts, fd)))
	assert.Nil(t, ts.Fds.Close(fd))

	assert.Equal(t, int64(0), ts.Rmdir(ts.Str(dn)))
	assert.Equal(t, -int64(unix.ENOENT), ts.Rmdir(ts.Str(dn)))
}

func TestStorageUnlink(t *testing.T) {
	ts := test.NewTstate(t)
	defer ts.Shutdown()

	if ts.Store == nil {
		t.Skip("needs the in-process storage node")
	}
	fn := "/f-" + randstr.Hex(4)
	assert.Equal(t, unix.Errno(0), ts.Store.Create(fn))
	assert.Equal(t, -int64(unix.ENOTDIR), ts.Rmdir(ts.Str(fn)))
	assert.Equal(t, int64(0), ts.Unlinkat(namei.AT_FDCWD, ts.Str(fn), 0))
	assert.False(t, ts.Store.Exists(fn))
	assert.Equal(t, -int64(unix.ENOENT), ts.Unlink(ts.Str(fn)))
}

func TestStorageNotDir(t *testing.T) {
	ts := test.NewTstate(t)
	defer ts.Shutdown()

	if ts.Store == nil {
		t.Skip("needs the in-process storage node")
	}
	fn := "/g-" + randstr.Hex(4)
	assert.Equal(t, unix.Errno(0), ts.Store.Create(fn))
	fd := ts.Fds.Open(fn)
	assert.Equal(t, -int64(unix.ENOTDIR), ts.Getdents(fd, ts.Mem.Alloc(256), 256))
	f, _ := ts.Fds.Lookup(fd)
	assert.Equal(t, int64(0), f.Pos())
	assert.Equal(t, int64(0), ts.Unlink(ts.Str(fn)))
}

func TestStorageUnreachable(t *testing.T) {
	ts := test.NewTstate(t)
	defer ts.Shutdown()

	ts.Home.SetStorageNode(test.STORAGE_NODE + 1)
	assert.Equal(t, -int64(unix.EIO), ts.Mkdir(ts.Str("/x"), 0755))
}
