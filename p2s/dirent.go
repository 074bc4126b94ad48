package p2s

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"dproc/serr"
)

// A Dirent is one record of a directory listing, laid out as
//
//	ino uint64 | off uint64 | reclen uint16 | name ... NUL | pad
//
// with reclen rounded up to 8 bytes. The syscall layer never parses
// these; storage nodes produce them and callers of getdents consume them.
type Dirent struct {
	Ino    uint64
	Off    uint64 // position cookie of the next entry
	Reclen uint16
	Name   string
}

const DIRENT_HDR_SZ = 8 + 8 + 2

func (d *Dirent) String() string {
	return fmt.Sprintf("{ino %d off %d reclen %d %q}", d.Ino, d.Off, d.Reclen, d.Name)
}

// DirentSize is the record length of an entry named name.
func DirentSize(name string) int {
	n := DIRENT_HDR_SZ + len(name) + 1
	return (n + 7) &^ 7
}

// MarshalDirent appends the record for d to b, setting its reclen.
func MarshalDirent(b []byte, d *Dirent) []byte {
	sz := DirentSize(d.Name)
	d.Reclen = uint16(sz)
	rec := make([]byte, sz)
	binary.LittleEndian.PutUint64(rec[0:], d.Ino)
	binary.LittleEndian.PutUint64(rec[8:], d.Off)
	binary.LittleEndian.PutUint16(rec[16:], d.Reclen)
	copy(rec[DIRENT_HDR_SZ:], d.Name)
	return append(b, rec...)
}

// UnmarshalDirents parses a blob returned by getdents.
func UnmarshalDirents(b []byte) ([]*Dirent, *serr.Err) {
	dents := make([]*Dirent, 0)
	for len(b) > 0 {
		if len(b) < DIRENT_HDR_SZ {
			return dents, serr.NewErr(serr.TErrBadReply, "dirent header")
		}
		d := &Dirent{
			Ino:    binary.LittleEndian.Uint64(b[0:]),
			Off:    binary.LittleEndian.Uint64(b[8:]),
			Reclen: binary.LittleEndian.Uint16(b[16:]),
		}
		if int(d.Reclen) < DIRENT_HDR_SZ+1 || int(d.Reclen) > len(b) {
			return dents, serr.NewErr(serr.TErrBadReply, fmt.Sprintf("dirent reclen %d", d.Reclen))
		}
		name := b[DIRENT_HDR_SZ:d.Reclen]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		d.Name = string(name)
		dents = append(dents, d)
		b = b[d.Reclen:]
	}
	return dents, nil
}
