package path

import (
	"bytes"

	"dproc/serr"
)

// FILENAME_LEN_DEFAULT is the capacity of a pathname on the wire,
// terminating NUL included.
const FILENAME_LEN_DEFAULT = 128

// A Tcanon is a NUL-padded pathname in the fixed-size buffer format
// exchanged with storage nodes. Constructors never truncate: a name
// that does not fit, with its terminator, is rejected.
type Tcanon [FILENAME_LEN_DEFAULT]byte

func fits(n int) bool {
	return n+1 <= FILENAME_LEN_DEFAULT
}

func NewCanon(p string) (Tcanon, *serr.Err) {
	var c Tcanon
	if !fits(len(p)) {
		return c, serr.NewErr(serr.TErrNameTooLong, p)
	}
	copy(c[:], p)
	return c, nil
}

// Join returns base/suffix, inserting a separator only when base does
// not already end with one. The result is built in a scratch buffer
// and only returned once it is known to fit.
func Join(base, suffix string) (Tcanon, *serr.Err) {
	var c Tcanon
	n := len(base) + len(suffix)
	sep := !EndSlash(base)
	if sep {
		n++
	}
	if !fits(n) {
		return c, serr.NewErr(serr.TErrNameTooLong, base+"/"+suffix)
	}
	i := copy(c[:], base)
	if sep {
		c[i] = '/'
		i++
	}
	copy(c[i:], suffix)
	return c, nil
}

// CanonBytes interprets b as a NUL-terminated name (e.g., a decoded
// wire field).
func CanonBytes(b []byte) (Tcanon, *serr.Err) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return NewCanon(string(b))
}

func (c *Tcanon) Len() int {
	if i := bytes.IndexByte(c[:], 0); i >= 0 {
		return i
	}
	return len(c)
}

func (c *Tcanon) String() string {
	return string(c[:c.Len()])
}

func (c *Tcanon) IsAbs() bool {
	return c[0] == '/'
}

func (c *Tcanon) Pathname() Tpathname {
	return Split(c.String())
}
