// The p2s package defines the processor-to-storage wire protocol: the
// operation tags, the fixed-layout request payloads, and the reply
// shapes. The format is closed and versionless; both ends must agree
// on every field width.
package p2s

import (
	"fmt"
	"math"

	"dproc/path"
)

// Tnode identifies a node on the fabric.
type Tnode int32

const (
	NoNode Tnode = -1

	// UNSET_STORAGE_NODE marks a process that has no storage home node
	// of its own yet.
	UNSET_STORAGE_NODE Tnode = math.MaxInt32
)

func (n Tnode) String() string {
	switch n {
	case NoNode:
		return "nonode"
	case UNSET_STORAGE_NODE:
		return "unset"
	}
	return fmt.Sprintf("node%d", int32(n))
}

type Tfcall uint32

const (
	P2S_MKDIR Tfcall = iota + 0x30
	P2S_RMDIR
	P2S_UNLINK
	P2S_GETDENTS
)

func (fc Tfcall) String() string {
	switch fc {
	case P2S_MKDIR:
		return "Tmkdir"
	case P2S_RMDIR:
		return "Trmdir"
	case P2S_UNLINK:
		return "Tunlink"
	case P2S_GETDENTS:
		return "Tgetdents"
	default:
		return fmt.Sprintf("Tunknown %d", uint32(fc))
	}
}

// Wire sizes, in bytes.
const (
	OPCODE_SZ       = 4
	RESULT_SZ       = 8  // a bare signed result code
	GETDENTS_HDR_SZ = 16 // Rgetdents
)

// Tmsg is the closed set of requests a processor node sends.
type Tmsg interface {
	Type() Tfcall
	isTmsg()
}

type Tmkdir struct {
	Filename path.Tcanon
	Mode     uint32
}

func NewTmkdir(fn path.Tcanon, mode uint32) *Tmkdir {
	return &Tmkdir{Filename: fn, Mode: mode}
}

func (m *Tmkdir) Type() Tfcall { return P2S_MKDIR }
func (m *Tmkdir) isTmsg()      {}

func (m *Tmkdir) String() string {
	return fmt.Sprintf("{%v %v mode %o}", m.Type(), m.Filename.String(), m.Mode)
}

type Trmdir struct {
	Filename path.Tcanon
}

func NewTrmdir(fn path.Tcanon) *Trmdir {
	return &Trmdir{Filename: fn}
}

func (m *Trmdir) Type() Tfcall { return P2S_RMDIR }
func (m *Trmdir) isTmsg()      {}

func (m *Trmdir) String() string {
	return fmt.Sprintf("{%v %v}", m.Type(), m.Filename.String())
}

type Tunlink struct {
	Filename path.Tcanon
}

func NewTunlink(fn path.Tcanon) *Tunlink {
	return &Tunlink{Filename: fn}
}

func (m *Tunlink) Type() Tfcall { return P2S_UNLINK }
func (m *Tunlink) isTmsg()      {}

func (m *Tunlink) String() string {
	return fmt.Sprintf("{%v %v}", m.Type(), m.Filename.String())
}

type Tgetdents struct {
	Filename path.Tcanon
	Pos      int64 // opaque position cookie
	Count    uint32
}

func NewTgetdents(fn path.Tcanon, pos int64, count uint32) *Tgetdents {
	return &Tgetdents{Filename: fn, Pos: pos, Count: count}
}

func (m *Tgetdents) Type() Tfcall { return P2S_GETDENTS }
func (m *Tgetdents) isTmsg()      {}

func (m *Tgetdents) String() string {
	return fmt.Sprintf("{%v %v pos %d count %d}", m.Type(), m.Filename.String(), m.Pos, m.Count)
}

// Rgetdents is the fixed header of a listing reply. The entries blob
// follows it directly; its length is whatever remains of the reply.
type Rgetdents struct {
	Retval int64
	Pos    int64
}

func (r *Rgetdents) String() string {
	return fmt.Sprintf("{Rgetdents ret %d pos %d}", r.Retval, r.Pos)
}

// PayloadSize is the size of req on the wire without its opcode.
func PayloadSize(req Tmsg) int {
	switch req.(type) {
	case *Tmkdir:
		return path.FILENAME_LEN_DEFAULT + 4
	case *Trmdir, *Tunlink:
		return path.FILENAME_LEN_DEFAULT
	case *Tgetdents:
		return path.FILENAME_LEN_DEFAULT + 8 + 4
	}
	return 0
}

// MsgSize is the size of req on the wire, opcode included.
func MsgSize(req Tmsg) int {
	return OPCODE_SZ + PayloadSize(req)
}
