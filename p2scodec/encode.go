// The p2scodec package encodes requests for storage nodes and decodes
// their replies. Every record has a fixed layout, little endian, with
// no padding between fields.
package p2scodec

import (
	"bytes"
	"encoding/binary"
	"io"

	db "dproc/debug"
	"dproc/p2s"
	"dproc/serr"
)

// fixedWriter writes into a preallocated buffer and refuses to grow it.
type fixedWriter struct {
	b []byte
	n int
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > len(w.b) {
		return 0, io.ErrShortBuffer
	}
	copy(w.b[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

func encode(wr io.Writer, vs ...interface{}) *serr.Err {
	for _, v := range vs {
		if err := binary.Write(wr, binary.LittleEndian, v); err != nil {
			return serr.NewErr(serr.TErrBadFcall, err)
		}
	}
	return nil
}

// MarshalReq writes opcode and payload of req into b, which must hold
// at least p2s.MsgSize(req) bytes. It returns the number of bytes used.
func MarshalReq(b []byte, req p2s.Tmsg) (int, *serr.Err) {
	sz := p2s.MsgSize(req)
	if len(b) < sz {
		return 0, serr.NewErr(serr.TErrBadFcall, "short buffer")
	}
	wr := &fixedWriter{b: b}
	if err := encode(wr, uint32(req.Type())); err != nil {
		return 0, err
	}
	var err *serr.Err
	switch m := req.(type) {
	case *p2s.Tmkdir:
		err = encode(wr, m.Filename, m.Mode)
	case *p2s.Trmdir:
		err = encode(wr, m.Filename)
	case *p2s.Tunlink:
		err = encode(wr, m.Filename)
	case *p2s.Tgetdents:
		err = encode(wr, m.Filename, m.Pos, m.Count)
	default:
		return 0, serr.NewErr(serr.TErrBadFcall, req.Type())
	}
	if err != nil {
		return 0, err
	}
	db.DPrintf(db.P2SCODEC, "MarshalReq %v %d bytes", req, wr.n)
	return wr.n, nil
}

// UnmarshalReq decodes a request as received by a storage node.
func UnmarshalReq(b []byte) (p2s.Tmsg, *serr.Err) {
	rdr := bytes.NewReader(b)
	var op uint32
	if err := binary.Read(rdr, binary.LittleEndian, &op); err != nil {
		return nil, serr.NewErr(serr.TErrBadFcall, "opcode")
	}
	var req p2s.Tmsg
	switch p2s.Tfcall(op) {
	case p2s.P2S_MKDIR:
		req = &p2s.Tmkdir{}
	case p2s.P2S_RMDIR:
		req = &p2s.Trmdir{}
	case p2s.P2S_UNLINK:
		req = &p2s.Tunlink{}
	case p2s.P2S_GETDENTS:
		req = &p2s.Tgetdents{}
	default:
		return nil, serr.NewErr(serr.TErrBadFcall, p2s.Tfcall(op))
	}
	if len(b) != p2s.MsgSize(req) {
		return nil, serr.NewErr(serr.TErrBadFcall, "size")
	}
	if err := binary.Read(rdr, binary.LittleEndian, req); err != nil {
		return nil, serr.NewErr(serr.TErrBadFcall, err)
	}
	return req, nil
}
