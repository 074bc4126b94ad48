package p2scodec

import (
	"encoding/binary"

	db "dproc/debug"
	"dproc/p2s"
	"dproc/serr"
)

func MarshalResult(ret int64) []byte {
	b := make([]byte, p2s.RESULT_SZ)
	binary.LittleEndian.PutUint64(b, uint64(ret))
	return b
}

// UnmarshalResult decodes a single-result-code reply of n bytes.
func UnmarshalResult(b []byte) (int64, *serr.Err) {
	if len(b) < p2s.RESULT_SZ {
		return 0, serr.NewErr(serr.TErrBadReply, len(b))
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// MarshalGetdentsReply builds a successful listing reply: the fixed
// header followed by the raw entries.
func MarshalGetdentsReply(hdr *p2s.Rgetdents, blob []byte) []byte {
	b := make([]byte, p2s.GETDENTS_HDR_SZ, p2s.GETDENTS_HDR_SZ+len(blob))
	binary.LittleEndian.PutUint64(b[0:], uint64(hdr.Retval))
	binary.LittleEndian.PutUint64(b[8:], uint64(hdr.Pos))
	return append(b, blob...)
}

// UnmarshalGetdentsReply splits a listing reply into its header and the
// entries blob. rep must already be cut to the length the transport
// reported; that length is the only record of how large the blob is.
// A reply that is exactly one result code wide means the storage node
// failed before listing anything. The returned blob aliases rep.
func UnmarshalGetdentsReply(rep []byte, count uint32) (*p2s.Rgetdents, []byte, *serr.Err) {
	n := len(rep)
	if n == p2s.RESULT_SZ {
		ret, _ := UnmarshalResult(rep)
		if ret >= 0 {
			return nil, nil, serr.NewErr(serr.TErrBadReply, "bare non-negative result")
		}
		return nil, nil, serr.NewErrRemote(ret, p2s.P2S_GETDENTS)
	}
	if n < p2s.GETDENTS_HDR_SZ {
		return nil, nil, serr.NewErr(serr.TErrBadReply, n)
	}
	hdr := &p2s.Rgetdents{
		Retval: int64(binary.LittleEndian.Uint64(rep[0:])),
		Pos:    int64(binary.LittleEndian.Uint64(rep[8:])),
	}
	if hdr.Retval < 0 {
		return hdr, nil, serr.NewErrRemote(hdr.Retval, p2s.P2S_GETDENTS)
	}
	blob := rep[p2s.GETDENTS_HDR_SZ:n]
	if len(blob) > int(count) {
		db.DPrintf(db.P2SCODEC, "UnmarshalGetdentsReply blob %d > count %d", len(blob), count)
		return hdr, nil, serr.NewErr(serr.TErrBadReply, "entries exceed count")
	}
	return hdr, blob, nil
}
