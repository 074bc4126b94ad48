// The frame package delimits messages on a byte stream: each frame is
// a little-endian uint32 length followed by that many bytes.
package frame

import (
	"encoding/binary"
	"io"

	db "dproc/debug"
	"dproc/serr"
)

// MAXFRAME bounds the size of a frame a peer may announce.
const MAXFRAME = 64 << 20

func ReadFrame(rd io.Reader) ([]byte, *serr.Err) {
	var l uint32
	if err := binary.Read(rd, binary.LittleEndian, &l); err != nil {
		return nil, serr.NewErr(serr.TErrUnreachable, err)
	}
	db.DPrintf(db.FRAME, "ReadFrame %d\n", l)
	if l > MAXFRAME {
		return nil, serr.NewErr(serr.TErrBadReply, "frame too large")
	}
	frame := make([]byte, l)
	n, e := io.ReadFull(rd, frame)
	if n != int(l) {
		return nil, serr.NewErr(serr.TErrUnreachable, e)
	}
	return frame, nil
}

// ReadFrameInto reads a frame into buf and returns its length. A frame
// larger than buf is consumed from the stream and reported as a bad
// reply.
func ReadFrameInto(rd io.Reader, buf []byte) (int, *serr.Err) {
	var l uint32
	if err := binary.Read(rd, binary.LittleEndian, &l); err != nil {
		return 0, serr.NewErr(serr.TErrUnreachable, err)
	}
	db.DPrintf(db.FRAME, "ReadFrameInto %d cap %d\n", l, len(buf))
	if int(l) > len(buf) {
		if _, err := io.CopyN(io.Discard, rd, int64(l)); err != nil {
			return 0, serr.NewErr(serr.TErrUnreachable, err)
		}
		return 0, serr.NewErr(serr.TErrBadReply, "frame exceeds buffer")
	}
	n, e := io.ReadFull(rd, buf[:l])
	if n != int(l) {
		return 0, serr.NewErr(serr.TErrUnreachable, e)
	}
	return n, nil
}

func WriteFrame(wr io.Writer, frame []byte) *serr.Err {
	l := uint32(len(frame))
	if err := binary.Write(wr, binary.LittleEndian, l); err != nil {
		return serr.NewErr(serr.TErrUnreachable, err.Error())
	}
	return WriteRawBuffer(wr, frame)
}

func WriteRawBuffer(wr io.Writer, buf []byte) *serr.Err {
	if n, err := wr.Write(buf); err != nil {
		return serr.NewErr(serr.TErrUnreachable, err.Error())
	} else if n < len(buf) {
		return serr.NewErr(serr.TErrUnreachable, "writeRawBuffer too short")
	}
	return nil
}
