// The rpcclnt package runs one remote call to a storage node: allocate
// the request and reply buffers, encode the request, block on the
// transport for the reply, hand the reply to the caller, and free both
// buffers. It keeps no state across calls and never retries.
package rpcclnt

import (
	db "dproc/debug"
	"dproc/malloc"
	"dproc/p2s"
	"dproc/p2scodec"
	"dproc/serr"
)

type TransportI interface {
	// SendAndWait delivers req to node n and blocks until the reply is
	// in reply. It returns the reply's actual length.
	SendAndWait(n p2s.Tnode, req []byte, reply []byte) (int, *serr.Err)
}

// ReplyF consumes a reply. rep is only valid until ReplyF returns.
type ReplyF func(rep []byte) *serr.Err

type RpcClnt struct {
	trans TransportI
	alloc malloc.Allocator
}

func NewRpcClnt(trans TransportI, alloc malloc.Allocator) *RpcClnt {
	return &RpcClnt{trans: trans, alloc: alloc}
}

// Call sends req to node n with room for a reply of replycap bytes and
// passes the reply, cut to the length the transport reported, to f.
func (rpcc *RpcClnt) Call(n p2s.Tnode, req p2s.Tmsg, replycap int, f ReplyF) *serr.Err {
	msg, err := rpcc.alloc.Alloc(p2s.MsgSize(req))
	if err != nil {
		db.DPrintf(db.RPCCLNT, "Call %v: alloc req err %v", req.Type(), err)
		return err
	}
	defer rpcc.alloc.Free(msg)

	rep, err := rpcc.alloc.Alloc(replycap)
	if err != nil {
		db.DPrintf(db.RPCCLNT, "Call %v: alloc reply %d err %v", req.Type(), replycap, err)
		return err
	}
	defer rpcc.alloc.Free(rep)

	sz, err := p2scodec.MarshalReq(msg, req)
	if err != nil {
		return err
	}
	nrep, err := rpcc.trans.SendAndWait(n, msg[:sz], rep)
	if err != nil {
		db.DPrintf(db.RPCCLNT, "Call %v %v: transport err %v", n, req.Type(), err)
		return err
	}
	if nrep > len(rep) {
		return serr.NewErr(serr.TErrBadReply, nrep)
	}
	db.DPrintf(db.RPCCLNT, "Call %v %v: reply %d of %d", n, req, nrep, replycap)
	return f(rep[:nrep])
}

// CallResult is Call for requests whose reply is a single result code.
func (rpcc *RpcClnt) CallResult(n p2s.Tnode, req p2s.Tmsg) (int64, *serr.Err) {
	var ret int64
	err := rpcc.Call(n, req, p2s.RESULT_SZ, func(rep []byte) *serr.Err {
		r, err := p2scodec.UnmarshalResult(rep)
		if err != nil {
			return err
		}
		ret = r
		return nil
	})
	return ret, err
}
