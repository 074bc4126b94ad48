package test

import (
	"sync"

	"dproc/malloc"
	"dproc/p2s"
	"dproc/serr"
)

type ReplyFn func(n p2s.Tnode, req []byte) ([]byte, *serr.Err)

// FakeTrans is a transport that records every request and answers
// from a scripted reply function.
type FakeTrans struct {
	sync.Mutex
	Reply ReplyFn
	Nodes []p2s.Tnode
	Reqs  [][]byte
}

func NewFakeTrans(f ReplyFn) *FakeTrans {
	return &FakeTrans{Reply: f}
}

func (ft *FakeTrans) SendAndWait(n p2s.Tnode, req []byte, reply []byte) (int, *serr.Err) {
	ft.Lock()
	ft.Nodes = append(ft.Nodes, n)
	ft.Reqs = append(ft.Reqs, append([]byte{}, req...))
	f := ft.Reply
	ft.Unlock()

	rep, err := f(n, req)
	if err != nil {
		return 0, err
	}
	if len(rep) > len(reply) {
		return 0, serr.NewErr(serr.TErrBadReply, "reply exceeds buffer")
	}
	return copy(reply, rep), nil
}

func (ft *FakeTrans) Ncall() int {
	ft.Lock()
	defer ft.Unlock()
	return len(ft.Reqs)
}

func (ft *FakeTrans) LastReq() []byte {
	ft.Lock()
	defer ft.Unlock()
	if len(ft.Reqs) == 0 {
		return nil
	}
	return ft.Reqs[len(ft.Reqs)-1]
}

// FailAlloc wraps a pool and fails every allocation after the first
// Nok ones.
type FailAlloc struct {
	*malloc.Pool
	sync.Mutex
	Nok int
	n   int
}

func NewFailAlloc(nok int) *FailAlloc {
	return &FailAlloc{Pool: malloc.NewPool(0), Nok: nok}
}

func (fa *FailAlloc) Alloc(sz int) ([]byte, *serr.Err) {
	fa.Lock()
	fa.n++
	fail := fa.n > fa.Nok
	fa.Unlock()
	if fail {
		return nil, serr.NewErr(serr.TErrNoMem, sz)
	}
	return fa.Pool.Alloc(sz)
}
