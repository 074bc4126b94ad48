// The netclnt package is a request/reply transport to storage nodes
// over TCP. Each call writes one request frame and blocks for exactly
// one reply frame; calls to the same node are serialized on that
// node's connection, so no tags are needed to match replies.
package netclnt

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	db "dproc/debug"
	"dproc/frame"
	"dproc/p2s"
	"dproc/serr"
)

const (
	DialTimeout = 5 * time.Second
	BUFSZ       = 64 * 1024
)

type conn struct {
	mu   sync.Mutex
	node p2s.Tnode
	c    net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

type NetClnt struct {
	mu     sync.Mutex
	addrs  map[p2s.Tnode]string
	conns  map[p2s.Tnode]*conn
	closed bool
}

func NewNetClnt(addrs map[p2s.Tnode]string) *NetClnt {
	nc := &NetClnt{
		addrs: make(map[p2s.Tnode]string),
		conns: make(map[p2s.Tnode]*conn),
	}
	for n, a := range addrs {
		nc.addrs[n] = a
	}
	return nc
}

func (nc *NetClnt) String() string {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return fmt.Sprintf("{addrs %v nconn %d}", nc.addrs, len(nc.conns))
}

// SetAddr registers (or moves) the address of node n.
func (nc *NetClnt) SetAddr(n p2s.Tnode, addr string) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.addrs[n] = addr
	if c, ok := nc.conns[n]; ok {
		c.c.Close()
		delete(nc.conns, n)
	}
}

func (nc *NetClnt) getConn(n p2s.Tnode) (*conn, *serr.Err) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	if nc.closed {
		return nil, serr.NewErr(serr.TErrUnreachable, "closed")
	}
	if c, ok := nc.conns[n]; ok {
		return c, nil
	}
	addr, ok := nc.addrs[n]
	if !ok {
		db.DPrintf(db.NETCLNT_ERR, "no address for %v", n)
		return nil, serr.NewErr(serr.TErrUnreachable, n)
	}
	c, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		db.DPrintf(db.NETCLNT_ERR, "Dial %v %v err %v", n, addr, err)
		return nil, serr.NewErr(serr.TErrUnreachable, addr)
	}
	db.DPrintf(db.NETCLNT, "connected %v -> %v (%v)", c.LocalAddr(), c.RemoteAddr(), n)
	cn := &conn{
		node: n,
		c:    c,
		br:   bufio.NewReaderSize(c, BUFSZ),
		bw:   bufio.NewWriterSize(c, BUFSZ),
	}
	nc.conns[n] = cn
	return cn, nil
}

// dropConn forgets cn after an I/O error, so the next call redials.
func (nc *NetClnt) dropConn(cn *conn) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.conns[cn.node] == cn {
		delete(nc.conns, cn.node)
	}
	cn.c.Close()
}

// SendAndWait sends req to node n and blocks until its reply has been
// read into reply. It returns the reply's actual length, which may be
// less than len(reply).
func (nc *NetClnt) SendAndWait(n p2s.Tnode, req []byte, reply []byte) (int, *serr.Err) {
	cn, err := nc.getConn(n)
	if err != nil {
		return 0, err
	}
	cn.mu.Lock()
	defer cn.mu.Unlock()

	if err := frame.WriteFrame(cn.bw, req); err != nil {
		nc.dropConn(cn)
		return 0, err
	}
	if e := cn.bw.Flush(); e != nil {
		db.DPrintf(db.NETCLNT_ERR, "Flush %v err %v", n, e)
		nc.dropConn(cn)
		return 0, serr.NewErr(serr.TErrUnreachable, e)
	}
	sz, err := frame.ReadFrameInto(cn.br, reply)
	if err != nil {
		db.DPrintf(db.NETCLNT_ERR, "ReadFrameInto %v err %v", n, err)
		if !err.IsErrCode(serr.TErrBadReply) {
			nc.dropConn(cn)
		}
		return 0, err
	}
	db.DPrintf(db.NETCLNT, "SendAndWait %v req %d rep %d", n, len(req), sz)
	return sz, nil
}

func (nc *NetClnt) Close() error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.closed = true
	for n, c := range nc.conns {
		c.c.Close()
		delete(nc.conns, n)
	}
	return nil
}
