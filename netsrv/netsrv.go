// The netsrv package is the storage-node end of the netclnt transport:
// it reads request frames from each connection, hands them to a
// handler, and writes back one reply frame per request, in order.
package netsrv

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	db "dproc/debug"
	"dproc/frame"
	"dproc/serr"
)

const BUFSZ = 64 * 1024

type HandlerI interface {
	ServeRequest(req []byte) []byte
}

type NetServer struct {
	mu     sync.Mutex
	addr   string
	h      HandlerI
	l      net.Listener
	conns  map[net.Conn]bool
	closed bool
	wg     sync.WaitGroup
}

func NewNetServer(h HandlerI, address string) (*NetServer, *serr.Err) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, serr.NewErrError(err)
	}
	srv := &NetServer{
		addr:  l.Addr().String(),
		h:     h,
		l:     l,
		conns: make(map[net.Conn]bool),
	}
	db.DPrintf(db.NETSRV, "listen %v myaddr %v\n", address, srv.addr)
	srv.wg.Add(1)
	go srv.runsrv()
	return srv, nil
}

func (srv *NetServer) MyAddr() string {
	return srv.addr
}

func (srv *NetServer) String() string {
	return fmt.Sprintf("{ addr: %v }", srv.addr)
}

func (srv *NetServer) runsrv() {
	defer srv.wg.Done()
	for {
		c, err := srv.l.Accept()
		if err != nil {
			db.DPrintf(db.NETSRV, "%v: Accept err %v", srv.addr, err)
			return
		}
		db.DPrintf(db.NETSRV, "accept %v\n", c.RemoteAddr())
		if !srv.addConn(c) {
			return
		}
		go srv.serveConn(c)
	}
}

// addConn registers c and accounts for its serveConn. After Close it
// closes c instead and returns false.
func (srv *NetServer) addConn(c net.Conn) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.closed {
		db.DPrintf(db.NETSRV, "%v: closed, drop %v", srv.addr, c.RemoteAddr())
		c.Close()
		return false
	}
	srv.conns[c] = true
	srv.wg.Add(1)
	return true
}

func (srv *NetServer) serveConn(c net.Conn) {
	defer srv.wg.Done()
	defer func() {
		srv.mu.Lock()
		delete(srv.conns, c)
		srv.mu.Unlock()
		c.Close()
	}()
	br := bufio.NewReaderSize(c, BUFSZ)
	bw := bufio.NewWriterSize(c, BUFSZ)
	for {
		req, err := frame.ReadFrame(br)
		if err != nil {
			db.DPrintf(db.NETSRV, "ReadFrame %v err %v", c.RemoteAddr(), err)
			return
		}
		rep := srv.h.ServeRequest(req)
		if err := frame.WriteFrame(bw, rep); err != nil {
			db.DPrintf(db.NETSRV_ERR, "WriteFrame %v err %v", c.RemoteAddr(), err)
			return
		}
		if err := bw.Flush(); err != nil {
			db.DPrintf(db.NETSRV_ERR, "Flush %v err %v", c.RemoteAddr(), err)
			return
		}
	}
}

// Close stops accepting, closes open connections, and waits for their
// goroutines to exit.
func (srv *NetServer) Close() error {
	srv.mu.Lock()
	srv.closed = true
	err := srv.l.Close()
	for c := range srv.conns {
		c.Close()
	}
	srv.mu.Unlock()
	srv.wg.Wait()
	return err
}
