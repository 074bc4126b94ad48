// The test package boots an in-process processor node wired to a
// storage node for package tests.
package test

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"

	db "dproc/debug"
	"dproc/fdclnt"
	"dproc/homenode"
	"dproc/malloc"
	"dproc/namei"
	"dproc/netclnt"
	"dproc/netsrv"
	"dproc/p2s"
	"dproc/rpcclnt"
	"dproc/storesrv"
	"dproc/usermem"
)

//
// Without --storage, tests start an in-memory storage node on
// loopback. With --storage <addr>, they use the storaged at addr
// instead.
//

const STORAGE_NODE p2s.Tnode = 1

var StorageAddr string
var MemLimit int

func init() {
	flag.StringVar(&StorageAddr, "storage", "", "Address of a running storaged")
	flag.IntVar(&MemLimit, "memlimit", 0, "Scratch memory limit in bytes (0 is unlimited)")
}

type Tstate struct {
	*namei.Namei
	T     *testing.T
	Fds   *fdclnt.FdTable
	Mem   *usermem.AddrSpace
	Pool  *malloc.Pool
	Home  *homenode.ProcHome
	Store *storesrv.StoreSrv // nil when running against an external node
	srv   *netsrv.NetServer
	nc    *netclnt.NetClnt
}

func NewTstate(t *testing.T) *Tstate {
	ts := &Tstate{T: t}
	addr := StorageAddr
	if addr == "" {
		ts.Store = storesrv.NewStoreSrv()
		srv, err := netsrv.NewNetServer(ts.Store, "127.0.0.1:0")
		if err != nil {
			db.DFatalf("NewNetServer: %v", err)
		}
		ts.srv = srv
		addr = srv.MyAddr()
	}
	db.DPrintf(db.TEST, "storage node %v at %v", STORAGE_NODE, addr)
	ts.nc = netclnt.NewNetClnt(map[p2s.Tnode]string{STORAGE_NODE: addr})
	ts.Fds = fdclnt.NewFdTable()
	ts.Mem = usermem.NewAddrSpace()
	ts.Pool = malloc.NewPool(MemLimit)
	ts.Home = homenode.NewProcHome(homenode.Static(STORAGE_NODE))
	ts.Namei = namei.NewNamei(ts.Fds, ts.Home, rpcclnt.NewRpcClnt(ts.nc, ts.Pool), ts.Mem)
	return ts
}

// Str places s in the process' memory.
func (ts *Tstate) Str(s string) usermem.Addr {
	return ts.Mem.AllocString(s)
}

func (ts *Tstate) Shutdown() {
	assert.Equal(ts.T, 0, ts.Pool.Outstanding(), "scratch buffers leaked")
	ts.nc.Close()
	if ts.srv != nil {
		ts.srv.Close()
	}
}
