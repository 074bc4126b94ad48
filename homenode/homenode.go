// The homenode package tells the syscall layer which storage node
// currently owns a process' files. Lookups are made on every call and
// never cached by callers.
package homenode

import (
	"sync/atomic"

	db "dproc/debug"
	"dproc/p2s"
)

type RouterI interface {
	StorageHomeNode() p2s.Tnode
}

// Static always routes to the same node.
type Static p2s.Tnode

func (s Static) StorageHomeNode() p2s.Tnode {
	return p2s.Tnode(s)
}

// ProcHome is the per-process routing state: a process may be pinned
// to a storage node of its own; until then it uses the default
// router's answer.
type ProcHome struct {
	node atomic.Int32
	dflt RouterI
}

func NewProcHome(dflt RouterI) *ProcHome {
	ph := &ProcHome{dflt: dflt}
	ph.node.Store(int32(p2s.UNSET_STORAGE_NODE))
	return ph
}

func (ph *ProcHome) SetStorageNode(n p2s.Tnode) {
	db.DPrintf(db.HOMENODE, "SetStorageNode %v", n)
	ph.node.Store(int32(n))
}

func (ph *ProcHome) StorageHomeNode() p2s.Tnode {
	if n := p2s.Tnode(ph.node.Load()); n != p2s.UNSET_STORAGE_NODE {
		return n
	}
	return ph.dflt.StorageHomeNode()
}
