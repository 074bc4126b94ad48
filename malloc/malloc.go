// The malloc package hands out the scratch buffers that carry one
// request and its reply. Buffers come from size-classed free lists,
// and the total handed out at any time is bounded, so an exhausted
// budget surfaces as an out-of-memory error instead of an unbounded
// Go allocation.
package malloc

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	db "dproc/debug"
	"dproc/serr"
)

type Allocator interface {
	Alloc(sz int) ([]byte, *serr.Err)
	Free(b []byte)
}

type arena struct {
	cap  int
	pool [][]byte
}

// Pool is an Allocator with capacities aligned to the page size.
type Pool struct {
	mu     sync.Mutex
	reg    []arena
	limit  int // 0 means no bound on the total
	inuse  int
	nalloc int
}

// MAXALLOC bounds a single allocation whatever the pool's limit, like
// kmalloc's largest size class.
const MAXALLOC = 4 << 20

func NewPool(limit int) *Pool {
	return &Pool{limit: limit}
}

var pageSize int

func init() { pageSize = os.Getpagesize() }

func alignCap(sz int) int {
	if r := sz % pageSize; r > 0 {
		return sz + pageSize - r
	}
	return sz
}

func (p *Pool) arena(capacity int) *arena {
	i := sort.Search(len(p.reg), func(i int) bool {
		return p.reg[i].cap >= capacity
	})
	if i < len(p.reg) && p.reg[i].cap == capacity {
		return &p.reg[i]
	}
	p.reg = append(p.reg, arena{})
	copy(p.reg[i+1:], p.reg[i:])
	p.reg[i] = arena{cap: capacity}
	return &p.reg[i]
}

func (p *Pool) Alloc(sz int) ([]byte, *serr.Err) {
	if sz <= 0 {
		return nil, serr.NewErr(serr.TErrInval, fmt.Sprintf("alloc %d", sz))
	}
	if sz > MAXALLOC {
		db.DPrintf(db.MALLOC, "Alloc %v: larger than %v", humanize.Bytes(uint64(sz)), humanize.Bytes(MAXALLOC))
		return nil, serr.NewErr(serr.TErrNoMem, humanize.Bytes(uint64(sz)))
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	capacity := alignCap(sz)
	if p.limit > 0 && p.inuse+capacity > p.limit {
		db.DPrintf(db.MALLOC, "Alloc %v: in use %v limit %v", humanize.Bytes(uint64(sz)),
			humanize.Bytes(uint64(p.inuse)), humanize.Bytes(uint64(p.limit)))
		return nil, serr.NewErr(serr.TErrNoMem, humanize.Bytes(uint64(sz)))
	}
	a := p.arena(capacity)
	var b []byte
	if n := len(a.pool); n > 0 {
		b = a.pool[n-1][0:sz:capacity]
		a.pool = a.pool[:n-1]
		clear(b)
	} else {
		b = make([]byte, sz, capacity)
	}
	p.inuse += capacity
	p.nalloc++
	return b, nil
}

func (p *Pool) Free(b []byte) {
	capacity := cap(b)
	if capacity <= 0 || capacity != alignCap(capacity) {
		db.DFatalf("Free: buffer [:%d:%d] not from pool", len(b), capacity)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.arena(capacity)
	a.pool = append(a.pool, b[0:0:capacity])
	p.inuse -= capacity
	p.nalloc--
}

// Outstanding returns the number of buffers handed out and not yet
// freed.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nalloc
}

func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inuse
}
