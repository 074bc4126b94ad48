package main

//
// p2sctl runs one directory syscall on behalf of a process on this
// processor node, e.g.:
//
//   DPROCCONFIG='{"storagenode":1,"addrs":{"1":"127.0.0.1:7000"}}' p2sctl mkdir /d
//   p2sctl -config node.yml ls -l /d
//

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"dproc/config"
	db "dproc/debug"
	"dproc/fdclnt"
	"dproc/homenode"
	"dproc/malloc"
	"dproc/namei"
	"dproc/netclnt"
	"dproc/p2s"
	"dproc/path"
	"dproc/rpcclnt"
	"dproc/serr"
	"dproc/usermem"
)

const LSBUFSZ = 8192

type proc struct {
	*namei.Namei
	fds *fdclnt.FdTable
	mem *usermem.AddrSpace
	nc  *netclnt.NetClnt
}

func newProc(cfg *config.Config) (*proc, *serr.Err) {
	var dflt homenode.RouterI = homenode.Static(cfg.StorageNode)
	if cfg.UseEtcd() {
		cli, err := homenode.DialEtcd(cfg.EtcdIP)
		if err != nil {
			return nil, err
		}
		dflt = homenode.NewEtcdHome(cli, cfg.EtcdKey)
	}
	p := &proc{
		fds: fdclnt.NewFdTable(),
		mem: usermem.NewAddrSpace(),
		nc:  netclnt.NewNetClnt(cfg.Addrs),
	}
	rpcc := rpcclnt.NewRpcClnt(p.nc, malloc.NewPool(cfg.MemLimit))
	p.Namei = namei.NewNamei(p.fds, homenode.NewProcHome(dflt), rpcc, p.mem)
	return p, nil
}

func (p *proc) ls(pn string, long bool) int64 {
	if !path.IsAbs(pn) {
		pn = "/" + pn
	}
	fd := p.fds.Open(pn)
	defer p.fds.Close(fd)

	buf := p.mem.Alloc(LSBUFSZ)
	total := uint64(0)
	for {
		n := p.Getdents(fd, buf, LSBUFSZ)
		if n <= 0 {
			if long && n == 0 {
				fmt.Printf("total %v\n", humanize.Bytes(total))
			}
			return n
		}
		total += uint64(n)
		b, err := p.mem.Bytes(buf, int(n))
		if err != nil {
			return err.Errno()
		}
		dents, err := p2s.UnmarshalDirents(b)
		if err != nil {
			return err.Errno()
		}
		for _, d := range dents {
			if long {
				fmt.Printf("%8d %4d %s\n", d.Ino, d.Reclen, d.Name)
			} else {
				fmt.Println(d.Name)
			}
		}
	}
}

func (p *proc) pwd() int64 {
	buf := p.mem.Alloc(unix.PathMax)
	n := p.Getcwd(buf, unix.PathMax)
	if n < 0 {
		return n
	}
	b, err := p.mem.Bytes(buf, int(n)-1)
	if err != nil {
		return err.Errno()
	}
	fmt.Println(string(b))
	return 0
}

func loadConfig(pn string) (*config.Config, *serr.Err) {
	if pn != "" {
		return config.Load(pn)
	}
	return config.GetConfig()
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %v [-config node.yml] mkdir|rmdir|unlink|ls [-l]|pwd [path]\n", os.Args[0])
	os.Exit(1)
}

func main() {
	cfgfile := flag.String("config", "", "YAML node config (default: $DPROCCONFIG)")
	mode := flag.Uint("mode", 0777, "mkdir mode")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		usage()
	}
	db.Name("p2sctl")

	cfg, r := loadConfig(*cfgfile)
	if r != nil {
		db.DFatalf("config: %v", r)
	}
	if err := cfg.CheckRouting(); err != nil {
		fmt.Fprintf(os.Stderr, "%v: config: %v\n", os.Args[0], err)
		usage()
	}
	p, err := newProc(cfg)
	if err != nil {
		db.DFatalf("newProc: %v", err)
	}
	defer p.nc.Close()

	var ret int64
	switch args[0] {
	case "pwd":
		ret = p.pwd()
	case "ls":
		long := len(args) > 1 && args[1] == "-l"
		if long {
			args = args[1:]
		}
		pn := "/"
		if len(args) > 1 {
			pn = args[1]
		}
		ret = p.ls(pn, long)
	case "mkdir", "rmdir", "unlink":
		if len(args) != 2 {
			usage()
		}
		a := p.mem.AllocString(args[1])
		switch args[0] {
		case "mkdir":
			ret = p.Mkdir(a, uint32(*mode))
		case "rmdir":
			ret = p.Rmdir(a)
		default:
			ret = p.Unlinkat(namei.AT_FDCWD, a, 0)
		}
	default:
		usage()
	}
	if ret < 0 {
		fmt.Fprintf(os.Stderr, "%v: %v\n", args[0], unix.Errno(-ret))
		os.Exit(1)
	}
}
