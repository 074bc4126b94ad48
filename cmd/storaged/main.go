package main

//
// storaged serves an in-memory namespace as a storage node. If the
// config names etcd endpoints, it also publishes itself as the storage
// home node.
//

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dproc/config"
	db "dproc/debug"
	"dproc/homenode"
	"dproc/netsrv"
	"dproc/storesrv"
)

func main() {
	cfgfile := flag.String("config", "", "YAML node config (default: $DPROCCONFIG)")
	listen := flag.String("listen", "", "address to listen on (default: config's)")
	flag.Parse()

	var cfg *config.Config
	if *cfgfile != "" {
		c, err := config.Load(*cfgfile)
		if err != nil {
			db.DFatalf("config: %v", err)
		}
		cfg = c
	} else {
		c, err := config.GetConfig()
		if err != nil {
			db.DFatalf("config: %v", err)
		}
		cfg = c
	}
	db.Name(fmt.Sprintf("storaged-%v", cfg.Node))

	addr := *listen
	if addr == "" {
		addr = cfg.Listen
	}
	if addr == "" {
		addr = cfg.Addrs[cfg.Node]
	}
	if addr == "" {
		fmt.Fprintf(os.Stderr, "Usage: %v [-config node.yml] [-listen addr]\n", os.Args[0])
		os.Exit(1)
	}

	ss := storesrv.NewStoreSrv()
	srv, err := netsrv.NewNetServer(ss, addr)
	if err != nil {
		db.DFatalf("NewNetServer %v: %v", addr, err)
	}
	db.DPrintf(db.ALWAYS, "storage node %v at %v", cfg.Node, srv.MyAddr())

	if cfg.UseEtcd() {
		cli, err := homenode.DialEtcd(cfg.EtcdIP)
		if err != nil {
			db.DFatalf("DialEtcd %v: %v", cfg.EtcdIP, err)
		}
		defer cli.Close()
		if err := homenode.SetStorageHome(cli, cfg.EtcdKey, cfg.Node); err != nil {
			db.DFatalf("SetStorageHome: %v", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	db.DPrintf(db.ALWAYS, "exit after %d requests", ss.Nreq())
	srv.Close()
}
