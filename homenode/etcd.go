package homenode

import (
	"context"
	"strconv"
	"time"

	"go.etcd.io/etcd/client/v3"

	db "dproc/debug"
	"dproc/p2s"
	"dproc/serr"
)

const (
	DialTimeout = 5 * time.Second
	GetTimeout  = 2 * time.Second

	STORAGE_HOME_KEY = "/dproc/storage-home"
)

// EtcdHome reads the storage home node from etcd on every lookup. If
// the key is missing or etcd cannot be reached, it returns p2s.NoNode
// and the transport reports the node as unreachable.
type EtcdHome struct {
	kv  clientv3.KV
	key string
}

func NewEtcdHome(kv clientv3.KV, key string) *EtcdHome {
	if key == "" {
		key = STORAGE_HOME_KEY
	}
	return &EtcdHome{kv: kv, key: key}
}

// DialEtcd connects to the etcd cluster at endpoints.
func DialEtcd(endpoints []string) (*clientv3.Client, *serr.Err) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: DialTimeout,
	})
	if err != nil {
		return nil, serr.NewErrError(err)
	}
	return cli, nil
}

func (eh *EtcdHome) StorageHomeNode() p2s.Tnode {
	ctx, cancel := context.WithTimeout(context.Background(), GetTimeout)
	defer cancel()
	resp, err := eh.kv.Get(ctx, eh.key)
	if err != nil {
		db.DPrintf(db.HOMENODE, "Get %v err %v", eh.key, err)
		return p2s.NoNode
	}
	if len(resp.Kvs) != 1 {
		db.DPrintf(db.HOMENODE, "Get %v: no storage home", eh.key)
		return p2s.NoNode
	}
	n, err := strconv.ParseInt(string(resp.Kvs[0].Value), 10, 32)
	if err != nil {
		db.DPrintf(db.HOMENODE, "Get %v bad value %q", eh.key, resp.Kvs[0].Value)
		return p2s.NoNode
	}
	return p2s.Tnode(n)
}

// SetStorageHome publishes n as the storage home node under key.
func SetStorageHome(kv clientv3.KV, key string, n p2s.Tnode) *serr.Err {
	if key == "" {
		key = STORAGE_HOME_KEY
	}
	ctx, cancel := context.WithTimeout(context.Background(), GetTimeout)
	defer cancel()
	if _, err := kv.Put(ctx, key, strconv.FormatInt(int64(n), 10)); err != nil {
		return serr.NewErrError(err)
	}
	db.DPrintf(db.HOMENODE, "SetStorageHome %v %v", key, n)
	return nil
}
