package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	db "dproc/debug"
	"dproc/p2s"
	"dproc/serr"
)

const (
	DPROCCONFIG = "DPROCCONFIG"
)

// Config describes one node: who it is, where its peers listen, and
// how a process finds its storage home node.
type Config struct {
	Node        p2s.Tnode            `json:"node" yaml:"node"`
	StorageNode p2s.Tnode            `json:"storagenode" yaml:"storagenode"`
	Addrs       map[p2s.Tnode]string `json:"addrs,omitempty" yaml:"addrs"`
	Listen      string               `json:"listen,omitempty" yaml:"listen"`
	EtcdIP      []string             `json:"etcdip,omitempty" yaml:"etcdip"`
	EtcdKey     string               `json:"etcdkey,omitempty" yaml:"etcdkey"`
	MemLimit    int                  `json:"memlimit,omitempty" yaml:"memlimit"`
	Debug       string               `json:"debug,omitempty" yaml:"debug"`
}

func NewConfig() *Config {
	// Load Debug from the environment for convenience.
	return &Config{
		StorageNode: p2s.UNSET_STORAGE_NODE,
		Addrs:       make(map[p2s.Tnode]string),
		Debug:       os.Getenv(db.DPROCDEBUG),
	}
}

func (cfg *Config) Marshal() string {
	b, err := json.Marshal(cfg)
	if err != nil {
		db.DFatalf("Error marshal config: %v", err)
	}
	return string(b)
}

// UseEtcd reports whether the storage home node is looked up in etcd
// rather than fixed by StorageNode.
func (cfg *Config) UseEtcd() bool {
	return len(cfg.EtcdIP) > 0
}

// CheckRouting reports whether a process on this node can find a
// storage home node at all: from etcd, or from a configured default.
func (cfg *Config) CheckRouting() *serr.Err {
	if cfg.UseEtcd() {
		return nil
	}
	if cfg.StorageNode == p2s.UNSET_STORAGE_NODE || cfg.StorageNode == p2s.NoNode {
		return serr.NewErr(serr.TErrInval, "no storagenode and no etcdip")
	}
	if _, ok := cfg.Addrs[cfg.StorageNode]; !ok {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("no address for storagenode %v", cfg.StorageNode))
	}
	return nil
}

func (cfg *Config) apply() {
	if cfg.Addrs == nil {
		cfg.Addrs = make(map[p2s.Tnode]string)
	}
	if cfg.Debug != "" {
		db.SetDebug(cfg.Debug)
	}
	db.DPrintf(db.CONFIG, "config %v", cfg.Marshal())
}

// GetConfig returns the config in DPROCCONFIG, or the defaults if it
// isn't set.
func GetConfig() (*Config, *serr.Err) {
	cfg := NewConfig()
	s := os.Getenv(DPROCCONFIG)
	if s == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(s), cfg); err != nil {
		return nil, serr.NewErr(serr.TErrInval, err)
	}
	cfg.apply()
	return cfg, nil
}

// Load reads a YAML config from pn.
func Load(pn string) (*Config, *serr.Err) {
	cfg := NewConfig()
	file, err := os.Open(pn)
	if err != nil {
		return nil, serr.NewErrError(err)
	}
	defer file.Close()
	d := yaml.NewDecoder(file)
	if err := d.Decode(cfg); err != nil {
		return nil, serr.NewErr(serr.TErrInval, err)
	}
	cfg.apply()
	return cfg, nil
}
