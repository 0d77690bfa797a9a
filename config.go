package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename  = "cnd.conf"
	defaultDataDirname     = "data"
	defaultLogLevel        = "info"
	defaultLogFilename     = "cnd.log"
	defaultControlSockName = "control.sock"
	defaultConfirmations   = 1
)

// bitcoinConfig is the Bitcoin side of a daemon's ledger configuration:
// the REST endpoint chainntfs/bitcoin polls, and the network a swap's
// Bitcoin-side HTLC script must be built for (spec §3).
type bitcoinConfig struct {
	RESTHost string `long:"resthost" description:"host:port of the Bitcoin node's REST interface"`
	Network  string `long:"network" description:"bitcoin network: mainnet, testnet, or regtest" default:"mainnet"`
}

// ethereumConfig is the Ethereum side: the JSON-RPC endpoint
// chainntfs/ethereum polls, and the chain id a swap's Ethereum-side HTLC
// bytecode and signatures must target.
type ethereumConfig struct {
	RPCHost string `long:"rpchost" description:"host:port of the Ethereum node's JSON-RPC interface"`
	ChainID int64  `long:"chainid" description:"the Ethereum chain id to operate against" default:"1"`
}

// config is cnd's full set of runtime parameters, loaded from a
// cnd.conf ini file in DataDir and overridable by command-line flags, the
// same two-pass go-flags parse the teacher's lnd uses.
type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"display version and exit"`
	ConfigFile  string `long:"configfile" description:"path to configuration file"`
	DataDir     string `short:"d" long:"datadir" description:"directory to store the channel database and logs"`

	Bitcoin  bitcoinConfig  `group:"Bitcoin" namespace:"bitcoin"`
	Ethereum ethereumConfig `group:"Ethereum" namespace:"ethereum"`

	ListenAddr     string   `long:"listenaddr" description:"libp2p multiaddr to listen on for SWAP protocol connections" default:"/ip4/0.0.0.0/tcp/9735"`
	BootstrapPeers []string `long:"bootstrappeer" description:"multiaddr of a peer to connect to at startup; may be repeated"`

	ControlSocket string `long:"controlsocket" description:"path of the Unix-domain control socket cndcli connects to"`

	MetricsAddr string `long:"metricsaddr" description:"address to serve Prometheus metrics on; empty disables metrics"`

	Confirmations uint32 `long:"confirmations" description:"number of confirmations (k) required before a deploy/fund milestone is considered final" default:"1"`

	DebugLevel string `long:"debuglevel" description:"logging level: trace, debug, info, warn, error, critical" default:"info"`
}

// defaultConfig returns a config with every default value pre-populated.
func defaultConfig() config {
	return config{
		DataDir:       defaultDataDir(),
		Confirmations: defaultConfirmations,
		DebugLevel:    defaultLogLevel,
		Bitcoin:       bitcoinConfig{Network: "mainnet"},
		Ethereum:      ethereumConfig{ChainID: 1},
	}
}

func defaultDataDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", defaultDataDirname)
	}
	return filepath.Join(dir, ".cnd", defaultDataDirname)
}

// loadConfig parses cnd.conf (if present) and then command-line flags
// over it, the latter taking precedence — the same ini-then-flags
// two-pass parse go-flags' own documentation prescribes and the teacher's
// lnd.go performs via flags.NewParser/IniParse.
func loadConfig() (*config, error) {
	preCfg := defaultConfig()
	if _, err := flags.NewParser(&preCfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if preCfg.ConfigFile != "" {
		if err := flags.NewIniParser(flags.NewParser(&cfg, flags.Default)).ParseFile(preCfg.ConfigFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if _, err := flags.NewParser(&cfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	if cfg.ControlSocket == "" {
		cfg.ControlSocket = filepath.Join(cfg.DataDir, defaultControlSockName)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &cfg, nil
}

// ethereumChainID returns the configured chain id as the *big.Int the
// swap and htlc/ethhtlc packages expect.
func (c *config) ethereumChainID() *big.Int {
	return big.NewInt(c.Ethereum.ChainID)
}
