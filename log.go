package main

import (
	"os"
	"path/filepath"

	"github.com/atomicswap/cnd/channeldb"
	"github.com/atomicswap/cnd/chainntfs/bitcoin"
	"github.com/atomicswap/cnd/chainntfs/ethereum"
	"github.com/atomicswap/cnd/cndrpc"
	"github.com/atomicswap/cnd/contractcourt"
	"github.com/atomicswap/cnd/htlcswitch"
	"github.com/atomicswap/cnd/p2p"
	"github.com/atomicswap/cnd/sweep"
	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

const logFilename = defaultLogFilename

// log is cnd's own top-level subsystem logger, tagged "CND" the same way
// every other package's package-level log is tagged by its own short
// subsystem name.
var log = btclog.Disabled

// logWriter implements io.Writer by sending written data to both a
// rotating log file and stdout, the same dual-sink shape the teacher's
// backendLog writer uses.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	w.rotator.Write(p)
	return len(p), nil
}

// subsystemLoggers names every package this daemon sets a logger on, the
// way the teacher's log.go enumerates one short subsystem tag per
// package.
var subsystemLoggers = map[string]func(btclog.Logger){
	"CDB": channeldb.UseLogger,
	"HSW": htlcswitch.UseLogger,
	"CCT": contractcourt.UseLogger,
	"SWP": sweep.UseLogger,
	"P2P": p2p.UseLogger,
	"BTC": bitcoin.UseLogger,
	"ETH": ethereum.UseLogger,
	"CRP": cndrpc.UseLogger,
}

// initLogging creates the log rotator backed by dataDir/cnd.log, builds
// one subsystem logger per entry in subsystemLoggers at level, and wires
// them all in. It returns the rotator so the caller can Flush/Close it on
// shutdown.
func initLogging(dataDir, level string) (*rotator.Rotator, error) {
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, err
	}

	r, err := rotator.New(filepath.Join(logDir, logFilename), 10*1024, false, 3)
	if err != nil {
		return nil, err
	}

	backend := btclog.NewBackend(&logWriter{rotator: r})
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		lvl = btclog.LevelInfo
	}

	log = backend.Logger("CND")
	log.SetLevel(lvl)

	for tag, use := range subsystemLoggers {
		logger := backend.Logger(tag)
		logger.SetLevel(lvl)
		use(logger)
	}

	return r, nil
}
