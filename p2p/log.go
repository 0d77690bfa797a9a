package p2p

import "github.com/btcsuite/btclog"

// log is the package-level logger, silent until UseLogger is called by the
// daemon's log-subsystem wiring, matching every other adapted package in
// this repository.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by p2p.
func UseLogger(l btclog.Logger) {
	log = l
}
