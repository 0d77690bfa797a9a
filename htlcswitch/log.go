package htlcswitch

import "github.com/btcsuite/btclog"

// log is the package-level logger, silent until UseLogger is called by
// the daemon's log-subsystem wiring.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by htlcswitch.
func UseLogger(l btclog.Logger) {
	log = l
}
