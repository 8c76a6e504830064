package driver

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by Driver, the way every lnd
// subsystem exposes UseLogger for vectorlog to wire in at startup.
func UseLogger(l btclog.Logger) {
	log = l
}
