package vm

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger, wired in by vectorlog at startup.
func UseLogger(l btclog.Logger) {
	log = l
}
