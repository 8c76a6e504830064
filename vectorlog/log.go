// Package vectorlog aggregates every subsystem's btclog.Logger into one
// rotating backend, the way lnd's top-level log.go wires lnwallet,
// htlcswitch, channeldb and the rest into a single backendLog.
package vectorlog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags, one per package with a `var log btclog.Logger`, matching
// lnd's SUBSYSTEM-keyed logging.
const (
	SubsystemChantypes  = "CHTY"
	SubsystemCommitment = "CMMT"
	SubsystemValidate   = "VALD"
	SubsystemTransition = "TRNS"
	SubsystemVM         = "CNVM"
	SubsystemMessaging  = "MESG"
	SubsystemDriver     = "DRVR"
	SubsystemStorage    = "STOR"
	SubsystemChain      = "CHRD"
	SubsystemSigner     = "SIGN"
)

var (
	logWriter         = &logWriterWrapper{}
	backendLog        *btclog.Backend
	rotatingLogWriter *rotator.Rotator
)

// logWriterWrapper multiplexes to both stdout and the active rotator, the
// way lnd's logWriter does before InitLogRotator has run.
type logWriterWrapper struct{}

func (w *logWriterWrapper) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if rotatingLogWriter != nil {
		rotatingLogWriter.Write(p)
	}
	return len(p), nil
}

func init() {
	backendLog = btclog.NewBackend(logWriter)
}

// InitLogRotator initializes the rotating file logger at logFile, rolling
// over at maxRolls files, mirroring lnd.go's initLogRotator.
func InitLogRotator(logFile string, maxRolls int) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("vectorlog: create log directory: %w", err)
	}

	r, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("vectorlog: create log rotator: %w", err)
	}

	rotatingLogWriter = r
	return nil
}

// Logger returns a fresh subsystem logger at the backend's current level,
// for a package to assign to its own `var log`.
func Logger(subsystem string) btclog.Logger {
	return backendLog.Logger(subsystem)
}

// SetLevel sets subsystem's logging level ("trace".."off"), the way lnd.go's
// setLogLevel does in response to --debuglevel.
func SetLevel(subsystem, level string) {
	l, ok := btclog.LevelFromString(level)
	if !ok {
		return
	}
	backendLog.Logger(subsystem).SetLevel(l)
}

// SetLevels applies level to every known subsystem, the way lnd.go's
// setLogLevels does for "--debuglevel=debug" with no per-subsystem override.
func SetLevels(level string) {
	for _, s := range []string{
		SubsystemChantypes, SubsystemCommitment, SubsystemValidate,
		SubsystemTransition, SubsystemVM, SubsystemMessaging,
		SubsystemDriver, SubsystemStorage, SubsystemChain, SubsystemSigner,
	} {
		SetLevel(s, level)
	}
}
