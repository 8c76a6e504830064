package main

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/alfredolopez80/vector/chainreader"
	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/commitment"
	"github.com/alfredolopez80/vector/driver"
	"github.com/alfredolopez80/vector/messaging"
	"github.com/alfredolopez80/vector/signer"
	"github.com/alfredolopez80/vector/storage/boltstore"
	"github.com/alfredolopez80/vector/storage/memstore"
	"github.com/alfredolopez80/vector/transition"
	"github.com/alfredolopez80/vector/validate"
	"github.com/alfredolopez80/vector/vectorlog"
	"github.com/alfredolopez80/vector/vm"
)

var log = vectorlog.Logger("VECD")

// hashlockAddress is the well-known local-registry slot the bundled
// Hashlock condition program is bound to by default. A real deployment
// registers condition programs by their deployed adjudicator address
// instead.
var hashlockAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")

// defaultChainID is used when no chain RPC is configured (mock-chain mode).
var defaultChainID = big.NewInt(1337)

// wireLoggers hands every subsystem its vectorlog-backed logger, the way
// lnd.go's useLogger wires each package's UseLogger in one place at
// startup.
func wireLoggers() {
	chantypes.UseLogger(vectorlog.Logger(vectorlog.SubsystemChantypes))
	commitment.UseLogger(vectorlog.Logger(vectorlog.SubsystemCommitment))
	validate.UseLogger(vectorlog.Logger(vectorlog.SubsystemValidate))
	transition.UseLogger(vectorlog.Logger(vectorlog.SubsystemTransition))
	vm.UseLogger(vectorlog.Logger(vectorlog.SubsystemVM))
	messaging.UseLogger(vectorlog.Logger(vectorlog.SubsystemMessaging))
	driver.UseLogger(vectorlog.Logger(vectorlog.SubsystemDriver))
	boltstore.UseLogger(vectorlog.Logger(vectorlog.SubsystemStorage))
	memstore.UseLogger(vectorlog.Logger(vectorlog.SubsystemStorage))
	chainreader.UseLogger(vectorlog.Logger(vectorlog.SubsystemChain))
	signer.UseLogger(vectorlog.Logger(vectorlog.SubsystemSigner))
}

func defaultClock() clock.Clock {
	return clock.NewDefaultClock()
}
