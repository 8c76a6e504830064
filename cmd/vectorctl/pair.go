package main

import (
	"context"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/urfave/cli"

	"github.com/alfredolopez80/vector/chainreader"
	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/driver"
	"github.com/alfredolopez80/vector/messaging"
	"github.com/alfredolopez80/vector/signer"
	"github.com/alfredolopez80/vector/storage"
	"github.com/alfredolopez80/vector/storage/boltstore"
	"github.com/alfredolopez80/vector/vm"
)

var hashlockAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")

// pair is both participants' fully wired drivers, sharing one loopback bus.
// Only self is ever driven by a command; counterparty exists purely to
// respond to self's proposals the way a remote node would.
type pair struct {
	Self         *driver.Driver
	SelfAddr     common.Address
	SelfID       string
	CounterID    string
	CounterAddr  common.Address
	unsubscribe  []func()
	selfStore    storage.Store
	counterStore storage.Store
}

func buildPair(ctx *cli.Context) (*pair, error) {
	dataDir := ctx.GlobalString("datadir")
	selfID := ctx.GlobalString("self")
	counterID := ctx.GlobalString("counterparty")

	chain, err := buildChainReader(ctx)
	if err != nil {
		return nil, err
	}
	network := chantypes.NetworkContext{
		ChainID:            big.NewInt(1337),
		AdjudicatorAddress: common.HexToAddress(ctx.GlobalString("adjudicator")),
	}

	bus := messaging.NewBus()

	selfDrv, selfStore, selfAddr, err := buildSide(dataDir, selfID, network, chain, bus)
	if err != nil {
		return nil, err
	}
	counterDrv, counterStore, counterAddr, err := buildSide(dataDir, counterID, network, chain, bus)
	if err != nil {
		return nil, err
	}

	p := &pair{
		Self:         selfDrv,
		SelfAddr:     selfAddr,
		SelfID:       selfID,
		CounterID:    counterID,
		CounterAddr:  counterAddr,
		selfStore:    selfStore,
		counterStore: counterStore,
	}

	p.unsubscribe = append(p.unsubscribe,
		selfDrv.Messaging.OnReceiveProtocol(selfID, func(msg messaging.Message) {
			selfDrv.HandleInbound(context.Background(), msg)
		}),
		counterDrv.Messaging.OnReceiveProtocol(counterID, func(msg messaging.Message) {
			counterDrv.HandleInbound(context.Background(), msg)
		}),
	)

	return p, nil
}

func buildSide(
	dataDir, identifier string,
	network chantypes.NetworkContext,
	chain chainreader.ChainReader,
	bus *messaging.Bus,
) (*driver.Driver, storage.Store, common.Address, error) {
	sideDir := filepath.Join(dataDir, identifier)

	store, err := boltstore.Open(filepath.Join(sideDir, "channel.db"))
	if err != nil {
		return nil, nil, common.Address{}, err
	}

	sgn, err := signer.LoadOrGenerate(filepath.Join(sideDir, "node.key"))
	if err != nil {
		return nil, nil, common.Address{}, err
	}

	mess := messaging.New(bus, clock.NewDefaultClock(), identifier)

	registry := vm.NewLocalRegistry()
	registry.Register(hashlockAddress, vm.Hashlock{})
	vmExec := &vm.Executor{Local: registry, Caller: chain}

	drv := driver.New(identifier, network, store, chain, sgn, mess, vmExec, 10*time.Second, 2)

	return drv, store, sgn.Address(), nil
}

func buildChainReader(ctx *cli.Context) (chainreader.ChainReader, error) {
	endpoint := ctx.GlobalString("chainrpc")
	if endpoint == "" {
		return chainreader.NewMock(), nil
	}
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, err
	}
	return chainreader.NewEthReader(client, common.HexToAddress(ctx.GlobalString("adjudicator"))), nil
}

func (p *pair) Close() {
	for _, u := range p.unsubscribe {
		u()
	}
	if c, ok := p.selfStore.(interface{ Close() error }); ok {
		c.Close()
	}
	if c, ok := p.counterStore.(interface{ Close() error }); ok {
		c.Close()
	}
}
