// vectord is the channel-core daemon: it loads configuration, wires the
// storage/chain/signer/messaging/driver collaborators together the way
// lnd.go's lndMain does, subscribes the driver to inbound protocol traffic,
// and blocks until interrupted. It exposes no RPC surface of its own —
// spec.md §1 places that outside the core's scope.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alfredolopez80/vector/chainreader"
	"github.com/alfredolopez80/vector/chantypes"
	"github.com/alfredolopez80/vector/config"
	"github.com/alfredolopez80/vector/driver"
	"github.com/alfredolopez80/vector/messaging"
	"github.com/alfredolopez80/vector/signer"
	"github.com/alfredolopez80/vector/storage"
	"github.com/alfredolopez80/vector/storage/boltstore"
	"github.com/alfredolopez80/vector/storage/memstore"
	"github.com/alfredolopez80/vector/vectorlog"
	"github.com/alfredolopez80/vector/vm"
)

func vectordMain() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := vectorlog.InitLogRotator(filepath.Join(cfg.DataDir, "vectord.log"), 3); err != nil {
		return err
	}
	vectorlog.SetLevels(cfg.DebugLevel)
	wireLoggers()

	log.Infof("vectord starting, self=%s storage=%s", cfg.SelfIdentifier, cfg.StorageBackend)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	var chain chainreader.ChainReader
	if cfg.ChainRPC != "" {
		client, err := ethclient.Dial(cfg.ChainRPC)
		if err != nil {
			return fmt.Errorf("dial chain RPC: %w", err)
		}
		chain = chainreader.NewEthReader(client, common.HexToAddress(cfg.AdjudicatorAddress))
	} else {
		chain = chainreader.NewMock()
	}

	sgn, err := signer.LoadOrGenerate(filepath.Join(cfg.DataDir, "node.key"))
	if err != nil {
		return fmt.Errorf("load signer key: %w", err)
	}

	bus := messaging.NewBus()
	mess := messaging.New(bus, defaultClock(), cfg.SelfIdentifier)

	registry := vm.NewLocalRegistry()
	registry.Register(hashlockAddress, vm.Hashlock{})
	vmExec := &vm.Executor{Local: registry, Caller: chain}

	network := chantypes.NetworkContext{
		ChainID:            defaultChainID,
		AdjudicatorAddress: common.HexToAddress(cfg.AdjudicatorAddress),
	}

	drv := driver.New(
		cfg.SelfIdentifier, network, store, chain, sgn, mess, vmExec,
		cfg.MessagingTimeout, cfg.MessagingMaxRetries,
	)

	unsubscribe := mess.OnReceiveProtocol(cfg.SelfIdentifier, func(msg messaging.Message) {
		drv.HandleInbound(context.Background(), msg)
	})
	defer unsubscribe()

	log.Infof("vectord ready, address=%s", sgn.Address().Hex())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Info("vectord shutting down")
	if closer, ok := store.(interface{ Close() error }); ok {
		closer.Close()
	}
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendBolt:
		return boltstore.Open(filepath.Join(cfg.DataDir, "channel.db"))
	case config.BackendMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := vectordMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
