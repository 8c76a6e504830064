package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli"

	"github.com/alfredolopez80/vector/vm"
)

var setupCommand = cli.Command{
	Name:      "setup",
	Usage:     "open a new channel between self and counterparty",
	ArgsUsage: "channel-address timeout-seconds",
	Action:    setupAction,
}

func setupAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "setup")
	}
	channelAddr := common.HexToAddress(ctx.Args().Get(0))
	var timeout uint64
	if _, err := fmt.Sscanf(ctx.Args().Get(1), "%d", &timeout); err != nil {
		return fmt.Errorf("invalid timeout-seconds: %w", err)
	}

	p, err := buildPair(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	full, err := p.Self.Setup(context.Background(), channelAddr, [2]common.Address{p.SelfAddr, p.CounterAddr}, timeout, p.CounterID)
	if err != nil {
		return err
	}
	printChannel(full)
	return nil
}

var depositCommand = cli.Command{
	Name:      "deposit",
	Usage:     "reconcile and propose a deposit for an asset",
	ArgsUsage: "channel-address asset-address",
	Action:    depositAction,
}

func depositAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "deposit")
	}
	channelAddr := common.HexToAddress(ctx.Args().Get(0))
	assetAddr := common.HexToAddress(ctx.Args().Get(1))

	p, err := buildPair(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	full, err := p.Self.Deposit(context.Background(), channelAddr, assetAddr, p.CounterID)
	if err != nil {
		return err
	}
	printChannel(full)
	return nil
}

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "lock a conditional transfer using the bundled hashlock program",
	ArgsUsage: "channel-address asset-address amount timeout-seconds preimage-hash-hex",
	Action:    createAction,
}

func createAction(ctx *cli.Context) error {
	if ctx.NArg() != 5 {
		return cli.ShowCommandHelp(ctx, "create")
	}
	channelAddr := common.HexToAddress(ctx.Args().Get(0))
	assetAddr := common.HexToAddress(ctx.Args().Get(1))
	amount, ok := new(big.Int).SetString(ctx.Args().Get(2), 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", ctx.Args().Get(2))
	}
	var timeout uint64
	if _, err := fmt.Sscanf(ctx.Args().Get(3), "%d", &timeout); err != nil {
		return fmt.Errorf("invalid timeout-seconds: %w", err)
	}
	hash := common.HexToHash(ctx.Args().Get(4))

	p, err := buildPair(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	initialState, err := vm.EncodeHashlockState(vm.HashlockState{
		LockHash: hash,
		Amount:   amount,
		Sender:   p.SelfAddr,
		Receiver: p.CounterAddr,
	})
	if err != nil {
		return err
	}

	full, transfer, err := p.Self.Create(
		context.Background(), channelAddr, assetAddr, amount,
		hashlockAddress, initialState, []string{"hashlock"}, timeout, p.CounterID,
	)
	if err != nil {
		return err
	}
	printChannel(full)
	printTransfer(transfer)
	return nil
}

var resolveCommand = cli.Command{
	Name:      "resolve",
	Usage:     "resolve an active transfer by revealing its preimage",
	ArgsUsage: "channel-address transfer-id preimage-hex",
	Action:    resolveAction,
}

func resolveAction(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return cli.ShowCommandHelp(ctx, "resolve")
	}
	channelAddr := common.HexToAddress(ctx.Args().Get(0))
	transferID, err := uuid.Parse(ctx.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid transfer-id: %w", err)
	}
	preimage := common.HexToHash(ctx.Args().Get(2))

	p, err := buildPair(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	resolver, err := vm.EncodeHashlockResolver(preimage)
	if err != nil {
		return err
	}

	full, err := p.Self.Resolve(context.Background(), channelAddr, transferID, resolver, p.CounterID)
	if err != nil {
		return err
	}
	printChannel(full)
	return nil
}

var getChannelCommand = cli.Command{
	Name:      "getchannel",
	Usage:     "print the last persisted state of a channel",
	ArgsUsage: "channel-address",
	Action:    getChannelAction,
}

func getChannelAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "getchannel")
	}
	channelAddr := common.HexToAddress(ctx.Args().Get(0))

	p, err := buildPair(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	full, err := p.Self.Store.LoadChannel(channelAddr)
	if err != nil {
		return err
	}
	if full == nil {
		return fmt.Errorf("channel %s not found", channelAddr.Hex())
	}
	printChannel(full)
	return nil
}
