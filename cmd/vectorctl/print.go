package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/alfredolopez80/vector/chantypes"
)

// printChannel renders a FullChannelState the way lncli's table helpers
// render lnrpc responses, via go-pretty rather than raw fmt.Printf columns.
func printChannel(full *chantypes.FullChannelState) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"field", "value"})
	t.AppendRow(table.Row{"channel", full.ChannelAddress.Hex()})
	t.AppendRow(table.Row{"nonce", full.Nonce})
	t.AppendRow(table.Row{"latestDepositNonce", full.LatestDepositNonce})
	t.AppendRow(table.Row{"participants[0]", full.Participants[0].Hex()})
	t.AppendRow(table.Row{"participants[1]", full.Participants[1].Hex()})
	for i, asset := range full.AssetIDs {
		t.AppendRow(table.Row{"asset", asset.Hex()})
		t.AppendRow(table.Row{"balance[0]", full.Balances[i][0].String()})
		t.AppendRow(table.Row{"balance[1]", full.Balances[i][1].String()})
	}
	t.AppendRow(table.Row{"merkleRoot", full.MerkleRoot.Hex()})
	t.Render()
}

func printTransfer(t *chantypes.TransferState) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"field", "value"})
	tw.AppendRow(table.Row{"transferId", t.TransferID.String()})
	tw.AppendRow(table.Row{"definition", t.Definition.Hex()})
	tw.AppendRow(table.Row{"asset", t.AssetID.Hex()})
	tw.AppendRow(table.Row{"lockedAmount", t.LockedAmount.String()})
	tw.Render()
}
