package driver

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredolopez80/vector/chantypes"
)

// ProtocolError is the structured error object spec.md §7 requires every
// failed operation to surface: a reason from the taxonomy, context, and
// optionally the latest known state — analogous to lnwallet/channel.go's
// InvalidCommitSigError pairing a sentinel reason with rich context rather
// than a bare string.
type ProtocolError struct {
	Reason      string
	Context     map[string]interface{}
	LatestState *chantypes.FullChannelState
}

func (e *ProtocolError) Error() string {
	return "driver: " + e.Reason
}

// wrapOutcome classifies err (if any) into the public ProtocolError shape,
// attaching whatever state is currently persisted for addr so a caller that
// lost a round can still see where the channel stands.
func (d *Driver) wrapOutcome(addr common.Address, err error) error {
	if err == nil {
		return nil
	}
	proto := toProtocolError(err, ReasonUnknown, nil)
	latest, loadErr := d.Store.LoadChannel(addr)
	if loadErr != nil {
		latest = nil
	}
	return &ProtocolError{Reason: proto.Reason, Context: proto.Context, LatestState: latest}
}
