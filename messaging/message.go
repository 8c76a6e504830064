// Package messaging implements the correlated request/response channel of
// spec.md §4.4: every outbound update carries a fresh inbox, awaits a
// single reply on that inbox, times out, and may be retried with a new
// inbox. Grounded on htlcswitch/switch.go's pendingPayment map (paymentID
// -> result channel), registered by SendHTLC and resolved exactly once by
// the forwarding loop.
package messaging

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alfredolopez80/vector/chantypes"
)

// Inbox is a cryptographically-random correlation identifier, 32 bytes
// hex-encoded on the wire (spec.md §6).
type Inbox [32]byte

// NewInbox generates a fresh Inbox. Never reused across retries (spec.md
// §4.4).
func NewInbox() Inbox {
	var id Inbox
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// broken, at which point nothing downstream can be trusted
		// either.
		panic(fmt.Sprintf("messaging: reading random inbox: %v", err))
	}
	return id
}

func (i Inbox) String() string { return hexutil.Encode(i[:]) }

// MarshalJSON renders the inbox as the 0x-prefixed hex string the wire
// format of spec.md §6 names ("inbox: 32-byte hex").
func (i Inbox) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON parses the 0x-prefixed hex string back into an Inbox.
func (i *Inbox) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(s)
	if err != nil {
		return fmt.Errorf("messaging: inbox: %w", err)
	}
	if len(decoded) != len(i) {
		return fmt.Errorf("messaging: inbox must be exactly %d bytes, got %d", len(i), len(decoded))
	}
	copy(i[:], decoded)
	return nil
}

// ProtocolError is the negative-reply payload of spec.md §6's wire format.
type ProtocolError struct {
	Reason  string                 `json:"reason"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *ProtocolError) Error() string { return e.Reason }

// Data is the payload of a protocol message: exactly one of Update or Error
// is present (spec.md §6).
type Data struct {
	Update         *chantypes.ChannelUpdate `json:"update,omitempty"`
	PreviousUpdate *chantypes.ChannelUpdate `json:"previousUpdate,omitempty"`
	Error          *ProtocolError           `json:"error,omitempty"`
}

// Message is the wire format of spec.md §6, field order and names part of
// the interface.
type Message struct {
	To     string `json:"to"`
	From   string `json:"from"`
	Inbox  Inbox  `json:"inbox"`
	SentBy string `json:"sentBy"`
	Data   Data   `json:"data"`
}
