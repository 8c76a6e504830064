package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/alfredolopez80/vector/chantypes"
)

// ErrMessagingTimeout is returned when no reply arrives within the
// configured timeout (spec.md §4.4/§7).
var ErrMessagingTimeout = fmt.Errorf("messaging: timed out waiting for reply")

// Reply is what SendProtocol resolves to: the update that was replied with
// and, if the counterparty attached one (e.g. on StaleUpdate), its latest
// accepted update.
type Reply struct {
	Update         *chantypes.ChannelUpdate
	PreviousUpdate *chantypes.ChannelUpdate
}

// waiter is a single-shot registration awaiting exactly one reply on an
// Inbox. Grounded on htlcswitch/switch.go's pendingPayment: a result
// channel delivered to at most once, then deregistered.
type waiter struct {
	replyCh chan Message
}

// ChannelMessaging implements spec.md §4.4 on top of a Bus. One
// ChannelMessaging instance is shared across every channel this node
// participates in — correlation is per-inbox, not per-channel.
type ChannelMessaging struct {
	bus   *Bus
	clock clock.Clock
	self  string

	mu      sync.Mutex
	waiters map[Inbox]*waiter
}

// New returns a ChannelMessaging speaking as self over bus, using clk for
// timeouts (so tests can inject a fake clock).
func New(bus *Bus, clk clock.Clock, self string) *ChannelMessaging {
	return &ChannelMessaging{
		bus:     bus,
		clock:   clk,
		self:    self,
		waiters: make(map[Inbox]*waiter),
	}
}

// SendProtocol publishes update (and, if supplied, previousUpdate) to
// toIdentifier, waits up to timeout for a single matching reply, and
// retries up to maxRetries times with a freshly generated inbox — never
// reusing one (spec.md §4.4). The correlation rule (design note, spec.md
// §9) is implemented as an explicit map keyed by the generated inbox,
// resolving the source's filter-expression name-shadowing ambiguity: the
// intended match is message.inbox == generated_inbox.
func (m *ChannelMessaging) SendProtocol(
	ctx context.Context,
	update *chantypes.ChannelUpdate,
	previousUpdate *chantypes.ChannelUpdate,
	toIdentifier string,
	timeout time.Duration,
	maxRetries int,
) (Reply, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = timeout / 4
	bo.MaxInterval = timeout

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		reply, err := m.sendOnce(ctx, update, previousUpdate, toIdentifier, timeout)
		if err == nil {
			return reply, nil
		}
		log.Debugf("send to %s attempt %d failed: %v", toIdentifier, attempt, err)
		// A protocol-level rejection (StaleUpdate, MissingUpdates, a
		// validation rejection, ...) is not a transport failure —
		// retrying with a new inbox would just repeat it. Only
		// Timeout/transport errors are retried here; everything else
		// is returned immediately, with whatever the reply attached
		// (e.g. StaleUpdate's previousUpdate) intact.
		if _, isProtoErr := err.(*ProtocolError); isProtoErr {
			return reply, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return Reply{}, ctx.Err()
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-m.clock.TickAfter(bo.NextBackOff()):
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}
	return Reply{}, lastErr
}

func (m *ChannelMessaging) sendOnce(
	ctx context.Context,
	update *chantypes.ChannelUpdate,
	previousUpdate *chantypes.ChannelUpdate,
	toIdentifier string,
	timeout time.Duration,
) (Reply, error) {
	inbox := NewInbox()
	w := &waiter{replyCh: make(chan Message, 1)}

	m.mu.Lock()
	m.waiters[inbox] = w
	m.mu.Unlock()

	deregister := func() {
		m.mu.Lock()
		delete(m.waiters, inbox)
		m.mu.Unlock()
	}

	m.bus.Publish(Message{
		To:     toIdentifier,
		From:   update.FromIdentifier,
		Inbox:  inbox,
		SentBy: m.self,
		Data: Data{
			Update:         update,
			PreviousUpdate: previousUpdate,
		},
	})

	select {
	case reply := <-w.replyCh:
		deregister()
		if reply.Data.Error != nil {
			// previousUpdate may still be attached to an error reply
			// (e.g. StaleUpdate attaches the responder's latest
			// accepted update) — previousUpdate's presence is not
			// exclusive with error, only update's is (spec.md §6).
			return Reply{PreviousUpdate: reply.Data.PreviousUpdate}, reply.Data.Error
		}
		return Reply{Update: reply.Data.Update, PreviousUpdate: reply.Data.PreviousUpdate}, nil
	case <-m.clock.TickAfter(timeout):
		deregister()
		return Reply{}, ErrMessagingTimeout
	case <-ctx.Done():
		// Cancellation: deregister so a late reply is discarded, per
		// spec.md §5's cancellation guarantee.
		deregister()
		return Reply{}, ctx.Err()
	}
}

// Respond publishes a positive reply bound to inbox.
func (m *ChannelMessaging) Respond(toIdentifier string, update *chantypes.ChannelUpdate, inbox Inbox, previousUpdate *chantypes.ChannelUpdate) {
	m.bus.Publish(Message{
		To:     toIdentifier,
		From:   update.FromIdentifier,
		Inbox:  inbox,
		SentBy: m.self,
		Data: Data{
			Update:         update,
			PreviousUpdate: previousUpdate,
		},
	})
}

// RespondError publishes a negative reply bound to inbox. previousUpdate is
// optional and is attached alongside the error — used by StaleUpdate to
// hand the initiator our latest accepted update (spec.md §4.5 responder
// step 3); previousUpdate's presence is independent of error's, only
// update/error are mutually exclusive (spec.md §6).
func (m *ChannelMessaging) RespondError(fromIdentifier, toIdentifier string, inbox Inbox, protoErr *ProtocolError, previousUpdate *chantypes.ChannelUpdate) {
	m.bus.Publish(Message{
		To:     toIdentifier,
		From:   fromIdentifier,
		Inbox:  inbox,
		SentBy: m.self,
		Data: Data{
			PreviousUpdate: previousUpdate,
			Error:          protoErr,
		},
	})
}

// OnReceiveProtocol invokes handler for every inbound message addressed to
// selfIdentifier that is NOT a correlated reply to one of our own waiters —
// i.e. fresh inbound proposals a responder must act on. Replies matching a
// registered waiter are routed to SendProtocol's caller instead and never
// reach handler, implementing the "delivered to exactly one waiter or
// dropped" correlation rule.
func (m *ChannelMessaging) OnReceiveProtocol(selfIdentifier string, handler func(msg Message)) (unsubscribe func()) {
	return m.bus.Subscribe(selfIdentifier, func(msg Message) {
		m.mu.Lock()
		w, isReply := m.waiters[msg.Inbox]
		m.mu.Unlock()

		if isReply && msg.SentBy != selfIdentifier {
			select {
			case w.replyCh <- msg:
			default:
				// A second reply to the same inbox: the first
				// was already delivered, discard the rest
				// (spec.md §4.4).
			}
			return
		}

		// A reply whose waiter has already been deregistered (timed out
		// or cancelled) carries an error or our own proposal back; drop
		// it instead of handing it to handler as a fresh proposal.
		if msg.Data.Error != nil || (msg.Data.Update != nil && msg.Data.Update.FromIdentifier == selfIdentifier) {
			return
		}

		handler(msg)
	})
}
