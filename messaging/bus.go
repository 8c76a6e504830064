package messaging

import (
	"sync"

	"github.com/lightningnetwork/lnd/queue"
)

// subscriber is one OnReceiveProtocol registration. Its own ConcurrentQueue
// gives it an unbounded, strictly-ordered mailbox the way a
// htlcswitch link's mailbox does, so a slow handler backs up only its own
// queue and never reorders or drops another subscriber's messages.
type subscriber struct {
	id      int
	self    string
	handler func(Message)
	mailbox *queue.ConcurrentQueue
}

// Bus is the abstract publish/subscribe transport spec.md §1/§6 places out
// of scope for the core — this in-memory implementation is the default
// concrete backend, analogous to lnd's htlcswitch.Switch dispatching
// packets to registered links rather than over a real network socket.
// Other transports (a broker, a point-to-point socket) implement the same
// Publish/Subscribe shape.
type Bus struct {
	mu          sync.Mutex
	subscribers []subscriber
	nextSubID   int
}

// NewBus returns an empty in-memory bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish hands msg to every subscriber registered for msg.To by pushing it
// onto that subscriber's mailbox — delivery to each subscriber is ordered,
// but independent subscribers drain concurrently, mirroring
// htlcswitch.Switch.forward dispatching onto per-link mailboxes rather than
// calling handlers inline.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	subs := make([]subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		if s.self == msg.To {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.mailbox.ChanIn() <- msg
	}
}

// Subscribe registers handler for every message addressed to self. The
// returned function deregisters it and stops its mailbox.
func (b *Bus) Subscribe(self string, handler func(Message)) (unsubscribe func()) {
	mailbox := queue.NewConcurrentQueue(1000)
	mailbox.Start()

	go func() {
		for item := range mailbox.ChanOut() {
			handler(item.(Message))
		}
	}()

	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers = append(b.subscribers, subscriber{id: id, self: self, handler: handler, mailbox: mailbox})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subscribers {
			if s.id == id {
				s.mailbox.Stop()
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}
