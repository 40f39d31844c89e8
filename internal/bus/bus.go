package bus

import (
	"sync"
	"sync/atomic"

	"github.com/rgnets/wlanpi-netctl/internal/log"
)

// defaultBufferSize is used when a subscriber does not specify one.
const defaultBufferSize = 256

// Publisher is the outbound half of the bus. The control core and the
// supplicant bridge publish through this interface so tests can swap in a
// recorder.
type Publisher interface {
	Publish(msg Message)
}

// Bus fans messages out to subscribers, filtered by kind. Publishing never
// blocks: a subscriber whose buffer is full misses the message and the drop
// is counted. Subscribers therefore size their buffers for their consumption
// rate, not the other way around.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]chan Message
	global []chan Message

	published uint64
	dropped   uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Kind][]chan Message),
	}
}

// Publish delivers msg to every subscriber registered for its kind and to
// every global subscriber.
func (b *Bus) Publish(msg Message) {
	if msg == nil {
		return
	}
	atomic.AddUint64(&b.published, 1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[msg.Kind()] {
		b.send(ch, msg)
	}
	for _, ch := range b.global {
		b.send(ch, msg)
	}
}

func (b *Bus) send(ch chan Message, msg Message) {
	select {
	case ch <- msg:
	default:
		atomic.AddUint64(&b.dropped, 1)
		log.Debugf("bus: subscriber buffer full, dropped %s", msg.Kind())
	}
}

// Subscribe returns a channel receiving messages of the given kinds, or all
// messages when no kinds are given. bufSize <= 0 selects the default buffer.
func (b *Bus) Subscribe(bufSize int, kinds ...Kind) <-chan Message {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	ch := make(chan Message, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(kinds) == 0 {
		b.global = append(b.global, ch)
		return ch
	}
	for _, k := range kinds {
		b.subs[k] = append(b.subs[k], ch)
	}
	return ch
}

// Unsubscribe detaches a channel returned by Subscribe. The channel is not
// closed; messages already buffered can still be drained.
func (b *Bus) Unsubscribe(ch <-chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.global = removeSubscriber(b.global, ch)
	for k, list := range b.subs {
		b.subs[k] = removeSubscriber(list, ch)
	}
}

func removeSubscriber(list []chan Message, ch <-chan Message) []chan Message {
	out := list[:0]
	for _, c := range list {
		if c != ch {
			out = append(out, c)
		}
	}
	return out
}

// Stats returns the number of messages published and the number of deliveries
// dropped because a subscriber buffer was full.
func (b *Bus) Stats() (published, dropped uint64) {
	return atomic.LoadUint64(&b.published), atomic.LoadUint64(&b.dropped)
}

// SubscriberCount returns the number of attached subscriber channels.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[<-chan Message]struct{})
	for _, ch := range b.global {
		seen[ch] = struct{}{}
	}
	for _, list := range b.subs {
		for _, ch := range list {
			seen[ch] = struct{}{}
		}
	}
	return len(seen)
}
