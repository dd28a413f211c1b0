// Package pubsubmutex wraps github.com/cskr/pubsub behind a guard that
// lets the underlying PubSub be torn down and rebuilt (Start/Shutdown)
// without racing callers mid-publish, adapted from
// jonoton-scout/pubsubMutex for in-process signal fan-out: one publisher,
// many in-process subscribers, decoupling the publisher from how many
// subscribers exist or when they joined.
package pubsubmutex

import (
	"sync"
	"time"

	"github.com/cskr/pubsub"
)

// PubSubMutex guards a *pubsub.PubSub instance so Start/Shutdown can
// replace it while in-flight Use calls still see a consistent instance.
type PubSubMutex struct {
	pubsub    *pubsub.PubSub
	capacity  int
	isRunning bool
	guard     sync.RWMutex
}

// New creates a PubSubMutex whose per-subscriber channel buffer is
// capacity. Call Start before Sub/Use have any effect.
func New(capacity int) *PubSubMutex {
	return &PubSubMutex{capacity: capacity}
}

// Start (re)creates the underlying PubSub, discarding any previous one.
func (p *PubSubMutex) Start() {
	p.guard.Lock()
	defer p.guard.Unlock()
	p.shutdownLocked()
	p.pubsub = pubsub.New(p.capacity)
	p.isRunning = true
}

// Use runs callback with the live PubSub instance if one is running.
// Multiple Use calls may run concurrently; they only exclude Start/Shutdown.
func (p *PubSubMutex) Use(callback func(*pubsub.PubSub)) {
	p.guard.RLock()
	defer p.guard.RUnlock()
	if callback != nil && p.pubsub != nil && p.isRunning {
		callback(p.pubsub)
	}
}

// Shutdown stops the underlying PubSub. Use becomes a no-op until the next
// Start.
func (p *PubSubMutex) Shutdown() {
	p.guard.Lock()
	defer p.guard.Unlock()
	p.shutdownLocked()
}

func (p *PubSubMutex) shutdownLocked() {
	if p.pubsub != nil && p.isRunning {
		p.pubsub.Shutdown()
		p.pubsub = nil
	}
	p.isRunning = false
}

// Sub subscribes to topic, returning nil if the PubSub isn't running.
func (p *PubSubMutex) Sub(topic string) (result <-chan interface{}) {
	p.Use(func(instance *pubsub.PubSub) {
		result = instance.Sub(topic)
	})
	return
}

// Pub publishes msg to topic. A no-op if the PubSub isn't running.
func (p *PubSubMutex) Pub(msg interface{}, topic string) {
	p.Use(func(instance *pubsub.PubSub) {
		instance.TryPub(msg, topic)
	})
}

// SendReceive publishes sendMsg on sendTopic and waits up to timeoutMs for
// one reply on receiveTopic, used for request/response over the same
// in-process bus (e.g. a status query answered by whichever goroutine owns
// the state).
func (p *PubSubMutex) SendReceive(sendTopic, receiveTopic string, sendMsg interface{}, timeoutMs int) (result interface{}) {
	curChan := make(chan interface{})
	go p.Use(func(instance *pubsub.PubSub) {
		instance.AddSubOnceEach(curChan, receiveTopic)
		instance.TryPub(sendMsg, sendTopic)
	})
	select {
	case r, ok := <-curChan:
		if ok {
			result = r
		}
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		go p.Use(func(instance *pubsub.PubSub) {
			instance.Unsub(curChan, receiveTopic)
		})
	}
	return
}
