package mediasoupclient

import (
	"sync"

	"github.com/go-logr/logr"
)

// Peer is another participant of the room.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits newconsumer - (consumer *Consumer)
// - @emits @close
type Peer struct {
	IEventEmitter
	locker    sync.Mutex
	logger    logr.Logger
	name      string
	appData   interface{}
	closed    bool
	consumers map[string]*Consumer
	observer  IEventEmitter
}

func newPeer(name string, appData interface{}) *Peer {
	logger := NewLogger("Peer")

	logger.V(1).Info("constructor()", "name", name)

	if appData == nil {
		appData = H{}
	}

	return &Peer{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		name:          name,
		appData:       appData,
		consumers:     make(map[string]*Consumer),
		observer:      NewEventEmitter(),
	}
}

func (peer *Peer) Name() string {
	return peer.name
}

func (peer *Peer) AppData() interface{} {
	return peer.appData
}

func (peer *Peer) Closed() bool {
	peer.locker.Lock()
	defer peer.locker.Unlock()

	return peer.closed
}

// Consumers returns the open consumers of the peer.
func (peer *Peer) Consumers() []*Consumer {
	peer.locker.Lock()
	defer peer.locker.Unlock()

	consumers := make([]*Consumer, 0, len(peer.consumers))
	for _, consumer := range peer.consumers {
		consumers = append(consumers, consumer)
	}
	return consumers
}

func (peer *Peer) Consumer(id string) *Consumer {
	peer.locker.Lock()
	defer peer.locker.Unlock()

	return peer.consumers[id]
}

// Observer.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits newconsumer - (consumer *Consumer)
func (peer *Peer) Observer() IEventEmitter {
	return peer.observer
}

func (peer *Peer) OnClose(handler func(originator Originator, appData interface{})) {
	peer.On("close", handler)
}

func (peer *Peer) OnNewConsumer(handler func(consumer *Consumer)) {
	peer.On("newconsumer", handler)
}

// Close the peer locally with all its consumers. The server is not told.
func (peer *Peer) Close() {
	peer.close(OriginatorLocal, nil)
}

func (peer *Peer) remoteClose(appData interface{}) {
	peer.close(OriginatorRemote, appData)
}

func (peer *Peer) close(originator Originator, appData interface{}) {
	peer.locker.Lock()
	if peer.closed {
		peer.locker.Unlock()
		return
	}
	peer.logger.V(1).Info("close()", "name", peer.name, "originator", originator)

	peer.closed = true
	consumers := make([]*Consumer, 0, len(peer.consumers))
	for _, consumer := range peer.consumers {
		consumers = append(consumers, consumer)
	}
	peer.locker.Unlock()

	for _, consumer := range consumers {
		consumer.close(originator, nil)
	}

	peer.Emit("@close")
	peer.SafeEmit("close", originator, appData)
	peer.RemoveAllListeners()

	// Emit observer event.
	peer.observer.SafeEmit("close", originator, appData)
	peer.observer.RemoveAllListeners()
}

func (peer *Peer) addConsumer(consumer *Consumer) error {
	peer.locker.Lock()
	if peer.closed {
		peer.locker.Unlock()
		return NewInvalidStateError("peer %q closed", peer.name)
	}
	if _, ok := peer.consumers[consumer.Id()]; ok {
		peer.locker.Unlock()
		return NewInvalidStateError("consumer %q already exists", consumer.Id())
	}
	peer.consumers[consumer.Id()] = consumer
	peer.locker.Unlock()

	consumer.On("@close", func() {
		peer.locker.Lock()
		defer peer.locker.Unlock()

		delete(peer.consumers, consumer.Id())
	})

	peer.SafeEmit("newconsumer", consumer)
	peer.observer.SafeEmit("newconsumer", consumer)

	return nil
}
