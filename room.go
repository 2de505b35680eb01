package mediasoupclient

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"
	"github.com/qdgx/mediasoup-client-go/engine"
	pionengine "github.com/qdgx/mediasoup-client-go/engine/pion"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

type RoomState string

const (
	RoomStateNew     RoomState = "new"
	RoomStateJoining RoomState = "joining"
	RoomStateJoined  RoomState = "joined"
	RoomStateClosed  RoomState = "closed"
)

// Room is the local model of a session on the server: our transports and producers, and
// the other peers with their consumers.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits newpeer - (peer *Peer)
// - @emits request - (method string, data interface{})
// - @emits notify - (method string, data interface{})
type Room struct {
	IEventEmitter
	locker                  sync.Mutex
	logger                  logr.Logger
	signaler                Signaler
	options                 RoomOptions
	device                  *Device
	state                   RoomState
	peerName                string
	extendedRtpCapabilities *ortc.ExtendedRtpCapabilities
	rtpCapabilities         *ortc.RtpCapabilities
	canSendByKind           map[ortc.MediaKind]bool
	transports              map[string]*Transport
	producers               map[string]*Producer
	peers                   map[string]*Peer
	observer                IEventEmitter
}

// NewRoom creates a room talking to the server through signaler. The media engine is pion
// unless options say otherwise.
func NewRoom(signaler Signaler, options ...RoomOptions) (*Room, error) {
	if signaler == nil {
		return nil, NewTypeError("missing signaler")
	}

	logger := NewLogger("Room")

	roomOptions := defaultRoomOptions()
	for _, o := range options {
		if err := override(&roomOptions, o); err != nil {
			return nil, err
		}
	}

	if roomOptions.EngineFactory == nil {
		factory, err := pionengine.NewFactory(NewLogger("pion"))
		if err != nil {
			return nil, err
		}
		roomOptions.EngineFactory = factory
	}

	device, err := NewDevice(roomOptions.EngineFactory, roomOptions.SdpSemantics)
	if err != nil {
		return nil, err
	}

	logger.V(1).Info("constructor()", "semantics", device.SdpSemantics(), "spy", roomOptions.Spy)

	return &Room{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		signaler:      signaler,
		options:       roomOptions,
		device:        device,
		state:         RoomStateNew,
		canSendByKind: make(map[ortc.MediaKind]bool),
		transports:    make(map[string]*Transport),
		producers:     make(map[string]*Producer),
		peers:         make(map[string]*Peer),
		observer:      NewEventEmitter(),
	}, nil
}

func (room *Room) State() RoomState {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.state
}

func (room *Room) Joined() bool {
	return room.State() == RoomStateJoined
}

func (room *Room) Closed() bool {
	return room.State() == RoomStateClosed
}

func (room *Room) PeerName() string {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.peerName
}

func (room *Room) Device() *Device {
	return room.device
}

// RtpCapabilities returns what this client announced when joining.
func (room *Room) RtpCapabilities() *ortc.RtpCapabilities {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.rtpCapabilities
}

func (room *Room) ExtendedRtpCapabilities() *ortc.ExtendedRtpCapabilities {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.extendedRtpCapabilities
}

// CanSend returns whether media of kind can be sent to the room.
func (room *Room) CanSend(kind ortc.MediaKind) bool {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.canSendByKind[kind]
}

func (room *Room) Transports() []*Transport {
	room.locker.Lock()
	defer room.locker.Unlock()

	transports := make([]*Transport, 0, len(room.transports))
	for _, transport := range room.transports {
		transports = append(transports, transport)
	}
	return transports
}

func (room *Room) Transport(id string) *Transport {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.transports[id]
}

func (room *Room) Producers() []*Producer {
	room.locker.Lock()
	defer room.locker.Unlock()

	producers := make([]*Producer, 0, len(room.producers))
	for _, producer := range room.producers {
		producers = append(producers, producer)
	}
	return producers
}

func (room *Room) Producer(id string) *Producer {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.producers[id]
}

func (room *Room) Peers() []*Peer {
	room.locker.Lock()
	defer room.locker.Unlock()

	peers := make([]*Peer, 0, len(room.peers))
	for _, peer := range room.peers {
		peers = append(peers, peer)
	}
	return peers
}

func (room *Room) Peer(name string) *Peer {
	room.locker.Lock()
	defer room.locker.Unlock()

	return room.peers[name]
}

// Observer.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits newpeer - (peer *Peer)
// - @emits request - (method string, data interface{})
// - @emits notify - (method string, data interface{})
func (room *Room) Observer() IEventEmitter {
	return room.observer
}

func (room *Room) OnClose(handler func(originator Originator, appData interface{})) {
	room.On("close", handler)
}

func (room *Room) OnNewPeer(handler func(peer *Peer)) {
	room.On("newpeer", handler)
}

// OnRequest is called with every request sent to the server.
func (room *Room) OnRequest(handler func(method string, data interface{})) {
	room.On("request", handler)
}

// OnNotify is called with every notification sent to the server.
func (room *Room) OnNotify(handler func(method string, data interface{})) {
	room.On("notify", handler)
}

// Join queries the room capabilities, negotiates ours against them and joins as peerName.
// It returns the peers already in the room.
func (room *Room) Join(ctx context.Context, peerName string, appData interface{}) (peers []*Peer, err error) {
	room.logger.V(1).Info("join()", "peerName", peerName)

	if len(peerName) == 0 {
		return nil, NewTypeError("missing peerName")
	}

	room.locker.Lock()
	if room.state != RoomStateNew {
		state := room.state
		room.locker.Unlock()
		return nil, NewInvalidStateError("cannot join in state %q", state)
	}
	room.state = RoomStateJoining
	room.peerName = peerName
	room.locker.Unlock()

	defer func() {
		if err == nil {
			return
		}
		room.locker.Lock()
		if room.state == RoomStateJoining {
			room.state = RoomStateNew
		}
		room.locker.Unlock()
	}()

	var query queryRoomResponse
	if err = room.request(ctx, "queryRoom", queryRoomRequest{Target: "room"}, &query); err != nil {
		return nil, err
	}
	if err = ortc.ValidateRtpCapabilities(query.RtpCapabilities); err != nil {
		return nil, err
	}

	nativeCaps, err := room.device.NativeRtpCapabilities(ctx)
	if err != nil {
		return nil, err
	}

	extendedCaps := ortc.GetExtendedRtpCapabilities(nativeCaps, query.RtpCapabilities)

	unsupportedCodecs, err := ortc.GetUnsupportedCodecs(query.RtpCapabilities, query.MandatoryCodecPayloadTypes, extendedCaps)
	if err != nil {
		return nil, err
	}
	if len(unsupportedCodecs) > 0 {
		return nil, NewUnsupportedError("mandatory room codecs not supported: %d", len(unsupportedCodecs))
	}

	canSendByKind := map[ortc.MediaKind]bool{}
	if !room.options.Spy {
		for _, kind := range []ortc.MediaKind{ortc.MediaKindAudio, ortc.MediaKindVideo} {
			canSendByKind[kind] = ortc.CanSend(kind, extendedCaps)
		}
	}
	rtpCapabilities := ortc.GetRtpCapabilities(extendedCaps)

	var joined joinResponse
	err = room.request(ctx, "join", joinRequest{
		Target:          "room",
		PeerName:        peerName,
		RtpCapabilities: rtpCapabilities,
		Spy:             room.options.Spy,
		AppData:         appData,
	}, &joined)
	if err != nil {
		return nil, err
	}

	room.locker.Lock()
	if room.state != RoomStateJoining {
		room.locker.Unlock()
		return nil, NewInvalidStateError("room closed while joining")
	}
	room.state = RoomStateJoined
	room.extendedRtpCapabilities = extendedCaps
	room.rtpCapabilities = rtpCapabilities
	room.canSendByKind = canSendByKind
	room.locker.Unlock()

	for _, peerData := range joined.Peers {
		peer, err := room.handlePeerData(peerData)
		if err != nil {
			room.logger.Error(err, "join() | ignoring peer", "name", peerData.Name)
			continue
		}
		peers = append(peers, peer)
	}

	return peers, nil
}

// Leave the room. Every transport, producer and peer is closed.
func (room *Room) Leave(appData interface{}) {
	room.logger.V(1).Info("leave()")

	if !room.Joined() {
		room.close(OriginatorLocal, appData)
		return
	}
	if err := room.notify("leave", leaveNotification{AppData: appData}); err != nil {
		room.logger.Error(err, "leave notification failed")
	}

	room.close(OriginatorLocal, appData)
}

func (room *Room) remoteClose(appData interface{}) {
	room.close(OriginatorRemote, appData)
}

func (room *Room) close(originator Originator, appData interface{}) {
	room.locker.Lock()
	if room.state == RoomStateClosed {
		room.locker.Unlock()
		return
	}
	room.logger.V(1).Info("close()", "originator", originator)

	room.state = RoomStateClosed
	transports := make([]*Transport, 0, len(room.transports))
	for _, transport := range room.transports {
		transports = append(transports, transport)
	}
	producers := make([]*Producer, 0, len(room.producers))
	for _, producer := range room.producers {
		producers = append(producers, producer)
	}
	peers := make([]*Peer, 0, len(room.peers))
	for _, peer := range room.peers {
		peers = append(peers, peer)
	}
	room.locker.Unlock()

	// the server drops everything with the peer, nothing else is sent
	for _, transport := range transports {
		transport.close(originator, nil, false)
	}
	for _, producer := range producers {
		producer.close(originator, nil)
	}
	for _, peer := range peers {
		peer.close(originator, nil)
	}

	room.SafeEmit("close", originator, appData)
	room.RemoveAllListeners()

	// Emit observer event.
	room.observer.SafeEmit("close", originator, appData)
	room.observer.RemoveAllListeners()
}

// CreateTransport creates a transport. It is created on the server along with the first
// producer or consumer it handles.
func (room *Room) CreateTransport(direction TransportDirection, appData interface{}) (*Transport, error) {
	room.logger.V(1).Info("createTransport()", "direction", direction)

	room.locker.Lock()
	if room.state != RoomStateJoined {
		room.locker.Unlock()
		return nil, NewInvalidStateError("room not joined")
	}
	extendedCaps := room.extendedRtpCapabilities
	room.locker.Unlock()

	transport, err := newTransport(transportParams{
		direction:               direction,
		appData:                 appData,
		channel:                 room,
		device:                  room.device,
		options:                 room.options,
		extendedRtpCapabilities: extendedCaps,
	})
	if err != nil {
		return nil, err
	}

	room.locker.Lock()
	room.transports[transport.Id()] = transport
	room.locker.Unlock()

	transport.On("@close", func() {
		room.locker.Lock()
		defer room.locker.Unlock()

		delete(room.transports, transport.Id())
	})

	return transport, nil
}

// CreateProducer creates a producer for track. Producer.Send starts sending it.
func (room *Room) CreateProducer(track engine.Track, options ProducerOptions, appData interface{}) (*Producer, error) {
	if track == nil {
		return nil, NewTypeError("missing track")
	}

	room.logger.V(1).Info("createProducer()", "kind", track.Kind(), "track", track.ID())

	room.locker.Lock()
	if room.state != RoomStateJoined {
		room.locker.Unlock()
		return nil, NewInvalidStateError("room not joined")
	}
	if !room.canSendByKind[ortc.MediaKind(track.Kind())] {
		room.locker.Unlock()
		return nil, NewUnsupportedError("cannot send %s", track.Kind())
	}
	room.locker.Unlock()

	producer := newProducer(track, options, appData)

	room.locker.Lock()
	room.producers[producer.Id()] = producer
	room.locker.Unlock()

	producer.On("@close", func() {
		room.locker.Lock()
		defer room.locker.Unlock()

		delete(room.producers, producer.Id())
	})

	return producer, nil
}

// RestartIce restarts ICE on every transport.
func (room *Room) RestartIce(ctx context.Context) error {
	if !room.Joined() {
		return NewInvalidStateError("room not joined")
	}

	var errs []error
	for _, transport := range room.Transports() {
		if err := transport.RestartIce(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ReceiveNotification applies a notification sent by the server.
func (room *Room) ReceiveNotification(notification Notification) error {
	room.logger.V(1).Info("receiveNotification()", "method", notification.Method)

	if !room.Joined() {
		return NewInvalidStateError("room not joined")
	}

	switch notification.Method {
	case "closed":
		var data closedNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		room.remoteClose(data.AppData)

	case "transportClosed":
		var data entityNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		transport := room.Transport(data.Id)
		if transport == nil {
			return NewNotFoundError("transport %q not found", data.Id)
		}
		transport.remoteClose(data.AppData)

	case "transportStats":
		var data statsNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		transport := room.Transport(data.Id)
		if transport == nil {
			return NewNotFoundError("transport %q not found", data.Id)
		}
		transport.remoteStats(data.Stats)

	case "newPeer":
		var data PeerData
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		peer, err := room.handlePeerData(data)
		if err != nil {
			return err
		}
		room.SafeEmit("newpeer", peer)
		room.observer.SafeEmit("newpeer", peer)

	case "peerClosed":
		var data peerClosedNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		peer := room.Peer(data.Name)
		if peer == nil {
			return NewNotFoundError("peer %q not found", data.Name)
		}
		peer.remoteClose(data.AppData)

	case "producerPaused", "producerResumed", "producerClosed":
		var data entityNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		producer := room.Producer(data.Id)
		if producer == nil {
			return NewNotFoundError("producer %q not found", data.Id)
		}
		switch notification.Method {
		case "producerPaused":
			producer.remotePause(data.AppData)
		case "producerResumed":
			producer.remoteResume(data.AppData)
		default:
			producer.remoteClose(data.AppData)
		}

	case "producerStats":
		var data statsNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		producer := room.Producer(data.Id)
		if producer == nil {
			return NewNotFoundError("producer %q not found", data.Id)
		}
		producer.remoteStats(data.Stats)

	case "newConsumer":
		var data ConsumerData
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		peer := room.Peer(data.PeerName)
		if peer == nil {
			return NewNotFoundError("peer %q not found", data.PeerName)
		}
		return room.handleConsumerData(data, peer)

	case "consumerClosed", "consumerPaused", "consumerResumed":
		var data entityNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		consumer, err := room.findConsumer(data.PeerName, data.Id)
		if err != nil {
			return err
		}
		switch notification.Method {
		case "consumerClosed":
			consumer.remoteClose(data.AppData)
		case "consumerPaused":
			consumer.remotePause(data.AppData)
		default:
			consumer.remoteResume(data.AppData)
		}

	case "consumerPreferredProfileSet", "consumerEffectiveProfileChanged":
		var data profileNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		consumer, err := room.findConsumer(data.PeerName, data.Id)
		if err != nil {
			return err
		}
		if notification.Method == "consumerPreferredProfileSet" {
			consumer.remoteSetPreferredProfile(data.Profile)
		} else {
			consumer.remoteEffectiveProfileChanged(data.Profile)
		}

	case "consumerStats":
		var data statsNotification
		if err := decodeData(notification.Data, &data); err != nil {
			return err
		}
		consumer, err := room.findConsumer(data.PeerName, data.Id)
		if err != nil {
			return err
		}
		consumer.remoteStats(data.Stats)

	default:
		return NewTypeError("unknown notification method %q", notification.Method)
	}

	return nil
}

func (room *Room) findConsumer(peerName, id string) (*Consumer, error) {
	peer := room.Peer(peerName)
	if peer == nil {
		return nil, NewNotFoundError("peer %q not found", peerName)
	}
	consumer := peer.Consumer(id)
	if consumer == nil {
		return nil, NewNotFoundError("consumer %q not found", id)
	}
	return consumer, nil
}

func (room *Room) handlePeerData(data PeerData) (*Peer, error) {
	room.locker.Lock()
	if _, ok := room.peers[data.Name]; ok {
		room.locker.Unlock()
		return nil, NewInvalidStateError("peer %q already exists", data.Name)
	}
	peer := newPeer(data.Name, data.AppData)
	room.peers[data.Name] = peer
	room.locker.Unlock()

	peer.On("@close", func() {
		room.locker.Lock()
		defer room.locker.Unlock()

		delete(room.peers, peer.Name())
	})

	for _, consumerData := range data.Consumers {
		if err := room.handleConsumerData(consumerData, peer); err != nil {
			room.logger.Error(err, "ignoring consumer", "id", consumerData.Id, "peerName", data.Name)
		}
	}

	return peer, nil
}

func (room *Room) handleConsumerData(data ConsumerData, peer *Peer) error {
	if data.RtpParameters == nil {
		return NewTypeError("missing rtpParameters of consumer %q", data.Id)
	}

	supported := ortc.CanReceive(data.RtpParameters, room.ExtendedRtpCapabilities())

	return peer.addConsumer(newConsumer(data, peer, supported))
}

// request sends a request bounded by the request timeout and decodes its response into
// response, if not nil.
func (room *Room) request(ctx context.Context, method string, data, response interface{}) error {
	room.logger.V(1).Info("request()", "method", method)

	room.SafeEmit("request", method, data)
	room.observer.SafeEmit("request", method, data)

	ctx, cancel := context.WithTimeout(ctx, room.options.RequestTimeout)
	defer cancel()

	raw, err := room.signaler.Request(ctx, method, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return NewTimeoutError("request %q timeout", method)
		}
		return err
	}

	if response == nil {
		return nil
	}
	if err := decodeData(raw, response); err != nil {
		return NewTypeError("invalid %q response: %s", method, err)
	}

	return nil
}

func (room *Room) notify(method string, data interface{}) error {
	room.logger.V(1).Info("notify()", "method", method)

	room.SafeEmit("notify", method, data)
	room.observer.SafeEmit("notify", method, data)

	return room.signaler.Notify(method, data)
}
