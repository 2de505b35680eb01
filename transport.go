package mediasoupclient

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/handler"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
)

var _ handler.Listener = (*Transport)(nil)

type TransportDirection string

const (
	TransportDirectionSend TransportDirection = "send"
	TransportDirectionRecv TransportDirection = "recv"
)

// notificationCommands maps the queued commands which only notify the server to the
// notification they send.
var notificationCommands = map[string]string{
	"pauseProducer":               "pauseProducer",
	"resumeProducer":              "resumeProducer",
	"enableProducerStats":         "enableProducerStats",
	"disableProducerStats":        "disableProducerStats",
	"pauseConsumer":               "pauseConsumer",
	"resumeConsumer":              "resumeConsumer",
	"setConsumerPreferredProfile": "setConsumerPreferredProfile",
	"enableConsumerStats":         "enableConsumerStats",
	"disableConsumerStats":        "disableConsumerStats",
	"enableStats":                 "enableTransportStats",
	"disableStats":                "disableTransportStats",
}

// signalingChannel is how transports reach the server, implemented by Room.
type signalingChannel interface {
	request(ctx context.Context, method string, data, response interface{}) error
	notify(method string, data interface{}) error
}

type transportParams struct {
	direction               TransportDirection
	appData                 interface{}
	channel                 signalingChannel
	device                  *Device
	options                 RoomOptions
	extendedRtpCapabilities *ortc.ExtendedRtpCapabilities
}

type replaceTrackCommand struct {
	oldTrack engine.Track
	newTrack engine.Track
}

type addConsumerResult struct {
	track    engine.Track
	response enableConsumerResponse
}

// Transport carries the producers or the consumers of the room over one peer connection.
// Its operations are serialized by a command queue.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits connectionstatechange - (state engine.ConnectionState)
// - @emits stats - (stats Stats)
// - @emits @close
type Transport struct {
	IEventEmitter
	locker                  sync.Mutex
	logger                  logr.Logger
	id                      string
	direction               TransportDirection
	appData                 interface{}
	options                 TransportOptions
	channel                 signalingChannel
	extendedRtpCapabilities *ortc.ExtendedRtpCapabilities
	queue                   *CommandQueue
	handler                 handler.Handler
	sendHandler             *handler.SendHandler
	recvHandler             *handler.RecvHandler
	connectionState         engine.ConnectionState
	closed                  bool
	statsEnabled            bool
	producers               map[string]*Producer
	consumers               map[string]*Consumer
	observer                IEventEmitter
}

func newTransport(params transportParams) (*Transport, error) {
	logger := NewLogger("Transport")

	logger.V(1).Info("constructor()", "direction", params.direction)

	if params.appData == nil {
		params.appData = H{}
	}

	transport := &Transport{
		IEventEmitter:           NewEventEmitter(),
		logger:                  logger,
		id:                      generateId(),
		direction:               params.direction,
		appData:                 params.appData,
		options:                 params.options.TransportOptions,
		channel:                 params.channel,
		extendedRtpCapabilities: params.extendedRtpCapabilities,
		connectionState:         engine.ConnectionStateNew,
		producers:               make(map[string]*Producer),
		consumers:               make(map[string]*Consumer),
		observer:                NewEventEmitter(),
	}
	transport.queue = NewCommandQueue(logger.WithName("CommandQueue"), transport.execute)

	handlerOptions := handler.Options{
		Factory: params.device.Factory(),
		Configuration: engine.Configuration{
			IceServers:         params.options.TurnServers,
			IceTransportPolicy: params.options.IceTransportPolicy,
			SdpSemantics:       params.device.SdpSemantics(),
		},
		ExtendedRtpCapabilities: params.extendedRtpCapabilities,
		Listener:                transport,
		Logger:                  logger,
	}

	switch params.direction {
	case TransportDirectionSend:
		h, err := handler.NewSendHandler(handlerOptions)
		if err != nil {
			return nil, err
		}
		transport.sendHandler, transport.handler = h, h

	case TransportDirectionRecv:
		h, err := handler.NewRecvHandler(handlerOptions)
		if err != nil {
			return nil, err
		}
		transport.recvHandler, transport.handler = h, h

	default:
		return nil, NewTypeError("invalid direction %q", params.direction)
	}

	return transport, nil
}

// Id returns transport id
func (transport *Transport) Id() string {
	return transport.id
}

func (transport *Transport) Direction() TransportDirection {
	return transport.direction
}

func (transport *Transport) AppData() interface{} {
	return transport.appData
}

func (transport *Transport) Closed() bool {
	transport.locker.Lock()
	defer transport.locker.Unlock()

	return transport.closed
}

func (transport *Transport) ConnectionState() engine.ConnectionState {
	transport.locker.Lock()
	defer transport.locker.Unlock()

	return transport.connectionState
}

func (transport *Transport) StatsEnabled() bool {
	transport.locker.Lock()
	defer transport.locker.Unlock()

	return transport.statsEnabled
}

// Observer.
//
// - @emits close - (originator Originator, appData interface{})
// - @emits connectionstatechange - (state engine.ConnectionState)
func (transport *Transport) Observer() IEventEmitter {
	return transport.observer
}

func (transport *Transport) OnClose(handler func(originator Originator, appData interface{})) {
	transport.On("close", handler)
}

func (transport *Transport) OnConnectionStateChange(handler func(state engine.ConnectionState)) {
	transport.On("connectionstatechange", handler)
}

func (transport *Transport) OnStats(handler func(stats Stats)) {
	transport.On("stats", handler)
}

// Close the transport and tell the server. Its producers and consumers become unhandled.
func (transport *Transport) Close(appData interface{}) {
	transport.close(OriginatorLocal, appData, true)
}

func (transport *Transport) remoteClose(appData interface{}) {
	transport.close(OriginatorRemote, appData, false)
}

func (transport *Transport) close(originator Originator, appData interface{}, notify bool) {
	transport.locker.Lock()
	if transport.closed {
		transport.locker.Unlock()
		return
	}
	transport.logger.V(1).Info("close()", "originator", originator)

	transport.closed = true
	producers := make([]*Producer, 0, len(transport.producers))
	for _, producer := range transport.producers {
		producers = append(producers, producer)
	}
	consumers := make([]*Consumer, 0, len(transport.consumers))
	for _, consumer := range transport.consumers {
		consumers = append(consumers, consumer)
	}
	transport.producers = make(map[string]*Producer)
	transport.consumers = make(map[string]*Consumer)
	transport.locker.Unlock()

	if notify {
		data := entityNotification{Id: transport.id, AppData: appData}
		if err := transport.channel.notify("closeTransport", data); err != nil {
			transport.logger.Error(err, "closeTransport notification failed")
		}
	}

	transport.queue.Close()
	transport.handler.Close()

	for _, producer := range producers {
		producer.transportClosed()
	}
	for _, consumer := range consumers {
		consumer.transportClosed()
	}

	transport.Emit("@close")
	transport.SafeEmit("close", originator, appData)
	transport.RemoveAllListeners()

	// Emit observer event.
	transport.observer.SafeEmit("close", originator, appData)
	transport.observer.RemoveAllListeners()
}

// RestartIce asks the server for new ICE parameters and restarts ICE with them. It does
// nothing until the transport exists on the server.
func (transport *Transport) RestartIce(ctx context.Context) error {
	if transport.Closed() {
		return NewInvalidStateError("transport closed")
	}
	if transport.handler.State() != handler.StateReady {
		transport.logger.V(1).Info("restartIce() | transport not ready, ignored")
		return nil
	}

	transport.logger.V(1).Info("restartIce()")

	var response restartTransportResponse
	if err := transport.channel.request(ctx, "restartTransport", restartTransportRequest{Id: transport.id}, &response); err != nil {
		return err
	}
	if response.IceParameters == nil {
		return NewTypeError("missing iceParameters in restartTransport response")
	}

	return transport.queue.Push(ctx, "restartIce", response.IceParameters).Err()
}

// EnableStats asks the server for periodic "stats" events, every second if interval is 0.
func (transport *Transport) EnableStats(interval time.Duration) error {
	transport.locker.Lock()
	if transport.closed {
		transport.locker.Unlock()
		return NewInvalidStateError("transport closed")
	}
	transport.logger.V(1).Info("enableStats()", "interval", interval)

	if interval <= 0 {
		interval = defaultStatsInterval
	}
	transport.statsEnabled = true
	transport.locker.Unlock()

	transport.pushNotification("enableStats", statsRequest{Id: transport.id, Interval: milliseconds(interval)})

	return nil
}

func (transport *Transport) DisableStats() error {
	transport.locker.Lock()
	if transport.closed {
		transport.locker.Unlock()
		return NewInvalidStateError("transport closed")
	}
	if !transport.statsEnabled {
		transport.locker.Unlock()
		return nil
	}
	transport.logger.V(1).Info("disableStats()")

	transport.statsEnabled = false
	transport.locker.Unlock()

	transport.pushNotification("disableStats", statsRequest{Id: transport.id})

	return nil
}

func (transport *Transport) remoteStats(stats Stats) {
	if transport.Closed() {
		return
	}
	transport.SafeEmit("stats", stats)
}

// OnNeedCreateTransport creates the transport on the server.
func (transport *Transport) OnNeedCreateTransport(ctx context.Context, local *remotesdp.TransportLocalParameters) (*remotesdp.TransportRemoteParameters, error) {
	transport.logger.V(1).Info("createTransport")

	data := createTransportRequest{
		Id:        transport.id,
		Direction: transport.direction,
		Options:   transport.options,
		AppData:   transport.appData,
	}
	if local != nil {
		data.DtlsParameters = local.DtlsParameters
	}

	remote := &remotesdp.TransportRemoteParameters{}
	if err := transport.channel.request(ctx, "createTransport", data, remote); err != nil {
		return nil, err
	}

	return remote, nil
}

// OnNeedUpdateTransport sends the DTLS parameters of a receiving transport.
func (transport *Transport) OnNeedUpdateTransport(local *remotesdp.TransportLocalParameters) {
	transport.logger.V(1).Info("updateTransport")

	data := updateTransportNotification{
		Id:             transport.id,
		DtlsParameters: local.DtlsParameters,
	}
	if err := transport.channel.notify("updateTransport", data); err != nil {
		transport.logger.Error(err, "updateTransport notification failed")
	}
}

func (transport *Transport) OnConnectionStateChanged(state engine.ConnectionState) {
	transport.locker.Lock()
	if transport.closed || transport.connectionState == state {
		transport.locker.Unlock()
		return
	}
	transport.connectionState = state
	transport.locker.Unlock()

	transport.SafeEmit("connectionstatechange", state)
	transport.observer.SafeEmit("connectionstatechange", state)
}

func (transport *Transport) addProducer(ctx context.Context, producer *Producer) (*ortc.RtpParameters, error) {
	if transport.direction != TransportDirectionSend {
		return nil, NewTypeError("not a sending transport")
	}
	if transport.Closed() {
		return nil, NewInvalidStateError("transport closed")
	}
	if !ortc.CanSend(producer.Kind(), transport.extendedRtpCapabilities) {
		return nil, NewUnsupportedError("cannot send %s", producer.Kind())
	}

	result, err := transport.queue.Push(ctx, "addProducer", producer).Wait()
	if err != nil {
		return nil, err
	}

	return result.(*ortc.RtpParameters), nil
}

// attachProducer makes transport the owner of a created producer. A producer closed while
// being created is removed again.
func (transport *Transport) attachProducer(producer *Producer, rtpParameters *ortc.RtpParameters) error {
	transport.locker.Lock()
	if transport.closed {
		transport.locker.Unlock()
		return NewInvalidStateError("transport closed")
	}
	attached, statsInterval := producer.attach(transport, rtpParameters)
	if attached {
		transport.producers[producer.Id()] = producer
	}
	transport.locker.Unlock()

	if !attached {
		transport.removeProducer(producer, OriginatorLocal, nil)
		return NewInvalidStateError("producer closed")
	}
	if statsInterval > 0 {
		transport.enableProducerStats(producer, statsInterval)
	}

	return nil
}

func (transport *Transport) removeProducer(producer *Producer, originator Originator, appData interface{}) {
	transport.locker.Lock()
	delete(transport.producers, producer.Id())
	closed := transport.closed
	transport.locker.Unlock()

	if closed {
		return
	}

	transport.queue.Push(context.Background(), "removeProducer", producer.Track())

	if originator == OriginatorLocal {
		data := entityNotification{Id: producer.Id(), AppData: appData}
		if err := transport.channel.notify("closeProducer", data); err != nil {
			transport.logger.Error(err, "closeProducer notification failed")
		}
	}
}

func (transport *Transport) replaceProducerTrack(ctx context.Context, oldTrack, newTrack engine.Track) error {
	return transport.queue.Push(ctx, "replaceProducerTrack", replaceTrackCommand{
		oldTrack: oldTrack,
		newTrack: newTrack,
	}).Err()
}

func (transport *Transport) pauseProducer(producer *Producer, appData interface{}) {
	transport.pushNotification("pauseProducer", entityNotification{Id: producer.Id(), AppData: appData})
}

func (transport *Transport) resumeProducer(producer *Producer, appData interface{}) {
	transport.pushNotification("resumeProducer", entityNotification{Id: producer.Id(), AppData: appData})
}

func (transport *Transport) enableProducerStats(producer *Producer, interval time.Duration) {
	transport.pushNotification("enableProducerStats", statsRequest{Id: producer.Id(), Interval: milliseconds(interval)})
}

func (transport *Transport) disableProducerStats(producer *Producer) {
	transport.pushNotification("disableProducerStats", statsRequest{Id: producer.Id()})
}

func (transport *Transport) addConsumer(ctx context.Context, consumer *Consumer) (engine.Track, enableConsumerResponse, error) {
	if transport.direction != TransportDirectionRecv {
		return nil, enableConsumerResponse{}, NewTypeError("not a receiving transport")
	}
	if transport.Closed() {
		return nil, enableConsumerResponse{}, NewInvalidStateError("transport closed")
	}

	result, err := transport.queue.Push(ctx, "addConsumer", consumer).Wait()
	if err != nil {
		return nil, enableConsumerResponse{}, err
	}
	added := result.(*addConsumerResult)

	return added.track, added.response, nil
}

func (transport *Transport) attachConsumer(consumer *Consumer, track engine.Track) error {
	transport.locker.Lock()
	if transport.closed {
		transport.locker.Unlock()
		track.Stop()
		return NewInvalidStateError("transport closed")
	}
	attached, statsInterval := consumer.attach(transport, track)
	if attached {
		transport.consumers[consumer.Id()] = consumer
	}
	transport.locker.Unlock()

	if !attached {
		transport.removeConsumer(consumer)
		track.Stop()
		return NewInvalidStateError("consumer closed")
	}
	if statsInterval > 0 {
		transport.enableConsumerStats(consumer, statsInterval)
	}

	return nil
}

func (transport *Transport) removeConsumer(consumer *Consumer) {
	transport.locker.Lock()
	delete(transport.consumers, consumer.Id())
	closed := transport.closed
	transport.locker.Unlock()

	if closed {
		return
	}

	transport.queue.Push(context.Background(), "removeConsumer", consumer.Id())
}

func (transport *Transport) pauseConsumer(consumer *Consumer, appData interface{}) {
	transport.pushNotification("pauseConsumer", entityNotification{Id: consumer.Id(), AppData: appData})
}

func (transport *Transport) resumeConsumer(consumer *Consumer, appData interface{}) {
	transport.pushNotification("resumeConsumer", entityNotification{Id: consumer.Id(), AppData: appData})
}

func (transport *Transport) setConsumerPreferredProfile(consumer *Consumer, profile ConsumerProfile) {
	transport.pushNotification("setConsumerPreferredProfile", profileNotification{Id: consumer.Id(), Profile: profile})
}

func (transport *Transport) enableConsumerStats(consumer *Consumer, interval time.Duration) {
	transport.pushNotification("enableConsumerStats", statsRequest{Id: consumer.Id(), Interval: milliseconds(interval)})
}

func (transport *Transport) disableConsumerStats(consumer *Consumer) {
	transport.pushNotification("disableConsumerStats", statsRequest{Id: consumer.Id()})
}

// pushNotification queues a notification behind the pending commands, so the server
// never hears about a producer before it is created.
func (transport *Transport) pushNotification(command string, data interface{}) {
	transport.queue.Push(context.Background(), command, data)
}

func (transport *Transport) execute(ctx context.Context, method string, data interface{}) (interface{}, error) {
	switch method {
	case "addProducer":
		return transport.execAddProducer(ctx, data.(*Producer))

	case "removeProducer":
		return nil, transport.sendHandler.RemoveProducer(ctx, data.(engine.Track))

	case "replaceProducerTrack":
		cmd := data.(replaceTrackCommand)
		return nil, transport.sendHandler.ReplaceProducerTrack(ctx, cmd.oldTrack, cmd.newTrack)

	case "addConsumer":
		return transport.execAddConsumer(ctx, data.(*Consumer))

	case "removeConsumer":
		return nil, transport.recvHandler.RemoveConsumer(ctx, data.(string))

	case "restartIce":
		return nil, transport.handler.RestartIce(ctx, data.(*remotesdp.IceParameters))
	}

	if notification, ok := notificationCommands[method]; ok {
		return nil, transport.channel.notify(notification, data)
	}

	return nil, NewTypeError("unknown command %q", method)
}

func (transport *Transport) execAddProducer(ctx context.Context, producer *Producer) (*ortc.RtpParameters, error) {
	track := producer.Track()

	rtpParameters, err := transport.sendHandler.AddProducer(ctx, handler.ProducerInfo{
		ID:        producer.Id(),
		Kind:      producer.Kind(),
		Track:     track,
		Simulcast: producer.options.Simulcast,
	})
	if err != nil {
		return nil, err
	}

	data := createProducerRequest{
		Id:            producer.Id(),
		Kind:          producer.Kind(),
		TransportId:   transport.id,
		RtpParameters: rtpParameters,
		Paused:        producer.LocallyPaused(),
		AppData:       producer.AppData(),
	}
	if err := transport.channel.request(ctx, "createProducer", data, nil); err != nil {
		if removeErr := transport.sendHandler.RemoveProducer(ctx, track); removeErr != nil {
			transport.logger.Error(removeErr, "removing rejected producer failed")
		}
		return nil, err
	}

	return rtpParameters, nil
}

func (transport *Transport) execAddConsumer(ctx context.Context, consumer *Consumer) (*addConsumerResult, error) {
	track, err := transport.recvHandler.AddConsumer(ctx, handler.ConsumerInfo{
		ID:            consumer.Id(),
		Kind:          consumer.Kind(),
		RtpParameters: consumer.rtpParameters,
	})
	if err != nil {
		return nil, err
	}

	data := enableConsumerRequest{
		Id:               consumer.Id(),
		TransportId:      transport.id,
		Paused:           consumer.LocallyPaused(),
		PreferredProfile: consumer.PreferredProfile(),
	}
	result := &addConsumerResult{track: track}

	if err := transport.channel.request(ctx, "enableConsumer", data, &result.response); err != nil {
		if removeErr := transport.recvHandler.RemoveConsumer(ctx, consumer.Id()); removeErr != nil {
			transport.logger.Error(removeErr, "removing rejected consumer failed")
		}
		return nil, err
	}

	return result, nil
}

func milliseconds(d time.Duration) uint32 {
	return uint32(d / time.Millisecond)
}
