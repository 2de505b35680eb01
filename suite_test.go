package mediasoupclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/qdgx/mediasoup-client-go/engine/enginetest"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TestingSuite struct {
	*require.Assertions
	proxy suite.Suite
}

func (suite *TestingSuite) T() *testing.T {
	return suite.proxy.T()
}

func (suite *TestingSuite) SetT(t *testing.T) {
	suite.proxy.SetT(t)
	suite.Assertions = require.New(t)
}

func (suite *TestingSuite) SetS(s suite.TestingSuite) {
	suite.proxy.SetS(s)
}

func (suite *TestingSuite) Require() *require.Assertions {
	return suite.proxy.Require()
}

func (suite *TestingSuite) Assert() *assert.Assertions {
	return suite.proxy.Assert()
}

func (suite *TestingSuite) Fn() *MockFunc {
	return NewMockFunc(suite.T())
}

// roomTestingSuite runs against a joined room whose server is a mockSignaler and whose
// engine is in memory.
type roomTestingSuite struct {
	TestingSuite
	ctx      context.Context
	signaler *mockSignaler
	factory  *enginetest.Factory
	room     *Room
}

func (suite *roomTestingSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.signaler = &mockSignaler{}
	suite.factory = enginetest.NewFactory()
	suite.room = suite.newRoom(RoomOptions{})
}

func (suite *roomTestingSuite) TearDownTest() {
	suite.room.Leave(nil)
}

func (suite *roomTestingSuite) newRoom(options RoomOptions) *Room {
	options.EngineFactory = suite.factory
	if options.RequestTimeout == 0 {
		options.RequestTimeout = time.Second
	}
	room, err := NewRoom(suite.signaler, options)
	suite.NoError(err)

	return room
}

func (suite *roomTestingSuite) expectRequest(method string, response interface{}) *mock.Call {
	return suite.signaler.On("Request", mock.Anything, method, mock.Anything).Return(rawMessage(response), nil)
}

// join joins the room as "alice" with the given peers already present.
func (suite *roomTestingSuite) join(peers ...PeerData) []*Peer {
	suite.expectRequest("queryRoom", queryRoomResponse{
		RtpCapabilities:            roomRtpCapabilities(),
		MandatoryCodecPayloadTypes: []uint8{100},
	}).Once()
	suite.expectRequest("join", joinResponse{Peers: peers}).Once()

	joined, err := suite.room.Join(suite.ctx, "alice", nil)
	suite.NoError(err)
	suite.True(suite.room.Joined())

	return joined
}

func (suite *roomTestingSuite) createTransport(direction TransportDirection) *Transport {
	transport, err := suite.room.CreateTransport(direction, nil)
	suite.NoError(err)

	return transport
}

// sendProducer creates a producer of kind and sends it on transport, creating the
// transport on the server if needed.
func (suite *roomTestingSuite) sendProducer(transport *Transport, kind ortc.MediaKind) (*Producer, *enginetest.Track) {
	suite.expectRequest("createTransport", remoteTransportParameters()).Maybe()
	suite.expectRequest("createProducer", nil).Once()

	track := enginetest.NewTrack(string(kind), "")
	producer, err := suite.room.CreateProducer(track, ProducerOptions{}, nil)
	suite.NoError(err)
	suite.NoError(producer.Send(suite.ctx, transport))

	return producer, track
}

// newConsumer announces a consumer of peerName to the room and returns it.
func (suite *roomTestingSuite) newConsumer(peerName string, data ConsumerData) *Consumer {
	data.PeerName = peerName
	suite.NoError(suite.room.ReceiveNotification(notification("newConsumer", data)))

	consumer := suite.room.Peer(peerName).Consumer(data.Id)
	suite.NotNil(consumer)

	return consumer
}

// receiveConsumer receives consumer on transport, the server answering enableConsumer
// with response.
func (suite *roomTestingSuite) receiveConsumer(transport *Transport, consumer *Consumer, response enableConsumerResponse) *enginetest.Track {
	suite.expectRequest("createTransport", remoteTransportParameters()).Maybe()
	suite.expectRequest("enableConsumer", response).Once()

	track, err := consumer.Receive(suite.ctx, transport)
	suite.NoError(err)
	suite.NotNil(track)

	return track.(*enginetest.Track)
}

// waitNotification waits for the server to be notified with method.
func (suite *roomTestingSuite) waitNotification(method string) {
	suite.Eventually(func() bool {
		return suite.findNotification(method) != nil
	}, time.Second, 5*time.Millisecond, "notification %q not sent", method)
}

func (suite *roomTestingSuite) findNotification(method string) *Notification {
	for _, n := range suite.signaler.Notifications() {
		if n.Method == method {
			return &n
		}
	}
	return nil
}

func notification(method string, data interface{}) Notification {
	return Notification{Method: method, Data: rawMessage(data)}
}

func roomRtpCapabilities() *ortc.RtpCapabilities {
	return &ortc.RtpCapabilities{
		Codecs: []*ortc.RtpCodecCapability{
			{
				Kind:                 ortc.MediaKindAudio,
				MimeType:             "audio/opus",
				PreferredPayloadType: 100,
				ClockRate:            48000,
				Channels:             2,
				RtcpFeedback:         []ortc.RtcpFeedback{{Type: "transport-cc"}},
			},
			{
				Kind:                 ortc.MediaKindAudio,
				MimeType:             "audio/PCMU",
				PreferredPayloadType: 0,
				ClockRate:            8000,
			},
			{
				Kind:                 ortc.MediaKindVideo,
				MimeType:             "video/VP8",
				PreferredPayloadType: 101,
				ClockRate:            90000,
				RtcpFeedback: []ortc.RtcpFeedback{
					{Type: "nack"},
					{Type: "nack", Parameter: "pli"},
					{Type: "ccm", Parameter: "fir"},
					{Type: "goog-remb"},
				},
			},
			{
				Kind:                 ortc.MediaKindVideo,
				MimeType:             "video/rtx",
				PreferredPayloadType: 102,
				ClockRate:            90000,
				Parameters:           ortc.RtpCodecSpecificParameters{"apt": 101},
			},
		},
		HeaderExtensions: []*ortc.RtpHeaderExtension{
			{Kind: ortc.MediaKindAudio, Uri: "urn:ietf:params:rtp-hdrext:ssrc-audio-level", PreferredId: 1},
			{Kind: ortc.MediaKindVideo, Uri: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", PreferredId: 2},
			{Uri: ortc.MidHeaderExtensionUri, PreferredId: 4},
		},
	}
}

func remoteTransportParameters() *remotesdp.TransportRemoteParameters {
	return &remotesdp.TransportRemoteParameters{
		IceParameters: &remotesdp.IceParameters{
			UsernameFragment: "server-ufrag",
			Password:         "server-pwd",
			IceLite:          true,
		},
		IceCandidates: []remotesdp.IceCandidate{
			{Foundation: "udpcandidate", Priority: 1078862079, Ip: "10.0.0.1", Protocol: remotesdp.TransportProtocolUDP, Port: 40000},
		},
		DtlsParameters: &remotesdp.DtlsParameters{
			Role:         remotesdp.DtlsRoleAuto,
			Fingerprints: []remotesdp.DtlsFingerprint{{Algorithm: "sha-256", Value: "AA:BB:CC"}},
		},
	}
}

// consumerData describes a remote stream encoded the way the room announces it.
func consumerData(id string, kind ortc.MediaKind, ssrc uint32) ConsumerData {
	params := &ortc.RtpParameters{
		Encodings: []ortc.RtpEncodingParameters{{Ssrc: ssrc}},
		Rtcp:      ortc.RtcpParameters{Cname: "remote-cname"},
	}
	if kind == ortc.MediaKindAudio {
		params.Codecs = []*ortc.RtpCodecParameters{
			{MimeType: "audio/opus", PayloadType: 100, ClockRate: 48000, Channels: 2},
		}
	} else {
		params.Codecs = []*ortc.RtpCodecParameters{
			{MimeType: "video/VP8", PayloadType: 101, ClockRate: 90000},
			{MimeType: "video/rtx", PayloadType: 102, ClockRate: 90000, Parameters: ortc.RtpCodecSpecificParameters{"apt": 101}},
		}
		params.Encodings[0].Rtx = &ortc.RtpEncodingRtx{Ssrc: ssrc + 1}
	}

	return ConsumerData{
		Id:            id,
		Kind:          kind,
		RtpParameters: params,
	}
}

// blockingResponse answers a request once release is closed, signaling started when the
// request arrives.
func blockingResponse(started chan<- struct{}, release <-chan struct{}, response interface{}) func(ctx context.Context, data interface{}) (json.RawMessage, error) {
	return func(ctx context.Context, data interface{}) (json.RawMessage, error) {
		close(started)
		select {
		case <-release:
			return rawMessage(response), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
