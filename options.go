package mediasoupclient

import (
	"time"

	"github.com/qdgx/mediasoup-client-go/engine"
)

const defaultRequestTimeout = 10 * time.Second

// TransportOptions are sent verbatim to the server when a transport is created.
type TransportOptions struct {
	Udp        bool `json:"udp"`
	Tcp        bool `json:"tcp"`
	PreferIPv4 bool `json:"preferIPv4,omitempty"`
	PreferIPv6 bool `json:"preferIPv6,omitempty"`
	PreferUdp  bool `json:"preferUdp,omitempty"`
	PreferTcp  bool `json:"preferTcp,omitempty"`
}

type RoomOptions struct {
	// RequestTimeout bounds every request sent to the server. Default 10s.
	RequestTimeout time.Duration

	TransportOptions TransportOptions

	// TurnServers are handed to the peer connections of the transports.
	TurnServers []engine.IceServer

	IceTransportPolicy engine.IceTransportPolicy

	// Spy joins without the ability to send media.
	Spy bool

	// SdpSemantics overrides the strategy detected from the engine.
	SdpSemantics engine.SdpSemantics

	// EngineFactory creates the peer connections. Default is the pion engine.
	EngineFactory engine.Factory
}

func defaultRoomOptions() RoomOptions {
	return RoomOptions{
		RequestTimeout: defaultRequestTimeout,
		TransportOptions: TransportOptions{
			Udp:       true,
			Tcp:       true,
			PreferUdp: true,
		},
		IceTransportPolicy: engine.IceTransportPolicyAll,
	}
}

// ProducerOptions tune how a producer is sent.
type ProducerOptions struct {
	// Simulcast is the number of simulcast streams of a video producer, 0 or 1 disables
	// simulcast.
	Simulcast int
}
