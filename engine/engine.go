// Package engine abstracts the WebRTC engine the handlers drive. Only the small subset of
// a peer connection needed to negotiate media with session descriptions is exposed.
package engine

import (
	"context"
)

type SdpType string

const (
	SdpTypeOffer  SdpType = "offer"
	SdpTypeAnswer SdpType = "answer"
)

// SessionDescription is a typed session description.
type SessionDescription struct {
	Type SdpType `json:"type"`
	SDP  string  `json:"sdp"`
}

type SignalingState string

const (
	SignalingStateStable            SignalingState = "stable"
	SignalingStateHaveLocalOffer    SignalingState = "have-local-offer"
	SignalingStateHaveRemoteOffer   SignalingState = "have-remote-offer"
	SignalingStateHaveLocalPranswer SignalingState = "have-local-pranswer"
	SignalingStateClosed            SignalingState = "closed"
)

type ConnectionState string

const (
	ConnectionStateNew          ConnectionState = "new"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateFailed       ConnectionState = "failed"
	ConnectionStateClosed       ConnectionState = "closed"
)

// SdpSemantics selects how media sections map to tracks.
type SdpSemantics string

const (
	SdpSemanticsUnifiedPlan SdpSemantics = "unified-plan"
	SdpSemanticsPlanB       SdpSemantics = "plan-b"
)

type IceTransportPolicy string

const (
	IceTransportPolicyAll   IceTransportPolicy = "all"
	IceTransportPolicyRelay IceTransportPolicy = "relay"
)

type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type Configuration struct {
	IceServers         []IceServer        `json:"iceServers,omitempty"`
	IceTransportPolicy IceTransportPolicy `json:"iceTransportPolicy,omitempty"`
	SdpSemantics       SdpSemantics       `json:"sdpSemantics,omitempty"`
}

type TransceiverDirection string

const (
	TransceiverDirectionSendrecv TransceiverDirection = "sendrecv"
	TransceiverDirectionSendonly TransceiverDirection = "sendonly"
	TransceiverDirectionRecvonly TransceiverDirection = "recvonly"
	TransceiverDirectionInactive TransceiverDirection = "inactive"
)

type OfferOptions struct {
	ICERestart bool
}

// Info identifies an engine implementation, e.g. {"pion", "4.1.8"}.
type Info struct {
	Name    string
	Version string
}

// Factory creates peer connections of one engine.
type Factory interface {
	Info() Info
	NewPeerConnection(config Configuration) (PeerConnection, error)
}

// Track is a media track, local or remote.
type Track interface {
	ID() string
	Kind() string
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

type Sender interface {
	Track() Track
	ReplaceTrack(track Track) error
}

type Receiver interface {
	Track() Track
}

type Transceiver interface {
	// Mid is empty until the transceiver is negotiated.
	Mid() string
	Kind() string
	Sender() Sender
	Receiver() Receiver
	Stop() error
}

// PeerConnection is the subset of a WebRTC peer connection the handlers use.
type PeerConnection interface {
	CreateOffer(ctx context.Context, options *OfferOptions) (SessionDescription, error)
	CreateAnswer(ctx context.Context) (SessionDescription, error)
	SetLocalDescription(ctx context.Context, desc SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc SessionDescription) error
	LocalDescription() *SessionDescription
	RemoteDescription() *SessionDescription
	SignalingState() SignalingState

	// AddTrack attaches a local track for sending.
	AddTrack(track Track, streamID string) (Transceiver, error)
	AddTransceiver(kind string, direction TransceiverDirection) (Transceiver, error)
	RemoveTrack(sender Sender) error
	Transceivers() []Transceiver
	Senders() []Sender
	Receivers() []Receiver

	OnConnectionStateChange(handler func(state ConnectionState))
	Close() error
}
