package mediasoupclient

import (
	"context"
	"encoding/json"

	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
)

type H map[string]interface{}

// Signaler carries the messages of a room to the server. The transport itself (WebSocket,
// HTTP, ...) is up to the application, see package signaling for one.
type Signaler interface {
	// Request sends a request and waits for its response data.
	Request(ctx context.Context, method string, data interface{}) (json.RawMessage, error)
	// Notify sends a message without response.
	Notify(method string, data interface{}) error
}

// Notification is a message received from the server, handed to Room.ReceiveNotification.
type Notification struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Originator tells whether a change was made by this client or by the server.
type Originator string

const (
	OriginatorLocal  Originator = "local"
	OriginatorRemote Originator = "remote"
)

// ConsumerProfile is a simulcast tier of a consumer.
type ConsumerProfile string

const (
	ConsumerProfileDefault ConsumerProfile = "default"
	ConsumerProfileLow     ConsumerProfile = "low"
	ConsumerProfileMedium  ConsumerProfile = "medium"
	ConsumerProfileHigh    ConsumerProfile = "high"
	// ConsumerProfileNone is only an effective profile: nothing is being received.
	ConsumerProfileNone ConsumerProfile = "none"
)

func (p ConsumerProfile) valid() bool {
	switch p {
	case ConsumerProfileDefault, ConsumerProfileLow, ConsumerProfileMedium, ConsumerProfileHigh:
		return true
	}
	return false
}

// Stats are the raw statistics reports forwarded by the server.
type Stats []H

// PeerData describes a remote peer in the join response and in the newPeer notification.
type PeerData struct {
	Name      string         `json:"name"`
	Consumers []ConsumerData `json:"consumers,omitempty"`
	AppData   interface{}    `json:"appData,omitempty"`
}

// ConsumerData describes a remote stream offered by the server.
type ConsumerData struct {
	Id               string              `json:"id"`
	Kind             ortc.MediaKind      `json:"kind"`
	PeerName         string              `json:"peerName,omitempty"`
	RtpParameters    *ortc.RtpParameters `json:"rtpParameters"`
	Paused           bool                `json:"paused,omitempty"`
	PreferredProfile ConsumerProfile     `json:"preferredProfile,omitempty"`
	EffectiveProfile ConsumerProfile     `json:"effectiveProfile,omitempty"`
	AppData          interface{}         `json:"appData,omitempty"`
}

type queryRoomRequest struct {
	Target string `json:"target"`
}

type queryRoomResponse struct {
	RtpCapabilities            *ortc.RtpCapabilities `json:"rtpCapabilities"`
	MandatoryCodecPayloadTypes []uint8               `json:"mandatoryCodecPayloadTypes,omitempty"`
}

type joinRequest struct {
	Target          string                `json:"target"`
	PeerName        string                `json:"peerName"`
	RtpCapabilities *ortc.RtpCapabilities `json:"rtpCapabilities"`
	Spy             bool                  `json:"spy,omitempty"`
	AppData         interface{}           `json:"appData,omitempty"`
}

type joinResponse struct {
	Peers []PeerData `json:"peers"`
}

type leaveNotification struct {
	AppData interface{} `json:"appData,omitempty"`
}

type createTransportRequest struct {
	Id             string                    `json:"id"`
	Direction      TransportDirection        `json:"direction"`
	Options        TransportOptions          `json:"options"`
	DtlsParameters *remotesdp.DtlsParameters `json:"dtlsParameters,omitempty"`
	AppData        interface{}               `json:"appData,omitempty"`
}

type updateTransportNotification struct {
	Id             string                    `json:"id"`
	DtlsParameters *remotesdp.DtlsParameters `json:"dtlsParameters"`
}

type restartTransportRequest struct {
	Id string `json:"id"`
}

type restartTransportResponse struct {
	IceParameters *remotesdp.IceParameters `json:"iceParameters"`
}

type createProducerRequest struct {
	Id            string              `json:"id"`
	Kind          ortc.MediaKind      `json:"kind"`
	TransportId   string              `json:"transportId"`
	RtpParameters *ortc.RtpParameters `json:"rtpParameters"`
	Paused        bool                `json:"paused"`
	AppData       interface{}         `json:"appData,omitempty"`
}

type enableConsumerRequest struct {
	Id               string          `json:"id"`
	TransportId      string          `json:"transportId"`
	Paused           bool            `json:"paused"`
	PreferredProfile ConsumerProfile `json:"preferredProfile,omitempty"`
}

type enableConsumerResponse struct {
	Paused           bool            `json:"paused"`
	PreferredProfile ConsumerProfile `json:"preferredProfile,omitempty"`
	EffectiveProfile ConsumerProfile `json:"effectiveProfile,omitempty"`
}

// entityNotification is the data of the id based messages in both directions, such as
// pauseProducer or consumerClosed.
type entityNotification struct {
	Id       string      `json:"id"`
	PeerName string      `json:"peerName,omitempty"`
	AppData  interface{} `json:"appData,omitempty"`
}

type statsRequest struct {
	Id       string `json:"id"`
	Interval uint32 `json:"interval,omitempty"`
}

type statsNotification struct {
	Id       string `json:"id"`
	PeerName string `json:"peerName,omitempty"`
	Stats    Stats  `json:"stats"`
}

type profileNotification struct {
	Id       string          `json:"id"`
	PeerName string          `json:"peerName,omitempty"`
	Profile  ConsumerProfile `json:"profile"`
}

type peerClosedNotification struct {
	Name    string      `json:"name"`
	AppData interface{} `json:"appData,omitempty"`
}

type closedNotification struct {
	AppData interface{} `json:"appData,omitempty"`
}
