package remotesdp

import (
	"github.com/qdgx/mediasoup-client-go/ortc"
)

type IceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	IceLite          bool   `json:"iceLite,omitempty"`
}

type TransportProtocol string

const (
	TransportProtocolUDP TransportProtocol = "udp"
	TransportProtocolTCP TransportProtocol = "tcp"
)

type IceCandidate struct {
	Foundation string            `json:"foundation"`
	Priority   uint32            `json:"priority"`
	Ip         string            `json:"ip"`
	Protocol   TransportProtocol `json:"protocol"`
	Port       uint16            `json:"port"`
	// alway "host"
	Type string `json:"type,omitempty"`
	// "passive" | ""
	TcpType string `json:"tcpType,omitempty"`
}

type DtlsRole string

const (
	DtlsRoleAuto   DtlsRole = "auto"
	DtlsRoleClient DtlsRole = "client"
	DtlsRoleServer DtlsRole = "server"
)

type DtlsParameters struct {
	Role         DtlsRole          `json:"role,omitempty"`
	Fingerprints []DtlsFingerprint `json:"fingerprints"`
}

// DtlsFingerprint defines the hash function algorithm (as defined in the
// "Hash function Textual Names" registry initially specified in RFC 4572 Section 8)
// and its corresponding certificate fingerprint value (in lowercase hex string as
// expressed utilizing the syntax of "fingerprint" in RFC 4572 Section 5).
type DtlsFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// TransportLocalParameters are generated from the local description and sent to the
// server once per transport.
type TransportLocalParameters struct {
	DtlsParameters *DtlsParameters `json:"dtlsParameters,omitempty"`
}

// TransportRemoteParameters are the server side ICE and DTLS parameters of a transport.
type TransportRemoteParameters struct {
	IceParameters  *IceParameters  `json:"iceParameters"`
	IceCandidates  []IceCandidate  `json:"iceCandidates"`
	DtlsParameters *DtlsParameters `json:"dtlsParameters"`
}

// ConsumerInfo describes one remote stream in a receiving offer.
type ConsumerInfo struct {
	Kind     ortc.MediaKind
	Mid      string
	StreamId string
	TrackId  string
	Ssrc     uint32
	RtxSsrc  uint32
	Cname    string
	Closed   bool
}
