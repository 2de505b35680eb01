package ortc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MediaKind is the media kind ("audio" or "video").
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// MediaDirection of an RTP header extension or a media section.
type MediaDirection string

const (
	MediaDirectionSendrecv MediaDirection = "sendrecv"
	MediaDirectionSendonly MediaDirection = "sendonly"
	MediaDirectionRecvonly MediaDirection = "recvonly"
	MediaDirectionInactive MediaDirection = "inactive"
)

// MidHeaderExtensionUri is the MID RTP header extension. It is never used for
// consumers nor advertised in send parameters.
const MidHeaderExtensionUri = "urn:ietf:params:rtp-hdrext:sdes:mid"

// RtpCapabilities define what an endpoint or a room can receive at media level.
type RtpCapabilities struct {
	// Codecs is the supported media and RTX codecs.
	Codecs []*RtpCodecCapability `json:"codecs,omitempty"`

	// HeaderExtensions is the supported RTP header extensions.
	HeaderExtensions []*RtpHeaderExtension `json:"headerExtensions,omitempty"`

	// FecMechanisms is the supported FEC mechanisms.
	FecMechanisms []string `json:"fecMechanisms,omitempty"`
}

// RtpCodecCapability provides information on the capabilities of a codec within the RTP
// capabilities.
//
// Exactly one RtpCodecCapability will be present for each supported combination
// of parameters that requires a distinct value of preferredPayloadType. For
// example multiple H264 codecs, each with their own distinct 'packetization-mode'
// and 'profile-level-id' values.
type RtpCodecCapability struct {
	// Kind is the media kind.
	Kind MediaKind `json:"kind"`

	// Name is the codec subtype (e.g. 'opus', 'VP8'). Derived from MimeType if empty.
	Name string `json:"name,omitempty"`

	// MimeType is the codec MIME media type/subtype (e.g. 'audio/opus', 'video/VP8').
	MimeType string `json:"mimeType"`

	// PreferredPayloadType is the preferred RTP payload type.
	PreferredPayloadType uint8 `json:"preferredPayloadType,omitempty"`

	// ClockRate is the codec clock rate expressed in Hertz.
	ClockRate uint32 `json:"clockRate"`

	// Channels is the number of channels supported (e.g. 2 for stereo). Just for audio.
	// Default 1.
	Channels uint8 `json:"channels,omitempty"`

	// Parameters is the codec specific parameters. Some parameters (such as
	// 'packetization-mode' and 'profile-level-id' in H264) are critical for codec matching.
	Parameters RtpCodecSpecificParameters `json:"parameters,omitempty"`

	// RtcpFeedback is the transport layer and codec-specific feedback messages for this codec.
	RtcpFeedback []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

func (r RtpCodecCapability) isRtxCodec() bool {
	return isRtxMimeType(r.MimeType)
}

// RtpHeaderExtension provides information relating to supported header extensions.
type RtpHeaderExtension struct {
	// Kind is media kind. If empty string, it's valid for all kinds.
	Kind MediaKind `json:"kind,omitempty"`

	// URI of the RTP header extension, as defined in RFC 5285.
	Uri string `json:"uri"`

	// PreferredId is the preferred numeric identifier that goes in the RTP packet.
	// Must be unique.
	PreferredId int `json:"preferredId"`

	// PreferredEncrypt if true, it is preferred that the value in the header be
	// encrypted as per RFC 6904. Default false.
	PreferredEncrypt bool `json:"preferredEncrypt,omitempty"`

	// Direction the extension is usable in. Ignored in endpoint capabilities.
	Direction MediaDirection `json:"direction,omitempty"`
}

// RtpParameters describe a media stream sent by a Producer or received by a Consumer.
type RtpParameters struct {
	// Mid is the MID RTP extension value as defined in the BUNDLE specification.
	Mid string `json:"mid,omitempty"`

	// Codecs defines media and RTX codecs in use, ordered by preference.
	Codecs []*RtpCodecParameters `json:"codecs"`

	// HeaderExtensions is the RTP header extensions in use.
	HeaderExtensions []*RtpHeaderExtensionParameters `json:"headerExtensions,omitempty"`

	// Encodings is the transmitted RTP streams and their settings.
	Encodings []RtpEncodingParameters `json:"encodings,omitempty"`

	// Rtcp is the parameters used for RTCP.
	Rtcp RtcpParameters `json:"rtcp,omitempty"`
}

// Clone returns a deep copy.
func (r *RtpParameters) Clone() *RtpParameters {
	if r == nil {
		return nil
	}
	clone := &RtpParameters{
		Mid:  r.Mid,
		Rtcp: r.Rtcp,
	}
	for _, codec := range r.Codecs {
		c := *codec
		c.Parameters = codec.Parameters.Clone()
		c.RtcpFeedback = append([]RtcpFeedback(nil), codec.RtcpFeedback...)
		clone.Codecs = append(clone.Codecs, &c)
	}
	for _, ext := range r.HeaderExtensions {
		e := *ext
		clone.HeaderExtensions = append(clone.HeaderExtensions, &e)
	}
	for _, encoding := range r.Encodings {
		if encoding.Rtx != nil {
			rtx := *encoding.Rtx
			encoding.Rtx = &rtx
		}
		clone.Encodings = append(clone.Encodings, encoding)
	}
	if r.Rtcp.ReducedSize != nil {
		reducedSize := *r.Rtcp.ReducedSize
		clone.Rtcp.ReducedSize = &reducedSize
	}
	if r.Rtcp.Mux != nil {
		mux := *r.Rtcp.Mux
		clone.Rtcp.Mux = &mux
	}
	return clone
}

// RtpCodecParameters provides information on codec settings within the RTP parameters.
type RtpCodecParameters struct {
	// Name is the codec subtype (e.g. 'opus', 'VP8'). Derived from MimeType if empty.
	Name string `json:"name,omitempty"`

	// MimeType is the codec MIME media type/subtype (e.g. 'audio/opus', 'video/VP8').
	MimeType string `json:"mimeType"`

	// PayloadType is the value that goes in the RTP Payload Type Field. Must be unique.
	PayloadType uint8 `json:"payloadType"`

	// ClockRate is codec clock rate expressed in Hertz.
	ClockRate uint32 `json:"clockRate"`

	// Channels is the number of channels supported (e.g. 2 for stereo). Just for audio.
	// Default 1.
	Channels uint8 `json:"channels,omitempty"`

	// Parameters is Codec-specific parameters available for signaling.
	Parameters RtpCodecSpecificParameters `json:"parameters,omitempty"`

	// RtcpFeedback is transport layer and codec-specific feedback messages for this codec.
	RtcpFeedback []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

func (r RtpCodecParameters) isRtxCodec() bool {
	return isRtxMimeType(r.MimeType)
}

// RtcpFeedback provides information on RTCP feedback messages for a specific codec.
type RtcpFeedback struct {
	// Type is RTCP feedback type.
	Type string `json:"type"`

	// Parameter is RTCP feedback parameter.
	Parameter string `json:"parameter,omitempty"`
}

// RtpEncodingParameters provides information relating to an encoding, which represents
// a media RTP stream and its associated RTX stream (if any).
type RtpEncodingParameters struct {
	// SSRC of media.
	Ssrc uint32 `json:"ssrc,omitempty"`

	// RTX stream information.
	Rtx *RtpEncodingRtx `json:"rtx,omitempty"`

	// Profile is the simulcast tier this encoding belongs to (e.g. 'low').
	Profile string `json:"profile,omitempty"`

	// MaxBitrate in bps.
	MaxBitrate uint32 `json:"maxBitrate,omitempty"`
}

// RtpEncodingRtx represents the associated RTX stream for RTP stream.
type RtpEncodingRtx struct {
	// SSRC of media.
	Ssrc uint32 `json:"ssrc"`
}

// RtpHeaderExtensionParameters defines a RTP header extension within the RTP parameters.
type RtpHeaderExtensionParameters struct {
	// URI of the RTP header extension, as defined in RFC 5285.
	Uri string `json:"uri"`

	// Id is the numeric identifier that goes in the RTP packet. Must be unique.
	Id int `json:"id"`

	// Encrypt if true, the value in the header is encrypted as per RFC 6904. Default false.
	Encrypt bool `json:"encrypt,omitempty"`
}

// RtcpParameters provides information on RTCP settings within the RTP parameters.
type RtcpParameters struct {
	// Cname is the Canonical Name (CNAME) used by RTCP (e.g. in SDES messages).
	Cname string `json:"cname,omitempty"`

	// ReducedSize defines whether reduced size RTCP RFC 5506 is configured (if true) or
	// compound RTCP as specified in RFC 3550 (if false). Default true.
	ReducedSize *bool `json:"reducedSize,omitempty"`

	// Mux defines whether RTCP is multiplexed with RTP. Always true for WebRTC.
	Mux *bool `json:"mux,omitempty"`
}

// RtpCodecSpecificParameters holds codec specific fmtp parameters. Values decoded from
// JSON are float64 and values parsed from SDP are int or string; use the accessors.
type RtpCodecSpecificParameters map[string]interface{}

// Int returns the integer value of key, or 0.
func (p RtpCodecSpecificParameters) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint32:
		return int(v)
	case float64:
		return int(v)
	case string:
		i, _ := strconv.Atoi(v)
		return i
	}
	return 0
}

// String returns the string form of key, or "".
func (p RtpCodecSpecificParameters) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprint(v)
}

func (p RtpCodecSpecificParameters) Clone() RtpCodecSpecificParameters {
	if p == nil {
		return nil
	}
	clone := make(RtpCodecSpecificParameters, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// Keys returns the parameter names sorted, giving a stable fmtp rendering.
func (p RtpCodecSpecificParameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CodecName returns the subtype of a mime type ("video/VP8" -> "VP8").
func CodecName(mimeType string) string {
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return mimeType[i+1:]
	}
	return mimeType
}

func isRtxMimeType(mimeType string) bool {
	return strings.HasSuffix(strings.ToLower(mimeType), "/rtx")
}
