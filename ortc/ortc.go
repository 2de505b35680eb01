// Package ortc negotiates RTP capabilities between the local device and a remote room
// and derives the RTP parameters used to send and receive media.
package ortc

import (
	"strings"

	"github.com/qdgx/mediasoup-client-go/internal/errs"
)

// pseudoCodecs are codec names that describe a feature rather than a media format.
var pseudoCodecs = map[string]bool{
	"rtx":        true,
	"red":        true,
	"ulpfec":     true,
	"flexfec-03": true,
}

// ExtendedRtpCapabilities is the intersection of the local and remote RTP capabilities
// with payload types resolved for both directions.
type ExtendedRtpCapabilities struct {
	Codecs           []*ExtendedCodec           `json:"codecs"`
	HeaderExtensions []*ExtendedHeaderExtension `json:"headerExtensions"`
	FecMechanisms    []string                   `json:"fecMechanisms,omitempty"`
}

// ExtendedCodec is a codec supported by both sides. Send payload types use the local
// numbering and recv payload types the remote one. A zero RTX payload type means RTX
// was not negotiated.
type ExtendedCodec struct {
	Kind               MediaKind                  `json:"kind"`
	Name               string                     `json:"name"`
	MimeType           string                     `json:"mimeType"`
	ClockRate          uint32                     `json:"clockRate"`
	Channels           uint8                      `json:"channels,omitempty"`
	SendPayloadType    uint8                      `json:"sendPayloadType"`
	SendRtxPayloadType uint8                      `json:"sendRtxPayloadType,omitempty"`
	RecvPayloadType    uint8                      `json:"recvPayloadType"`
	RecvRtxPayloadType uint8                      `json:"recvRtxPayloadType,omitempty"`
	RtcpFeedback       []RtcpFeedback             `json:"rtcpFeedback,omitempty"`
	Parameters         RtpCodecSpecificParameters `json:"parameters,omitempty"`
}

type ExtendedHeaderExtension struct {
	Kind   MediaKind `json:"kind,omitempty"`
	Uri    string    `json:"uri"`
	SendId int       `json:"sendId"`
	RecvId int       `json:"recvId"`
}

// GetExtendedRtpCapabilities intersects local and remote capabilities. The resulting
// codec order is the remote order.
func GetExtendedRtpCapabilities(localCaps, remoteCaps *RtpCapabilities) *ExtendedRtpCapabilities {
	extendedCaps := &ExtendedRtpCapabilities{
		Codecs:           []*ExtendedCodec{},
		HeaderExtensions: []*ExtendedHeaderExtension{},
	}
	if localCaps == nil || remoteCaps == nil {
		return extendedCaps
	}

	for _, remoteCodec := range remoteCaps.Codecs {
		if isPseudoCodec(remoteCodec.MimeType) {
			continue
		}
		localCodec, matched := findMatchedCodec(remoteCodec, localCaps.Codecs)
		if !matched {
			continue
		}

		extendedCodec := &ExtendedCodec{
			Kind:            codecKind(remoteCodec.Kind, remoteCodec.MimeType),
			Name:            CodecName(remoteCodec.MimeType),
			MimeType:        remoteCodec.MimeType,
			ClockRate:       remoteCodec.ClockRate,
			Channels:        remoteCodec.Channels,
			SendPayloadType: localCodec.PreferredPayloadType,
			RecvPayloadType: remoteCodec.PreferredPayloadType,
			RtcpFeedback:    reduceRtcpFeedback(localCodec.RtcpFeedback, remoteCodec.RtcpFeedback),
			Parameters:      remoteCodec.Parameters.Clone(),
		}
		extendedCaps.Codecs = append(extendedCaps.Codecs, extendedCodec)
	}

	// Match RTX codecs by their associated payload type on both sides.
	for _, extendedCodec := range extendedCaps.Codecs {
		localRtx := findRtxCodec(localCaps.Codecs, extendedCodec.SendPayloadType)
		remoteRtx := findRtxCodec(remoteCaps.Codecs, extendedCodec.RecvPayloadType)

		if localRtx != nil && remoteRtx != nil {
			extendedCodec.SendRtxPayloadType = localRtx.PreferredPayloadType
			extendedCodec.RecvRtxPayloadType = remoteRtx.PreferredPayloadType
		}
	}

	for _, remoteExt := range remoteCaps.HeaderExtensions {
		for _, localExt := range localCaps.HeaderExtensions {
			if !matchHeaderExtensions(localExt, remoteExt) {
				continue
			}
			extendedCaps.HeaderExtensions = append(extendedCaps.HeaderExtensions, &ExtendedHeaderExtension{
				Kind:   remoteExt.Kind,
				Uri:    remoteExt.Uri,
				SendId: localExt.PreferredId,
				RecvId: remoteExt.PreferredId,
			})
			break
		}
	}

	extendedCaps.FecMechanisms = intersectStrings(localCaps.FecMechanisms, remoteCaps.FecMechanisms)

	return extendedCaps
}

// GetRtpCapabilities returns the receiving capabilities to announce to the remote room,
// numbered with the remote payload types.
func GetRtpCapabilities(extendedCaps *ExtendedRtpCapabilities) *RtpCapabilities {
	caps := &RtpCapabilities{
		Codecs:           []*RtpCodecCapability{},
		HeaderExtensions: []*RtpHeaderExtension{},
		FecMechanisms:    extendedCaps.FecMechanisms,
	}

	for _, codec := range extendedCaps.Codecs {
		caps.Codecs = append(caps.Codecs, &RtpCodecCapability{
			Kind:                 codec.Kind,
			Name:                 codec.Name,
			MimeType:             codec.MimeType,
			PreferredPayloadType: codec.RecvPayloadType,
			ClockRate:            codec.ClockRate,
			Channels:             codec.Channels,
			Parameters:           codec.Parameters.Clone(),
			RtcpFeedback:         codec.RtcpFeedback,
		})

		if codec.RecvRtxPayloadType == 0 {
			continue
		}
		caps.Codecs = append(caps.Codecs, &RtpCodecCapability{
			Kind:                 codec.Kind,
			Name:                 "rtx",
			MimeType:             string(codec.Kind) + "/rtx",
			PreferredPayloadType: codec.RecvRtxPayloadType,
			ClockRate:            codec.ClockRate,
			Parameters:           RtpCodecSpecificParameters{"apt": int(codec.RecvPayloadType)},
		})
	}

	for _, ext := range extendedCaps.HeaderExtensions {
		caps.HeaderExtensions = append(caps.HeaderExtensions, &RtpHeaderExtension{
			Kind:        ext.Kind,
			Uri:         ext.Uri,
			PreferredId: ext.RecvId,
		})
	}

	return caps
}

// GetUnsupportedCodecs returns the remote codecs whose payload types the room declares
// mandatory but which could not be negotiated.
func GetUnsupportedCodecs(
	remoteCaps *RtpCapabilities,
	mandatoryCodecPayloadTypes []uint8,
	extendedCaps *ExtendedRtpCapabilities,
) ([]*RtpCodecCapability, error) {
	var unsupportedCodecs []*RtpCodecCapability

	for _, pt := range mandatoryCodecPayloadTypes {
		if extendedCaps.hasRecvPayloadType(pt) {
			continue
		}
		var codec *RtpCodecCapability
		for _, c := range remoteCaps.Codecs {
			if c.PreferredPayloadType == pt {
				codec = c
				break
			}
		}
		if codec == nil {
			return nil, errs.NewTypeError("mandatory codec PT %d not found in remote codecs", pt)
		}
		unsupportedCodecs = append(unsupportedCodecs, codec)
	}

	return unsupportedCodecs, nil
}

// CanSend reports whether any negotiated codec has the given kind.
func CanSend(kind MediaKind, extendedCaps *ExtendedRtpCapabilities) bool {
	if extendedCaps == nil {
		return false
	}
	for _, codec := range extendedCaps.Codecs {
		if codec.Kind == kind {
			return true
		}
	}
	return false
}

// CanReceive reports whether the first codec of the given parameters carries a
// negotiated receive payload type. Payload types are compared as numbered by the remote
// side, so parameters built with local numbering only pass when both sides use the same
// payload type for the codec.
func CanReceive(params *RtpParameters, extendedCaps *ExtendedRtpCapabilities) bool {
	if params == nil || len(params.Codecs) == 0 || extendedCaps == nil {
		return false
	}
	return extendedCaps.hasRecvPayloadType(params.Codecs[0].PayloadType)
}

// GetSendingRtpParameters returns the parameters to send media of the given kind. Only
// the first negotiated codec of that kind (plus its RTX) is used.
func GetSendingRtpParameters(kind MediaKind, extendedCaps *ExtendedRtpCapabilities) *RtpParameters {
	params := &RtpParameters{
		Codecs:           []*RtpCodecParameters{},
		HeaderExtensions: []*RtpHeaderExtensionParameters{},
	}
	if extendedCaps == nil {
		return params
	}

	for _, codec := range extendedCaps.Codecs {
		if codec.Kind != kind {
			continue
		}
		params.Codecs = append(params.Codecs, codecParameters(codec, codec.SendPayloadType, codec.SendRtxPayloadType)...)
		break
	}

	for _, ext := range extendedCaps.HeaderExtensions {
		if (len(ext.Kind) > 0 && ext.Kind != kind) || ext.Uri == MidHeaderExtensionUri {
			continue
		}
		params.HeaderExtensions = append(params.HeaderExtensions, &RtpHeaderExtensionParameters{
			Uri: ext.Uri,
			Id:  ext.SendId,
		})
	}

	return params
}

// GetReceivingFullRtpParameters returns the parameters describing every negotiated codec
// of the given kind, numbered with the remote payload types.
func GetReceivingFullRtpParameters(kind MediaKind, extendedCaps *ExtendedRtpCapabilities) *RtpParameters {
	params := &RtpParameters{
		Codecs:           []*RtpCodecParameters{},
		HeaderExtensions: []*RtpHeaderExtensionParameters{},
	}
	if extendedCaps == nil {
		return params
	}

	for _, codec := range extendedCaps.Codecs {
		if codec.Kind != kind {
			continue
		}
		params.Codecs = append(params.Codecs, codecParameters(codec, codec.RecvPayloadType, codec.RecvRtxPayloadType)...)
	}

	for _, ext := range extendedCaps.HeaderExtensions {
		if (len(ext.Kind) > 0 && ext.Kind != kind) || ext.Uri == MidHeaderExtensionUri {
			continue
		}
		params.HeaderExtensions = append(params.HeaderExtensions, &RtpHeaderExtensionParameters{
			Uri: ext.Uri,
			Id:  ext.RecvId,
		})
	}

	return params
}

func (e *ExtendedRtpCapabilities) hasRecvPayloadType(pt uint8) bool {
	for _, codec := range e.Codecs {
		if codec.RecvPayloadType == pt {
			return true
		}
	}
	return false
}

func codecParameters(codec *ExtendedCodec, payloadType, rtxPayloadType uint8) []*RtpCodecParameters {
	codecs := []*RtpCodecParameters{
		{
			Name:         codec.Name,
			MimeType:     codec.MimeType,
			PayloadType:  payloadType,
			ClockRate:    codec.ClockRate,
			Channels:     codec.Channels,
			Parameters:   codec.Parameters.Clone(),
			RtcpFeedback: append([]RtcpFeedback(nil), codec.RtcpFeedback...),
		},
	}
	if rtxPayloadType != 0 {
		codecs = append(codecs, &RtpCodecParameters{
			Name:        "rtx",
			MimeType:    string(codec.Kind) + "/rtx",
			PayloadType: rtxPayloadType,
			ClockRate:   codec.ClockRate,
			Parameters:  RtpCodecSpecificParameters{"apt": int(payloadType)},
		})
	}
	return codecs
}

func findMatchedCodec(remoteCodec *RtpCodecCapability, localCodecs []*RtpCodecCapability) (*RtpCodecCapability, bool) {
	for _, localCodec := range localCodecs {
		if matchCodecs(localCodec, remoteCodec) {
			return localCodec, true
		}
	}
	return nil, false
}

func matchCodecs(aCodec, bCodec *RtpCodecCapability) bool {
	aMimeType := strings.ToLower(aCodec.MimeType)
	bMimeType := strings.ToLower(bCodec.MimeType)

	if aMimeType != bMimeType {
		return false
	}
	if aCodec.ClockRate != bCodec.ClockRate {
		return false
	}
	if aCodec.Channels != bCodec.Channels && (aCodec.Channels > 1 || bCodec.Channels > 1) {
		return false
	}

	switch aMimeType {
	case "video/h264":
		if aCodec.Parameters.Int("packetization-mode") != bCodec.Parameters.Int("packetization-mode") {
			return false
		}
	}

	return true
}

func matchHeaderExtensions(aExt, bExt *RtpHeaderExtension) bool {
	if len(aExt.Kind) > 0 && len(bExt.Kind) > 0 && aExt.Kind != bExt.Kind {
		return false
	}
	return aExt.Uri == bExt.Uri
}

func findRtxCodec(codecs []*RtpCodecCapability, apt uint8) *RtpCodecCapability {
	for _, codec := range codecs {
		if codec.isRtxCodec() && codec.Parameters.Int("apt") == int(apt) {
			return codec
		}
	}
	return nil
}

func reduceRtcpFeedback(localFbs, remoteFbs []RtcpFeedback) []RtcpFeedback {
	reduced := []RtcpFeedback{}

	for _, remoteFb := range remoteFbs {
		for _, localFb := range localFbs {
			if localFb.Type == remoteFb.Type && localFb.Parameter == remoteFb.Parameter {
				reduced = append(reduced, remoteFb)
				break
			}
		}
	}

	return reduced
}

func intersectStrings(a, b []string) []string {
	var out []string
	for _, x := range b {
		for _, y := range a {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

func isPseudoCodec(mimeType string) bool {
	return pseudoCodecs[strings.ToLower(CodecName(mimeType))]
}

func codecKind(kind MediaKind, mimeType string) MediaKind {
	if len(kind) > 0 {
		return kind
	}
	return MediaKind(strings.ToLower(strings.SplitN(mimeType, "/", 2)[0]))
}
