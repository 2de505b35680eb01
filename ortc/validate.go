package ortc

import (
	"strings"

	"github.com/qdgx/mediasoup-client-go/internal/errs"
)

// ValidateRtpCapabilities validates RtpCapabilities received from the remote room. It may
// modify given data by adding missing fields with default values.
func ValidateRtpCapabilities(caps *RtpCapabilities) (err error) {
	if caps == nil {
		return errs.NewTypeError("missing rtpCapabilities")
	}
	for _, codec := range caps.Codecs {
		if err = validateRtpCodecCapability(codec); err != nil {
			return
		}
	}
	for _, ext := range caps.HeaderExtensions {
		if err = validateRtpHeaderExtension(ext); err != nil {
			return
		}
	}
	return
}

func validateRtpCodecCapability(codec *RtpCodecCapability) (err error) {
	mimeType := strings.ToLower(codec.MimeType)

	// mimeType is mandatory.
	if !strings.HasPrefix(mimeType, "audio/") && !strings.HasPrefix(mimeType, "video/") {
		return errs.NewTypeError("invalid codec.mimeType %q", codec.MimeType)
	}

	codec.Kind = MediaKind(strings.SplitN(mimeType, "/", 2)[0])

	if len(codec.Name) == 0 {
		codec.Name = CodecName(codec.MimeType)
	}

	// clockRate is mandatory.
	if codec.ClockRate == 0 {
		return errs.NewTypeError("missing codec.clockRate")
	}

	// channels is optional. If unset, set it to 1 (just if audio).
	if codec.Kind == MediaKindAudio && codec.Channels == 0 {
		codec.Channels = 1
	}
	if codec.Kind != MediaKindAudio {
		codec.Channels = 0
	}

	for _, fb := range codec.RtcpFeedback {
		if err = validateRtcpFeedback(fb); err != nil {
			return
		}
	}

	return
}

func validateRtcpFeedback(fb RtcpFeedback) error {
	if len(fb.Type) == 0 {
		return errs.NewTypeError("missing fb.type")
	}
	return nil
}

func validateRtpHeaderExtension(ext *RtpHeaderExtension) error {
	if len(ext.Kind) > 0 && ext.Kind != MediaKindAudio && ext.Kind != MediaKindVideo {
		return errs.NewTypeError("invalid ext.kind %q", ext.Kind)
	}

	// uri is mandatory.
	if len(ext.Uri) == 0 {
		return errs.NewTypeError("missing ext.uri")
	}

	// preferredId is mandatory.
	if ext.PreferredId == 0 {
		return errs.NewTypeError("missing ext.preferredId")
	}

	return nil
}

// ValidateRtpParameters validates RtpParameters received for a Consumer. It may modify
// given data by adding missing fields with default values.
func ValidateRtpParameters(params *RtpParameters) (err error) {
	if params == nil {
		return errs.NewTypeError("missing rtpParameters")
	}
	for _, codec := range params.Codecs {
		if err = validateRtpCodecParameters(codec); err != nil {
			return
		}
	}
	for _, ext := range params.HeaderExtensions {
		// uri and id are mandatory.
		if len(ext.Uri) == 0 {
			return errs.NewTypeError("missing ext.uri")
		}
		if ext.Id == 0 {
			return errs.NewTypeError("missing ext.id")
		}
	}

	// reducedSize is optional. If unset set it to true.
	if params.Rtcp.ReducedSize == nil {
		reducedSize := true
		params.Rtcp.ReducedSize = &reducedSize
	}

	return
}

func validateRtpCodecParameters(codec *RtpCodecParameters) (err error) {
	mimeType := strings.ToLower(codec.MimeType)

	// mimeType is mandatory.
	if !strings.HasPrefix(mimeType, "audio/") && !strings.HasPrefix(mimeType, "video/") {
		return errs.NewTypeError("invalid codec.mimeType %q", codec.MimeType)
	}

	if len(codec.Name) == 0 {
		codec.Name = CodecName(codec.MimeType)
	}

	// clockRate is mandatory.
	if codec.ClockRate == 0 {
		return errs.NewTypeError("missing codec.clockRate")
	}

	kind := MediaKind(strings.SplitN(mimeType, "/", 2)[0])

	// channels is optional. If unset, set it to 1 (just if audio).
	if kind == MediaKindAudio && codec.Channels == 0 {
		codec.Channels = 1
	}

	for _, fb := range codec.RtcpFeedback {
		if err = validateRtcpFeedback(fb); err != nil {
			return
		}
	}

	return
}
