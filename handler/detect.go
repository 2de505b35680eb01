package handler

import (
	"context"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/qdgx/mediasoup-client-go/remotesdp"
)

const (
	unifiedPlanConstraint = ">= 72"
	planBConstraint       = ">= 55, < 72"
)

// GetNativeRtpCapabilities probes the engine with a throwaway receive only offer and
// returns the capabilities found in it.
func GetNativeRtpCapabilities(ctx context.Context, factory engine.Factory, semantics engine.SdpSemantics) (caps *ortc.RtpCapabilities, err error) {
	if factory == nil {
		return nil, errs.NewTypeError("missing engine factory")
	}

	pc, err := factory.NewPeerConnection(engine.Configuration{
		IceTransportPolicy: engine.IceTransportPolicyAll,
		SdpSemantics:       semantics,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := pc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, kind := range []ortc.MediaKind{ortc.MediaKindAudio, ortc.MediaKindVideo} {
		if _, err := pc.AddTransceiver(string(kind), engine.TransceiverDirectionRecvonly); err != nil {
			return nil, err
		}
	}

	offer, err := pc.CreateOffer(ctx, nil)
	if err != nil {
		return nil, err
	}
	session, err := remotesdp.Parse(offer.SDP)
	if err != nil {
		return nil, err
	}

	return remotesdp.ExtractRtpCapabilities(session), nil
}

// Detect returns the SDP semantics an engine speaks.
func Detect(info engine.Info) (engine.SdpSemantics, error) {
	name := strings.ToLower(info.Name)

	switch name {
	case "pion":
		return engine.SdpSemanticsUnifiedPlan, nil

	case "libwebrtc", "chrome", "chromium":
		v, err := version.NewVersion(info.Version)
		if err != nil {
			return "", errs.NewUnsupportedError("invalid %s version %q: %s", info.Name, info.Version, err)
		}
		if checkVersion(v, unifiedPlanConstraint) {
			return engine.SdpSemanticsUnifiedPlan, nil
		}
		if checkVersion(v, planBConstraint) {
			return engine.SdpSemanticsPlanB, nil
		}
		return "", errs.NewUnsupportedError("%s %s is too old", info.Name, info.Version)
	}

	return "", errs.NewUnsupportedError("engine %q not supported", info.Name)
}

func checkVersion(v *version.Version, constraint string) bool {
	constraints, err := version.NewConstraint(constraint)
	if err != nil {
		panic(err)
	}
	return constraints.Check(v)
}
