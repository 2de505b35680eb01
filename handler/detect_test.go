package handler

import (
	"context"
	"testing"

	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/engine/enginetest"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	testCases := []struct {
		info      engine.Info
		semantics engine.SdpSemantics
		err       error
	}{
		{info: engine.Info{Name: "pion", Version: "4.1.8"}, semantics: engine.SdpSemanticsUnifiedPlan},
		{info: engine.Info{Name: "libwebrtc", Version: "72.0.0"}, semantics: engine.SdpSemanticsUnifiedPlan},
		{info: engine.Info{Name: "Chrome", Version: "120.0.6099.109"}, semantics: engine.SdpSemanticsUnifiedPlan},
		{info: engine.Info{Name: "libwebrtc", Version: "71.3"}, semantics: engine.SdpSemanticsPlanB},
		{info: engine.Info{Name: "libwebrtc", Version: "55"}, semantics: engine.SdpSemanticsPlanB},
		{info: engine.Info{Name: "libwebrtc", Version: "54.9"}, err: errs.UnsupportedError{}},
		{info: engine.Info{Name: "libwebrtc", Version: "latest"}, err: errs.UnsupportedError{}},
		{info: engine.Info{Name: "gstreamer", Version: "1.22"}, err: errs.UnsupportedError{}},
	}

	for _, c := range testCases {
		semantics, err := Detect(c.info)
		if c.err != nil {
			assert.IsType(t, c.err, err, c.info)
			continue
		}
		assert.NoError(t, err, c.info)
		assert.Equal(t, c.semantics, semantics, c.info)
	}
}

func TestGetNativeRtpCapabilities(t *testing.T) {
	for _, semantics := range []engine.SdpSemantics{engine.SdpSemanticsUnifiedPlan, engine.SdpSemanticsPlanB} {
		factory := enginetest.NewFactory()

		caps, err := GetNativeRtpCapabilities(context.Background(), factory, semantics)
		require.NoError(t, err)

		var mimeTypes []string
		for _, codec := range caps.Codecs {
			mimeTypes = append(mimeTypes, codec.MimeType)
		}
		assert.Equal(t, []string{"audio/opus", "video/VP8", "video/rtx", "video/H264", "video/rtx"}, mimeTypes)
		assert.EqualValues(t, 2, caps.Codecs[0].Channels)
		assert.Equal(t, 96, caps.Codecs[2].Parameters.Int("apt"))
		assert.Equal(t, 1, caps.Codecs[3].Parameters.Int("packetization-mode"))

		var audioExts int
		for _, ext := range caps.HeaderExtensions {
			if ext.Kind == ortc.MediaKindAudio {
				audioExts++
			}
		}
		assert.Equal(t, 4, audioExts)
		assert.Len(t, caps.HeaderExtensions, 8)

		// the probing connection is gone
		require.Len(t, factory.PeerConnections(), 1)
		assert.True(t, factory.Last().Closed())
	}

	_, err := GetNativeRtpCapabilities(context.Background(), nil, engine.SdpSemanticsUnifiedPlan)
	assert.IsType(t, errs.TypeError{}, err)
}
