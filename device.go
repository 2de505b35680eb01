package mediasoupclient

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/qdgx/mediasoup-client-go/engine"
	"github.com/qdgx/mediasoup-client-go/handler"
	"github.com/qdgx/mediasoup-client-go/internal/errs"
	"github.com/qdgx/mediasoup-client-go/ortc"
)

// Device is a media engine together with the SDP strategy it speaks.
type Device struct {
	logger    logr.Logger
	factory   engine.Factory
	semantics engine.SdpSemantics

	mu         sync.Mutex
	nativeCaps *ortc.RtpCapabilities
}

// NewDevice returns a device for factory. An empty semantics is detected from the engine.
func NewDevice(factory engine.Factory, semantics engine.SdpSemantics) (*Device, error) {
	if factory == nil {
		return nil, errs.NewTypeError("missing engine factory")
	}

	logger := NewLogger("Device")

	if len(semantics) == 0 {
		var err error
		if semantics, err = handler.Detect(factory.Info()); err != nil {
			return nil, err
		}
	}

	logger.V(1).Info("constructor()", "engine", factory.Info().Name, "semantics", semantics)

	return &Device{
		logger:    logger,
		factory:   factory,
		semantics: semantics,
	}, nil
}

func (d *Device) Factory() engine.Factory {
	return d.factory
}

func (d *Device) SdpSemantics() engine.SdpSemantics {
	return d.semantics
}

// NativeRtpCapabilities returns what the engine can send and receive. The engine is
// probed once.
func (d *Device) NativeRtpCapabilities(ctx context.Context) (*ortc.RtpCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.nativeCaps != nil {
		return d.nativeCaps, nil
	}

	caps, err := handler.GetNativeRtpCapabilities(ctx, d.factory, d.semantics)
	if err != nil {
		return nil, err
	}
	d.logger.V(1).Info("native RTP capabilities", "codecs", len(caps.Codecs), "headerExtensions", len(caps.HeaderExtensions))
	d.nativeCaps = caps

	return caps, nil
}
