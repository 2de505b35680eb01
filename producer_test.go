package mediasoupclient

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/qdgx/mediasoup-client-go/engine/enginetest"
	"github.com/qdgx/mediasoup-client-go/ortc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ProducerTestingSuite struct {
	roomTestingSuite
	transport *Transport
}

func TestProducerTestingSuite(t *testing.T) {
	suite.Run(t, new(ProducerTestingSuite))
}

func (suite *ProducerTestingSuite) SetupTest() {
	suite.roomTestingSuite.SetupTest()
	suite.join()
	suite.transport = suite.createTransport(TransportDirectionSend)
}

func (suite *ProducerTestingSuite) TestSend() {
	onHandled := suite.Fn()

	suite.expectRequest("createTransport", remoteTransportParameters()).Once()
	suite.expectRequest("createProducer", nil).Once()

	track := enginetest.NewTrack("video", "")
	producer, err := suite.room.CreateProducer(track, ProducerOptions{}, H{"foo": 1})
	suite.NoError(err)
	producer.On("handled", onHandled.Fn())

	suite.Equal(MediaStateOpen, producer.State())
	suite.False(producer.Handled())
	suite.Same(producer, suite.room.Producer(producer.Id()))

	suite.NoError(producer.Send(suite.ctx, suite.transport))

	suite.True(producer.Handled())
	suite.Same(suite.transport, producer.Transport())
	onHandled.ExpectCalledTimes(1)

	params := producer.RtpParameters()
	suite.Require().NotNil(params)
	suite.Equal("video/VP8", params.Codecs[0].MimeType)

	// the returned parameters are a copy
	params.Codecs[0].MimeType = "video/foo"
	suite.Equal("video/VP8", producer.RtpParameters().Codecs[0].MimeType)

	suite.signaler.AssertCalled(suite.T(), "Request", mock.Anything, "createProducer", mock.MatchedBy(func(req createProducerRequest) bool {
		return req.Id == producer.Id() &&
			req.Kind == ortc.MediaKindVideo &&
			req.TransportId == suite.transport.Id() &&
			!req.Paused &&
			req.RtpParameters != nil
	}))
	suite.signaler.AssertCalled(suite.T(), "Request", mock.Anything, "createTransport", mock.MatchedBy(func(req createTransportRequest) bool {
		return req.Id == suite.transport.Id() &&
			req.Direction == TransportDirectionSend &&
			req.DtlsParameters != nil &&
			req.Options.Udp
	}))
}

func (suite *ProducerTestingSuite) TestSendTwice() {
	producer, _ := suite.sendProducer(suite.transport, ortc.MediaKindAudio)

	suite.IsType(InvalidStateError{}, producer.Send(suite.ctx, suite.transport))
	suite.IsType(TypeError{}, producer.Send(suite.ctx, nil))
}

func (suite *ProducerTestingSuite) TestSendOnReceivingTransport() {
	recvTransport := suite.createTransport(TransportDirectionRecv)

	producer, err := suite.room.CreateProducer(enginetest.NewTrack("audio", ""), ProducerOptions{}, nil)
	suite.NoError(err)

	suite.IsType(TypeError{}, producer.Send(suite.ctx, recvTransport))
	suite.False(producer.Closed())
}

func (suite *ProducerTestingSuite) TestSendRejected() {
	suite.expectRequest("createTransport", remoteTransportParameters()).Once()
	suite.signaler.On("Request", mock.Anything, "createProducer", mock.Anything).
		Return(json.RawMessage(nil), NewTypeError("rejected")).Once()

	track := enginetest.NewTrack("audio", "")
	producer, err := suite.room.CreateProducer(track, ProducerOptions{}, nil)
	suite.NoError(err)

	suite.IsType(TypeError{}, producer.Send(suite.ctx, suite.transport))
	suite.False(producer.Handled())
	suite.False(producer.Closed())

	// the track was removed from the peer connection again
	pc := suite.factory.Last()
	suite.Eventually(func() bool {
		for _, sender := range pc.Senders() {
			if sender.Track() != nil {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	// it can be sent again
	suite.expectRequest("createProducer", nil).Once()
	suite.NoError(producer.Send(suite.ctx, suite.transport))
}

func (suite *ProducerTestingSuite) TestClose() {
	producer, track := suite.sendProducer(suite.transport, ortc.MediaKindAudio)

	onClose := suite.Fn()
	producer.On("close", onClose.Fn())

	producer.Close()

	suite.True(producer.Closed())
	suite.Equal(MediaStateClosed, producer.State())
	suite.True(track.Stopped())
	suite.Nil(suite.room.Producer(producer.Id()))
	onClose.ExpectCalledWith(OriginatorLocal, nil)

	n := suite.findNotification("closeProducer")
	suite.Require().NotNil(n)
	suite.JSONEq(`{"id":"`+producer.Id()+`"}`, string(n.Data))

	suite.IsType(InvalidStateError{}, producer.Pause(nil))
	suite.IsType(InvalidStateError{}, producer.Send(suite.ctx, suite.transport))

	producer.Close()
	onClose.ExpectCalledTimes(1)
}

func (suite *ProducerTestingSuite) TestClosedByServer() {
	producer, track := suite.sendProducer(suite.transport, ortc.MediaKindAudio)

	onClose := suite.Fn()
	producer.On("close", onClose.Fn())

	suite.NoError(suite.room.ReceiveNotification(notification("producerClosed", entityNotification{Id: producer.Id(), AppData: "bye"})))

	suite.True(producer.Closed())
	suite.True(track.Stopped())
	onClose.ExpectCalledWith(OriginatorRemote, "bye")
	suite.Nil(suite.findNotification("closeProducer"))
}

func (suite *ProducerTestingSuite) TestPauseResume() {
	producer, track := suite.sendProducer(suite.transport, ortc.MediaKindVideo)

	onPause := suite.Fn()
	producer.On("pause", onPause.Fn())
	onResume := suite.Fn()
	producer.On("resume", onResume.Fn())

	suite.NoError(producer.Pause("p"))
	suite.True(producer.Paused())
	suite.True(producer.LocallyPaused())
	suite.Equal(MediaStatePaused, producer.State())
	suite.False(track.Enabled())
	onPause.ExpectCalledWith(OriginatorLocal, "p")
	suite.waitNotification("pauseProducer")

	// pausing again is a no-op
	suite.NoError(producer.Pause(nil))
	onPause.ExpectCalledTimes(1)

	suite.NoError(producer.Resume(nil))
	suite.False(producer.Paused())
	suite.True(track.Enabled())
	onResume.ExpectCalledWith(OriginatorLocal, nil)
	suite.waitNotification("resumeProducer")
}

func (suite *ProducerTestingSuite) TestPausedByServer() {
	producer, track := suite.sendProducer(suite.transport, ortc.MediaKindAudio)

	onPause := suite.Fn()
	producer.On("pause", onPause.Fn())

	suite.NoError(suite.room.ReceiveNotification(notification("producerPaused", entityNotification{Id: producer.Id()})))

	suite.True(producer.RemotelyPaused())
	suite.False(producer.LocallyPaused())
	suite.False(track.Enabled())
	onPause.ExpectCalledWith(OriginatorRemote, nil)

	// still paused by the server
	suite.NoError(producer.Pause(nil))
	suite.NoError(producer.Resume(nil))
	suite.False(track.Enabled())

	suite.NoError(suite.room.ReceiveNotification(notification("producerResumed", entityNotification{Id: producer.Id()})))
	suite.False(producer.Paused())
	suite.True(track.Enabled())
}

func (suite *ProducerTestingSuite) TestReplaceTrack() {
	producer, oldTrack := suite.sendProducer(suite.transport, ortc.MediaKindVideo)
	suite.NoError(producer.Pause(nil))

	newTrack := enginetest.NewTrack("video", "")
	suite.NoError(producer.ReplaceTrack(suite.ctx, newTrack))

	suite.Same(newTrack, producer.Track())
	suite.True(oldTrack.Stopped())
	suite.False(newTrack.Stopped())
	suite.False(newTrack.Enabled())

	sent := false
	for _, sender := range suite.factory.Last().Senders() {
		if sender.Track() == newTrack {
			sent = true
		}
	}
	suite.True(sent)

	suite.IsType(TypeError{}, producer.ReplaceTrack(suite.ctx, enginetest.NewTrack("audio", "")))
	suite.IsType(TypeError{}, producer.ReplaceTrack(suite.ctx, nil))

	// the current track is kept
	suite.NoError(producer.ReplaceTrack(suite.ctx, newTrack))
	suite.False(newTrack.Stopped())
}

func (suite *ProducerTestingSuite) TestStats() {
	producer, _ := suite.sendProducer(suite.transport, ortc.MediaKindAudio)

	onStats := suite.Fn()
	producer.On("stats", onStats.Fn())

	suite.NoError(producer.EnableStats(0))
	suite.True(producer.StatsEnabled())
	suite.waitNotification("enableProducerStats")
	suite.JSONEq(`{"id":"`+producer.Id()+`","interval":1000}`, string(suite.findNotification("enableProducerStats").Data))

	stats := Stats{H{"type": "outbound-rtp", "packetCount": 10}}
	suite.NoError(suite.room.ReceiveNotification(notification("producerStats", statsNotification{Id: producer.Id(), Stats: stats})))
	onStats.ExpectCalledTimes(1)

	suite.NoError(producer.DisableStats())
	suite.False(producer.StatsEnabled())
	suite.waitNotification("disableProducerStats")
}

func (suite *ProducerTestingSuite) TestStatsEnabledBeforeSend() {
	suite.expectRequest("createTransport", remoteTransportParameters()).Maybe()
	suite.expectRequest("createProducer", nil).Once()

	producer, err := suite.room.CreateProducer(enginetest.NewTrack("video", ""), ProducerOptions{}, nil)
	suite.Require().NoError(err)

	suite.NoError(producer.EnableStats(2 * time.Second))
	suite.True(producer.StatsEnabled())
	suite.Nil(suite.findNotification("enableProducerStats"))

	suite.NoError(producer.Send(suite.ctx, suite.transport))

	suite.waitNotification("enableProducerStats")
	suite.JSONEq(`{"id":"`+producer.Id()+`","interval":2000}`, string(suite.findNotification("enableProducerStats").Data))
}

func (suite *ProducerTestingSuite) TestTransportClosed() {
	producer, track := suite.sendProducer(suite.transport, ortc.MediaKindAudio)

	onUnhandled := suite.Fn()
	producer.On("unhandled", onUnhandled.Fn())

	suite.transport.Close(nil)

	suite.False(producer.Closed())
	suite.False(producer.Handled())
	suite.Nil(producer.RtpParameters())
	suite.False(track.Stopped())
	onUnhandled.ExpectCalledTimes(1)

	// closing it later does not reach the closed transport
	producer.Close()
	suite.Nil(suite.findNotification("closeProducer"))
}

func TestProducerPauseWithoutTransport(t *testing.T) {
	track := enginetest.NewTrack("audio", "")
	producer := newProducer(track, ProducerOptions{}, nil)

	onPause := NewMockFunc(t)
	producer.On("pause", onPause.Fn())

	if err := producer.Pause(nil); err != nil {
		t.Fatal(err)
	}
	if track.Enabled() {
		t.Fatal("paused track enabled")
	}
	onPause.ExpectCalledWith(OriginatorLocal, nil)

	producer.remotePause(nil)
	if err := producer.Resume(nil); err != nil {
		t.Fatal(err)
	}
	if track.Enabled() {
		t.Fatal("remotely paused track enabled")
	}

	producer.remoteResume(nil)
	if !track.Enabled() || producer.Paused() {
		t.Fatal("resumed track disabled")
	}
}
