package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChannelPair(t *testing.T, serverOptions, clientOptions Options) (server, client *Channel) {
	servers := make(chan *Channel, 1)
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		servers <- NewChannel(conn, serverOptions)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), url, nil, clientOptions)
	require.NoError(t, err)

	select {
	case server = <-servers:
	case <-time.After(time.Second):
		t.Fatal("server channel not created")
	}

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	return server, client
}

func TestChannel_Request(t *testing.T) {
	_, client := newChannelPair(t, Options{
		OnRequest: func(method string, data json.RawMessage) (interface{}, error) {
			var req map[string]string
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, err
			}
			return map[string]string{"method": method, "name": req["name"]}, nil
		},
	}, Options{})

	data, err := client.Request(context.Background(), "join", map[string]string{"name": "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"join","name":"alice"}`, string(data))

	// ids are unique per request
	for i := 0; i < 10; i++ {
		_, err := client.Request(context.Background(), "join", map[string]string{"name": "bob"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 11, client.nextId)
}

func TestChannel_RequestRejected(t *testing.T) {
	_, client := newChannelPair(t, Options{
		OnRequest: func(method string, data json.RawMessage) (interface{}, error) {
			if method == "forbidden" {
				return nil, ResponseError{Code: 403, Reason: "not allowed"}
			}
			return nil, errors.New("boom")
		},
	}, Options{})

	_, err := client.Request(context.Background(), "forbidden", nil)
	var respErr ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, ResponseError{Code: 403, Reason: "not allowed"}, respErr)

	_, err = client.Request(context.Background(), "other", nil)
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, ResponseError{Code: 500, Reason: "boom"}, respErr)
}

func TestChannel_UnsupportedRequest(t *testing.T) {
	server, _ := newChannelPair(t, Options{}, Options{})

	_, err := server.Request(context.Background(), "ping", nil)
	var respErr ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, 405, respErr.Code)
}

func TestChannel_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	_, client := newChannelPair(t, Options{
		OnRequest: func(method string, data json.RawMessage) (interface{}, error) {
			<-release
			return nil, nil
		},
	}, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Request(ctx, "slow", nil)
	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	client.mu.Lock()
	assert.Empty(t, client.responsesCh)
	client.mu.Unlock()

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = client.Request(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannel_Notify(t *testing.T) {
	type notification struct {
		method string
		data   string
	}
	received := make(chan notification, 2)

	server, client := newChannelPair(t, Options{
		OnNotification: func(method string, data json.RawMessage) {
			received <- notification{method, string(data)}
		},
	}, Options{
		OnNotification: func(method string, data json.RawMessage) {
			received <- notification{method, string(data)}
		},
	})

	require.NoError(t, client.Notify("leave", nil))
	require.NoError(t, server.Notify("peerClosed", json.RawMessage(`{"name":"bob"}`)))

	var notifications []notification
	for i := 0; i < 2; i++ {
		select {
		case n := <-received:
			notifications = append(notifications, n)
		case <-time.After(time.Second):
			t.Fatal("notification not received")
		}
	}
	assert.ElementsMatch(t, []notification{{"leave", ""}, {"peerClosed", `{"name":"bob"}`}}, notifications)
}

func TestChannel_Close(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	serverClosed := make(chan error, 1)
	clientClosed := make(chan error, 1)

	_, client := newChannelPair(t, Options{
		OnRequest: func(method string, data json.RawMessage) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		},
		OnClose: func(err error) { serverClosed <- err },
	}, Options{
		OnClose: func(err error) { clientClosed <- err },
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Request(context.Background(), "slow", nil)
		errCh <- err
	}()

	<-started
	require.NoError(t, client.Close())

	assert.ErrorIs(t, <-errCh, ErrChannelClosed)
	assert.Nil(t, <-clientClosed)
	assert.True(t, client.Closed())

	select {
	case <-client.Done():
	default:
		t.Fatal("done channel not closed")
	}

	_, err := client.Request(context.Background(), "join", nil)
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.ErrorIs(t, client.Notify("leave", nil), ErrChannelClosed)

	// closing twice is a no-op
	assert.NoError(t, client.Close())
}

func TestChannel_ResponseAfterClose(t *testing.T) {
	c := &Channel{
		logger:      logr.Discard(),
		responsesCh: make(map[uint32]chan Message),
		done:        make(chan struct{}),
	}
	respCh := make(chan Message, 1)
	c.responsesCh[1] = respCh

	assert.True(t, c.doClose(nil))

	// the response races with the close
	assert.NotPanics(t, func() {
		c.processResponse(newSuccessResponse(1, nil))
		c.processResponse(newSuccessResponse(1, nil))
	})
	assert.Len(t, respCh, 1)
	assert.Empty(t, c.responsesCh)
}

func TestChannel_RemoteClose(t *testing.T) {
	clientClosed := make(chan error, 1)

	server, client := newChannelPair(t, Options{}, Options{
		OnClose: func(err error) { clientClosed <- err },
	})

	require.NoError(t, server.Close())

	select {
	case err := <-clientClosed:
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	case <-time.After(time.Second):
		t.Fatal("client not closed")
	}
	assert.True(t, client.Closed())
}

func TestChannel_InvalidMessage(t *testing.T) {
	received := make(chan string, 1)
	stop := make(chan struct{})
	defer close(stop)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("{"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"foo":1}`))
		conn.WriteJSON(newNotification("activeSpeaker", nil))
		<-stop
		conn.Close()
	}))
	defer srv.Close()

	client, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, Options{
		OnNotification: func(method string, data json.RawMessage) { received <- method },
	})
	require.NoError(t, err)
	defer client.Close()

	select {
	case method := <-received:
		assert.Equal(t, "activeSpeaker", method)
	case <-time.After(time.Second):
		t.Fatal("notification not received")
	}
	assert.False(t, client.Closed())
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil, Options{})
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}
