package mediasoupclient

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFunc struct {
	require    *require.Assertions
	notifyChan chan []interface{}
	results    [][]interface{}
	timeout    time.Duration
}

func NewMockFunc(t *testing.T) *MockFunc {
	return &MockFunc{
		require:    require.New(t),
		notifyChan: make(chan []interface{}, 100),
		timeout:    50 * time.Millisecond,
	}
}

func (w *MockFunc) WithTimeout(timeout time.Duration) *MockFunc {
	w.timeout = timeout
	return w
}

func (w *MockFunc) Fn() func(...interface{}) {
	w.Reset()

	return func(args ...interface{}) {
		w.notifyChan <- args
	}
}

func (w *MockFunc) ExpectCalledWith(args ...interface{}) {
	w.wait()

	if len(w.results) == 0 {
		w.require.FailNow("fn is not called")
		return
	}

	last := w.results[len(w.results)-1]

	if len(args) != len(last) {
		w.require.FailNow("fn is called, but the number of arguments is not the same")
		return
	}
	for i, arg := range args {
		w.require.EqualValues(arg, last[i])
	}
}

func (w *MockFunc) ExpectCalled(msgAndArgs ...interface{}) {
	w.require.NotZero(w.CalledTimes(), msgAndArgs...)
}

func (w *MockFunc) ExpectNotCalled(msgAndArgs ...interface{}) {
	w.require.Zero(w.CalledTimes(), msgAndArgs...)
}

func (w *MockFunc) ExpectCalledTimes(called int, msgAndArgs ...interface{}) {
	w.require.Equal(called, w.CalledTimes(), msgAndArgs...)
}

func (w *MockFunc) CalledTimes() int {
	w.wait()
	return len(w.results)
}

func (w *MockFunc) Reset() {
	w.notifyChan = make(chan []interface{}, 100)
	w.results = nil
}

// wait collects the calls made within the timeout, or the pending ones if some calls were
// already seen.
func (w *MockFunc) wait() {
	if len(w.results) > 0 {
		for {
			select {
			case result := <-w.notifyChan:
				w.results = append(w.results, result)
			default:
				return
			}
		}
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	for {
		select {
		case result := <-w.notifyChan:
			w.results = append(w.results, result)
		case <-timer.C:
			return
		}
	}
}

// mockSignaler records the traffic of a room. Requests without expectation fail the test.
type mockSignaler struct {
	mock.Mock

	mu            sync.Mutex
	notifications []Notification
}

func (s *mockSignaler) Request(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	args := s.Called(ctx, method, data)

	if fn, ok := args.Get(0).(func(ctx context.Context, data interface{}) (json.RawMessage, error)); ok {
		return fn(ctx, data)
	}
	response, _ := args.Get(0).(json.RawMessage)

	return response, args.Error(1)
}

func (s *mockSignaler) Notify(method string, data interface{}) error {
	s.mu.Lock()
	s.notifications = append(s.notifications, Notification{Method: method, Data: rawMessage(data)})
	s.mu.Unlock()

	return nil
}

// Notifications returns the notifications sent so far, in order.
func (s *mockSignaler) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Notification(nil), s.notifications...)
}

// NotificationMethods returns the methods of the notifications sent so far.
func (s *mockSignaler) NotificationMethods() []string {
	var methods []string
	for _, notification := range s.Notifications() {
		methods = append(methods, notification.Method)
	}
	return methods
}

func rawMessage(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
