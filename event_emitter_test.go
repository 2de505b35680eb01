package mediasoupclient

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventEmitter_On(t *testing.T) {
	evName := "test"
	emitter := NewEventEmitter()

	emitter.On(evName, func() {})
	emitter.On(evName, func() {})
	assert.Equal(t, 2, emitter.ListenerCount(evName))

	assert.Panics(t, func() { emitter.On(evName, 1) })
	assert.Panics(t, func() { emitter.On(evName, nil) })
}

func TestEventEmitter_Once(t *testing.T) {
	evName := "test"
	emitter := NewEventEmitter()

	onceObserver := NewMockFunc(t)
	emitter.Once(evName, onceObserver.Fn())

	wg := sync.WaitGroup{}

	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go (func() {
			defer wg.Done()
			emitter.Emit(evName)
		})()
	}

	wg.Wait()

	onceObserver.ExpectCalledTimes(1)
	assert.Equal(t, 0, emitter.ListenerCount(evName))
}

func TestEventEmitter_Emit(t *testing.T) {
	evName := "test"
	emitter := NewEventEmitter()

	onObserver := NewMockFunc(t)
	emitter.On(evName, onObserver.Fn())
	emitter.On(evName, func(i, j int) {})
	emitter.Emit(evName)
	emitter.Emit(evName, 1)
	emitter.Emit(evName, 1, 2)
	emitter.Emit(evName, 1, 2, 3)

	onObserver.ExpectCalledTimes(4)
	onObserver.ExpectCalledWith(1, 2, 3)

	assert.False(t, emitter.Emit("nothing"))
}

func TestEventEmitter_EmitConvertsArguments(t *testing.T) {
	emitter := NewEventEmitter()

	var (
		originator Originator
		appData    interface{}
		peer       *Peer
	)
	emitter.On("close", func(o Originator, data interface{}) {
		originator, appData = o, data
	})
	emitter.On("newpeer", func(p *Peer) {
		peer = p
	})

	emitter.Emit("close", "remote")
	assert.Equal(t, OriginatorRemote, originator)
	assert.Nil(t, appData)

	emitter.Emit("newpeer", nil)
	assert.Nil(t, peer)
}

func TestEventEmitter_SafeEmit(t *testing.T) {
	evName := "test"
	emitter := NewEventEmitter()

	emitter.On(evName, func(value int) {
		panic("listener panic")
	})

	assert.NotPanics(t, func() {
		emitter.SafeEmit(evName, 1)
	})
	assert.Panics(t, func() {
		emitter.Emit(evName, 1)
	})
}

func TestEventEmitter_Off(t *testing.T) {
	evName := "test"
	emitter := NewEventEmitter()

	onObserver := NewMockFunc(t)
	fn := onObserver.Fn()

	emitter.On(evName, fn)
	emitter.Emit(evName)
	emitter.Off(evName, fn)
	emitter.Emit(evName)

	onObserver.ExpectCalledTimes(1)
	assert.Equal(t, 0, emitter.ListenerCount(evName))
}

func TestEventEmitter_RemoveAllListeners(t *testing.T) {
	emitter := NewEventEmitter()

	emitter.On("a", func() {})
	emitter.On("b", func() {})
	emitter.On("c", func() {})

	emitter.RemoveAllListeners("a")
	assert.Equal(t, 0, emitter.ListenerCount("a"))
	assert.Equal(t, 1, emitter.ListenerCount("b"))

	emitter.RemoveAllListeners()
	assert.Equal(t, 0, emitter.ListenerCount("b"))
	assert.Equal(t, 0, emitter.ListenerCount("c"))
}

func TestEventEmitter_ListenerAddedDuringEmit(t *testing.T) {
	emitter := NewEventEmitter()

	called := 0
	emitter.On("test", func() {
		emitter.On("test", func() { called++ })
	})

	emitter.Emit("test")
	assert.Equal(t, 0, called)

	emitter.Emit("test")
	assert.Equal(t, 1, called)
}
