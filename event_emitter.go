package mediasoupclient

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/go-logr/logr"
)

// IEventEmitter dispatches named events to listener functions of any signature. Arguments
// are aligned to the listener: missing ones are zero valued, extra ones are dropped.
type IEventEmitter interface {
	// On adds the listener to the end of the listeners of event.
	On(event string, listener interface{})

	// Once adds a listener which is removed before its first invocation.
	Once(event string, listener interface{})

	// Emit calls the listeners of event in registration order. It returns whether the
	// event had listeners.
	Emit(event string, argv ...interface{}) bool

	// SafeEmit is Emit recovering and logging listener panics.
	SafeEmit(event string, argv ...interface{}) bool

	Off(event string, listener interface{})

	// RemoveAllListeners removes all listeners, or those of the given events.
	RemoveAllListeners(events ...string)

	ListenerCount(event string) int
}

type EventEmitter struct {
	mu        sync.Mutex
	listeners map[string][]*eventListener
	logger    logr.Logger
}

func NewEventEmitter() IEventEmitter {
	return &EventEmitter{
		logger: NewLogger("EventEmitter"),
	}
}

func (e *EventEmitter) On(event string, listener interface{}) {
	e.addListener(event, listener, false)
}

func (e *EventEmitter) Once(event string, listener interface{}) {
	e.addListener(event, listener, true)
}

func (e *EventEmitter) addListener(event string, listener interface{}, once bool) {
	if err := isValidListener(listener); err != nil {
		panic(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*eventListener)
	}
	e.listeners[event] = append(e.listeners[event], newEventListener(listener, once))
}

func (e *EventEmitter) Emit(event string, args ...interface{}) bool {
	e.mu.Lock()
	listeners := make([]*eventListener, len(e.listeners[event]))
	copy(listeners, e.listeners[event])
	e.mu.Unlock()

	for _, listener := range listeners {
		if listener.once != nil {
			e.removeListener(event, listener)
		}
		// may panic
		listener.Call(args...)
	}
	return len(listeners) > 0
}

func (e *EventEmitter) SafeEmit(event string, args ...interface{}) bool {
	defer func() {
		if r := recover(); r != nil && e.logger.GetSink() != nil {
			e.logger.Error(fmt.Errorf("%v", r), "emit panic", "event", event, "stack", string(debug.Stack()))
		}
	}()

	return e.Emit(event, args...)
}

func (e *EventEmitter) Off(event string, listener interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	handlerPtr := reflect.ValueOf(listener).Pointer()

	for i, l := range e.listeners[event] {
		if l.value.Pointer() == handlerPtr {
			e.listeners[event] = append(e.listeners[event][:i:i], e.listeners[event][i+1:]...)
			return
		}
	}
}

func (e *EventEmitter) removeListener(event string, listener *eventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners[event] {
		if l == listener {
			e.listeners[event] = append(e.listeners[event][:i:i], e.listeners[event][i+1:]...)
			return
		}
	}
}

func (e *EventEmitter) RemoveAllListeners(events ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(events) == 0 {
		e.listeners = nil
		return
	}
	for _, event := range events {
		delete(e.listeners, event)
	}
}

func (e *EventEmitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.listeners[event])
}

type eventListener struct {
	value    reflect.Value
	argTypes []reflect.Type
	once     *sync.Once
}

func newEventListener(listener interface{}, once bool) *eventListener {
	value := reflect.ValueOf(listener)
	listenerType := value.Type()

	argTypes := make([]reflect.Type, 0, listenerType.NumIn())
	for i := 0; i < listenerType.NumIn(); i++ {
		argTypes = append(argTypes, listenerType.In(i))
	}

	l := &eventListener{
		value:    value,
		argTypes: argTypes,
	}
	if once {
		l.once = &sync.Once{}
	}

	return l
}

func (l *eventListener) Call(args ...interface{}) {
	call := func() {
		var argValues []reflect.Value

		if l.value.Type().IsVariadic() {
			argValues = l.variadicArguments(args)
		} else {
			argValues = l.alignArguments(args)
		}

		// returns are ignored
		l.value.Call(argValues)
	}

	if l.once != nil {
		l.once.Do(call)
	} else {
		call()
	}
}

// alignArguments fits args to the listener signature. Untyped nils become zero values and
// convertible values are converted, so Emit("close", "local") reaches func(Originator).
func (l *eventListener) alignArguments(args []interface{}) []reflect.Value {
	values := make([]reflect.Value, len(l.argTypes))

	for i, argType := range l.argTypes {
		if i >= len(args) {
			values[i] = reflect.Zero(argType)
			continue
		}
		values[i] = convertArgument(args[i], argType)
	}

	return values
}

func (l *eventListener) variadicArguments(args []interface{}) []reflect.Value {
	fixed := len(l.argTypes) - 1
	values := make([]reflect.Value, 0, len(args))

	for i, arg := range args {
		argType := l.argTypes[fixed].Elem()
		if i < fixed {
			argType = l.argTypes[i]
		}
		values = append(values, convertArgument(arg, argType))
	}
	for i := len(args); i < fixed; i++ {
		values = append(values, reflect.Zero(l.argTypes[i]))
	}

	return values
}

func convertArgument(arg interface{}, argType reflect.Type) reflect.Value {
	value := reflect.ValueOf(arg)

	switch {
	case !value.IsValid():
		return reflect.Zero(argType)
	case value.Type() != argType && value.Type().ConvertibleTo(argType):
		return value.Convert(argType)
	}
	return value
}

func isValidListener(fn interface{}) error {
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return fmt.Errorf("%T is not a reflect.Func", fn)
	}
	return nil
}
