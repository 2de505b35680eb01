package mediasoupclient

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/go-logr/logr"
)

// CommandExecutor runs one command of a queue.
type CommandExecutor func(ctx context.Context, method string, data interface{}) (interface{}, error)

// CommandFuture is the eventual result of a pushed command.
type CommandFuture struct {
	once   sync.Once
	done   chan struct{}
	result interface{}
	err    error
}

func newCommandFuture() *CommandFuture {
	return &CommandFuture{done: make(chan struct{})}
}

// resolve settles the future, later calls are ignored.
func (f *CommandFuture) resolve(result interface{}, err error) {
	f.once.Do(func() {
		f.result, f.err = result, err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *CommandFuture) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the command completes and returns its result.
func (f *CommandFuture) Wait() (interface{}, error) {
	<-f.done
	return f.result, f.err
}

// Err waits for the command and returns its error.
func (f *CommandFuture) Err() error {
	_, err := f.Wait()
	return err
}

type command struct {
	ctx    context.Context
	method string
	data   interface{}
	future *CommandFuture
}

// CommandQueue runs commands one at a time in push order. A failing command does not stop
// the queue.
type CommandQueue struct {
	logger   logr.Logger
	executor CommandExecutor

	mu       sync.Mutex
	commands []*command
	current  *command
	running  bool
	closed   bool
}

func NewCommandQueue(logger logr.Logger, executor CommandExecutor) *CommandQueue {
	return &CommandQueue{
		logger:   logger,
		executor: executor,
	}
}

// Push enqueues a command. The future fails with ErrQueueClosed if the queue is closed
// before the command completes.
func (q *CommandQueue) Push(ctx context.Context, method string, data interface{}) *CommandFuture {
	future := newCommandFuture()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		future.resolve(nil, ErrQueueClosed)
		return future
	}

	q.commands = append(q.commands, &command{
		ctx:    ctx,
		method: method,
		data:   data,
		future: future,
	})

	if !q.running {
		q.running = true
		go q.run()
	}

	return future
}

// Len returns the number of commands queued or running.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.commands)
	if q.current != nil {
		n++
	}
	return n
}

func (q *CommandQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Close fails the pending commands and the running one. The running command is not
// interrupted, its result is discarded.
func (q *CommandQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	commands := q.commands
	if q.current != nil {
		commands = append([]*command{q.current}, commands...)
	}
	q.commands = nil
	q.mu.Unlock()

	for _, cmd := range commands {
		cmd.future.resolve(nil, ErrQueueClosed)
	}
}

func (q *CommandQueue) run() {
	for {
		q.mu.Lock()
		if q.closed || len(q.commands) == 0 {
			q.current = nil
			q.running = false
			q.mu.Unlock()
			return
		}
		cmd := q.commands[0]
		q.commands = q.commands[1:]
		q.current = cmd
		q.mu.Unlock()

		result, err := q.execute(cmd)
		if err != nil {
			q.logger.Error(err, "command failed", "method", cmd.method)
		}

		q.mu.Lock()
		q.current = nil
		q.mu.Unlock()

		cmd.future.resolve(result, err)
	}
}

func (q *CommandQueue) execute(cmd *command) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error(fmt.Errorf("%v", r), "command panic", "stack", string(debug.Stack()))
			err = fmt.Errorf("command %q panicked: %v", cmd.method, r)
		}
	}()

	q.logger.V(1).Info("execute()", "method", cmd.method)

	return q.executor(cmd.ctx, cmd.method, cmd.data)
}
