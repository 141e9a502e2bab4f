package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ErrEnded is reported when a source closes without giving a reason.
var ErrEnded = errors.New("stream: source ended")

// Handle is a live push subscription. Updates is closed when the subscription
// ends, after which Err reports why it ended (nil when it was closed by its owner).
type Handle[T any] interface {
	Updates() <-chan T
	Err() error
	Close() error
}

// Closer is the part of a Handle a Scope needs.
type Closer interface {
	Close() error
}

type RunFunc[T any] func(ctx context.Context, emit func(T) bool) error

// Stream runs a RunFunc on its own goroutine and exposes what it emits as a Handle.
type Stream[T any] struct {
	ch     chan T
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New starts run. emit blocks until the value is read or the stream is
// cancelled, in which case it returns false and run should return.
func New[T any](ctx context.Context, run RunFunc[T]) *Stream[T] {
	lctx, cancel := context.WithCancel(ctx)

	s := &Stream[T]{
		ch:     make(chan T),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	emit := func(v T) bool {
		select {
		case s.ch <- v:
			return true
		case <-lctx.Done():
			return false
		}
	}

	go func() {
		err := run(lctx, emit)
		cancelled := lctx.Err() != nil
		cancel()

		// Anything returned after cancellation is the result of the shutdown.
		if err != nil && !cancelled && !errors.Is(err, context.Canceled) {
			s.err = err
		}

		// done closes first so Err is settled by the time a reader sees ch close.
		close(s.done)
		close(s.ch)
	}()

	return s
}

func (s *Stream[T]) Updates() <-chan T {
	return s.ch
}

func (s *Stream[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Done is closed once the stream's goroutine has exited.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Close cancels the stream, waits for it to exit and returns the error it
// terminated with, if any.
func (s *Stream[T]) Close() error {
	s.cancel()
	<-s.done

	return s.err
}

// Terminal returns the reason src ended after its Updates channel closed.
func Terminal[T any](src Handle[T]) error {
	if err := src.Err(); err != nil {
		return err
	}

	return ErrEnded
}

// Map consumes src and emits fn's output for every value fn accepts. src is
// closed when the returned stream ends.
func Map[In, Out any](ctx context.Context, src Handle[In], fn func(In) (Out, bool)) *Stream[Out] {
	return New(ctx, func(ctx context.Context, emit func(Out) bool) error {
		defer func() {
			_ = src.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-src.Updates():
				if !ok {
					return Terminal(src)
				}

				out, ok := fn(v)
				if !ok {
					continue
				}

				if !emit(out) {
					return ctx.Err()
				}
			}
		}
	})
}

// Scope releases every handle added to it on Close, in reverse order.
type Scope struct {
	mx      sync.Mutex
	closers []Closer
	closed  bool
}

// Add tracks c. Adding to a closed scope closes c immediately.
func (s *Scope) Add(c Closer) {
	s.mx.Lock()
	if s.closed {
		s.mx.Unlock()
		_ = c.Close()

		return
	}

	s.closers = append(s.closers, c)
	s.mx.Unlock()
}

// Release stops tracking c without closing it. c must be comparable.
func (s *Scope) Release(c Closer) {
	s.mx.Lock()
	defer s.mx.Unlock()

	for i, v := range s.closers {
		if v == c {
			s.closers = append(s.closers[:i], s.closers[i+1:]...)
			return
		}
	}
}

func (s *Scope) Close() error {
	s.mx.Lock()
	closers := s.closers
	s.closers = nil
	s.closed = true
	s.mx.Unlock()

	var result *multierror.Error

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
