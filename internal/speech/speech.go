package speech

import (
	"context"
	"errors"
)

var (
	// ErrDenied reports that recognition was not authorized.
	ErrDenied = errors.New("speech recognition not authorized")
	// ErrTaskEnded reports that a session can no longer accept audio.
	ErrTaskEnded = errors.New("recognition task ended")
)

// Recognizer creates streaming recognition sessions.
type Recognizer interface {
	StartSession(opts SessionOpts) (Session, error)
	Close() error
}

// Session represents an active recognition task. Partials carries the
// evolving hypothesis of the current utterance and Finals each completed
// utterance. Both channels are closed once the task has ended, whether
// through Close or on its own.
type Session interface {
	Feed(samples []float32) error
	Partials() <-chan string
	Finals() <-chan string
	Close() error
}

// SessionOpts configures a recognition session
type SessionOpts struct {
	SampleRate int
}

// Authorizer decides whether recognition may run. It may block, for
// instance on a platform permission prompt or a model download.
type Authorizer interface {
	Authorize(ctx context.Context) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context) (bool, error)

func (f AuthorizerFunc) Authorize(ctx context.Context) (bool, error) { return f(ctx) }

// All authorizes only when every authorizer does, checked in order.
func All(auths ...Authorizer) Authorizer {
	return AuthorizerFunc(func(ctx context.Context) (bool, error) {
		for _, a := range auths {
			ok, err := a.Authorize(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}
