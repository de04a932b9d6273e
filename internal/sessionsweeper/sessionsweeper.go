// Package sessionsweeper runs the background cleanup of expired session
// rows. Sessions are never revoked explicitly (there is no logout route),
// so without the sweeper expired records would pile up forever. Removing
// rows past their expiry changes no observable behavior: Resolve already
// rejects expired sessions.
package sessionsweeper

import (
	"context"
	"time"

	"github.com/apetrenko/hublink/internal/logger"
)

type sessionsDeleter interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Sweeper periodically deletes expired session records.
type Sweeper struct {
	db            sessionsDeleter
	sweepInterval time.Duration
	errorChannel  chan error
}

// New creates a Sweeper over the given storage.
func New(db sessionsDeleter, sweepInterval time.Duration) *Sweeper {
	return &Sweeper{
		db:            db,
		sweepInterval: sweepInterval,
		errorChannel:  make(chan error, 1),
	}
}

// ListenErrors forwards sweep errors to the given callback in a separate
// goroutine.
func (s *Sweeper) ListenErrors(callback func(error)) {
	go func() {
		for err := range s.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the sweep loop. It stops, and closes the error channel, when
// the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		defer close(s.errorChannel)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.db.DeleteExpiredSessions(ctx)
				if err != nil {
					s.errorChannel <- err
					continue
				}
				if deleted > 0 {
					logger.Log.Infof("removed %d expired sessions", deleted)
				}
			}
		}
	}()
}
