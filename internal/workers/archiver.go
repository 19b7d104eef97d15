package workers

import (
	"context"
	"errors"
	"time"

	pgrepo "github.com/deltapoly/assistant/internal/repositories/postgres"
	"github.com/sirupsen/logrus"
)

// Archiver sweeps conversations that have been idle past the threshold into
// archived status. Conversations are never hard-deleted.
type Archiver struct {
	Convos   pgrepo.ConversationRepo
	Interval time.Duration
	IdleFor  time.Duration
	Logger   *logrus.Logger
}

func (a *Archiver) Start(ctx context.Context) error {
	if a.Convos == nil {
		return errors.New("Archiver missing dependency: Convos must be set")
	}
	if a.Interval <= 0 {
		a.Interval = 6 * time.Hour
	}
	if a.IdleFor <= 0 {
		a.IdleFor = 30 * 24 * time.Hour
	}
	if a.Logger == nil {
		a.Logger = logrus.New()
	}

	go a.run(ctx)
	return nil
}

func (a *Archiver) run(ctx context.Context) {
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *Archiver) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-a.IdleFor)
	n, err := a.Convos.ArchiveIdle(ctx, cutoff)
	if err != nil {
		a.Logger.WithError(err).Warn("conversation archive sweep failed")
		return
	}
	if n > 0 {
		a.Logger.WithField("archived", n).Info("archived idle conversations")
	}
}
