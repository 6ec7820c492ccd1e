// Package playerrefresh implements C12's periodic player-refresh loop: it
// walks the stalest players, re-resolves each against the Directory Client,
// and persists any display-name change, emitting the name-change
// notification spec.md §3's Player invariant requires ("old names are
// emitted as name-change notifications").
package playerrefresh

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/droptracker-go/pipeline/internal/directory"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/notifyqueue"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

type Settings struct {
	Interval  time.Duration
	BatchSize int
}

type Loop struct {
	store     *sqlstore.Store
	directory *directory.Client
	notify    *notifyqueue.Queue
	cfg       Settings
	log       *zap.SugaredLogger
	lastTick  atomic.Int64
}

func New(store *sqlstore.Store, dir *directory.Client, notify *notifyqueue.Queue, cfg Settings, log *zap.SugaredLogger) *Loop {
	return &Loop{store: store, directory: dir, notify: notify, cfg: cfg, log: log}
}

func (l *Loop) Name() string { return "player_refresh" }

func (l *Loop) Healthy() bool {
	last := l.lastTick.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(last, 0)) < 3*l.cfg.Interval
}

func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// refreshConcurrency bounds how many Directory Client lookups a single tick
// runs at once, so a slow directory backend can't stall the whole batch.
const refreshConcurrency = 8

func (l *Loop) tick(ctx context.Context) {
	players, err := l.store.StalestPlayers(ctx, l.cfg.BatchSize)
	if err != nil {
		l.log.Errorw("playerrefresh: load stalest players failed", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, p := range players {
		p := p
		g.Go(func() error {
			l.refreshOne(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	l.lastTick.Store(time.Now().Unix())
}

func (l *Loop) refreshOne(ctx context.Context, p *models.Player) {
	snap, err := l.directory.Resolve(ctx, p.DisplayName)
	if err != nil {
		l.log.Debugw("playerrefresh: resolve failed, touching anyway", "player_id", p.ID, "error", err)
		if err := l.store.TouchRefreshed(ctx, p.ID); err != nil {
			l.log.Errorw("playerrefresh: touch refreshed failed", "player_id", p.ID, "error", err)
		}
		return
	}

	if snap.DisplayName != "" && snap.DisplayName != p.DisplayName {
		oldName := p.DisplayName
		if err := l.store.UpdatePlayerName(ctx, l.store.Pool(), p.ID, snap.DisplayName); err != nil {
			l.log.Errorw("playerrefresh: update player name failed", "player_id", p.ID, "error", err)
			return
		}
		if err := l.notify.Enqueue(ctx, l.store.Pool(), models.Notification{
			Type:     models.NotifyNameChange,
			PlayerID: p.ID,
			Payload: map[string]any{
				"old_name": oldName,
				"new_name": snap.DisplayName,
			},
		}); err != nil {
			l.log.Errorw("playerrefresh: enqueue name change notification failed", "player_id", p.ID, "error", err)
		}
	}

	if err := l.store.TouchRefreshed(ctx, p.ID); err != nil {
		l.log.Errorw("playerrefresh: touch refreshed failed", "player_id", p.ID, "error", err)
	}
}
