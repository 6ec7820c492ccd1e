// Package hof implements C10: per-group Hall-of-Fame embed rendering and
// editing, content-hash deduplicated so an unchanged leaderboard never
// reposts, and gated by the same forbidden-cooldown policy as C9.
package hof

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/droptracker-go/pipeline/internal/chat"
	"github.com/droptracker-go/pipeline/internal/kvstore"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

const maxTeamSizes = 5

type Settings struct {
	SweepInterval   time.Duration
	Workers         int
	QueueSize       int
	HashTTL         time.Duration
	ForbiddenCooldown time.Duration
}

// job is one (group, npc) render request.
type job struct {
	groupID int64
	npcID   int64
}

// Metrics is the narrow recorder surface the renderer drives per attempt;
// implemented by internal/metrics.Recorder.
type Metrics interface {
	RecordHoFRender(success bool)
}

type Renderer struct {
	store   *sqlstore.Store
	kv      *kvstore.Client
	gateway chat.Gateway
	cfg     Settings
	log     *zap.SugaredLogger
	metrics Metrics

	queue chan job
	queued sync.Map // job key -> struct{}, so a duplicate pending job is skipped

	groupLocks sync.Map // groupID -> *sync.Mutex
	cooldown   sync.Map // groupID -> time.Time
	lastSweep  atomic.Int64
}

func (r *Renderer) Name() string { return "hall_of_fame" }

// Healthy reports false if a sweep hasn't completed within 3x the
// configured sweep interval.
func (r *Renderer) Healthy() bool {
	last := r.lastSweep.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(last, 0)) < 3*r.cfg.SweepInterval
}

func New(store *sqlstore.Store, kv *kvstore.Client, gateway chat.Gateway, cfg Settings, log *zap.SugaredLogger, metrics Metrics) *Renderer {
	return &Renderer{
		store:   store,
		kv:      kv,
		gateway: gateway,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		queue:   make(chan job, cfg.QueueSize),
	}
}

// Run drives cfg.Workers render workers and a sweep ticker that enqueues
// every configured (group, npc) pair every SweepInterval, until ctx is
// cancelled (§4.5 "Loop cadence").
func (r *Renderer) Run(ctx context.Context) error {
	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go r.worker(ctx)
	}

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep enqueues a render job for every group with create_pb_embeds=true and
// every NPC in its configured boss list (§4.5 step 1).
func (r *Renderer) sweep(ctx context.Context) {
	groups, err := r.groupsWithEmbedsEnabled(ctx)
	if err != nil {
		r.log.Errorw("hof: load groups failed", "error", err)
		return
	}
	for _, g := range groups {
		for _, npcID := range bossList(g) {
			r.Enqueue(g.ID, npcID)
		}
	}
	r.lastSweep.Store(time.Now().Unix())
}

func (r *Renderer) groupsWithEmbedsEnabled(ctx context.Context) ([]*models.Group, error) {
	ids, err := r.store.AllGroupIDs(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Group
	for _, id := range ids {
		g, err := r.store.Group(ctx, r.store.Pool(), id)
		if err != nil {
			continue
		}
		if g.Bool(models.CfgCreatePBEmbeds) {
			out = append(out, g)
		}
	}
	return out, nil
}

func bossList(g *models.Group) []int64 {
	raw, ok := g.Configuration[models.CfgPBEmbedBossList]
	if !ok || raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var id int64
		if _, err := fmt.Sscan(part, &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Enqueue submits a render job, skipping it if an identical job is already
// pending (§4.5 step 1).
func (r *Renderer) Enqueue(groupID, npcID int64) {
	key := fmt.Sprintf("%d:%d", groupID, npcID)
	if _, already := r.queued.LoadOrStore(key, struct{}{}); already {
		return
	}
	select {
	case r.queue <- job{groupID: groupID, npcID: npcID}:
	default:
		r.queued.Delete(key)
		r.log.Warnw("hof: queue full, dropping job", "group_id", groupID, "npc_id", npcID)
	}
}

func (r *Renderer) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			key := fmt.Sprintf("%d:%d", j.groupID, j.npcID)
			r.queued.Delete(key)
			r.process(ctx, j)
		}
	}
}

func (r *Renderer) process(ctx context.Context, j job) {
	lockIface, _ := r.groupLocks.LoadOrStore(j.groupID, &sync.Mutex{})
	lock := lockIface.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	if until, ok := r.cooldown.Load(j.groupID); ok && time.Now().Before(until.(time.Time)) {
		return
	}

	group, err := r.store.Group(ctx, r.store.Pool(), j.groupID)
	if err != nil {
		r.log.Errorw("hof: load group failed", "group_id", j.groupID, "error", err)
		return
	}
	npc, err := r.npcName(ctx, j.npcID)
	if err != nil {
		r.log.Errorw("hof: load npc failed", "npc_id", j.npcID, "error", err)
		return
	}

	embed, content, err := r.assemble(ctx, group, j.npcID, npc)
	if err != nil {
		r.log.Errorw("hof: assemble failed", "group_id", j.groupID, "npc_id", j.npcID, "error", err)
		return
	}

	hashHex := contentHash(content)
	hashKey := r.kv.HoFHash(j.groupID, j.npcID)
	prev, ok, _ := r.kv.Get(ctx, hashKey)
	if unchangedSinceLastRender(prev, ok, hashHex) {
		return // unchanged since last render (§4.5 step 2)
	}

	channelID := group.Configuration[models.CfgChannelPBEmbeds]
	if channelID == "" {
		channelID = group.ChatDestID
	}
	if channelID == "" {
		return
	}

	if err := r.dispatchWithRetry(ctx, group, j.npcID, channelID, embed); err != nil {
		if errors.Is(err, chat.ErrForbidden) {
			r.cooldown.Store(j.groupID, time.Now().Add(r.cfg.ForbiddenCooldown))
		}
		r.recordRender(false)
		r.log.Warnw("hof: dispatch failed", "group_id", j.groupID, "npc_id", j.npcID, "error", err)
		return
	}
	r.recordRender(true)

	if err := r.kv.SetEx(ctx, hashKey, hashHex, r.cfg.HashTTL); err != nil {
		r.log.Errorw("hof: store content hash failed", "error", err)
	}
}

// contentHash is the dedup fingerprint for a rendered embed's body (§4.5
// step 2): identical content across two sweeps must hash identically.
func contentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// unchangedSinceLastRender reports whether a freshly rendered hash matches
// the previously stored one, meaning no chat RPC should be issued (inv.6).
// No previous hash (prevOK false) always counts as changed.
func unchangedSinceLastRender(prevHash string, prevOK bool, newHash string) bool {
	return prevOK && prevHash == newHash
}

func (r *Renderer) recordRender(success bool) {
	if r.metrics != nil {
		r.metrics.RecordHoFRender(success)
	}
}

// dispatchWithRetry edits an existing placement in place if one exists, else
// sends a new message and persists the placement (§4.5 step 2 final bullet).
func (r *Renderer) dispatchWithRetry(ctx context.Context, group *models.Group, npcID int64, channelID string, embed *chat.Embed) error {
	const maxAttempts = 5
	messageID, existingChannel, found, err := r.store.HoFMessage(ctx, group.ID, npcID)
	if err != nil {
		return fmt.Errorf("hof: load message placement: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		var dispatchErr error
		if found {
			if exists, ferr := r.gateway.FetchMessage(callCtx, existingChannel, messageID); ferr == nil && exists {
				dispatchErr = r.gateway.Edit(callCtx, existingChannel, messageID, "", embed)
				cancel()
				if dispatchErr == nil {
					return nil
				}
				lastErr = dispatchErr
				if errors.Is(dispatchErr, chat.ErrForbidden) {
					return dispatchErr
				}
				continue
			}
			cancel()
			found = false
			continue
		}

		newID, sendErr := r.gateway.Send(callCtx, channelID, "", embed)
		cancel()
		if sendErr == nil {
			if err := r.store.SetHoFMessage(ctx, group.ID, npcID, newID, channelID); err != nil {
				return fmt.Errorf("hof: persist message placement: %w", err)
			}
			return nil
		}
		lastErr = sendErr
		if errors.Is(sendErr, chat.ErrForbidden) {
			return sendErr
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	return lastErr
}

func (r *Renderer) npcName(ctx context.Context, npcID int64) (string, error) {
	name, err := r.store.NPCNameByID(ctx, npcID)
	if err != nil {
		return "", err
	}
	return name, nil
}
