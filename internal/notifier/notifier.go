// Package notifier implements C9: a worker pool that claims pending rows
// from the notification queue, renders them through a per-type template, and
// dispatches through the chat gateway with rate limiting, retries, and
// forbidden-destination cooldowns (§4.4).
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/droptracker-go/pipeline/internal/chat"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

// Settings carries the runtime-tunable numbers sourced from config.Config.
type Settings struct {
	Workers          int
	PollInterval     time.Duration
	BatchSize        int
	StuckRowTimeout  time.Duration
	GlobalRPS        float64
	PerGroupRPS      float64
	ForbiddenCooldown time.Duration
}

// Metrics is the narrow recorder surface the notifier drives per dispatch
// attempt; implemented by internal/metrics.Recorder.
type Metrics interface {
	RecordNotifyDispatch(success bool)
	SetQueueDepth(n int64)
}

type Notifier struct {
	store    *sqlstore.Store
	gateway  chat.Gateway
	cfg      Settings
	log      *zap.SugaredLogger
	limiters *limiters
	sentSets *perGroupSets
	metrics  Metrics
	lastPoll atomic.Int64 // unix seconds of the last completed claim cycle
}

func (n *Notifier) Name() string { return "notifier" }

// Healthy reports false if no worker has completed a poll cycle within 3x
// the configured poll interval, the signal C12's watchdog restarts on.
func (n *Notifier) Healthy() bool {
	last := n.lastPoll.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(last, 0)) < 3*n.cfg.PollInterval
}

func New(store *sqlstore.Store, gateway chat.Gateway, cfg Settings, log *zap.SugaredLogger, metrics Metrics) *Notifier {
	return &Notifier{
		store:    store,
		gateway:  gateway,
		cfg:      cfg,
		log:      log,
		limiters: newLimiters(cfg.GlobalRPS, cfg.PerGroupRPS, cfg.ForbiddenCooldown),
		sentSets: newPerGroupSets(1000),
		metrics:  metrics,
	}
}

func (n *Notifier) recordDispatch(success bool) {
	if n.metrics != nil {
		n.metrics.RecordNotifyDispatch(success)
	}
}

// Run drives cfg.Workers worker loops until ctx is cancelled, the supervisor
// task shape C12 expects (§4.7).
func (n *Notifier) Run(ctx context.Context) error {
	workers := n.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go n.workerLoop(ctx, i)
	}
	go n.stuckRowSweep(ctx)
	<-ctx.Done()
	return ctx.Err()
}

func (n *Notifier) workerLoop(ctx context.Context, id int) {
	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := n.store.ClaimPending(ctx, n.cfg.BatchSize)
		if err != nil {
			n.log.Errorw("notifier: claim pending failed", "worker", id, "error", err)
			consecutiveErrors++
		} else {
			consecutiveErrors = 0
			n.lastPoll.Store(time.Now().Unix())
			for _, c := range claimed {
				n.dispatch(ctx, c)
			}
		}

		sleep := n.cfg.PollInterval
		if consecutiveErrors >= 5 {
			sleep = 30 * time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (n *Notifier) stuckRowSweep(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.PollInterval * 100)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reset, err := n.store.RecoverStuckRows(ctx, n.cfg.StuckRowTimeout); err != nil {
				n.log.Errorw("notifier: stuck row recovery failed", "error", err)
			} else if reset > 0 {
				n.log.Infow("notifier: recovered stuck rows", "count", reset)
			}
			if n.metrics != nil {
				if depth, err := n.store.PendingNotificationCount(ctx); err == nil {
					n.metrics.SetQueueDepth(depth)
				}
			}
		}
	}
}

// dispatch renders and sends one claimed notification, applying the
// cooldown/rate-limit/retry policy from §4.4.
func (n *Notifier) dispatch(ctx context.Context, c sqlstore.ClaimedNotification) {
	groupKey := int64(0)
	isGlobal := true
	if c.GroupID != nil {
		groupKey = *c.GroupID
		isGlobal = false
	}

	if n.limiters.inCooldown(groupKey) {
		if err := n.store.MarkFailed(ctx, c.ID, "group in forbidden cooldown"); err != nil {
			n.log.Errorw("notifier: mark failed during cooldown skip", "error", err)
		}
		return
	}

	dedupKey := fmt.Sprintf("%s:%d:%d", c.Type, groupKey, c.ID)
	if !n.sentSets.forGroup(groupKey).addIfNew(dedupKey) {
		if err := n.store.MarkSent(ctx, c.ID); err != nil {
			n.log.Errorw("notifier: mark already-sent dedup", "error", err)
		}
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(c.Payload, &payload); err != nil {
		n.markFailed(ctx, c.ID, fmt.Errorf("decode payload: %w", err))
		return
	}

	if entityID, kind, ok := notifiedEntity(payload); ok && c.GroupID != nil {
		key := models.NotifiedSubmissionKey{PlayerID: c.PlayerID, GroupID: *c.GroupID, Kind: kind, EntityID: entityID}
		wasNotified, err := n.store.WasNotified(ctx, n.store.Pool(), key)
		if err != nil {
			n.log.Errorw("notifier: check notified failed", "error", err)
		} else if wasNotified {
			if err := n.store.MarkSent(ctx, c.ID); err != nil {
				n.log.Errorw("notifier: mark already-notified dedup", "error", err)
			}
			return
		}
	}

	player, err := n.store.PlayerByID(ctx, n.store.Pool(), c.PlayerID)
	if err != nil {
		n.markFailed(ctx, c.ID, fmt.Errorf("load player: %w", err))
		return
	}

	var group *models.Group
	channelID := ""
	if c.GroupID != nil {
		group, err = n.store.Group(ctx, n.store.Pool(), *c.GroupID)
		if err != nil {
			n.markFailed(ctx, c.ID, fmt.Errorf("load group: %w", err))
			return
		}
		channelID = destinationChannel(group, c.Type)
	}
	if channelID == "" {
		n.markFailed(ctx, c.ID, errors.New("no destination channel configured"))
		return
	}

	data := renderData(player, payload)
	tmpl := templateFor(c.Type, group)
	body, fields := render(tmpl, data, isGlobal)
	embed := &chat.Embed{Title: tmpl.Title, Description: body}
	for _, f := range fields {
		embed.Fields = append(embed.Fields, chat.EmbedField{Name: f.Name, Value: f.Template})
	}

	if err := n.limiters.global.Wait(ctx); err != nil {
		n.markFailed(ctx, c.ID, err)
		return
	}
	if err := n.limiters.groupLimiter(groupKey).Wait(ctx); err != nil {
		n.markFailed(ctx, c.ID, err)
		return
	}

	if err := n.sendWithRetry(ctx, channelID, body, embed); err != nil {
		if errors.Is(err, chat.ErrForbidden) {
			n.limiters.setForbidden(groupKey)
		}
		n.recordDispatch(false)
		n.markFailed(ctx, c.ID, err)
		return
	}
	n.recordDispatch(true)

	if err := n.store.MarkSent(ctx, c.ID); err != nil {
		n.log.Errorw("notifier: mark sent failed", "error", err)
	}
	if entityID, kind, ok := notifiedEntity(payload); ok && c.GroupID != nil {
		key := models.NotifiedSubmissionKey{PlayerID: c.PlayerID, GroupID: *c.GroupID, Kind: kind, EntityID: entityID}
		if err := n.store.MarkNotified(ctx, n.store.Pool(), key); err != nil {
			n.log.Errorw("notifier: mark notified failed", "error", err)
		}
	}
}

// sendWithRetry implements §4.4's backoff: honor a server-provided
// retry-after on rate limiting, else min(2^attempt, 15)s plus jitter.
func (n *Notifier) sendWithRetry(ctx context.Context, channelID, text string, embed *chat.Embed) error {
	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_, err := n.gateway.Send(sendCtx, channelID, text, embed)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		var rlErr *chat.RateLimitedError
		if errors.As(err, &rlErr) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rlErr.RetryAfter):
			}
			continue
		}
		if errors.Is(err, chat.ErrForbidden) {
			return err
		}

		backoff := time.Duration(math.Min(math.Pow(2, float64(attempt)), 15)) * time.Second
		jitter := time.Duration(rand.Int63n(int64(time.Second)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return lastErr
}

func (n *Notifier) markFailed(ctx context.Context, id int64, cause error) {
	n.log.Warnw("notifier: dispatch failed", "notification_id", id, "error", cause)
	if err := n.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		n.log.Errorw("notifier: mark failed write failed", "error", err)
	}
}

// destinationChannel maps a notification type to the group's configured
// channel, matching the per-type channel keys in §6.
func destinationChannel(group *models.Group, t models.NotificationType) string {
	key := map[models.NotificationType]string{
		models.NotifyDrop: models.CfgChannelLoot,
		models.NotifyClog: models.CfgChannelClog,
		models.NotifyPB:   models.CfgChannelPB,
		models.NotifyCA:   models.CfgChannelCA,
		models.NotifyPet:  models.CfgChannelPets,
	}[t]
	if key != "" {
		if ch, ok := group.Configuration[key]; ok && ch != "" {
			return ch
		}
	}
	return group.ChatDestID
}

// renderData flattens the player and payload into the flat placeholder map
// the templates substitute against, applying the short-scale suffixer to
// every gp/count-shaped field.
func renderData(player *models.Player, payload map[string]any) map[string]string {
	data := map[string]string{"player_name": player.DisplayName}
	numericFields := map[string]bool{
		"value": true, "total_value": true, "quantity": true, "kill_count": true,
		"player_total_month": true, "group_total_month": true, "points_left": true,
	}
	for k, v := range payload {
		switch val := v.(type) {
		case float64:
			if numericFields[k] {
				data[k] = suffixNumber(int64(val))
			} else {
				data[k] = fmt.Sprintf("%v", val)
			}
		case string:
			data[k] = val
		case bool:
			data[k] = fmt.Sprintf("%v", val)
		default:
			data[k] = fmt.Sprintf("%v", val)
		}
	}
	return data
}

// notifiedEntity extracts the entity id this notification should be recorded
// against in the NotifiedSubmission hard-dedup table, if the payload carries
// one (§4.4 step 3).
func notifiedEntity(payload map[string]any) (id int64, kind models.SubmissionKind, ok bool) {
	for key, k := range map[string]models.SubmissionKind{
		"drop_id": models.KindDrop,
		"clog_id": models.KindCollectionLog,
		"pb_id":   models.KindPersonalBest,
		"ca_id":   models.KindCombatAchievement,
	} {
		if v, present := payload[key]; present {
			if f, isFloat := v.(float64); isFloat {
				return int64(f), k, true
			}
		}
	}
	return 0, "", false
}
