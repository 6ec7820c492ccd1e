// Package notifyqueue implements C8: a durable Postgres-backed pending queue
// with content-hash dedup against a bounded recent-set in the KV store,
// modeled on the teacher's two-layer dedup (in-process ring plus a backing
// store check) used for submission dedup.
package notifyqueue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/droptracker-go/pipeline/internal/kvstore"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

// recentSetSize bounds the per-group "recently enqueued" dedup set (§4.4).
const recentSetSize = 100

// recentSetTTL bounds how long a content hash guards against a re-enqueue.
const recentSetTTL = 10 * time.Minute

type Queue struct {
	kv *kvstore.Client
}

func New(kv *kvstore.Client) *Queue {
	return &Queue{kv: kv}
}

// Enqueue implements submission.Notifications. It hashes the notification's
// identity (type, player, group, payload) and silently drops a re-enqueue
// seen within recentSetTTL, then inserts a pending row via q.
func (q *Queue) Enqueue(ctx context.Context, pgq sqlstore.PgPool, n models.Notification) error {
	hash, err := contentHash(n)
	if err != nil {
		return fmt.Errorf("notifyqueue: hash notification: %w", err)
	}

	groupKey := int64(0)
	if n.GroupID != nil {
		groupKey = *n.GroupID
	}
	dedupKey := q.kv.MetricsAll(fmt.Sprintf("notify_recent:%d", groupKey))
	seen, err := q.kv.SIsMember(ctx, dedupKey, hash)
	if err != nil {
		return fmt.Errorf("notifyqueue: dedup probe: %w", err)
	}
	if seen {
		return nil
	}

	payloadJSON, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("notifyqueue: encode payload: %w", err)
	}

	var id int64
	err = pgq.QueryRow(ctx, `INSERT INTO notify_queue (type, player_id, group_id, payload, status)
		VALUES ($1, $2, $3, $4, 'pending') RETURNING id`,
		n.Type, n.PlayerID, n.GroupID, payloadJSON).Scan(&id)
	if err != nil {
		return fmt.Errorf("notifyqueue: insert: %w", err)
	}

	if err := q.kv.SAddRecent(ctx, dedupKey, hash, recentSetSize, recentSetTTL); err != nil {
		return fmt.Errorf("notifyqueue: record dedup hash: %w", err)
	}
	return nil
}

func contentHash(n models.Notification) (string, error) {
	payloadJSON, err := json.Marshal(n.Payload)
	if err != nil {
		return "", err
	}
	group := int64(0)
	if n.GroupID != nil {
		group = *n.GroupID
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s", n.Type, n.PlayerID, group, payloadJSON)))
	return hex.EncodeToString(sum[:]), nil
}
