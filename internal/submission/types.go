package submission

import (
	"context"

	"github.com/droptracker-go/pipeline/internal/directory"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

// Processor handles one Submission kind end to end (§4.2, §9 "sealed
// variant"). Pipeline dispatches to the Processor matching sub.Kind.
type Processor interface {
	Process(ctx context.Context, sub models.Submission) (models.Response, error)
}

// Aggregator is the subset of C7 the submission pipeline drives after a
// commit: counter mutation and leaderboard updates for an accepted drop.
type Aggregator interface {
	RecordDrop(ctx context.Context, playerID, npcID, itemID int64, quantity, perItemValue int64, groupIDs []int64) error
}

// Notifications is the subset of C8 the submission pipeline drives: enqueuing
// typed notifications, deduplicated by content hash within a bounded window.
type Notifications interface {
	Enqueue(ctx context.Context, q sqlstore.PgPool, n models.Notification) error
}

// skeleton holds the dependencies and shared steps (§4.2 steps 1-4, 6) common
// to every processor; each kind-specific Processor embeds it.
type skeleton struct {
	store  *sqlstore.Store
	dir    *directory.Client
	agg    Aggregator
	notify Notifications
	cfg    Settings
	dedup  map[models.SubmissionKind]*dedupRing
}

// Settings carries the runtime-tunable numbers the skeleton and per-kind
// bodies need (point divisor, high-value threshold default, etc.), sourced
// from internal/config.Config.
type Settings struct {
	PointDivisor        int64
	HighValueThreshold  int64
	HighValueVerifyOver int64
}
