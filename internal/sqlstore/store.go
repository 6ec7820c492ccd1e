// Package sqlstore implements C2, durable entity storage for players,
// groups, items, NPCs, submissions, and notifications, backed by Postgres
// via pgx. Session handling follows spec.md §4.2 step 1: methods that take a
// PgPool run on whatever the caller passes, either the pool itself (each
// statement commits on its own) or a transaction obtained from Begin, which
// Store never commits.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/droptracker-go/pipeline/internal/models"
)

// PgPool is the narrow surface Store needs from a pool or an in-flight
// transaction, matching the teacher's internal/logic/interfaces.go PgPool.
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ErrNotFound is returned by lookups that found no matching row.
var ErrNotFound = errors.New("sqlstore: not found")

// Store wraps a pgxpool.Pool. Methods that take a PgPool argument run on it,
// so the six submission processors can share one transaction across entity
// resolution, row insert, and points credit; the other methods run on the
// pool directly.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Begin opens a new transaction. The caller must Commit or Rollback; Store
// methods taking a PgPool never commit a session they did not open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Players ---------------------------------------------------------------

func (s *Store) PlayerByName(ctx context.Context, q PgPool, name string) (*models.Player, error) {
	row := q.QueryRow(ctx, `SELECT id, directory_id, display_name, account_hash, owning_user_id, last_refreshed
		FROM players WHERE lower(display_name) = lower($1)`, name)
	return scanPlayer(row)
}

func (s *Store) PlayerByID(ctx context.Context, q PgPool, id int64) (*models.Player, error) {
	row := q.QueryRow(ctx, `SELECT id, directory_id, display_name, account_hash, owning_user_id, last_refreshed
		FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.DirectoryID, &p.DisplayName, &p.AccountHash, &p.OwningUserID, &p.LastRefreshed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: scan player: %w", err)
	}
	return &p, nil
}

// InsertPlayer creates a new player row, accepting the client's first-bind
// account hash (§4.2 step 3/4).
func (s *Store) InsertPlayer(ctx context.Context, q PgPool, p *models.Player) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO players (directory_id, display_name, account_hash, last_refreshed)
		VALUES ($1, $2, $3, now()) RETURNING id`, p.DirectoryID, p.DisplayName, p.AccountHash).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: insert player: %w", err)
	}
	return id, nil
}

// UpdatePlayerName renames a player, the display-name-change half of §3's
// name-change invariant (the notification is enqueued by the caller).
func (s *Store) UpdatePlayerName(ctx context.Context, q PgPool, playerID int64, newName string) error {
	_, err := q.Exec(ctx, `UPDATE players SET display_name = $2 WHERE id = $1`, playerID, newName)
	if err != nil {
		return fmt.Errorf("sqlstore: update player name: %w", err)
	}
	return nil
}

// LatchAccountHash binds the account hash on first sight (stored hash was
// empty), per §4.2 step 4.
func (s *Store) LatchAccountHash(ctx context.Context, q PgPool, playerID int64, hash string) error {
	_, err := q.Exec(ctx, `UPDATE players SET account_hash = $2 WHERE id = $1 AND account_hash = ''`, playerID, hash)
	if err != nil {
		return fmt.Errorf("sqlstore: latch account hash: %w", err)
	}
	return nil
}

// StalestPlayers returns up to limit players ordered by oldest last_refreshed
// first, the batch the player-refresh loop works through each tick.
func (s *Store) StalestPlayers(ctx context.Context, limit int) ([]*models.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, directory_id, display_name, account_hash, owning_user_id, last_refreshed
		FROM players ORDER BY last_refreshed ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: stalest players: %w", err)
	}
	defer rows.Close()

	var out []*models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.DirectoryID, &p.DisplayName, &p.AccountHash, &p.OwningUserID, &p.LastRefreshed); err != nil {
			return nil, fmt.Errorf("sqlstore: scan stalest player: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// TouchRefreshed stamps last_refreshed to now, marking the player as freshly
// checked even if its display name did not change.
func (s *Store) TouchRefreshed(ctx context.Context, playerID int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE players SET last_refreshed = now() WHERE id = $1`, playerID)
	if err != nil {
		return fmt.Errorf("sqlstore: touch refreshed: %w", err)
	}
	return nil
}

// PlayerGroups returns every group id the player belongs to, plus the
// reserved global group (§3 "transitively contains every player").
func (s *Store) PlayerGroups(ctx context.Context, q PgPool, playerID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT group_id FROM group_members WHERE player_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: player groups: %w", err)
	}
	defer rows.Close()

	ids := []int64{models.GlobalGroupID}
	for rows.Next() {
		var gid int64
		if err := rows.Scan(&gid); err != nil {
			return nil, fmt.Errorf("sqlstore: scan group id: %w", err)
		}
		if gid != models.GlobalGroupID {
			ids = append(ids, gid)
		}
	}
	return ids, rows.Err()
}

// GroupMembers returns every player id belonging to groupID; for the
// reserved global group it returns every known player.
func (s *Store) GroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	var rows pgx.Rows
	var err error
	if groupID == models.GlobalGroupID {
		rows, err = s.pool.Query(ctx, `SELECT id FROM players`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT player_id FROM group_members WHERE group_id = $1`, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: group members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlstore: scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Groups ------------------------------------------------------------

func (s *Store) Group(ctx context.Context, q PgPool, id int64) (*models.Group, error) {
	row := q.QueryRow(ctx, `SELECT id, display_name, directory_id, chat_dest_id FROM groups WHERE id = $1`, id)
	g := &models.Group{Configuration: map[string]string{}}
	if err := row.Scan(&g.ID, &g.DisplayName, &g.DirectoryID, &g.ChatDestID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: scan group: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT key, value FROM group_configurations WHERE group_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: group config: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlstore: scan group config: %w", err)
		}
		g.Configuration[k] = v
	}
	return g, rows.Err()
}

// --- Items / NPCs --------------------------------------------------------

func (s *Store) ItemByName(ctx context.Context, q PgPool, name string) (*models.Item, error) {
	row := q.QueryRow(ctx, `SELECT id, name FROM items WHERE lower(name) = lower($1)`, name)
	var it models.Item
	if err := row.Scan(&it.ID, &it.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: scan item: %w", err)
	}
	return &it, nil
}

func (s *Store) InsertItem(ctx context.Context, q PgPool, id int64, name string) error {
	_, err := q.Exec(ctx, `INSERT INTO items (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, name)
	if err != nil {
		return fmt.Errorf("sqlstore: insert item: %w", err)
	}
	return nil
}

func (s *Store) NPCByName(ctx context.Context, q PgPool, name string) (*models.NPC, error) {
	row := q.QueryRow(ctx, `SELECT id, name FROM npcs WHERE lower(name) = lower($1)`, name)
	var n models.NPC
	if err := row.Scan(&n.ID, &n.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: scan npc: %w", err)
	}
	return &n, nil
}

func (s *Store) InsertNPC(ctx context.Context, q PgPool, id int64, name string) error {
	_, err := q.Exec(ctx, `INSERT INTO npcs (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, name)
	if err != nil {
		return fmt.Errorf("sqlstore: insert npc: %w", err)
	}
	return nil
}

// --- Idempotency (§4.2 step 2) -------------------------------------------

// RecentUniqueID reports whether uniqueID already exists in any of the four
// submission tables within the last hour (the dedup policy window).
func (s *Store) RecentUniqueID(ctx context.Context, q PgPool, uniqueID string) (bool, error) {
	const window = time.Hour
	since := time.Now().Add(-window)
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(
		SELECT 1 FROM drops WHERE unique_id = $1 AND date_added >= $2
		UNION ALL
		SELECT 1 FROM collection_log_entries WHERE unique_id = $1 AND date_added >= $2
		UNION ALL
		SELECT 1 FROM combat_achievement_entries WHERE unique_id = $1 AND date_added >= $2
		UNION ALL
		SELECT 1 FROM player_pets WHERE unique_id = $1 AND date_added >= $2
	)`, uniqueID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlstore: recent unique id check: %w", err)
	}
	return exists, nil
}

// CheckSubmission backs the /check idempotency probe (§4.1, §6): searches all
// four tables for unique_id within 12 hours.
func (s *Store) CheckSubmission(ctx context.Context, q PgPool, uniqueID string) (kind models.SubmissionKind, id int64, found bool, err error) {
	const window = 12 * time.Hour
	since := time.Now().Add(-window)

	type probe struct {
		kind  models.SubmissionKind
		table string
	}
	for _, p := range []probe{
		{models.KindDrop, "drops"},
		{models.KindCollectionLog, "collection_log_entries"},
		{models.KindCombatAchievement, "combat_achievement_entries"},
		{models.KindPet, "player_pets"},
	} {
		row := q.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE unique_id = $1 AND date_added >= $2`, p.table), uniqueID, since)
		var rowID int64
		if scanErr := row.Scan(&rowID); scanErr == nil {
			return p.kind, rowID, true, nil
		} else if !errors.Is(scanErr, pgx.ErrNoRows) {
			return "", 0, false, fmt.Errorf("sqlstore: check submission %s: %w", p.table, scanErr)
		}
	}
	return "", 0, false, nil
}

// --- Drop row --------------------------------------------------------------

func (s *Store) InsertDrop(ctx context.Context, q PgPool, d *models.DropRow) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO drops (unique_id, used_api, date_added, player_id, npc_id, item_id, quantity, value, total_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		d.UniqueID, d.UsedAPI, d.DateAdded, d.PlayerID, d.NPCID, d.ItemID, d.Quantity, d.Value, d.TotalValue).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: insert drop: %w", err)
	}
	return id, nil
}

// --- CollectionLogEntry (upsert per (player, item), §4.2) -------------------

// UpsertCollectionLogEntry inserts the row if new and reports isNew so the
// caller can gate the points/notification side effects on first sight.
func (s *Store) UpsertCollectionLogEntry(ctx context.Context, q PgPool, e *models.CollectionLogEntryRow) (id int64, isNew bool, err error) {
	err = q.QueryRow(ctx, `INSERT INTO collection_log_entries (unique_id, used_api, date_added, player_id, item_id, collection_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, item_id) DO NOTHING
		RETURNING id`,
		e.UniqueID, e.UsedAPI, e.DateAdded, e.PlayerID, e.ItemID, e.CollectionName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row already existed; fetch its id.
		err2 := q.QueryRow(ctx, `SELECT id FROM collection_log_entries WHERE player_id = $1 AND item_id = $2`,
			e.PlayerID, e.ItemID).Scan(&id)
		if err2 != nil {
			return 0, false, fmt.Errorf("sqlstore: fetch existing clog entry: %w", err2)
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlstore: upsert clog entry: %w", err)
	}
	return id, true, nil
}

// --- PersonalBestEntry (upsert by (player, npc, team_size), §3/§4.2) --------

func (s *Store) PersonalBest(ctx context.Context, q PgPool, playerID, npcID int64, teamSize int) (*models.PersonalBestEntryRow, error) {
	row := q.QueryRow(ctx, `SELECT id, player_id, npc_id, team_size, personal_best_ms, kill_time_ms, kill_count, last_unique_id, last_used_api, last_date_added
		FROM personal_best_entries WHERE player_id = $1 AND npc_id = $2 AND team_size = $3`, playerID, npcID, teamSize)
	var e models.PersonalBestEntryRow
	if err := row.Scan(&e.ID, &e.PlayerID, &e.NPCID, &e.TeamSize, &e.PersonalBestMs, &e.KillTimeMs, &e.KillCount,
		&e.LastUniqueID, &e.LastUsedAPI, &e.LastDateAdded); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlstore: scan pb entry: %w", err)
	}
	return &e, nil
}

// UpsertPersonalBest inserts or updates the row; personal_best_ms only ever
// decreases (monotone invariant, §8 property 2). Returns isNewBest and the
// kill count after this submission, so the caller can gate the 50-kill point
// award without a second round trip.
func (s *Store) UpsertPersonalBest(ctx context.Context, q PgPool, e *models.PersonalBestEntryRow) (isNewBest bool, killCount int64, err error) {
	var newBest int64
	var prevBest *int64
	err = q.QueryRow(ctx, `WITH prev AS (
			SELECT personal_best_ms FROM personal_best_entries
			WHERE player_id = $1 AND npc_id = $2 AND team_size = $3
		)
		INSERT INTO personal_best_entries
			(player_id, npc_id, team_size, personal_best_ms, kill_time_ms, kill_count, last_unique_id, last_used_api, last_date_added)
		VALUES ($1, $2, $3, $4, $4, 1, $5, $6, $7)
		ON CONFLICT (player_id, npc_id, team_size) DO UPDATE SET
			personal_best_ms = LEAST(personal_best_entries.personal_best_ms, EXCLUDED.kill_time_ms),
			kill_time_ms = EXCLUDED.kill_time_ms,
			kill_count = personal_best_entries.kill_count + 1,
			last_unique_id = EXCLUDED.last_unique_id,
			last_used_api = EXCLUDED.last_used_api,
			last_date_added = EXCLUDED.last_date_added
		RETURNING personal_best_ms, kill_count, (SELECT personal_best_ms FROM prev)`,
		e.PlayerID, e.NPCID, e.TeamSize, e.KillTimeMs, e.LastUniqueID, e.LastUsedAPI, e.LastDateAdded).Scan(&newBest, &killCount, &prevBest)
	if err != nil {
		return false, 0, fmt.Errorf("sqlstore: upsert pb entry: %w", err)
	}
	// A tie against the previously stored best is not a new best (§4.2): only
	// a strict improvement, or the row's first-ever insert, counts.
	isNewBest = prevBest == nil || newBest < *prevBest
	return isNewBest, killCount, nil
}

// --- CombatAchievementEntry (idempotent per (player, task_name)) -----------

func (s *Store) InsertCombatAchievement(ctx context.Context, q PgPool, e *models.CombatAchievementEntryRow) (id int64, isNew bool, err error) {
	err = q.QueryRow(ctx, `INSERT INTO combat_achievement_entries (unique_id, used_api, date_added, player_id, task_name, tier)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, task_name) DO NOTHING
		RETURNING id`,
		e.UniqueID, e.UsedAPI, e.DateAdded, e.PlayerID, e.TaskName, e.Tier).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err2 := q.QueryRow(ctx, `SELECT id FROM combat_achievement_entries WHERE player_id = $1 AND task_name = $2`,
			e.PlayerID, e.TaskName).Scan(&id)
		if err2 != nil {
			return 0, false, fmt.Errorf("sqlstore: fetch existing ca entry: %w", err2)
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlstore: insert ca entry: %w", err)
	}
	return id, true, nil
}

// --- PlayerPet (idempotent per (player, item_id)) --------------------------

func (s *Store) InsertPlayerPet(ctx context.Context, q PgPool, e *models.PlayerPetRow) (id int64, isNew bool, err error) {
	err = q.QueryRow(ctx, `INSERT INTO player_pets (unique_id, used_api, date_added, player_id, item_id, source_npc, duplicate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (player_id, item_id) DO NOTHING
		RETURNING id`,
		e.UniqueID, e.UsedAPI, e.DateAdded, e.PlayerID, e.ItemID, e.SourceNPC, e.Duplicate).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err2 := q.QueryRow(ctx, `SELECT id FROM player_pets WHERE player_id = $1 AND item_id = $2`,
			e.PlayerID, e.ItemID).Scan(&id)
		if err2 != nil {
			return 0, false, fmt.Errorf("sqlstore: fetch existing pet row: %w", err2)
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlstore: insert pet row: %w", err)
	}
	return id, true, nil
}

// --- Points ledger (§3, §4.2) ------------------------------------------

func (s *Store) CreditPoints(ctx context.Context, q PgPool, c *models.PointsCredit) error {
	_, err := q.Exec(ctx, `INSERT INTO points_credits (player_id, amount, granted_at, expires_at, reason)
		VALUES ($1, $2, $3, $4, $5)`, c.PlayerID, c.Amount, c.GrantedAt, c.ExpiresAt, c.Reason)
	if err != nil {
		return fmt.Errorf("sqlstore: credit points: %w", err)
	}
	return nil
}

// PointsBalance is Σ non-expired credits − Σ debits (§3).
func (s *Store) PointsBalance(ctx context.Context, q PgPool, playerID int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `SELECT
			COALESCE((SELECT SUM(amount) FROM points_credits WHERE player_id = $1 AND (expires_at IS NULL OR expires_at > now())), 0) -
			COALESCE((SELECT SUM(amount) FROM points_debits WHERE player_id = $1), 0)`, playerID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: points balance: %w", err)
	}
	return balance, nil
}

// --- Notification queue (§4.4, §6) --------------------------------------

func (s *Store) EnqueueNotification(ctx context.Context, q PgPool, n *models.Notification, payloadJSON []byte) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO notify_queue (type, player_id, group_id, payload, status)
		VALUES ($1, $2, $3, $4, 'pending') RETURNING id`,
		n.Type, n.PlayerID, n.GroupID, payloadJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: enqueue notification: %w", err)
	}
	return id, nil
}

// ClaimPending fetches up to limit pending rows ordered by created_at ASC and
// atomically transitions each to processing via SKIP LOCKED, the idiomatic
// pgx equivalent of the row-scoped claim in §4.4 steps 1-2.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]ClaimedNotification, error) {
	rows, err := s.pool.Query(ctx, `UPDATE notify_queue SET status = 'processing'
		WHERE id IN (
			SELECT id FROM notify_queue WHERE status = 'pending'
			ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
		)
		RETURNING id, type, player_id, group_id, payload`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: claim pending notifications: %w", err)
	}
	defer rows.Close()

	var claimed []ClaimedNotification
	for rows.Next() {
		var c ClaimedNotification
		if err := rows.Scan(&c.ID, &c.Type, &c.PlayerID, &c.GroupID, &c.Payload); err != nil {
			return nil, fmt.Errorf("sqlstore: scan claimed notification: %w", err)
		}
		claimed = append(claimed, c)
	}
	return claimed, rows.Err()
}

// ClaimedNotification is a row transitioned to processing by ClaimPending.
type ClaimedNotification struct {
	ID       int64
	Type     models.NotificationType
	PlayerID int64
	GroupID  *int64
	Payload  []byte
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE notify_queue SET status = 'sent', processed_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: mark notification sent: %w", err)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE notify_queue SET status = 'failed', processed_at = now(), error = $2 WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("sqlstore: mark notification failed: %w", err)
	}
	return nil
}

// RecoverStuckRows resets rows in processing back to pending once their
// created_at is older than timeout (§4.4 "Stuck-row recovery"). The queue
// records no claim time, so the age is measured from enqueue, not from when
// the row entered processing.
func (s *Store) RecoverStuckRows(ctx context.Context, timeout time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notify_queue SET status = 'pending'
		WHERE status = 'processing' AND processed_at IS NULL AND created_at < $1`, time.Now().Add(-timeout))
	if err != nil {
		return 0, fmt.Errorf("sqlstore: recover stuck rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PendingNotificationCount reports the current notify_queue backlog, sampled
// periodically for the queue-depth gauge.
func (s *Store) PendingNotificationCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notify_queue WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: pending notification count: %w", err)
	}
	return n, nil
}

// WasNotified checks the hard-dedup NotifiedSubmission table (§4.4 step 3).
func (s *Store) WasNotified(ctx context.Context, q PgPool, key models.NotifiedSubmissionKey) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM notified_submissions
		WHERE player_id = $1 AND group_id = $2 AND kind = $3 AND entity_id = $4)`,
		key.PlayerID, key.GroupID, key.Kind, key.EntityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlstore: was notified: %w", err)
	}
	return exists, nil
}

func (s *Store) MarkNotified(ctx context.Context, q PgPool, key models.NotifiedSubmissionKey) error {
	_, err := q.Exec(ctx, `INSERT INTO notified_submissions (player_id, group_id, kind, entity_id)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`, key.PlayerID, key.GroupID, key.Kind, key.EntityID)
	if err != nil {
		return fmt.Errorf("sqlstore: mark notified: %w", err)
	}
	return nil
}

// --- Hall-of-Fame message placement (§4.5) ------------------------------

func (s *Store) HoFMessage(ctx context.Context, groupID, npcID int64) (messageID, channelID string, found bool, err error) {
	row := s.pool.QueryRow(ctx, `SELECT message_id, channel_id FROM hof_messages WHERE group_id = $1 AND npc_id = $2`, groupID, npcID)
	if err := row.Scan(&messageID, &channelID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("sqlstore: scan hof message: %w", err)
	}
	return messageID, channelID, true, nil
}

func (s *Store) SetHoFMessage(ctx context.Context, groupID, npcID int64, messageID, channelID string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO hof_messages (group_id, npc_id, message_id, channel_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (group_id, npc_id) DO UPDATE SET message_id = $3, channel_id = $4, updated_at = now()`,
		groupID, npcID, messageID, channelID)
	if err != nil {
		return fmt.Errorf("sqlstore: set hof message: %w", err)
	}
	return nil
}

// --- Claim codes (§3.1) -------------------------------------------------

func (s *Store) InsertClaimCode(ctx context.Context, code string, playerID int64, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO claim_codes (code, player_id, expires_at) VALUES ($1, $2, $3)`,
		code, playerID, expiresAt)
	if err != nil {
		return fmt.Errorf("sqlstore: insert claim code: %w", err)
	}
	return nil
}

// ClaimCode resolves an unclaimed, unexpired code to its bound player and
// marks it claimed by claimedBy (a chat user id).
func (s *Store) ClaimCode(ctx context.Context, code, claimedBy string) (playerID int64, err error) {
	err = s.pool.QueryRow(ctx, `UPDATE claim_codes SET claimed_by = $2, claimed_at = now()
		WHERE code = $1 AND claimed_by IS NULL AND expires_at > now()
		RETURNING player_id`, code, claimedBy).Scan(&playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("sqlstore: claim code: %w", err)
	}
	return playerID, nil
}

// --- Hall-of-Fame content assembly (§4.5) -------------------------------

// TopLootByNPC returns the top limit players of groupID by total drop value
// from npcID, for the Hall-of-Fame overview's loot leaderboard.
func (s *Store) TopLootByNPC(ctx context.Context, groupID, npcID int64, limit int) ([]LootRanking, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.display_name, SUM(d.total_value) AS total
		FROM drops d
		JOIN players p ON p.id = d.player_id
		JOIN group_members gm ON gm.player_id = d.player_id AND gm.group_id = $1
		WHERE d.npc_id = $2
		GROUP BY p.display_name
		ORDER BY total DESC
		LIMIT $3`, groupID, npcID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: top loot by npc: %w", err)
	}
	defer rows.Close()

	var out []LootRanking
	for rows.Next() {
		var r LootRanking
		if err := rows.Scan(&r.PlayerName, &r.TotalValue); err != nil {
			return nil, fmt.Errorf("sqlstore: scan loot ranking: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopPersonalBests returns the top limit personal-best entries of groupID at
// npcID and teamSize, fastest time first.
func (s *Store) TopPersonalBests(ctx context.Context, groupID, npcID int64, teamSize, limit int) ([]PBRanking, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.display_name, pb.personal_best_ms, pb.kill_count
		FROM personal_best_entries pb
		JOIN players p ON p.id = pb.player_id
		JOIN group_members gm ON gm.player_id = pb.player_id AND gm.group_id = $1
		WHERE pb.npc_id = $2 AND pb.team_size = $3
		ORDER BY pb.personal_best_ms ASC
		LIMIT $4`, groupID, npcID, teamSize, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: top personal bests: %w", err)
	}
	defer rows.Close()

	var out []PBRanking
	for rows.Next() {
		var r PBRanking
		if err := rows.Scan(&r.PlayerName, &r.PersonalBestMs, &r.KillCount); err != nil {
			return nil, fmt.Errorf("sqlstore: scan pb ranking: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DistinctTeamSizes returns the team sizes with at least one recorded
// personal best against npcID within groupID, largest first, capped at max.
func (s *Store) DistinctTeamSizes(ctx context.Context, groupID, npcID int64, max int) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT pb.team_size
		FROM personal_best_entries pb
		JOIN group_members gm ON gm.player_id = pb.player_id AND gm.group_id = $1
		WHERE pb.npc_id = $2
		ORDER BY pb.team_size DESC
		LIMIT $3`, groupID, npcID, max)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: distinct team sizes: %w", err)
	}
	defer rows.Close()

	var sizes []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlstore: scan team size: %w", err)
		}
		sizes = append(sizes, n)
	}
	return sizes, rows.Err()
}

// AllGroupIDs returns every group id, including the reserved global group.
func (s *Store) AllGroupIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: all group ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlstore: scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NPCNameByID resolves an npc id to its display name.
func (s *Store) NPCNameByID(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT name FROM npcs WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("sqlstore: npc name by id: %w", err)
	}
	return name, nil
}

type LootRanking struct {
	PlayerName string
	TotalValue int64
}

type PBRanking struct {
	PlayerName     string
	PersonalBestMs int64
	KillCount      int64
}
