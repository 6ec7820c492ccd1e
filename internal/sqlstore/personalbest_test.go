package sqlstore

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/droptracker-go/pipeline/internal/models"
)

// fakeRow scripts a single QueryRow().Scan() call's output, standing in for
// the one row Postgres would return from the RETURNING clause.
type fakeRow struct {
	newBest   int64
	killCount int64
	prevBest  *int64
	err       error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.newBest
	*(dest[1].(*int64)) = r.killCount
	*(dest[2].(**int64)) = r.prevBest
	return nil
}

// fakePgPool implements PgPool against a scripted queue of rows, with no
// real Postgres connection — the seam sqlstore.Store's business methods
// already accept as a parameter.
type fakePgPool struct {
	rows []fakeRow
	next int
}

func (f *fakePgPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.next >= len(f.rows) {
		panic("fakePgPool: more QueryRow calls than scripted rows")
	}
	r := f.rows[f.next]
	f.next++
	return r
}

func (f *fakePgPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("fakePgPool: Query not used by this test")
}

func (f *fakePgPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("fakePgPool: Exec not used by this test")
}

func int64Ptr(n int64) *int64 { return &n }

func pbEntry(killTimeMs int64) *models.PersonalBestEntryRow {
	return &models.PersonalBestEntryRow{
		PlayerID:     1,
		NPCID:        2,
		TeamSize:     1,
		KillTimeMs:   killTimeMs,
		LastUniqueID: "u1",
		LastUsedAPI:  true,
	}
}

// inv.2: the stored personal_best(p,n,t) equals the min over all
// non-rejected times ever seen. isNewBest must only be true on a strict
// improvement over the prior stored value, never on a tie or a regression.
func TestUpsertPersonalBest_IsNewBestOnlyOnStrictImprovement(t *testing.T) {
	store := &Store{}

	cases := []struct {
		name        string
		submitMs    int64
		row         fakeRow
		wantNewBest bool
	}{
		{
			name:        "first ever insert, no prior row",
			submitMs:    180000,
			row:         fakeRow{newBest: 180000, killCount: 1, prevBest: nil},
			wantNewBest: true,
		},
		{
			name:        "strict improvement over prior best",
			submitMs:    170000,
			row:         fakeRow{newBest: 170000, killCount: 2, prevBest: int64Ptr(175000)},
			wantNewBest: true,
		},
		{
			name:        "exact tie resubmission must not count as new best",
			submitMs:    170000,
			row:         fakeRow{newBest: 170000, killCount: 3, prevBest: int64Ptr(170000)},
			wantNewBest: false,
		},
		{
			name:        "slower time than stored best must not count as new best",
			submitMs:    172000,
			row:         fakeRow{newBest: 170000, killCount: 4, prevBest: int64Ptr(170000)}, // LEAST() keeps existing best
			wantNewBest: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pool := &fakePgPool{rows: []fakeRow{tc.row}}
			isNewBest, killCount, err := store.UpsertPersonalBest(context.Background(), pool, pbEntry(tc.submitMs))
			if err != nil {
				t.Fatalf("UpsertPersonalBest: %v", err)
			}
			if isNewBest != tc.wantNewBest {
				t.Fatalf("isNewBest = %v, want %v", isNewBest, tc.wantNewBest)
			}
			if killCount != tc.row.killCount {
				t.Fatalf("killCount = %d, want %d", killCount, tc.row.killCount)
			}
		})
	}
}

// S4: a burst of three submissions (180000, 175000, 170000) followed by a
// fourth slower submission (172000) must leave exactly the 170000 row
// stored as the best, with only the strict improvements flagged as new.
func TestScenario_PBBurstConvergesToFastestTime(t *testing.T) {
	store := &Store{}
	pool := &fakePgPool{rows: []fakeRow{
		{newBest: 180000, killCount: 1, prevBest: nil},
		{newBest: 175000, killCount: 2, prevBest: int64Ptr(180000)},
		{newBest: 170000, killCount: 3, prevBest: int64Ptr(175000)},
		{newBest: 170000, killCount: 4, prevBest: int64Ptr(170000)},
	}}

	submissions := []int64{180000, 175000, 170000, 172000}
	wantIsNewBest := []bool{true, true, true, false}

	for i, ms := range submissions {
		isNewBest, _, err := store.UpsertPersonalBest(context.Background(), pool, pbEntry(ms))
		if err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
		if isNewBest != wantIsNewBest[i] {
			t.Fatalf("submission %d (%dms): isNewBest = %v, want %v", i, ms, isNewBest, wantIsNewBest[i])
		}
	}

	final := pool.rows[len(pool.rows)-1]
	if final.newBest != 170000 {
		t.Fatalf("final stored best = %d, want 170000", final.newBest)
	}
}
