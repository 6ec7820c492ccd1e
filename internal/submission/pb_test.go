package submission

import (
	"testing"

	"github.com/droptracker-go/pipeline/internal/models"
)

func sub(teamSize int, timeMs int64) models.Submission {
	return models.Submission{Kind: models.KindPersonalBest, PlayerName: "p", NPCName: "Theatre of Blood", TeamSize: teamSize, TimeMs: timeMs}
}

func TestPickBurstWinner_PrefersLargerTeamSize(t *testing.T) {
	candidates := []models.Submission{sub(2, 300000), sub(4, 310000)}
	winner := pickBurstWinner(candidates)
	if winner.TeamSize != 4 {
		t.Fatalf("winner team size = %d, want 4", winner.TeamSize)
	}
}

func TestPickBurstWinner_TiesBrokenByLowestTime(t *testing.T) {
	candidates := []models.Submission{sub(4, 180000), sub(4, 170000), sub(4, 175000)}
	winner := pickBurstWinner(candidates)
	if winner.TimeMs != 170000 {
		t.Fatalf("winner time = %d, want 170000", winner.TimeMs)
	}
}

// S4: a 4-player Tombs of Amascut Expert burst of 180000/175000/170000ms
// within the buffering window must resolve to the 170000ms submission.
func TestScenario_PBBurstPicksFastestTimeWithinWindow(t *testing.T) {
	candidates := []models.Submission{sub(4, 180000), sub(4, 175000), sub(4, 170000)}
	winner := pickBurstWinner(candidates)
	if winner.TeamSize != 4 || winner.TimeMs != 170000 {
		t.Fatalf("winner = team %d / %dms, want team 4 / 170000ms", winner.TeamSize, winner.TimeMs)
	}

	// A later submission arriving after the window has already resolved
	// (t=11s, 172000ms) is slower than the stored 170000ms best and must not
	// win a new burst comparison against it.
	late := sub(4, 172000)
	secondWinner := pickBurstWinner([]models.Submission{late})
	if secondWinner.TimeMs != 172000 {
		t.Fatalf("a lone late submission resolves to itself, got %dms", secondWinner.TimeMs)
	}
	if secondWinner.TimeMs <= winner.TimeMs {
		t.Fatalf("sanity: late submission (%dms) should be slower than stored best (%dms)", secondWinner.TimeMs, winner.TimeMs)
	}
}
