package submission

import (
	"context"
	"fmt"

	"github.com/droptracker-go/pipeline/internal/directory"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

// Pipeline dispatches each Submission to the Processor matching its Kind,
// modeling spec.md §9's sealed variant over a Go interface.
type Pipeline struct {
	processors map[models.SubmissionKind]Processor
}

// New builds the full set of six processors sharing one skeleton.
func New(store *sqlstore.Store, dir *directory.Client, agg Aggregator, notify Notifications, cfg Settings) *Pipeline {
	s := newSkeleton(store, dir, agg, notify, cfg)
	return &Pipeline{
		processors: map[models.SubmissionKind]Processor{
			models.KindDrop:              NewDropProcessor(s),
			models.KindCollectionLog:     NewCollectionLogProcessor(s),
			models.KindPersonalBest:      NewPersonalBestProcessor(s),
			models.KindCombatAchievement: NewCombatAchievementProcessor(s),
			models.KindPet:               NewPetProcessor(s),
			models.KindAdventureLog:      NewAdventureLogProcessor(s),
		},
	}
}

// Process routes sub to its kind's processor and returns that processor's
// response and error unchanged; an unknown kind yields a failure envelope
// with a nil error. Error policy (§4.2 "Commit and return") is applied by the
// webhook handler: ErrDuplicate counts as success, ErrAuthFailed is dropped
// silently, and other errors are reported in a 200 body, never a 5xx.
func (p *Pipeline) Process(ctx context.Context, sub models.Submission) (models.Response, error) {
	proc, ok := p.processors[sub.Kind]
	if !ok {
		return models.Response{Success: false, Message: fmt.Sprintf("unknown submission kind %q", sub.Kind)}, nil
	}
	return proc.Process(ctx, sub)
}
