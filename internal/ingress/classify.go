package ingress

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/droptracker-go/pipeline/internal/models"
)

// webhookPayload mirrors a chat-webhook-shaped JSON body: an optional text
// body plus zero or more embeds, each becoming its own Submission (§4.1).
type webhookPayload struct {
	Content string          `json:"content"`
	Embeds  []webhookEmbed  `json:"embeds"`
}

type webhookEmbed struct {
	Title  string              `json:"title"`
	Fields []webhookEmbedField `json:"fields"`
}

type webhookEmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// droppedEmbedTypes are silently ignored per §4.1's parsing rule.
var droppedEmbedTypes = map[string]bool{
	"experience_update":   true,
	"experience_milestone": true,
	"level_up":            true,
	"quest_completion":    true,
}

// classify turns one embed's flattened fields into a Submission, or reports
// ok=false if the embed should be silently dropped (§4.1).
func classify(fields models.EmbedFields, title string) (models.Submission, bool) {
	typeHint := strings.ToLower(fields["type"])
	sourceType := strings.ToLower(fields["source_type"])
	if droppedEmbedTypes[typeHint] || sourceType == "loot chest" {
		return models.Submission{}, false
	}

	kind, ok := inferKind(typeHint, title)
	if !ok {
		return models.Submission{}, false
	}

	sub := models.Submission{Kind: kind, SubmittedAt: time.Now()}
	if err := fields.Decode(&sub); err != nil {
		return models.Submission{}, false
	}
	if sub.UniqueID == "" {
		sub.UniqueID = uuid.NewString()
	}
	return sub, true
}

func inferKind(typeHint, title string) (models.SubmissionKind, bool) {
	lowerTitle := strings.ToLower(title)
	switch {
	case typeHint == "collection_log":
		return models.KindCollectionLog, true
	case typeHint == "combat_achievement":
		return models.KindCombatAchievement, true
	case typeHint == "npc_kill", typeHint == "kill_time":
		return models.KindPersonalBest, true
	case typeHint == "drop", strings.Contains(lowerTitle, "received some drops"):
		return models.KindDrop, true
	case typeHint == "pet":
		return models.KindPet, true
	case typeHint == "adventure_log":
		return models.KindAdventureLog, true
	default:
		return "", false
	}
}

func embedFieldsFrom(e webhookEmbed) models.EmbedFields {
	f := make(models.EmbedFields, len(e.Fields)+1)
	for _, field := range e.Fields {
		f[strings.ToLower(field.Name)] = field.Value
	}
	return f
}
