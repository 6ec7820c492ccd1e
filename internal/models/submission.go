package models

import "time"

// SubmissionKind identifies which processor in the submission pipeline
// handles a Submission.
type SubmissionKind string

const (
	KindDrop              SubmissionKind = "drop"
	KindCollectionLog     SubmissionKind = "clog"
	KindPersonalBest      SubmissionKind = "pb"
	KindCombatAchievement SubmissionKind = "ca"
	KindPet               SubmissionKind = "pet"
	KindAdventureLog      SubmissionKind = "adventure_log"
)

// Attachment describes an optional image that accompanied a submission.
type Attachment struct {
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	LocalPath   string `json:"local_path,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

// Submission is the normalized in-flight event produced by Ingress and
// consumed by the Submission Pipeline. Every kind-specific field is optional;
// only the fields relevant to Kind are populated.
type Submission struct {
	Kind        SubmissionKind `json:"type" validate:"required"`
	PlayerName  string         `json:"player_name" validate:"required"`
	AccountHash string         `json:"account_hash"`
	UniqueID    string         `json:"unique_id" validate:"required"`
	UsedAPI     bool           `json:"used_api"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Attachment  *Attachment    `json:"attachment,omitempty"`

	// Drop
	ItemName string `json:"item_name,omitempty"`
	NPCName  string `json:"npc_name,omitempty"`
	Value    int64  `json:"value,omitempty"`
	Quantity int64  `json:"quantity,omitempty"`

	// CollectionLog
	CollectionName string `json:"collection_name,omitempty"`

	// PersonalBest
	TeamSize  int   `json:"team_size,omitempty"`
	TimeMs    int64 `json:"time_ms,omitempty"`
	IsNewBest bool  `json:"is_new_pb,omitempty"`

	// CombatAchievement
	TaskName string `json:"task_name,omitempty"`
	Tier     string `json:"tier,omitempty"`

	// Pet
	PetItemName string `json:"pet_item_name,omitempty"`
	SourceNPC   string `json:"source_npc,omitempty"`
	Duplicate   bool   `json:"duplicate,omitempty"`

	// AdventureLog: a batch of historical PB/pet lines to back-fill.
	AdventureLines []AdventureLine `json:"adventure_lines,omitempty"`
}

// AdventureLine is one parsed row out of an adventure-log back-fill payload:
// either a personal-best record or a pet acquisition, never both.
type AdventureLine struct {
	NPCName   string `json:"npc_name,omitempty"`
	TeamSize  int    `json:"team_size,omitempty"`
	TimeMs    int64  `json:"time_ms,omitempty"`
	PetItemID int64  `json:"pet_item_id,omitempty"`
}

// Response is returned by a processor after handling a Submission.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Notice  string `json:"notice,omitempty"`
}

// DropRow is the persisted row for a Drop submission.
type DropRow struct {
	ID         int64
	UniqueID   string
	UsedAPI    bool
	DateAdded  time.Time
	PlayerID   int64
	NPCID      int64
	ItemID     int64
	Quantity   int64
	Value      int64
	TotalValue int64
}

// CollectionLogEntryRow is the persisted row for a CollectionLog submission.
type CollectionLogEntryRow struct {
	ID             int64
	UniqueID       string
	UsedAPI        bool
	DateAdded      time.Time
	PlayerID       int64
	ItemID         int64
	CollectionName string
}

// PersonalBestEntryRow is the upsert-style persisted row for PersonalBest.
// PersonalBestMs only ever decreases; KillTimeMs tracks the latest submission.
type PersonalBestEntryRow struct {
	ID              int64
	PlayerID        int64
	NPCID           int64
	TeamSize        int
	PersonalBestMs  int64
	KillTimeMs      int64
	KillCount       int64
	LastUniqueID    string
	LastUsedAPI     bool
	LastDateAdded   time.Time
}

// CombatAchievementEntryRow is the persisted row for a CombatAchievement.
type CombatAchievementEntryRow struct {
	ID        int64
	UniqueID  string
	UsedAPI   bool
	DateAdded time.Time
	PlayerID  int64
	TaskName  string
	Tier      string
}

// PlayerPetRow is the persisted row for a Pet acquisition.
type PlayerPetRow struct {
	ID        int64
	UniqueID  string
	UsedAPI   bool
	DateAdded time.Time
	PlayerID  int64
	ItemID    int64
	SourceNPC string
	Duplicate bool
}

// CombatAchievementTier scales point awards by difficulty.
var CombatAchievementTier = map[string]int{
	"easy":        1,
	"medium":      2,
	"hard":        3,
	"elite":       4,
	"master":      5,
	"grandmaster": 6,
}
