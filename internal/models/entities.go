package models

import (
	"fmt"
	"time"
)

// GlobalGroupID is the reserved group that transitively contains every
// player known to the system.
const GlobalGroupID int64 = 1

// Player is the canonical identity of a game character.
type Player struct {
	ID            int64
	DirectoryID   int64
	DisplayName   string
	AccountHash   string
	OwningUserID  *int64
	LastRefreshed time.Time
}

// Group is a named collection of players with configurable notification
// routing. Configuration is a flat key/value map matching the
// group_configurations table (§6).
type Group struct {
	ID             int64
	DisplayName    string
	DirectoryID    int64
	ChatDestID     string
	Configuration  map[string]string
}

// GroupConfig keys, matching the group_configurations enumeration in spec §6.
const (
	CfgChannelLoot       = "channel_id_to_post_loot"
	CfgChannelPB         = "channel_id_to_post_pb"
	CfgChannelClog       = "channel_id_to_post_clog"
	CfgChannelCA         = "channel_id_to_post_ca"
	CfgChannelPets       = "channel_id_to_post_pets"
	CfgChannelPBEmbeds   = "channel_id_to_send_pb_embeds"
	CfgMinValueToNotify  = "minimum_value_to_notify"
	CfgSendStacks        = "send_stacks_of_items"
	CfgOnlyOverMinimum   = "only_include_items_over_minimum"
	CfgNotifyDrops       = "notify_drops"
	CfgNotifyClogs       = "notify_clogs"
	CfgNotifyPBs         = "notify_pbs"
	CfgNotifyCAs         = "notify_cas"
	CfgNotifyPets        = "notify_pets"
	CfgMinCATierNotify   = "min_ca_tier_to_notify"
	CfgLootboardType     = "loot_board_type"
	CfgDynamicColors     = "use_dynamic_lootboard_colors"
	CfgUseGPColors       = "use_gp_colors"
	CfgCreatePBEmbeds    = "create_pb_embeds"
	CfgPBEmbedBossList   = "personal_best_embed_boss_list"
	CfgAuthedUsers       = "authed_users"
	CfgVCMonthlyLoot     = "vc_to_display_monthly_loot"
	CfgVCMonthlyLootText = "vc_to_display_monthly_loot_text"
	CfgVCDTUsers         = "vc_to_display_droptracker_users"
	CfgVCDTUsersText     = "vc_to_display_droptracker_users_text"
	CfgRepostLootboard   = "repost_lootboard"
)

// Bool interprets a group configuration value as a boolean, defaulting false.
func (g *Group) Bool(key string) bool {
	v, ok := g.Configuration[key]
	return ok && (v == "1" || v == "true" || v == "yes")
}

// Int64 interprets a group configuration value as an int64, defaulting to def.
func (g *Group) Int64(key string, def int64) int64 {
	v, ok := g.Configuration[key]
	if !ok {
		return def
	}
	var n int64
	if _, err := fmt.Sscan(v, &n); err != nil {
		return def
	}
	return n
}

// Item is a reference catalog entry, keyed by numeric id and looked up by
// exact name.
type Item struct {
	ID   int64
	Name string
}

// NPC is a reference catalog entry for monsters/bosses.
type NPC struct {
	ID   int64
	Name string
}

// MokhaiotlBaseID is the id offset for the tiered "Doom of Mokhaiotl (Level N)"
// boss: resolved id is MokhaiotlBaseID + N.
const MokhaiotlBaseID int64 = 14707
