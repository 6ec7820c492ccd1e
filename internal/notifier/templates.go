package notifier

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/valyala/fasttemplate"
)

// field is one named embed field with its own placeholder template, so a
// field can be stripped by name without touching the body text (§4.4
// "Rendering").
type field struct {
	Name     string
	Template string
}

// template is the renderable shape of one notification type: body text plus
// named fields, both holding `{placeholder}` tokens for fasttemplate.
type template struct {
	Title  string
	Body   string
	Fields []field
}

// defaultTemplates are the built-in renderings; a group can override any of
// these via a "template:<type>:body" / "template:<type>:field:<name>" key in
// its configuration map (§6's flat group_configurations store), falling back
// to these when absent.
var defaultTemplates = map[models.NotificationType]template{
	models.NotifyDrop: {
		Title: "Loot drop",
		Body:  "{player_name} received {item_name} x{quantity} from {npc_name}!",
		Fields: []field{
			{Name: "Value", Template: "{value} gp each ({total_value} gp total)"},
			{Name: "Source: {npc_name}", Template: "Kill count {kill_count}"},
			{Name: "Group rank", Template: "#{group_rank} of {user_count}"},
			{Name: "Global rank", Template: "#{global_rank}"},
		},
	},
	models.NotifyClog: {
		Title: "Collection log",
		Body:  "{player_name} unlocked a new collection log item: {item_name}!",
		Fields: []field{
			{Name: "Source: {npc_name}", Template: "Kill count {kill_count}"},
		},
	},
	models.NotifyPB: {
		Title: "Personal best",
		Body:  "{player_name} set a new personal best on {npc_name}: {personal_best}",
		Fields: []field{
			{Name: "Group rank", Template: "#{group_rank} of {user_count}"},
		},
	},
	models.NotifyCA: {
		Title: "Combat achievement",
		Body:  "{player_name} completed {task_name} (tier {current_tier}), next: {next_tier}",
	},
	models.NotifyPet: {
		Title: "New pet",
		Body:  "{player_name} received a pet: {item_name} from {npc_name}!",
		Fields: []field{
			{Name: "Source: {npc_name}", Template: "Kill count {kill_count}"},
		},
	},
	models.NotifyNewNPC: {
		Title: "New boss tracked",
		Body:  "A new boss is now tracked: {npc_name}",
	},
	models.NotifyNewItem: {
		Title: "New item tracked",
		Body:  "A new item is now tracked: {item_name}",
	},
	models.NotifyNameChange: {
		Title: "Name change",
		Body:  "{player_name} was previously known as a different name.",
	},
	models.NotifyNewPlayer: {
		Title: "New player",
		Body:  "{player_name} joined the group.",
		Fields: []field{
			{Name: "Group total this month", Template: "{group_total_month} gp"},
		},
	},
	models.NotifyUserUpgrade: {
		Title: "Account upgraded",
		Body:  "{player_name}'s account was upgraded.",
	},
	models.NotifyGroupUpgrade: {
		Title: "Group upgraded",
		Body:  "This group's subscription was upgraded.",
		Fields: []field{
			{Name: "Group to group rank", Template: "#{group_to_group_rank}"},
		},
	},
	models.NotifyPointsEarned: {
		Title: "Points earned",
		Body:  "{player_name} earned points. {points_left} until the next reward.",
		Fields: []field{
			{Name: "Player total this month", Template: "{player_total_month} gp"},
		},
	},
}

func templateFor(t models.NotificationType, group *models.Group) template {
	tmpl := defaultTemplates[t]
	if group == nil {
		return tmpl
	}
	if v, ok := group.Configuration[fmt.Sprintf("template:%s:body", t)]; ok && v != "" {
		tmpl.Body = v
	}
	tmpl.Fields = append([]field(nil), tmpl.Fields...)
	for i, f := range tmpl.Fields {
		if v, ok := group.Configuration[fmt.Sprintf("template:%s:field:%s", t, f.Name)]; ok && v != "" {
			tmpl.Fields[i].Template = v
		}
	}
	return tmpl
}

// render substitutes data into tmpl and strips fields per §4.4: fields whose
// name contains "Group" are dropped for the global group; fields whose name
// contains "Source:" are dropped when kill_count is unknown.
func render(tmpl template, data map[string]string, isGlobalGroup bool) (body string, fields []field) {
	_, hasKillCount := data["kill_count"]

	body = substitute(tmpl.Body, data)
	for _, f := range tmpl.Fields {
		if isGlobalGroup && strings.Contains(f.Name, "Group") {
			continue
		}
		if !hasKillCount && strings.Contains(f.Name, "Source:") {
			continue
		}
		fields = append(fields, field{
			Name:     substitute(f.Name, data),
			Template: substitute(f.Template, data),
		})
	}
	return body, fields
}

func substitute(s string, data map[string]string) string {
	return fasttemplate.ExecuteFuncString(s, "{", "}", func(w io.Writer, tag string) (int, error) {
		v, ok := data[tag]
		if !ok {
			return 0, nil
		}
		return w.Write([]byte(v))
	})
}

// suffixNumber renders an integer with a short-scale suffix ("1.23m",
// "15.4k"), the §4.4 rendering rule for every gp/count placeholder.
func suffixNumber(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1_000_000_000:
		return trimZero(float64(n)/1_000_000_000) + "b"
	case abs >= 1_000_000:
		return trimZero(float64(n)/1_000_000) + "m"
	case abs >= 1_000:
		return trimZero(float64(n)/1_000) + "k"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func trimZero(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
