// Command seeder posts a handful of synthetic submissions at a running
// ingress server, the same shape a real chat-webhook relay would send: a
// multipart form carrying a payload_json body with one or more embeds.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type embed struct {
	Title  string       `json:"title"`
	Fields []embedField `json:"fields"`
}

type payload struct {
	Content string  `json:"content"`
	Embeds  []embed `json:"embeds"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/webhook", "ingress webhook URL")
	player := flag.String("player", "Zezima", "player_name to attribute submissions to")
	flag.Parse()

	embeds := []embed{
		dropEmbed(*player, "Abyssal whip", "Abyssal demon", 2_750_000, 1),
		personalBestEmbed(*player, "Chambers of Xeric", 1, 18*60*1000),
		combatAchievementEmbed(*player, "Perfect Olm", "master"),
		petEmbed(*player, "Olmlet", "Chambers of Xeric"),
	}

	for _, e := range embeds {
		if err := postEmbed(*url, e); err != nil {
			log.Printf("seeder: %s failed: %v", e.Title, err)
			continue
		}
		log.Printf("seeder: posted %s", e.Title)
	}
}

func dropEmbed(player, item, npc string, value, qty int64) embed {
	return embed{
		Title: fmt.Sprintf("%s received some drops:", player),
		Fields: []embedField{
			{Name: "type", Value: "drop"},
			{Name: "player_name", Value: player},
			{Name: "item_name", Value: item},
			{Name: "npc_name", Value: npc},
			{Name: "value", Value: fmt.Sprint(value)},
			{Name: "quantity", Value: fmt.Sprint(qty)},
		},
	}
}

func personalBestEmbed(player, npc string, teamSize int, timeMs int64) embed {
	return embed{
		Title: fmt.Sprintf("%s set a new personal best", player),
		Fields: []embedField{
			{Name: "type", Value: "kill_time"},
			{Name: "player_name", Value: player},
			{Name: "npc_name", Value: npc},
			{Name: "team_size", Value: fmt.Sprint(teamSize)},
			{Name: "time_ms", Value: fmt.Sprint(timeMs)},
			{Name: "is_new_pb", Value: "true"},
		},
	}
}

func combatAchievementEmbed(player, task, tier string) embed {
	return embed{
		Title: fmt.Sprintf("%s completed a combat achievement", player),
		Fields: []embedField{
			{Name: "type", Value: "combat_achievement"},
			{Name: "player_name", Value: player},
			{Name: "task_name", Value: task},
			{Name: "tier", Value: tier},
		},
	}
}

func petEmbed(player, pet, source string) embed {
	return embed{
		Title: fmt.Sprintf("%s has a funny feeling they're being followed", player),
		Fields: []embedField{
			{Name: "type", Value: "pet"},
			{Name: "player_name", Value: player},
			{Name: "pet_item_name", Value: pet},
			{Name: "source_npc", Value: source},
		},
	}
}

func postEmbed(url string, e embed) error {
	body, err := json.Marshal(payload{Embeds: []embed{e}})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("payload_json", string(body)); err != nil {
		return fmt.Errorf("write payload_json field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	log.Printf("seeder: %s -> %s %s", url, resp.Status, respBody)
	return nil
}
