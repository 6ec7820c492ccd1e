package lootboard

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/droptracker-go/pipeline/internal/kvstore"
	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/sqlstore"
)

type Generator struct {
	store   *sqlstore.Store
	kv      *kvstore.Client
	assetDir string
	outDir   string
}

func New(store *sqlstore.Store, kv *kvstore.Client, assetDir, outDir string) *Generator {
	return &Generator{store: store, kv: kv, assetDir: assetDir, outDir: outDir}
}

// Generate composites and saves a lootboard for groupID per f, writing both
// the canonical current view and a dated variant (§4.6 step 5).
func (g *Generator) Generate(ctx context.Context, groupID int64, f BoardFilter) error {
	group, err := g.store.Group(ctx, g.store.Pool(), groupID)
	if err != nil {
		return fmt.Errorf("lootboard: load group: %w", err)
	}

	playerIDs := f.PlayerIDs
	if len(playerIDs) == 0 {
		playerIDs, err = g.store.GroupMembers(ctx, groupID)
		if err != nil {
			return fmt.Errorf("lootboard: load group members: %w", err)
		}
	}

	data, err := aggregate(ctx, g.kv, f, playerIDs)
	if err != nil {
		return fmt.Errorf("lootboard: aggregate: %w", err)
	}

	background, err := g.loadBackground(group)
	if err != nil {
		return fmt.Errorf("lootboard: load background: %w", err)
	}

	palette := Palette{}
	if group.Bool(models.CfgUseGPColors) {
		c := color.RGBA{R: 255, G: 215, B: 0, A: 255}
		palette.TextColor = &c
	} else if !group.Bool(models.CfgDynamicColors) {
		c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		palette.TextColor = &c
	}

	pngBytes, err := paint(background, data, group.DisplayName, f.displayString(), palette)
	if err != nil {
		return fmt.Errorf("lootboard: paint: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(g.outDir, fmt.Sprintf("%d", groupID)), 0o755); err != nil {
		return fmt.Errorf("lootboard: create out dir: %w", err)
	}
	canonical := filepath.Join(g.outDir, fmt.Sprintf("%d", groupID), "lootboard.png")
	dated := filepath.Join(g.outDir, fmt.Sprintf("%d", groupID), fmt.Sprintf("lootboard_%s.png", time.Now().UTC().Format("20060102_150405")))

	if err := os.WriteFile(canonical, pngBytes, 0o644); err != nil {
		return fmt.Errorf("lootboard: write canonical png: %w", err)
	}
	if err := os.WriteFile(dated, pngBytes, 0o644); err != nil {
		return fmt.Errorf("lootboard: write dated png: %w", err)
	}
	return nil
}

// loadBackground opens the group's configured loot_board_type background,
// falling back to a plain generated canvas if none is configured or the file
// is missing (§4.6 step 3).
func (g *Generator) loadBackground(group *models.Group) (image.Image, error) {
	boardType := group.Configuration[models.CfgLootboardType]
	if boardType == "" {
		boardType = "default"
	}
	path := filepath.Join(g.assetDir, strings.ToLower(boardType)+".png")
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}
	return imaging.New(1000, 700, color.RGBA{R: 30, G: 30, B: 35, A: 255}), nil
}
