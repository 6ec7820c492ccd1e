package lootboard

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cellWidth  = 72
	cellHeight = 72
	gridOriginX = 32
	gridOriginY = 96
)

// Palette is a per-group text color override; when absent, the text color is
// sampled dynamically from the background's dominant hue (§4.6 step 3).
type Palette struct {
	TextColor *color.RGBA
}

// paint composites the full board: background, item grid, recent drops,
// player totals, and header, returning PNG bytes (§4.6 steps 3-4).
func paint(background image.Image, data *boardData, groupName string, display string, palette Palette) ([]byte, error) {
	canvas := imaging.Clone(background)
	textColor := palette.TextColor
	if textColor == nil {
		c := dominantHue(background)
		textColor = &c
	}
	face := basicfont.Face7x13

	drawHeader(canvas, fmt.Sprintf("%s — %s — %d gp", groupName, display, data.TotalLoot), *textColor, face)
	drawItemGrid(canvas, data.topItems(32), *textColor, face)
	drawRecentDrops(canvas, data.RecentDrops, *textColor, face)
	drawPlayerTotals(canvas, data.topPlayers(12), *textColor, face)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("lootboard: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(dst draw.Image, text string, c color.RGBA, face font.Face) {
	drawText(dst, text, 16, 24, c, face)
}

func drawItemGrid(dst draw.Image, items []*itemTotal, c color.RGBA, face font.Face) {
	cells, err := loadGrid()
	if err != nil {
		return
	}
	for i, it := range items {
		if i >= len(cells) {
			break
		}
		cell := cells[i]
		x := gridOriginX + cell.Col*cellWidth
		y := gridOriginY + cell.Row*cellHeight
		visual := visualItemID(it.ItemID, it.TotalValue)
		label := fmt.Sprintf("#%d", visual)
		if it.Quantity > 1 {
			label = fmt.Sprintf("%s x%d", label, it.Quantity)
		}
		drawText(dst, label, x+4, y+cellHeight-18, c, face)
		drawText(dst, shortValue(it.TotalValue), x+4, y+14, c, face)
	}
}

func drawRecentDrops(dst draw.Image, drops []recentDrop, c color.RGBA, face font.Face) {
	baseY := gridOriginY + 4*cellHeight + 24
	for i, d := range drops {
		if i >= 10 {
			break
		}
		line := fmt.Sprintf("%s — item %d x%d (%s gp)", d.Timestamp.Format("15:04"), d.ItemID, d.Quantity, shortValue(d.TotalValue))
		drawText(dst, line, 16, baseY+i*14, c, face)
	}
}

func drawPlayerTotals(dst draw.Image, players []*playerTotal, c color.RGBA, face font.Face) {
	baseX := 520
	for i, p := range players {
		if i >= 12 {
			break
		}
		line := fmt.Sprintf("player %d: %s gp", p.PlayerID, shortValue(p.TotalLoot))
		drawText(dst, line, baseX, 96+i*16, c, face)
	}
}

func drawText(dst draw.Image, s string, x, y int, c color.RGBA, face font.Face) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func shortValue(v int64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fm", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fk", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// dominantHue samples the background image for its most common hue,
// excluding near-white and near-black pixels, and returns a legible text
// color at full saturation/value (§4.6 step 3).
func dominantHue(img image.Image) color.RGBA {
	bounds := img.Bounds()
	buckets := make(map[int]int)
	step := 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, _ := img.At(x, y).RGBA()
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
			if isNearWhite(r8, g8, b8) || isNearBlack(r8, g8, b8) {
				continue
			}
			h, _, _ := rgbToHSV(r8, g8, b8)
			buckets[int(h)/10]++
		}
	}
	best, bestCount := 0, -1
	for bucket, count := range buckets {
		if count > bestCount {
			best, bestCount = bucket, count
		}
	}
	if bestCount <= 0 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return hsvToRGB(float64(best*10), 0.8, 0.95)
}

func isNearWhite(r, g, b uint8) bool { return int(r)+int(g)+int(b) > 720 }
func isNearBlack(r, g, b uint8) bool { return int(r)+int(g)+int(b) < 30 }

func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	v = max
	d := max - min
	if max == 0 {
		return 0, 0, v
	}
	s = d / max
	switch max {
	case rf:
		h = 60 * (math.Mod((gf-bf)/d, 6))
	case gf:
		h = 60 * ((bf-rf)/d + 2)
	default:
		h = 60 * ((rf-gf)/d + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func hsvToRGB(h, s, v float64) color.RGBA {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return color.RGBA{
		R: uint8((rf + m) * 255),
		G: uint8((gf + m) * 255),
		B: uint8((bf + m) * 255),
		A: 255,
	}
}
