package lootboard

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

//go:embed assets/grid.csv
var assetFS embed.FS

// gridCell is one fixed-layout slot on the item grid (§4.6 step 4).
type gridCell struct {
	Col, Row int
}

// loadGrid parses the embedded item-grid mapping CSV into ordered cells,
// slot 0 first.
func loadGrid() ([]gridCell, error) {
	f, err := assetFS.Open("assets/grid.csv")
	if err != nil {
		return nil, fmt.Errorf("lootboard: open grid csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil { // header
		return nil, fmt.Errorf("lootboard: read grid header: %w", err)
	}

	var cells []gridCell
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lootboard: read grid row: %w", err)
		}
		col, _ := strconv.Atoi(rec[1])
		row, _ := strconv.Atoi(rec[2])
		cells = append(cells, gridCell{Col: col, Row: row})
	}
	return cells, nil
}

// currencyVisualID maps a coin stack's gp value to the display sprite id:
// id 995 is the base, swapping up through 1004 as the stack's value crosses
// the thresholds in §4.6's final paragraph.
func currencyVisualID(value int64) int64 {
	const baseID = 995
	switch {
	case value >= 10000:
		return baseID + 9
	case value >= 1000:
		return baseID + 8
	case value >= 100:
		return baseID + 7
	case value >= 25:
		return baseID + 6
	case value >= 10:
		return baseID + 5
	case value >= 5:
		return baseID + 4
	case value >= 4:
		return baseID + 3
	case value >= 3:
		return baseID + 2
	case value >= 2:
		return baseID + 1
	default:
		return baseID
	}
}

func visualItemID(itemID, value int64) int64 {
	if itemID == 995 {
		return currencyVisualID(value)
	}
	return itemID
}
