package submission

import (
	"context"
	"strings"
)

// PriceLookup resolves an item's current market price by exact name. Grounded
// on the directory client's role as the external price source (§3 "Item...
// reference catalogs"); a thin interface here keeps truevalue.go free of a
// concrete directory import.
type PriceLookup interface {
	Price(ctx context.Context, itemName string) (int64, error)
}

// trueValueOverrides are the contractual per-item value adjustments from §9,
// matched by case-insensitive substring against the submitted item name.
// Vestiges are handled directly in EffectiveValue since their override
// derives the comparison item name from the submitted name itself.
var trueValueOverrides = []struct {
	match func(name string) bool
	price func(ctx context.Context, lookup PriceLookup) (int64, error)
}{
	{
		match: anyOfCI("bludgeon axon", "bludgeon claw", "bludgeon spine"),
		price: func(ctx context.Context, lookup PriceLookup) (int64, error) {
			p, err := lookup.Price(ctx, "Abyssal bludgeon")
			return p / 3, err
		},
	},
	{
		match: anyOfCI("hydra's eye", "hydra's fang", "hydra's heart"),
		price: func(ctx context.Context, lookup PriceLookup) (int64, error) {
			p, err := lookup.Price(ctx, "Brimstone ring")
			return p / 3, err
		},
	},
	{
		match: anyOfCI("noxious point", "noxious blade", "noxious pommel"),
		price: func(ctx context.Context, lookup PriceLookup) (int64, error) {
			p, err := lookup.Price(ctx, "Noxious halberd")
			return p / 3, err
		},
	},
	{
		match: anyOfCI("araxyte fang"),
		price: func(ctx context.Context, lookup PriceLookup) (int64, error) {
			rancour, err := lookup.Price(ctx, "Amulet of rancour")
			if err != nil {
				return 0, err
			}
			torture, err := lookup.Price(ctx, "Amulet of torture")
			return rancour - torture, err
		},
	},
	{
		match: anyOfCI("mokhaiotl cloth"),
		price: func(ctx context.Context, lookup PriceLookup) (int64, error) {
			gauntlets, err := lookup.Price(ctx, "Confliction gauntlets")
			if err != nil {
				return 0, err
			}
			bracelet, err := lookup.Price(ctx, "Tormented bracelet")
			if err != nil {
				return 0, err
			}
			tear, err := lookup.Price(ctx, "Demon tear")
			return gauntlets - bracelet - 10000*tear, err
		},
	},
}

// EffectiveValue computes the per-item value for itemName, applying the §9
// true-value overrides where they match, falling back to fallbackValue (the
// submission's own reported value) otherwise.
func EffectiveValue(ctx context.Context, lookup PriceLookup, itemName string, fallbackValue int64) (int64, error) {
	if strings.HasSuffix(strings.ToLower(itemName), " vestige") {
		ringName := itemName[:len(itemName)-len(" vestige")] + " ring"
		ring, err := lookup.Price(ctx, ringName)
		if err != nil {
			return 0, err
		}
		ingot, err := lookup.Price(ctx, "Chromium ingot")
		if err != nil {
			return 0, err
		}
		return ring - 3*ingot, nil
	}

	for _, ov := range trueValueOverrides {
		if ov.match(itemName) {
			return ov.price(ctx, lookup)
		}
	}
	return fallbackValue, nil
}

func anyOfCI(substrs ...string) func(string) bool {
	return func(name string) bool {
		lower := strings.ToLower(name)
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}
