package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/justtherip/packvault/internal/models"
)

// modifiedOnLayouts covers the timestamp shapes the upstream emits
var modifiedOnLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseModifiedOn(s string, fallback time.Time) time.Time {
	for _, layout := range modifiedOnLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

func extendedMap(fields []models.ExtendedField) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m
}

// digits strips everything but digits, for upstream values like "120 HP"
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// deriveMTG computes the mtg product columns from extended data
func deriveMTG(ext map[string]string) map[string]string {
	return map[string]string{
		"rarity":      ext["Rarity"],
		"card_number": ext["Number"],
		"sub_type":    ext["SubType"],
		"oracle_text": ext["OracleText"],
		"power":       ext["P"],
		"toughness":   ext["T"],
	}
}

// derivePokemon computes the pokemon product columns from extended data
func derivePokemon(ext map[string]string) map[string]string {
	return map[string]string{
		"card_number":  ext["Number"],
		"rarity":       ext["Rarity"],
		"card_type":    firstOf(ext, "Type", "Card Type", "SubType"),
		"hp":           digits(ext["HP"]),
		"stage":        ext["Stage"],
		"weakness":     ext["Weakness"],
		"resistance":   ext["Resistance"],
		"retreat_cost": digits(ext["Retreat Cost"]),
		"card_text":    firstOf(ext, "Card Text", "CardText"),
	}
}

// TransformProduct converts one upstream product into the internal row
// shape for the given game. Missing presale info and extended data are
// tolerated and default-filled.
func TransformProduct(game string, p Product, now time.Time) models.CatalogProduct {
	ext := extendedMap(p.ExtendedData)

	product := models.CatalogProduct{
		ProductID:    p.ProductID,
		Name:         p.Name,
		CleanName:    p.CleanName,
		ImageURL:     p.ImageURL,
		URL:          p.URL,
		CategoryID:   p.CategoryID,
		GroupID:      p.GroupID,
		ImageCount:   p.ImageCount,
		ExtendedData: p.ExtendedData,
		ModifiedOn:   now,
		SyncedAt:     now,
	}
	if product.CleanName == "" {
		product.CleanName = p.Name
	}
	if p.ModifiedOn != "" {
		product.ModifiedOn = parseModifiedOn(p.ModifiedOn, now)
	}

	if p.PresaleInfo != nil {
		product.Presale = p.PresaleInfo.IsPresale
		product.PresaleNote = p.PresaleInfo.Note
		if p.PresaleInfo.ReleasedOn != "" {
			released := parseModifiedOn(p.PresaleInfo.ReleasedOn, now)
			product.ReleasedOn = &released
		}
	}

	switch game {
	case models.GamePokemon:
		product.Derived = derivePokemon(ext)
	default:
		product.Derived = deriveMTG(ext)
	}

	return product
}

func TransformProducts(game string, products []Product, now time.Time) []models.CatalogProduct {
	out := make([]models.CatalogProduct, 0, len(products))
	for _, p := range products {
		out = append(out, TransformProduct(game, p, now))
	}
	return out
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}

// TransformPrice converts one upstream price row into the internal
// snapshot shape. asOf is the calendar day the snapshot represents and
// part of its natural key.
func TransformPrice(p Price, asOf time.Time, now time.Time) models.CatalogPrice {
	y, m, d := asOf.UTC().Date()
	return models.CatalogPrice{
		ProductID: p.ProductID,
		Variant:   p.SubTypeName,
		Low:       nullDecimal(p.LowPrice),
		Mid:       nullDecimal(p.MidPrice),
		High:      nullDecimal(p.HighPrice),
		Market:    nullDecimal(p.MarketPrice),
		DirectLow: nullDecimal(p.DirectLowPrice),
		AsOfDate:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		SyncedAt:  now,
	}
}

func TransformPrices(prices []Price, asOf time.Time, now time.Time) []models.CatalogPrice {
	out := make([]models.CatalogPrice, 0, len(prices))
	for _, p := range prices {
		out = append(out, TransformPrice(p, asOf, now))
	}
	return out
}
