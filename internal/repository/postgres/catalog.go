package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/justtherip/packvault/internal/models"
)

type CatalogRepo struct {
	DB DBTX
}

// Each game lands in its own product table with its own derived columns.
// The shared columns come straight from the transform; the derived ones
// are read from CatalogProduct.Derived by name.
const upsertMTGProduct = `-- name: UpsertMTGProduct
INSERT INTO tcg_mtg_products (product_id, name, clean_name, image_url, url, category_id, group_id,
        image_count, is_presale, presale_released_on, presale_note,
        rarity, card_number, sub_type, oracle_text, power, toughness,
        extended_data, modified_on, last_synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT (product_id) DO UPDATE SET
	name = EXCLUDED.name,
	clean_name = EXCLUDED.clean_name,
	image_url = EXCLUDED.image_url,
	url = EXCLUDED.url,
	category_id = EXCLUDED.category_id,
	group_id = EXCLUDED.group_id,
	image_count = EXCLUDED.image_count,
	is_presale = EXCLUDED.is_presale,
	presale_released_on = EXCLUDED.presale_released_on,
	presale_note = EXCLUDED.presale_note,
	rarity = EXCLUDED.rarity,
	card_number = EXCLUDED.card_number,
	sub_type = EXCLUDED.sub_type,
	oracle_text = EXCLUDED.oracle_text,
	power = EXCLUDED.power,
	toughness = EXCLUDED.toughness,
	extended_data = EXCLUDED.extended_data,
	modified_on = EXCLUDED.modified_on,
	last_synced_at = EXCLUDED.last_synced_at
`

const upsertPokemonProduct = `-- name: UpsertPokemonProduct
INSERT INTO tcg_pokemon_products (product_id, name, clean_name, image_url, url, category_id, group_id,
        image_count, is_presale, presale_released_on, presale_note,
        card_number, rarity, card_type, hp, stage, weakness, resistance, retreat_cost, card_text,
        extended_data, modified_on, last_synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
ON CONFLICT (product_id) DO UPDATE SET
	name = EXCLUDED.name,
	clean_name = EXCLUDED.clean_name,
	image_url = EXCLUDED.image_url,
	url = EXCLUDED.url,
	category_id = EXCLUDED.category_id,
	group_id = EXCLUDED.group_id,
	image_count = EXCLUDED.image_count,
	is_presale = EXCLUDED.is_presale,
	presale_released_on = EXCLUDED.presale_released_on,
	presale_note = EXCLUDED.presale_note,
	card_number = EXCLUDED.card_number,
	rarity = EXCLUDED.rarity,
	card_type = EXCLUDED.card_type,
	hp = EXCLUDED.hp,
	stage = EXCLUDED.stage,
	weakness = EXCLUDED.weakness,
	resistance = EXCLUDED.resistance,
	retreat_cost = EXCLUDED.retreat_cost,
	card_text = EXCLUDED.card_text,
	extended_data = EXCLUDED.extended_data,
	modified_on = EXCLUDED.modified_on,
	last_synced_at = EXCLUDED.last_synced_at
`

func (r *CatalogRepo) UpsertProducts(ctx context.Context, game string, products []models.CatalogProduct) error {
	if len(products) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		switch game {
		case models.GamePokemon:
			batch.Queue(upsertPokemonProduct,
				p.ProductID, p.Name, p.CleanName, p.ImageURL, p.URL, p.CategoryID, p.GroupID,
				p.ImageCount, p.Presale, p.ReleasedOn, nullIfEmpty(p.PresaleNote),
				derived(p, "card_number"), derived(p, "rarity"), derived(p, "card_type"),
				derivedInt(p, "hp"), derived(p, "stage"), derived(p, "weakness"),
				derived(p, "resistance"), derivedInt(p, "retreat_cost"), derived(p, "card_text"),
				p.ExtendedData, p.ModifiedOn, p.SyncedAt)
		default:
			batch.Queue(upsertMTGProduct,
				p.ProductID, p.Name, p.CleanName, p.ImageURL, p.URL, p.CategoryID, p.GroupID,
				p.ImageCount, p.Presale, p.ReleasedOn, nullIfEmpty(p.PresaleNote),
				derived(p, "rarity"), derived(p, "card_number"), derived(p, "sub_type"),
				derived(p, "oracle_text"), derived(p, "power"), derived(p, "toughness"),
				p.ExtendedData, p.ModifiedOn, p.SyncedAt)
		}
	}

	return r.sendBatch(ctx, batch)
}

const upsertPrice = `-- name: UpsertPrice
INSERT INTO %s (product_id, sub_type_name, low_price, mid_price, high_price, market_price, direct_low_price,
        as_of_date, last_synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (product_id, sub_type_name, as_of_date) DO UPDATE SET
	low_price = EXCLUDED.low_price,
	mid_price = EXCLUDED.mid_price,
	high_price = EXCLUDED.high_price,
	market_price = EXCLUDED.market_price,
	direct_low_price = EXCLUDED.direct_low_price,
	last_synced_at = EXCLUDED.last_synced_at
`

func (r *CatalogRepo) UpsertPrices(ctx context.Context, game string, prices []models.CatalogPrice) error {
	if len(prices) == 0 {
		return nil
	}

	table := "tcg_mtg_prices"
	if game == models.GamePokemon {
		table = "tcg_pokemon_prices"
	}
	sql := fmt.Sprintf(upsertPrice, table)

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(sql,
			p.ProductID, p.Variant, p.Low, p.Mid, p.High, p.Market, p.DirectLow,
			p.AsOfDate, p.SyncedAt)
	}

	return r.sendBatch(ctx, batch)
}

func (r *CatalogRepo) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := r.DB.SendBatch(ctx, batch)
	defer results.Close() // nolint:errcheck

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return results.Close()
}

func derived(p models.CatalogProduct, key string) *string {
	return nullIfEmpty(p.Derived[key])
}

func derivedInt(p models.CatalogProduct, key string) *int64 {
	s := strings.TrimSpace(p.Derived[key])
	if s == "" {
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
