package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
	"github.com/justtherip/packvault/internal/testutil"
)

// seedPack inserts a pack row directly; packs are managed by operators,
// so the repository has no create method to use here.
func seedPack(t *testing.T, db DBTX, state string, createdAt time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(t.Context(),
		`INSERT INTO packs (id, created_at, name, slug, game_code, state, rip_cost)
		 VALUES ($1, $2, 'Vintage Cube', 'vintage-cube', 'mtg', $3, 10)`,
		id, createdAt, state)
	require.NoError(t, err)
	return id
}

func seedPoolCard(t *testing.T, tx pgx.Tx, packID uuid.UUID, name string, valueCents int64, weight float64) uuid.UUID {
	t.Helper()

	cardID := uuid.New()
	_, err := tx.Exec(t.Context(),
		`INSERT INTO pack_cards (pack_id, card_id, game_code, weight, value_cents, card_name)
		 VALUES ($1, $2, 'mtg', $3, $4, $5)`,
		packID, cardID, weight, valueCents, name)
	require.NoError(t, err)
	return cardID
}

func TestPack(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.WithTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	t.Run("GetPack", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			packID := seedPack(t, tx, models.PackStateActive, time.Now())

			t.Run("existing pack", func(t *testing.T) {
				pack, err := storage.Pack().GetPack(t.Context(), packID)

				require.NoError(t, err)
				require.Equal(t, packID, pack.ID)
				require.Equal(t, "Vintage Cube", pack.Name)
				require.Equal(t, models.PackStateActive, pack.State)
				require.Equal(t, int64(10), pack.RipCost)
			})

			t.Run("unknown pack", func(t *testing.T) {
				_, err := storage.Pack().GetPack(t.Context(), uuid.New())

				require.ErrorIs(t, err, apperrors.ErrPackNotFound)
			})
		})
	})

	t.Run("ListActive", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			older := seedPack(t, tx, models.PackStateActive, time.Now().Add(-time.Hour))
			newer := seedPack(t, tx, models.PackStateActive, time.Now())
			seedPack(t, tx, models.PackStateDraft, time.Now())
			seedPack(t, tx, models.PackStateArchived, time.Now())

			packs, err := storage.Pack().ListActive(t.Context())

			require.NoError(t, err)
			require.Len(t, packs, 2, "draft and archived packs must not be listed")
			require.Equal(t, newer, packs[0].ID, "newest pack should come first")
			require.Equal(t, older, packs[1].ID)
		})
	})

	t.Run("GetPool", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			packID := seedPack(t, tx, models.PackStateActive, time.Now())
			seedPoolCard(t, tx, packID, "Lightning Bolt", 500, 3)
			seedPoolCard(t, tx, packID, "Black Lotus", 1250000, 0.01)

			otherPack := seedPack(t, tx, models.PackStateActive, time.Now())
			seedPoolCard(t, tx, otherPack, "Pikachu", 200, 1)

			pool, err := storage.Pack().GetPool(t.Context(), packID)

			require.NoError(t, err)
			require.Len(t, pool, 2, "pool must only contain this pack's cards")
			for _, e := range pool {
				require.Equal(t, packID, e.PackID)
			}
		})
	})

	t.Run("TopPool", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			packID := seedPack(t, tx, models.PackStateActive, time.Now())
			seedPoolCard(t, tx, packID, "Lightning Bolt", 500, 3)
			seedPoolCard(t, tx, packID, "Black Lotus", 1250000, 0.01)
			seedPoolCard(t, tx, packID, "Counterspell", 300, 3)

			top, err := storage.Pack().TopPool(t.Context(), packID, 2)

			require.NoError(t, err)
			require.Len(t, top, 2)
			require.Equal(t, "Black Lotus", top[0].CardName, "most valuable card should come first")
			require.Equal(t, "Lightning Bolt", top[1].CardName)
		})
	})

	t.Run("Openings", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.User().CreateUser(t.Context(), uuid.New(), "pat@example.com")
			require.NoError(t, err)
			packID := seedPack(t, tx, models.PackStateActive, time.Now())

			t.Run("create opening fills defaults", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					opening, err := storage.Pack().CreateOpening(t.Context(), models.Opening{
						UserID:          user.ID,
						PackID:          packID,
						RipsSpent:       10,
						CardID:          uuid.New(),
						CardName:        "Lightning Bolt",
						TotalValueCents: 500,
					})

					require.NoError(t, err)
					require.NotEqual(t, uuid.Nil, opening.ID)
					require.False(t, opening.CreatedAt.IsZero())
				})
			})

			t.Run("increment openings", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					require.NoError(t, storage.Pack().IncrementOpenings(t.Context(), packID))
					require.NoError(t, storage.Pack().IncrementOpenings(t.Context(), packID))

					pack, err := storage.Pack().GetPack(t.Context(), packID)
					require.NoError(t, err)
					require.Equal(t, int64(2), pack.TotalOpenings)
				})
			})
		})
	})
}
