package postgres

import (
	"sync"
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

// seedItem creates a user inventory item with the opening chain it
// depends on: pack, opening, item.
func seedItem(t *testing.T, db DBTX, storage repository.Storage, userID uuid.UUID) models.InventoryItem {
	t.Helper()

	packID := seedPack(t, db, models.PackStateActive, time.Now())
	opening, err := storage.Pack().CreateOpening(t.Context(), models.Opening{
		UserID:          userID,
		PackID:          packID,
		RipsSpent:       10,
		CardID:          uuid.New(),
		CardName:        "Lightning Bolt",
		TotalValueCents: 500,
	})
	require.NoError(t, err)

	item, err := storage.Inventory().CreateItem(t.Context(), models.InventoryItem{
		UserID:     userID,
		OpeningID:  opening.ID,
		CardID:     opening.CardID,
		GameCode:   models.GameMTG,
		CardName:   opening.CardName,
		Condition:  "NM",
		ValueCents: opening.TotalValueCents,
	})
	require.NoError(t, err)
	return item
}

func TestInventory(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
		testutil.WithTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			fn(innerTx, storage)
		})
	}

	t.Run("CreateItem and GetItem", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.User().CreateUser(t.Context(), uuid.New(), "pat@example.com")
			require.NoError(t, err)
			item := seedItem(t, tx, storage, user.ID)

			t.Run("get own item", func(t *testing.T) {
				got, err := storage.Inventory().GetItem(t.Context(), item.ID, user.ID)

				require.NoError(t, err)
				require.Equal(t, item.ID, got.ID)
				require.Equal(t, "Lightning Bolt", got.CardName)
				require.False(t, got.Sold)
				require.False(t, got.Shipped)
				require.Nil(t, got.ShipmentID)
			})

			t.Run("someone else's item is invisible", func(t *testing.T) {
				other, err := storage.User().CreateUser(t.Context(), uuid.New(), "other@example.com")
				require.NoError(t, err)

				_, err = storage.Inventory().GetItem(t.Context(), item.ID, other.ID)

				require.ErrorIs(t, err, apperrors.ErrItemNotFound)
			})
		})
	})

	t.Run("MarkSold", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.User().CreateUser(t.Context(), uuid.New(), "pat@example.com")
			require.NoError(t, err)

			t.Run("sell once", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					item := seedItem(t, ttx, storage, user.ID)

					sold, err := storage.Inventory().MarkSold(t.Context(), item.ID, user.ID, 4)

					require.NoError(t, err)
					require.True(t, sold.Sold)
					require.NotNil(t, sold.SoldAt)
					require.NotNil(t, sold.SellbackRips)
					require.Equal(t, int64(4), *sold.SellbackRips)
				})
			})

			t.Run("sell twice", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					item := seedItem(t, ttx, storage, user.ID)

					_, err := storage.Inventory().MarkSold(t.Context(), item.ID, user.ID, 4)
					require.NoError(t, err)

					_, err = storage.Inventory().MarkSold(t.Context(), item.ID, user.ID, 4)

					require.ErrorIs(t, err, apperrors.ErrItemSold)
				})
			})

			t.Run("sell an item with a shipment", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					item := seedItem(t, ttx, storage, user.ID)
					shipment := seedShipment(t, ttx, storage, user.ID, item)
					_, err := storage.Inventory().SetShipment(t.Context(), item.ID, user.ID, shipment.ID, nil)
					require.NoError(t, err)

					_, err = storage.Inventory().MarkSold(t.Context(), item.ID, user.ID, 4)

					require.ErrorIs(t, err, apperrors.ErrShipmentActive)
				})
			})
		})
	})

	t.Run("SetShipment", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.User().CreateUser(t.Context(), uuid.New(), "pat@example.com")
			require.NoError(t, err)

			t.Run("links a fresh item", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					item := seedItem(t, ttx, storage, user.ID)
					shipment := seedShipment(t, ttx, storage, user.ID, item)

					linked, err := storage.Inventory().SetShipment(t.Context(), item.ID, user.ID, shipment.ID, nil)

					require.NoError(t, err)
					require.NotNil(t, linked.ShipmentID)
					require.Equal(t, shipment.ID, *linked.ShipmentID)
					require.False(t, linked.Shipped, "linking must not mark the item shipped")
				})
			})

			t.Run("stale link loses", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					item := seedItem(t, ttx, storage, user.ID)
					first := seedShipment(t, ttx, storage, user.ID, item)
					second := seedShipment(t, ttx, storage, user.ID, item)

					_, err := storage.Inventory().SetShipment(t.Context(), item.ID, user.ID, first.ID, nil)
					require.NoError(t, err)

					_, err = storage.Inventory().SetShipment(t.Context(), item.ID, user.ID, second.ID, nil)

					require.ErrorIs(t, err, apperrors.ErrShipmentActive)

					got, err := storage.Inventory().GetItem(t.Context(), item.ID, user.ID)
					require.NoError(t, err)
					require.Equal(t, first.ID, *got.ShipmentID, "the first link must survive")
				})
			})

			t.Run("relinks after a cancelled shipment", func(t *testing.T) {
				inTx(t, tx, func(ttx pgx.Tx, storage repository.Storage) {
					item := seedItem(t, ttx, storage, user.ID)
					first := seedShipment(t, ttx, storage, user.ID, item)
					_, err := storage.Inventory().SetShipment(t.Context(), item.ID, user.ID, first.ID, nil)
					require.NoError(t, err)

					_, err = ttx.Exec(t.Context(),
						`UPDATE shipments SET status = 'cancelled' WHERE id = $1`, first.ID)
					require.NoError(t, err)

					second := seedShipment(t, ttx, storage, user.ID, item)
					linked, err := storage.Inventory().SetShipment(t.Context(), item.ID, user.ID, second.ID, &first.ID)

					require.NoError(t, err)
					require.Equal(t, second.ID, *linked.ShipmentID)
				})
			})
		})
	})

	t.Run("ConcurrentShip", func(t *testing.T) {
		// Outside the rollback helper on purpose: the race needs two real
		// transactions committing against the same row.
		storage := NewStorage(pg.Pool)

		user, err := storage.User().CreateUser(t.Context(), uuid.New(), "race@example.com")
		require.NoError(t, err)
		item := seedItem(t, pg.Pool, storage, user.ID)
		addressID := seedAddress(t, pg.Pool, user.ID, true)

		ship := func() error {
			return storage.InTx(t.Context(), func(s repository.Storage) error {
				shipment, err := s.Shipment().Create(t.Context(), models.Shipment{
					UserID:      user.ID,
					ItemID:      item.ID,
					AddressID:   addressID,
					AddressFull: "1 Main St, Springfield, IL, 62701, US",
					CardName:    item.CardName,
					CardTier:    models.TierRare,
					ValueCents:  item.ValueCents,
				})
				if err != nil {
					return err
				}
				_, err = s.Inventory().SetShipment(t.Context(), item.ID, user.ID, shipment.ID, nil)
				return err
			})
		}

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = ship()
			}()
		}
		wg.Wait()

		var refused int
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, apperrors.ErrShipmentActive)
				refused++
			}
		}
		require.Equal(t, 1, refused, "exactly one of the two ships must be refused")

		var shipments int
		err = pg.Pool.QueryRow(t.Context(),
			`SELECT count(*) FROM shipments WHERE inventory_item_id = $1`, item.ID).Scan(&shipments)
		require.NoError(t, err)
		require.Equal(t, 1, shipments, "the loser's shipment row must roll back")

		got, err := storage.Inventory().GetItem(t.Context(), item.ID, user.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ShipmentID)
	})

	t.Run("ListItems", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage) {
			user, err := storage.User().CreateUser(t.Context(), uuid.New(), "pat@example.com")
			require.NoError(t, err)

			first := seedItem(t, tx, storage, user.ID)
			second := seedItem(t, tx, storage, user.ID)

			_, err = storage.Inventory().MarkSold(t.Context(), second.ID, user.ID, 4)
			require.NoError(t, err)

			items, err := storage.Inventory().ListItems(t.Context(), user.ID)

			require.NoError(t, err)
			require.Len(t, items, 2)
			require.Equal(t, first.ID, items[0].ID, "unsold items should come before sold ones")
			require.Equal(t, second.ID, items[1].ID)
		})
	})
}
