package stock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Available(t *testing.T) {
	tenantID := uuid.New()

	t.Run("available is quantity minus reserved", func(t *testing.T) {
		record, err := NewRecord(tenantID, uuid.New(), uuid.New())
		require.NoError(t, err)
		require.NoError(t, record.SetLevels(decimal.NewFromInt(10), decimal.NewFromInt(3)))

		assert.True(t, record.Available().Equal(decimal.NewFromInt(7)))
	})

	t.Run("over-reservation clamps to zero", func(t *testing.T) {
		record, err := NewRecord(tenantID, uuid.New(), uuid.New())
		require.NoError(t, err)
		require.NoError(t, record.SetLevels(decimal.NewFromInt(2), decimal.NewFromInt(5)))

		assert.True(t, record.Available().IsZero())
	})

	t.Run("rejects negative levels", func(t *testing.T) {
		record, err := NewRecord(tenantID, uuid.New(), uuid.New())
		require.NoError(t, err)

		assert.Error(t, record.SetLevels(decimal.NewFromInt(-1), decimal.Zero))
		assert.Error(t, record.SetLevels(decimal.Zero, decimal.NewFromInt(-1)))
	})
}

func TestAggregateAvailable(t *testing.T) {
	tenantID := uuid.New()
	productID := uuid.New()

	newRecord := func(qty, reserved int64) Record {
		record, err := NewRecord(tenantID, productID, uuid.New())
		require.NoError(t, err)
		require.NoError(t, record.SetLevels(decimal.NewFromInt(qty), decimal.NewFromInt(reserved)))
		return *record
	}

	t.Run("sums clamped availability across warehouses", func(t *testing.T) {
		records := []Record{
			newRecord(10, 3), // 7
			newRecord(2, 5),  // clamped to 0
			newRecord(4, 0),  // 4
		}
		assert.True(t, AggregateAvailable(records).Equal(decimal.NewFromInt(11)))
	})

	t.Run("empty set aggregates to zero", func(t *testing.T) {
		assert.True(t, AggregateAvailable(nil).IsZero())
	})

	t.Run("repeated aggregation does not drift", func(t *testing.T) {
		records := []Record{newRecord(10, 3), newRecord(4, 0)}
		first := AggregateAvailable(records)
		second := AggregateAvailable(records)
		assert.True(t, first.Equal(second))
	})
}
