package sweet_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/sweetshop/internal/domain/sweet"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func TestNewSweet(t *testing.T) {
	t.Run("defaults unit to piece and rounds", func(t *testing.T) {
		s, err := sweet.NewSweet(sweet.Draft{Name: " Ladoo ", Category: "Indian", Price: dec("2.5"), Quantity: dec("3.6")})
		require.NoError(t, err)
		assert.Equal(t, "Ladoo", s.Name)
		assert.Equal(t, sweet.UnitPiece, s.QuantityUnit)
		assert.True(t, s.Quantity.Equal(dec("4")))
		assert.Equal(t, "", s.Image)
	})

	t.Run("keeps fractional weight", func(t *testing.T) {
		s, err := sweet.NewSweet(sweet.Draft{Name: "Barfi", Category: "Indian", Price: dec("10"), Quantity: dec("1.25"), QuantityUnit: sweet.UnitKg})
		require.NoError(t, err)
		assert.True(t, s.Quantity.Equal(dec("1.25")))
	})

	cases := []struct {
		name  string
		draft sweet.Draft
		field string
	}{
		{"missing name", sweet.Draft{Category: "c"}, "name"},
		{"blank category", sweet.Draft{Name: "n", Category: "  "}, "category"},
		{"negative price", sweet.Draft{Name: "n", Category: "c", Price: dec("-1")}, "price"},
		{"negative quantity", sweet.Draft{Name: "n", Category: "c", Quantity: dec("-1")}, "quantity"},
		{"unknown unit", sweet.Draft{Name: "n", Category: "c", QuantityUnit: "lb"}, "quantityUnit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sweet.NewSweet(tc.draft)
			require.ErrorIs(t, err, sweet.ErrValidation)
			var verr *sweet.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestParseUnit(t *testing.T) {
	u, err := sweet.ParseUnit("")
	require.NoError(t, err)
	assert.Equal(t, sweet.UnitPiece, u)

	u, err = sweet.ParseUnit("KG")
	require.NoError(t, err)
	assert.Equal(t, sweet.UnitKg, u)

	_, err = sweet.ParseUnit("box")
	assert.ErrorIs(t, err, sweet.ErrValidation)
}

func TestPatchNormalize(t *testing.T) {
	pieces := &sweet.Sweet{Quantity: dec("5"), QuantityUnit: sweet.UnitPiece}
	grams := &sweet.Sweet{Quantity: dec("2.5"), QuantityUnit: sweet.UnitGram}

	t.Run("rounds quantity for piece record", func(t *testing.T) {
		p, err := sweet.Patch{Quantity: ptr(dec("7.4"))}.Normalize(pieces)
		require.NoError(t, err)
		assert.True(t, p.Quantity.Equal(dec("7")))
	})

	t.Run("rounds when unit switches with quantity", func(t *testing.T) {
		p, err := sweet.Patch{Quantity: ptr(dec("2.5")), QuantityUnit: ptr(sweet.UnitPiece)}.Normalize(grams)
		require.NoError(t, err)
		assert.True(t, p.Quantity.Equal(dec("3")))
	})

	t.Run("rejects switching fractional stock to piece without quantity", func(t *testing.T) {
		_, err := sweet.Patch{QuantityUnit: ptr(sweet.UnitPiece)}.Normalize(grams)
		assert.ErrorIs(t, err, sweet.ErrValidation)
	})

	t.Run("leaves weight untouched", func(t *testing.T) {
		p, err := sweet.Patch{Quantity: ptr(dec("0.75"))}.Normalize(grams)
		require.NoError(t, err)
		assert.True(t, p.Quantity.Equal(dec("0.75")))
	})

	t.Run("rejects blank name", func(t *testing.T) {
		_, err := sweet.Patch{Name: ptr(" ")}.Normalize(pieces)
		assert.ErrorIs(t, err, sweet.ErrValidation)
	})

	t.Run("apply changes only supplied fields", func(t *testing.T) {
		s := &sweet.Sweet{Name: "A", Category: "X", Price: dec("1"), Quantity: dec("5"), QuantityUnit: sweet.UnitPiece}
		sweet.Patch{Category: ptr("Y")}.Apply(s)
		assert.Equal(t, "A", s.Name)
		assert.Equal(t, "Y", s.Category)
		assert.True(t, s.Quantity.Equal(dec("5")))
	})
}

func TestFilterMatches(t *testing.T) {
	a := &sweet.Sweet{Name: "A Bar", Category: "Chocolate", Price: dec("2.50")}
	b := &sweet.Sweet{Name: "B Bar", Category: "Chocolate", Price: dec("3.00")}
	c := &sweet.Sweet{Name: "C Worms", Category: "Gummies", Price: dec("1.50")}
	all := []*sweet.Sweet{a, b, c}

	match := func(f sweet.Filter) []*sweet.Sweet {
		var out []*sweet.Sweet
		for _, s := range all {
			if f.Matches(s) {
				out = append(out, s)
			}
		}
		return out
	}

	assert.Equal(t, []*sweet.Sweet{a, b}, match(sweet.Filter{Category: "Chocolate"}))
	assert.Equal(t, []*sweet.Sweet{a}, match(sweet.Filter{MinPrice: ptr(dec("2.0")), MaxPrice: ptr(dec("2.75"))}))
	assert.Equal(t, []*sweet.Sweet{c}, match(sweet.Filter{Name: "worm"}))
	assert.Equal(t, all, match(sweet.Filter{}))
	assert.Empty(t, match(sweet.Filter{Category: "chocolate"}))
}

func TestStockError(t *testing.T) {
	assert.ErrorIs(t, sweet.StockError(decimal.Zero, sweet.UnitPiece), sweet.ErrOutOfStock)

	err := sweet.StockError(dec("7"), sweet.UnitPiece)
	require.ErrorIs(t, err, sweet.ErrInsufficientStock)
	var ins *sweet.InsufficientStockError
	require.True(t, errors.As(err, &ins))
	assert.True(t, ins.Available.Equal(dec("7")))
	assert.Contains(t, err.Error(), "only 7 piece available")
}
