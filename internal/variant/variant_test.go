package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTaxClass() TaxClass {
	return NewTaxClass(1, 19, 0.19, "normal")
}

func testProduct(t *testing.T, netPrice bool) *Product {
	t.Helper()
	return NewProduct(ProductConfig{
		ID:       "prod-1",
		Sku:      "shirt",
		Title:    "Shirt",
		Price:    100,
		NetPrice: netPrice,
		TaxClass: testTaxClass(),
	})
}

func mustVariant(t *testing.T, cfg Config) *Variant {
	t.Helper()
	v, err := New(cfg)
	require.NoError(t, err)
	return v
}

func TestGrossModeReconciliation(t *testing.T) {
	p := testProduct(t, false)
	v := mustVariant(t, Config{
		ID: "red", Parent: p, Title: "Red", Sku: "red",
		CalcMethod: CalcOverride, Price: 10, Quantity: 3,
	})

	require.InDelta(t, 30.0, v.Gross(), 1e-9)
	require.InDelta(t, 30.0/1.19*0.19, v.Tax(), 1e-9)
	require.InDelta(t, 30.0-30.0/1.19*0.19, v.Net(), 1e-9)
	require.InDelta(t, v.Gross(), v.Net()+v.Tax(), 1e-9)
}

func TestNetModeReconciliation(t *testing.T) {
	p := testProduct(t, true)
	v := mustVariant(t, Config{
		ID: "red", Parent: p, Title: "Red", Sku: "red",
		CalcMethod: CalcOverride, Price: 10, Quantity: 3,
	})

	require.InDelta(t, 30.0, v.Net(), 1e-9)
	require.InDelta(t, 30.0*0.19, v.Tax(), 1e-9)
	require.InDelta(t, 30.0*1.19, v.Gross(), 1e-9)
}

func TestBestPriceDirection(t *testing.T) {
	p := testProduct(t, false)

	override := mustVariant(t, Config{ID: "a", Parent: p, CalcMethod: CalcOverride, Price: 100})
	require.NoError(t, override.SetSpecialPrice(80))
	require.InDelta(t, 80.0, override.BestPrice(0), 1e-9)

	subtract := mustVariant(t, Config{ID: "b", Parent: p, CalcMethod: CalcSubtract, Price: 100})
	require.NoError(t, subtract.SetSpecialPrice(80))
	require.InDelta(t, 100.0, subtract.BestPrice(0), 1e-9)

	require.NoError(t, subtract.SetSpecialPrice(120))
	require.InDelta(t, 120.0, subtract.BestPrice(0), 1e-9)
}

func TestPriceCalculatedPerMethod(t *testing.T) {
	p := testProduct(t, false) // product best price 100

	cases := []struct {
		name   string
		method CalcMethod
		want   float64
	}{
		{"inherit", CalcInherit, 100},
		{"override", CalcOverride, 10},
		{"subtract", CalcSubtract, 90},
		{"subtract percent", CalcSubtractPercent, 90},
		{"add", CalcAdd, 110},
		{"add percent", CalcAddPercent, 110},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := mustVariant(t, Config{
				ID: "v-" + tc.name, Parent: p,
				CalcMethod: tc.method, Price: 10, Quantity: 1,
			})
			got, err := v.PriceCalculated()
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestUnknownCalcMethod(t *testing.T) {
	p := testProduct(t, false)

	_, err := New(Config{ID: "v", Parent: p, CalcMethod: CalcMethod(42), Price: 10})
	require.ErrorIs(t, err, ErrUnknownCalcMethod)

	v := mustVariant(t, Config{ID: "v", Parent: p, CalcMethod: CalcOverride, Price: 10})
	require.ErrorIs(t, v.SetCalcMethod(CalcMethod(42)), ErrUnknownCalcMethod)
	_, err = v.PriceCalculated()
	require.ErrorIs(t, err, ErrUnknownCalcMethod)
}

func TestDiscountQueries(t *testing.T) {
	p := testProduct(t, false)
	v := mustVariant(t, Config{ID: "v", Parent: p, CalcMethod: CalcOverride, Price: 100, Quantity: 1})

	discount, err := v.Discount()
	require.NoError(t, err)
	require.Zero(t, discount)

	require.Zero(t, v.SpecialPriceDiscount())
	require.NoError(t, v.SetSpecialPrice(80))
	require.InDelta(t, 20.0, v.SpecialPriceDiscount(), 1e-9)
}

func TestParentPrice(t *testing.T) {
	p := testProduct(t, false)

	inherit := mustVariant(t, Config{ID: "a", Parent: p, CalcMethod: CalcInherit, Quantity: 1})
	require.InDelta(t, 100.0, inherit.ParentPrice(), 1e-9)

	override := mustVariant(t, Config{ID: "b", Parent: p, CalcMethod: CalcOverride, Price: 10, Quantity: 1})
	require.Zero(t, override.ParentPrice())
}

func TestMergeOnDuplicateAdd(t *testing.T) {
	p := testProduct(t, false)
	parent := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(parent))

	first := mustVariant(t, Config{ID: "xl", Parent: parent, CalcMethod: CalcOverride, Price: 10, Quantity: 2})
	require.NoError(t, parent.AddVariant(first))

	second := mustVariant(t, Config{ID: "xl", Parent: parent, CalcMethod: CalcOverride, Price: 10, Quantity: 3})
	require.NoError(t, parent.AddVariant(second))

	require.Len(t, parent.Variants(), 1)
	require.Equal(t, 5, parent.VariantByID("xl").Quantity())
	require.Equal(t, 5, parent.Quantity())
	require.Equal(t, 5, p.Quantity())
}

func TestMergeRecursesIntoSubtrees(t *testing.T) {
	p := testProduct(t, false)
	root := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(root))

	existing := mustVariant(t, Config{ID: "xl", Parent: root, CalcMethod: CalcInherit})
	require.NoError(t, root.AddVariant(existing))
	require.NoError(t, existing.AddVariant(mustVariant(t, Config{
		ID: "red", Parent: existing, CalcMethod: CalcOverride, Price: 10, Quantity: 2,
	})))

	incoming := mustVariant(t, Config{ID: "xl", Parent: root, CalcMethod: CalcInherit})
	require.NoError(t, incoming.AddVariant(mustVariant(t, Config{
		ID: "red", Parent: incoming, CalcMethod: CalcOverride, Price: 10, Quantity: 3,
	})))
	require.NoError(t, incoming.AddVariant(mustVariant(t, Config{
		ID: "blue", Parent: incoming, CalcMethod: CalcOverride, Price: 12, Quantity: 1,
	})))

	require.NoError(t, root.AddVariant(incoming))

	merged := root.VariantByID("xl")
	require.Same(t, existing, merged)
	require.Equal(t, 5, merged.VariantByID("red").Quantity())
	require.Equal(t, 1, merged.VariantByID("blue").Quantity())
	require.Equal(t, 6, merged.Quantity())
	require.Equal(t, 6, root.Quantity())
}

func TestUniformQuantityPropagation(t *testing.T) {
	p := testProduct(t, false)
	parent := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(parent))
	for _, id := range []string{"s", "m", "l"} {
		require.NoError(t, parent.AddVariant(mustVariant(t, Config{
			ID: id, Parent: parent, CalcMethod: CalcOverride, Price: 10, Quantity: 1,
		})))
	}

	require.NoError(t, parent.ChangeQuantity(7))

	for _, child := range parent.Variants() {
		require.Equal(t, 7, child.Quantity())
	}
	require.Equal(t, 21, parent.Quantity())
	require.Equal(t, 21, p.Quantity())
}

func TestChangeQuantitiesNested(t *testing.T) {
	p := testProduct(t, false)
	size := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(size))
	xl := mustVariant(t, Config{ID: "xl", Parent: size, CalcMethod: CalcInherit})
	require.NoError(t, size.AddVariant(xl))
	require.NoError(t, xl.AddVariant(mustVariant(t, Config{
		ID: "red", Parent: xl, CalcMethod: CalcOverride, Price: 10, Quantity: 2,
	})))

	require.NoError(t, size.ChangeQuantities(QuantityMap{
		"xl": {Nested: QuantityMap{"red": {Quantity: 9}}},
	}))
	require.Equal(t, 9, xl.VariantByID("red").Quantity())
	require.Equal(t, 9, xl.Quantity())
	require.Equal(t, 9, size.Quantity())

	err := size.ChangeQuantities(QuantityMap{"missing": {Quantity: 1}})
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestRemoveVariants(t *testing.T) {
	p := testProduct(t, false)
	size := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(size))
	xl := mustVariant(t, Config{ID: "xl", Parent: size, CalcMethod: CalcInherit})
	require.NoError(t, size.AddVariant(xl))
	require.NoError(t, xl.AddVariant(mustVariant(t, Config{
		ID: "red", Parent: xl, CalcMethod: CalcOverride, Price: 10, Quantity: 2,
	})))
	require.NoError(t, size.AddVariant(mustVariant(t, Config{
		ID: "m", Parent: size, CalcMethod: CalcOverride, Price: 8, Quantity: 4,
	})))

	// Removing the only grandchild empties xl, which is then removed too.
	require.NoError(t, size.RemoveVariants(RemovalMap{"xl": {"red": nil}}))
	require.Nil(t, size.VariantByID("xl"))
	require.Equal(t, 4, size.Quantity())

	err := size.RemoveVariants(RemovalMap{"missing": nil})
	require.ErrorIs(t, err, ErrVariantNotFound)

	require.NoError(t, size.RemoveVariants(RemovalMap{"m": nil}))
	require.Empty(t, size.Variants())
}

func TestQuantityInvariantAfterMutations(t *testing.T) {
	p := testProduct(t, false)
	parent := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(parent))

	childSum := func() int {
		sum := 0
		for _, c := range parent.Variants() {
			sum += c.Quantity()
		}
		return sum
	}

	require.NoError(t, parent.AddVariant(mustVariant(t, Config{
		ID: "a", Parent: parent, CalcMethod: CalcOverride, Price: 10, Quantity: 2,
	})))
	require.Equal(t, childSum(), parent.Quantity())

	require.NoError(t, parent.AddVariant(mustVariant(t, Config{
		ID: "b", Parent: parent, CalcMethod: CalcOverride, Price: 10, Quantity: 5,
	})))
	require.Equal(t, childSum(), parent.Quantity())

	require.NoError(t, parent.VariantByID("a").SetQuantity(11))
	require.Equal(t, childSum(), parent.Quantity())

	require.NoError(t, parent.RemoveVariants(RemovalMap{"b": nil}))
	require.Equal(t, childSum(), parent.Quantity())
}

func TestParentWithChildrenAggregatesChildTotals(t *testing.T) {
	p := testProduct(t, false)
	parent := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcOverride, Price: 999, Quantity: 1})
	require.NoError(t, p.AddVariant(parent))
	require.NoError(t, parent.AddVariant(mustVariant(t, Config{
		ID: "a", Parent: parent, CalcMethod: CalcOverride, Price: 10, Quantity: 2,
	})))
	require.NoError(t, parent.AddVariant(mustVariant(t, Config{
		ID: "b", Parent: parent, CalcMethod: CalcOverride, Price: 5, Quantity: 1,
	})))

	// The parent's own price of 999 contributes nothing to the totals.
	require.InDelta(t, 25.0, parent.Gross(), 1e-9)
	require.InDelta(t, 25.0, p.Gross(), 1e-9)

	// It still participates in the per-unit price APIs.
	require.InDelta(t, 999.0, parent.BestPrice(0), 1e-9)
}

func TestRootPriceChangeRecomputesTree(t *testing.T) {
	p := testProduct(t, false)
	v := mustVariant(t, Config{ID: "v", Parent: p, CalcMethod: CalcInherit, Quantity: 2})
	require.NoError(t, p.AddVariant(v))
	require.InDelta(t, 200.0, v.Gross(), 1e-9)

	require.NoError(t, p.SetPrice(50))
	require.InDelta(t, 100.0, v.Gross(), 1e-9)
	require.InDelta(t, 100.0, p.Gross(), 1e-9)

	require.NoError(t, p.SetNetPrice(true))
	require.InDelta(t, 100.0, v.Net(), 1e-9)
	require.InDelta(t, 119.0, v.Gross(), 1e-9)
}

func TestVariantPriceChangeBubblesUp(t *testing.T) {
	p := testProduct(t, false)
	parent := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(parent))
	leaf := mustVariant(t, Config{ID: "xl", Parent: parent, CalcMethod: CalcOverride, Price: 10, Quantity: 3})
	require.NoError(t, parent.AddVariant(leaf))
	require.InDelta(t, 30.0, p.Gross(), 1e-9)

	require.NoError(t, leaf.SetPrice(20))
	require.InDelta(t, 60.0, parent.Gross(), 1e-9)
	require.InDelta(t, 60.0, p.Gross(), 1e-9)
}

func TestMinMaxBounds(t *testing.T) {
	p := testProduct(t, false)
	v := mustVariant(t, Config{ID: "v", Parent: p, CalcMethod: CalcOverride, Price: 10})

	require.NoError(t, v.SetMax(10))
	require.NoError(t, v.SetMin(5))

	err := v.SetMax(2)
	require.ErrorIs(t, err, ErrInvalidBounds)
	require.Equal(t, 10, v.Max())

	require.ErrorIs(t, v.SetMin(-1), ErrInvalidBounds)
	require.ErrorIs(t, v.SetMin(11), ErrInvalidBounds)
	require.Equal(t, 5, v.Min())

	v.SetStock(999)
	require.Equal(t, 999, v.Stock())
}

func TestCompositeTitleAndSku(t *testing.T) {
	p := testProduct(t, false)
	red := mustVariant(t, Config{ID: "red-id", Parent: p, Title: "Red", Sku: "red", CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(red))
	xl := mustVariant(t, Config{ID: "xl-id", Parent: red, Title: "XL", Sku: "xl", CalcMethod: CalcInherit})
	require.NoError(t, red.AddVariant(xl))

	require.Equal(t, "Shirt - Red - XL", xl.CompleteTitle())
	require.Equal(t, "shirt-red-xl", xl.CompleteSku())

	title, ok := xl.CompleteTitleWithoutProduct()
	require.True(t, ok)
	require.Equal(t, "Red - XL", title)
	sku, ok := xl.CompleteSkuWithoutProduct()
	require.True(t, ok)
	require.Equal(t, "red-xl", sku)

	xl.SetDisplayedAsVariant(true)
	require.Equal(t, "Shirt - Red - xl-id", xl.CompleteTitle())

	xl.SetTitleDelimiter(" / ")
	xl.SetSkuDelimiter(".")
	require.Equal(t, "Shirt - Red / xl-id", xl.CompleteTitle())
	require.Equal(t, "shirt-red.xl", xl.CompleteSku())
}

func TestAdditionalDataOrdering(t *testing.T) {
	p := testProduct(t, false)
	v := mustVariant(t, Config{ID: "v", Parent: p, CalcMethod: CalcOverride, Price: 10})

	v.SetAdditional("engraving", "hello")
	v.SetAdditional("giftWrap", true)
	v.SetAdditional("engraving", "world")

	got, ok := v.Additional("engraving")
	require.True(t, ok)
	require.Equal(t, "world", got)

	all := v.Additionals()
	require.Len(t, all, 2)
	require.Equal(t, "engraving", all[0].Key)
	require.Equal(t, "giftWrap", all[1].Key)

	view := v.View()
	require.Equal(t, all, view.Additionals)
}

func TestViewShape(t *testing.T) {
	p := testProduct(t, false)
	size := mustVariant(t, Config{ID: "size", Parent: p, Title: "Size", Sku: "size", CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(size))
	require.NoError(t, size.AddVariant(mustVariant(t, Config{
		ID: "xl", Parent: size, Title: "XL", Sku: "xl", CalcMethod: CalcOverride, Price: 10, Quantity: 3,
	})))
	require.NoError(t, size.AddVariant(mustVariant(t, Config{
		ID: "m", Parent: size, Title: "M", Sku: "m", CalcMethod: CalcOverride, Price: 8, Quantity: 1,
	})))

	view := size.View()
	require.Equal(t, "size", view.ID)
	require.Equal(t, 4, view.Quantity)
	require.InDelta(t, 38.0, view.PriceTotalGross, 1e-9)
	require.Equal(t, testTaxClass().View(), view.TaxClass)
	require.Len(t, view.Variants, 2)
	_, hasXL := view.Variants[0]["xl"]
	require.True(t, hasXL, "children must serialize in insertion order")
	_, hasM := view.Variants[1]["m"]
	require.True(t, hasM)
}

func TestSerializationRoundTrip(t *testing.T) {
	methods := []CalcMethod{
		CalcInherit, CalcOverride, CalcSubtract,
		CalcSubtractPercent, CalcAdd, CalcAddPercent,
	}
	for _, netPrice := range []bool{false, true} {
		for _, method := range methods {
			p := testProduct(t, netPrice)
			original := mustVariant(t, Config{
				ID: "v", Parent: p, Title: "V", Sku: "v",
				CalcMethod: method, Price: 12.5, Quantity: 4,
			})
			require.NoError(t, p.AddVariant(original))

			view := original.View()
			rebuilt := mustVariant(t, Config{
				ID:         view.ID,
				Parent:     testProduct(t, netPrice),
				Title:      view.Title,
				Sku:        view.Sku,
				CalcMethod: CalcMethod(view.PriceCalcMethod),
				Price:      view.Price,
				Quantity:   view.Quantity,
			})
			require.NoError(t, rebuilt.Product().AddVariant(rebuilt))

			require.InDelta(t, original.Gross(), rebuilt.Gross(), 1e-9)
			require.InDelta(t, original.Net(), rebuilt.Net(), 1e-9)
			require.InDelta(t, original.Tax(), rebuilt.Tax(), 1e-9)
		}
	}
}

func TestRemoveVariantsStopsAtFirstMiss(t *testing.T) {
	p := testProduct(t, false)
	size := mustVariant(t, Config{ID: "size", Parent: p, CalcMethod: CalcInherit})
	require.NoError(t, p.AddVariant(size))
	require.NoError(t, size.AddVariant(mustVariant(t, Config{
		ID: "a", Parent: size, CalcMethod: CalcOverride, Price: 10, Quantity: 1,
	})))

	err := size.RemoveVariants(RemovalMap{"missing": nil})
	require.True(t, errors.Is(err, ErrVariantNotFound))
	// Nothing at this level was touched by the failed batch.
	require.NotNil(t, size.VariantByID("a"))
	require.Equal(t, 1, size.Quantity())
}
