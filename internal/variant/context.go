package variant

// PricingContext is the capability a parent must expose to the variants it
// prices. Both *Variant and *Product satisfy it, so a variant can hang off
// either the root product or another variant.
//
// The interface carries an unexported recompute hook: mutations recompute
// eagerly and bubble totals up to the root, so implementations live in this
// package.
type PricingContext interface {
	// IsNetPrice reports whether the root product prices net of tax.
	IsNetPrice() bool

	// TaxClass returns the tax class inherited from the root product.
	TaxClass() TaxClass

	// BestPrice returns the per-unit price most favorable at the given
	// quantity. Products consult their quantity tiers; variants ignore the
	// quantity and return their own best price.
	BestPrice(quantity int) float64

	// CompleteTitle returns the composite title from the root down to the
	// receiver.
	CompleteTitle() string

	// CompleteSku returns the composite sku from the root down to the
	// receiver.
	CompleteSku() string

	// CompleteTitleWithoutProduct returns the composite title of the variant
	// chain only. ok reports whether the receiver contributed a segment; the
	// root product never does.
	CompleteTitleWithoutProduct() (title string, ok bool)

	// CompleteSkuWithoutProduct is the sku counterpart of
	// CompleteTitleWithoutProduct.
	CompleteSkuWithoutProduct() (sku string, ok bool)

	// Product walks the parent chain to the root product.
	Product() *Product

	// recalc refreshes cached quantity and monetary totals after a
	// descendant mutated.
	recalc() error
}
