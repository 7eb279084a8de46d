package variant

import (
	"errors"
	"fmt"
)

// CalcMethod selects how a variant's per-unit price derives from the
// effective parent price.
type CalcMethod int

const (
	// CalcInherit passes the parent price through unchanged.
	CalcInherit CalcMethod = iota
	// CalcOverride replaces the parent price with the variant's own best price.
	CalcOverride
	// CalcSubtract reduces the parent price by an absolute amount.
	CalcSubtract
	// CalcSubtractPercent reduces the parent price by a percentage.
	CalcSubtractPercent
	// CalcAdd raises the parent price by an absolute amount.
	CalcAdd
	// CalcAddPercent raises the parent price by a percentage.
	CalcAddPercent
)

var (
	// ErrUnknownCalcMethod is returned when a price is requested for a calc
	// method outside the supported range. Callers must treat it as a data
	// integrity violation.
	ErrUnknownCalcMethod = errors.New("unknown price calculation method")
	// ErrInvalidBounds is returned when SetMin/SetMax would violate
	// 0 <= min <= max. No mutation is applied.
	ErrInvalidBounds = errors.New("invalid min/max bounds")
	// ErrVariantNotFound is returned when a batch operation references a
	// variant id that does not exist at that level of the tree.
	ErrVariantNotFound = errors.New("variant not found")
)

const (
	defaultTitleDelimiter = " - "
	defaultSkuDelimiter   = "-"
)

func errorNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrVariantNotFound, id)
}

// Variant is one node of the configurable-option tree hanging off a product.
// A variant contributes quantity and price to its parent and may itself carry
// further nested variants; a node with children aggregates their totals
// instead of its own leaf contribution.
//
// Totals are recomputed eagerly: every mutation refreshes the affected
// subtree and bubbles the refresh up to the root, so Gross/Net/Tax are plain
// cached reads. The tree is not safe for concurrent mutation; callers hold
// one exclusive lock around a mutation and its recompute pass.
type Variant struct {
	additionals

	id    string
	sku   string
	title string

	parent PricingContext

	titleDelimiter string
	skuDelimiter   string

	calcMethod   CalcMethod
	price        float64
	specialPrice *float64

	quantity int

	variants map[string]*Variant
	order    []string

	gross float64
	net   float64
	tax   float64

	displayedAsVariant bool

	min   int
	max   int
	stock int
}

// Config carries the constructor arguments for a variant node.
type Config struct {
	ID         string
	Parent     PricingContext
	Title      string
	Sku        string
	CalcMethod CalcMethod
	Price      float64
	Quantity   int
}

// New constructs a variant and computes its initial totals.
func New(cfg Config) (*Variant, error) {
	if cfg.Parent == nil {
		return nil, errors.New("variant: parent is required")
	}
	v := &Variant{
		id:             cfg.ID,
		parent:         cfg.Parent,
		title:          cfg.Title,
		sku:            cfg.Sku,
		calcMethod:     cfg.CalcMethod,
		price:          cfg.Price,
		quantity:       cfg.Quantity,
		titleDelimiter: defaultTitleDelimiter,
		skuDelimiter:   defaultSkuDelimiter,
	}
	if err := v.recalcLocal(); err != nil {
		return nil, err
	}
	return v, nil
}

// ID returns the variant identifier, unique among its siblings.
func (v *Variant) ID() string { return v.id }

// Sku returns the variant sku segment.
func (v *Variant) Sku() string { return v.sku }

// Title returns the variant title segment.
func (v *Variant) Title() string { return v.title }

// Parent returns the pricing context this variant hangs off.
func (v *Variant) Parent() PricingContext { return v.parent }

// Product walks the parent chain to the root product.
func (v *Variant) Product() *Product { return v.parent.Product() }

// IsNetPrice reports the pricing mode inherited from the root product.
func (v *Variant) IsNetPrice() bool { return v.parent.IsNetPrice() }

// TaxClass returns the tax class inherited from the root product.
func (v *Variant) TaxClass() TaxClass { return v.parent.TaxClass() }

// TitleDelimiter returns the separator used when composing titles.
func (v *Variant) TitleDelimiter() string { return v.titleDelimiter }

// SetTitleDelimiter overrides the title separator.
func (v *Variant) SetTitleDelimiter(d string) { v.titleDelimiter = d }

// SkuDelimiter returns the separator used when composing skus.
func (v *Variant) SkuDelimiter() string { return v.skuDelimiter }

// SetSkuDelimiter overrides the sku separator.
func (v *Variant) SetSkuDelimiter(d string) { v.skuDelimiter = d }

// DisplayedAsVariant reports whether composite titles use the variant id
// instead of its title (customer-facing "choose an option" variants).
func (v *Variant) DisplayedAsVariant() bool { return v.displayedAsVariant }

// SetDisplayedAsVariant toggles id-based title composition.
func (v *Variant) SetDisplayedAsVariant(displayed bool) { v.displayedAsVariant = displayed }

// Price returns the variant's own list price.
func (v *Variant) Price() float64 { return v.price }

// SetPrice changes the list price and recomputes the tree.
func (v *Variant) SetPrice(price float64) error {
	v.price = price
	return v.recalcAndBubble()
}

// SpecialPrice returns the special price if one is set.
func (v *Variant) SpecialPrice() (float64, bool) {
	if v.specialPrice == nil {
		return 0, false
	}
	return *v.specialPrice, true
}

// SetSpecialPrice sets the special price and recomputes the tree.
func (v *Variant) SetSpecialPrice(price float64) error {
	v.specialPrice = &price
	return v.recalcAndBubble()
}

// CalcMethod returns the price calculation method.
func (v *Variant) CalcMethod() CalcMethod { return v.calcMethod }

// SetCalcMethod changes the price calculation method and recomputes the tree.
func (v *Variant) SetCalcMethod(method CalcMethod) error {
	v.calcMethod = method
	return v.recalcAndBubble()
}

// BestPrice returns the more favorable of list price and special price. The
// direction depends on the calc method: for subtractive methods a higher
// special price is the better one. The quantity argument is part of the
// PricingContext contract and ignored here; only products price by tier.
func (v *Variant) BestPrice(int) float64 {
	best := v.price
	if v.specialPrice != nil {
		special := *v.specialPrice
		switch v.calcMethod {
		case CalcInherit, CalcOverride, CalcAdd, CalcAddPercent:
			if special < best {
				best = special
			}
		case CalcSubtract, CalcSubtractPercent:
			if special > best {
				best = special
			}
		}
	}
	return best
}

// PriceCalculated derives the per-unit price from the variant's best price
// and the effective parent price.
func (v *Variant) PriceCalculated() (float64, error) {
	price := v.BestPrice(0)
	parentPrice := v.parent.BestPrice(v.quantity)

	switch v.calcMethod {
	case CalcInherit:
		return parentPrice, nil
	case CalcOverride:
		return price, nil
	case CalcSubtract:
		return parentPrice - price, nil
	case CalcSubtractPercent:
		return parentPrice - (price/100)*parentPrice, nil
	case CalcAdd:
		return parentPrice + price, nil
	case CalcAddPercent:
		return parentPrice + (price/100)*parentPrice, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownCalcMethod, int(v.calcMethod))
}

// BestPriceCalculated routes through the same derivation as PriceCalculated.
func (v *Variant) BestPriceCalculated() (float64, error) {
	return v.PriceCalculated()
}

// Discount is the difference between the calculated price and the best
// calculated price. Both currently route through the same derivation, so the
// result is zero; the query is kept public for a future list-price path.
func (v *Variant) Discount() (float64, error) {
	calculated, err := v.PriceCalculated()
	if err != nil {
		return 0, err
	}
	best, err := v.BestPriceCalculated()
	if err != nil {
		return 0, err
	}
	return calculated - best, nil
}

// SpecialPriceDiscount returns the special price reduction as a percentage
// of the list price, or zero when no special price is set.
func (v *Variant) SpecialPriceDiscount() float64 {
	if v.price == 0 || v.specialPrice == nil {
		return 0
	}
	return (v.price - *v.specialPrice) / v.price * 100
}

// ParentPrice returns the effective parent price, or zero for the absolute
// override method which does not consult the parent.
func (v *Variant) ParentPrice() float64 {
	if v.calcMethod == CalcOverride {
		return 0
	}
	return v.parent.BestPrice(v.quantity)
}

// Quantity returns the variant quantity. For a node with children this is
// always the sum of the children's quantities.
func (v *Variant) Quantity() int { return v.quantity }

// SetQuantity sets the quantity of this node only and recomputes. On a node
// with children the quantity roll-up wins.
func (v *Variant) SetQuantity(quantity int) error {
	v.quantity = quantity
	return v.recalcAndBubble()
}

// ChangeQuantity sets the quantity of this node and propagates the same new
// quantity to every descendant, then recomputes.
func (v *Variant) ChangeQuantity(quantity int) error {
	if err := v.applyQuantity(quantity); err != nil {
		return err
	}
	return v.parent.recalc()
}

// QuantityMap maps variant ids to quantity changes, nesting per tree level.
type QuantityMap map[string]QuantityChange

// QuantityChange is either a concrete quantity or a nested map descending
// into the named child.
type QuantityChange struct {
	Quantity int
	Nested   QuantityMap
}

// ChangeQuantities applies nested quantity changes. A missing id fails with
// ErrVariantNotFound before that entry is applied.
func (v *Variant) ChangeQuantities(changes QuantityMap) error {
	for id, change := range changes {
		child := v.variants[id]
		if child == nil {
			return errorNotFound(id)
		}
		if change.Nested != nil {
			if err := child.ChangeQuantities(change.Nested); err != nil {
				return err
			}
			continue
		}
		if err := child.ChangeQuantity(change.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// AddVariant inserts a child variant. A colliding id merges instead: child
// trees merge recursively, leaf collisions add quantities.
func (v *Variant) AddVariant(incoming *Variant) error {
	if incoming == nil {
		return errors.New("variant: nil variant")
	}
	existing := v.variants[incoming.id]
	if existing != nil {
		if len(existing.order) > 0 {
			return existing.AddVariants(incoming.Variants())
		}
		return existing.SetQuantity(existing.quantity + incoming.quantity)
	}

	incoming.parent = v
	if v.variants == nil {
		v.variants = make(map[string]*Variant)
	}
	v.variants[incoming.id] = incoming
	v.order = append(v.order, incoming.id)
	return v.recalcAndBubble()
}

// AddVariants applies AddVariant for each element in order.
func (v *Variant) AddVariants(incoming []*Variant) error {
	for _, nv := range incoming {
		if err := v.AddVariant(nv); err != nil {
			return err
		}
	}
	return nil
}

// RemovalMap maps variant ids to removals. A nil value removes the child
// outright; a non-nil map recurses into the child, removing it afterwards if
// it ended up without children of its own.
type RemovalMap map[string]RemovalMap

// RemoveVariants removes the referenced variants. The batch is fail-fast: the
// first missing id aborts with ErrVariantNotFound and removals applied before
// the miss stay applied.
func (v *Variant) RemoveVariants(removals RemovalMap) error {
	for id, nested := range removals {
		child := v.variants[id]
		if child == nil {
			return errorNotFound(id)
		}
		if nested != nil {
			if err := child.RemoveVariants(nested); err != nil {
				return err
			}
			if len(child.order) == 0 {
				v.detach(id)
			}
		} else {
			v.detach(id)
		}
		if err := v.recalc(); err != nil {
			return err
		}
	}
	return nil
}

// Variants returns the children in insertion order.
func (v *Variant) Variants() []*Variant {
	if len(v.order) == 0 {
		return nil
	}
	out := make([]*Variant, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.variants[id])
	}
	return out
}

// VariantByID returns the child with the given id, or nil.
func (v *Variant) VariantByID(id string) *Variant { return v.variants[id] }

// Gross returns the cached total gross of the subtree.
func (v *Variant) Gross() float64 { return v.gross }

// Net returns the cached total net of the subtree.
func (v *Variant) Net() float64 { return v.net }

// Tax returns the cached tax amount of the subtree.
func (v *Variant) Tax() float64 { return v.tax }

// Min returns the lower quantity bound.
func (v *Variant) Min() int { return v.min }

// SetMin sets the lower bound, rejecting values below zero or above max.
func (v *Variant) SetMin(min int) error {
	if min < 0 || min > v.max {
		return fmt.Errorf("%w: min %d with max %d", ErrInvalidBounds, min, v.max)
	}
	v.min = min
	return nil
}

// Max returns the upper quantity bound.
func (v *Variant) Max() int { return v.max }

// SetMax sets the upper bound, rejecting values below zero or below min.
func (v *Variant) SetMax(max int) error {
	if max < 0 || max < v.min {
		return fmt.Errorf("%w: max %d with min %d", ErrInvalidBounds, max, v.min)
	}
	v.max = max
	return nil
}

// Stock returns the stock level. Stock is not constrained by min/max.
func (v *Variant) Stock() int { return v.stock }

// SetStock sets the stock level.
func (v *Variant) SetStock(stock int) { v.stock = stock }

// CompleteTitle composes the title chain from the root product down to this
// variant, joined by each node's own delimiter.
func (v *Variant) CompleteTitle() string {
	return v.parent.CompleteTitle() + v.titleDelimiter + v.titleSegment()
}

// CompleteTitleWithoutProduct composes the title chain omitting the root
// product segment.
func (v *Variant) CompleteTitleWithoutProduct() (string, bool) {
	if base, ok := v.parent.CompleteTitleWithoutProduct(); ok {
		return base + v.titleDelimiter + v.titleSegment(), true
	}
	return v.titleSegment(), true
}

// CompleteSku composes the sku chain from the root product down to this
// variant.
func (v *Variant) CompleteSku() string {
	return v.parent.CompleteSku() + v.skuDelimiter + v.sku
}

// CompleteSkuWithoutProduct composes the sku chain omitting the root product
// segment.
func (v *Variant) CompleteSkuWithoutProduct() (string, bool) {
	if base, ok := v.parent.CompleteSkuWithoutProduct(); ok {
		return base + v.skuDelimiter + v.sku, true
	}
	return v.sku, true
}

func (v *Variant) titleSegment() string {
	if v.displayedAsVariant {
		return v.id
	}
	return v.title
}

func (v *Variant) detach(id string) {
	delete(v.variants, id)
	for i, key := range v.order {
		if key == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

func (v *Variant) applyQuantity(quantity int) error {
	v.quantity = quantity
	for _, id := range v.order {
		if err := v.variants[id].applyQuantity(quantity); err != nil {
			return err
		}
	}
	return v.recalcLocal()
}

// recalcAndBubble refreshes the subtree rooted here and then the ancestors.
// The whole subtree is refreshed because children derive their parent price
// from this node.
func (v *Variant) recalcAndBubble() error {
	if err := v.recalcDown(); err != nil {
		return err
	}
	return v.parent.recalc()
}

// recalcDown refreshes the subtree post-order so parents read fresh child
// totals.
func (v *Variant) recalcDown() error {
	for _, id := range v.order {
		if err := v.variants[id].recalcDown(); err != nil {
			return err
		}
	}
	return v.recalcLocal()
}

// recalc implements the PricingContext hook: refresh this node from its
// children's caches, then continue up the chain.
func (v *Variant) recalc() error {
	if err := v.recalcLocal(); err != nil {
		return err
	}
	return v.parent.recalc()
}

// recalcLocal rolls up the quantity and recomputes gross/tax/net in the
// mode-appropriate order. The primary quantity for the mode is computed
// first and the other two derived from it within the same pass.
func (v *Variant) recalcLocal() error {
	if len(v.order) > 0 {
		total := 0
		for _, id := range v.order {
			total += v.variants[id].quantity
		}
		v.quantity = total
	}

	calc := v.TaxClass().Calc()

	if v.IsNetPrice() {
		if len(v.order) > 0 {
			sum := 0.0
			for _, id := range v.order {
				sum += v.variants[id].net
			}
			v.net = sum
		} else {
			best, err := v.BestPriceCalculated()
			if err != nil {
				return err
			}
			v.net = best * float64(v.quantity)
		}
		v.tax = v.net * calc
		v.gross = v.net + v.tax
		return nil
	}

	if len(v.order) > 0 {
		sum := 0.0
		for _, id := range v.order {
			sum += v.variants[id].gross
		}
		v.gross = sum
	} else {
		best, err := v.BestPriceCalculated()
		if err != nil {
			return err
		}
		v.gross = best * float64(v.quantity)
	}
	v.tax = v.gross / (1 + calc) * calc
	v.net = v.gross - v.tax
	return nil
}
