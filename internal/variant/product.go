package variant

import "errors"

// TierPrice is a quantity-tier price on the root product: the tier applies
// once the purchase quantity reaches Quantity.
type TierPrice struct {
	Quantity int
	Price    float64
}

// Product is the root of a variant tree. It supplies the pricing mode, the
// tax class, and the base/tier prices that variants derive their prices
// from, and owns the top-level variant collection.
type Product struct {
	additionals

	id    string
	sku   string
	title string

	price        float64
	specialPrice *float64
	tierPrices   []TierPrice

	netPrice bool
	taxClass TaxClass

	quantity int

	variants map[string]*Variant
	order    []string

	gross float64
	net   float64
	tax   float64
}

// ProductConfig carries the constructor arguments for a product.
type ProductConfig struct {
	ID       string
	Sku      string
	Title    string
	Price    float64
	NetPrice bool
	TaxClass TaxClass
	Quantity int
}

// NewProduct constructs a product root and computes its initial totals.
func NewProduct(cfg ProductConfig) *Product {
	p := &Product{
		id:       cfg.ID,
		sku:      cfg.Sku,
		title:    cfg.Title,
		price:    cfg.Price,
		netPrice: cfg.NetPrice,
		taxClass: cfg.TaxClass,
		quantity: cfg.Quantity,
	}
	// Without variants the totals never depend on a calc method, so the
	// initial pass cannot fail.
	_ = p.recalcLocal()
	return p
}

// ID returns the product identifier.
func (p *Product) ID() string { return p.id }

// Sku returns the product sku.
func (p *Product) Sku() string { return p.sku }

// Title returns the product title.
func (p *Product) Title() string { return p.title }

// IsNetPrice reports whether the listed price excludes tax.
func (p *Product) IsNetPrice() bool { return p.netPrice }

// SetNetPrice flips the pricing mode and recomputes the whole tree.
func (p *Product) SetNetPrice(net bool) error {
	p.netPrice = net
	return p.recalcTree()
}

// TaxClass returns the product tax class.
func (p *Product) TaxClass() TaxClass { return p.taxClass }

// SetTaxClass changes the tax class and recomputes the whole tree.
func (p *Product) SetTaxClass(tc TaxClass) error {
	p.taxClass = tc
	return p.recalcTree()
}

// Price returns the base list price.
func (p *Product) Price() float64 { return p.price }

// SetPrice changes the base price and recomputes the whole tree.
func (p *Product) SetPrice(price float64) error {
	p.price = price
	return p.recalcTree()
}

// SpecialPrice returns the special price if one is set.
func (p *Product) SpecialPrice() (float64, bool) {
	if p.specialPrice == nil {
		return 0, false
	}
	return *p.specialPrice, true
}

// SetSpecialPrice sets the special price and recomputes the whole tree.
func (p *Product) SetSpecialPrice(price float64) error {
	p.specialPrice = &price
	return p.recalcTree()
}

// SetTierPrice registers a quantity-tier price, replacing an existing tier
// at the same quantity, and recomputes the whole tree.
func (p *Product) SetTierPrice(quantity int, price float64) error {
	for i := range p.tierPrices {
		if p.tierPrices[i].Quantity == quantity {
			p.tierPrices[i].Price = price
			return p.recalcTree()
		}
	}
	p.tierPrices = append(p.tierPrices, TierPrice{Quantity: quantity, Price: price})
	return p.recalcTree()
}

// TierPrices returns the registered quantity tiers.
func (p *Product) TierPrices() []TierPrice { return p.tierPrices }

// BestPrice returns the per-unit price most favorable at the given quantity:
// the lowest of list price, special price, and any tier reached by quantity.
func (p *Product) BestPrice(quantity int) float64 {
	best := p.price
	if p.specialPrice != nil && *p.specialPrice < best {
		best = *p.specialPrice
	}
	for _, tier := range p.tierPrices {
		if quantity >= tier.Quantity && tier.Price < best {
			best = tier.Price
		}
	}
	return best
}

// Quantity returns the product quantity. With variants attached this is the
// sum of the top-level variant quantities.
func (p *Product) Quantity() int { return p.quantity }

// SetQuantity sets the quantity and recomputes; the variant roll-up wins
// when variants exist.
func (p *Product) SetQuantity(quantity int) error {
	p.quantity = quantity
	return p.recalcTree()
}

// ChangeQuantities applies nested quantity changes to the variant tree.
func (p *Product) ChangeQuantities(changes QuantityMap) error {
	for id, change := range changes {
		child := p.variants[id]
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

// AddVariant inserts a top-level variant with the same merge-on-duplicate
// semantics as Variant.AddVariant.
func (p *Product) AddVariant(incoming *Variant) error {
	if incoming == nil {
		return errors.New("variant: nil variant")
	}
	existing := p.variants[incoming.id]
	if existing != nil {
		if len(existing.order) > 0 {
			return existing.AddVariants(incoming.Variants())
		}
		return existing.SetQuantity(existing.quantity + incoming.quantity)
	}

	incoming.parent = p
	if p.variants == nil {
		p.variants = make(map[string]*Variant)
	}
	p.variants[incoming.id] = incoming
	p.order = append(p.order, incoming.id)
	if err := incoming.recalcDown(); err != nil {
		return err
	}
	return p.recalcLocal()
}

// AddVariants applies AddVariant for each element in order.
func (p *Product) AddVariants(incoming []*Variant) error {
	for _, nv := range incoming {
		if err := p.AddVariant(nv); err != nil {
			return err
		}
	}
	return nil
}

// RemoveVariants removes the referenced variants, fail-fast on the first
// missing id.
func (p *Product) RemoveVariants(removals RemovalMap) error {
	for id, nested := range removals {
		child := p.variants[id]
		if child == nil {
			return errorNotFound(id)
		}
		if nested != nil {
			if err := child.RemoveVariants(nested); err != nil {
				return err
			}
			if len(child.order) == 0 {
				p.detach(id)
			}
		} else {
			p.detach(id)
		}
		if err := p.recalcLocal(); err != nil {
			return err
		}
	}
	return nil
}

// Variants returns the top-level variants in insertion order.
func (p *Product) Variants() []*Variant {
	if len(p.order) == 0 {
		return nil
	}
	out := make([]*Variant, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.variants[id])
	}
	return out
}

// VariantByID returns the top-level variant with the given id, or nil.
func (p *Product) VariantByID(id string) *Variant { return p.variants[id] }

// Gross returns the cached total gross of the tree.
func (p *Product) Gross() float64 { return p.gross }

// Net returns the cached total net of the tree.
func (p *Product) Net() float64 { return p.net }

// Tax returns the cached tax amount of the tree.
func (p *Product) Tax() float64 { return p.tax }

// CompleteTitle returns the product title; the root opens the composite
// title chain.
func (p *Product) CompleteTitle() string { return p.title }

// CompleteSku returns the product sku; the root opens the composite sku
// chain.
func (p *Product) CompleteSku() string { return p.sku }

// CompleteTitleWithoutProduct contributes no segment: the root is exactly
// the part the "without product" chain omits.
func (p *Product) CompleteTitleWithoutProduct() (string, bool) { return "", false }

// CompleteSkuWithoutProduct contributes no segment.
func (p *Product) CompleteSkuWithoutProduct() (string, bool) { return "", false }

// Product returns the receiver: the chain ends here.
func (p *Product) Product() *Product { return p }

func (p *Product) detach(id string) {
	delete(p.variants, id)
	for i, key := range p.order {
		if key == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// recalc terminates the bubble chain at the root.
func (p *Product) recalc() error { return p.recalcLocal() }

// recalcTree refreshes the variant tree post-order and then the root; used
// when a root attribute every variant derives from has changed.
func (p *Product) recalcTree() error {
	for _, id := range p.order {
		if err := p.variants[id].recalcDown(); err != nil {
			return err
		}
	}
	return p.recalcLocal()
}

func (p *Product) recalcLocal() error {
	if len(p.order) > 0 {
		total := 0
		for _, id := range p.order {
			total += p.variants[id].quantity
		}
		p.quantity = total
	}

	calc := p.taxClass.Calc()

	if p.netPrice {
		if len(p.order) > 0 {
			sum := 0.0
			for _, id := range p.order {
				sum += p.variants[id].net
			}
			p.net = sum
		} else {
			p.net = p.BestPrice(p.quantity) * float64(p.quantity)
		}
		p.tax = p.net * calc
		p.gross = p.net + p.tax
		return nil
	}

	if len(p.order) > 0 {
		sum := 0.0
		for _, id := range p.order {
			sum += p.variants[id].gross
		}
		p.gross = sum
	} else {
		p.gross = p.BestPrice(p.quantity) * float64(p.quantity)
	}
	p.tax = p.gross / (1 + calc) * calc
	p.net = p.gross - p.tax
	return nil
}
