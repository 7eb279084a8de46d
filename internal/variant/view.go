package variant

// View is the flat display structure of a variant node. Children appear as a
// list of single-entry id-to-view objects, preserving insertion order.
type View struct {
	ID              string            `json:"id"`
	Sku             string            `json:"sku"`
	Title           string            `json:"title"`
	PriceCalcMethod int               `json:"priceCalcMethod"`
	Price           float64           `json:"price"`
	SpecialPrice    *float64          `json:"specialPrice,omitempty"`
	TaxClass        TaxClassView      `json:"taxClass"`
	Quantity        int               `json:"quantity"`
	PriceTotalGross float64           `json:"priceTotalGross"`
	PriceTotalNet   float64           `json:"priceTotalNet"`
	Tax             float64           `json:"tax"`
	Additionals     []Additional      `json:"additionals,omitempty"`
	Variants        []map[string]View `json:"variants,omitempty"`
}

// View serializes the subtree rooted at this variant.
func (v *Variant) View() View {
	view := View{
		ID:              v.id,
		Sku:             v.sku,
		Title:           v.title,
		PriceCalcMethod: int(v.calcMethod),
		Price:           v.price,
		SpecialPrice:    v.specialPrice,
		TaxClass:        v.TaxClass().View(),
		Quantity:        v.quantity,
		PriceTotalGross: v.gross,
		PriceTotalNet:   v.net,
		Tax:             v.tax,
		Additionals:     v.Additionals(),
	}
	for _, id := range v.order {
		view.Variants = append(view.Variants, map[string]View{id: v.variants[id].View()})
	}
	return view
}

// ProductView is the display structure of a product root and its tree.
type ProductView struct {
	ID              string            `json:"id"`
	Sku             string            `json:"sku"`
	Title           string            `json:"title"`
	Price           float64           `json:"price"`
	SpecialPrice    *float64          `json:"specialPrice,omitempty"`
	TierPrices      []TierPrice       `json:"tierPrices,omitempty"`
	NetPrice        bool              `json:"netPrice"`
	TaxClass        TaxClassView      `json:"taxClass"`
	Quantity        int               `json:"quantity"`
	PriceTotalGross float64           `json:"priceTotalGross"`
	PriceTotalNet   float64           `json:"priceTotalNet"`
	Tax             float64           `json:"tax"`
	Additionals     []Additional      `json:"additionals,omitempty"`
	Variants        []map[string]View `json:"variants,omitempty"`
}

// View serializes the product and its variant tree.
func (p *Product) View() ProductView {
	view := ProductView{
		ID:              p.id,
		Sku:             p.sku,
		Title:           p.title,
		Price:           p.price,
		SpecialPrice:    p.specialPrice,
		TierPrices:      p.tierPrices,
		NetPrice:        p.netPrice,
		TaxClass:        p.taxClass.View(),
		Quantity:        p.quantity,
		PriceTotalGross: p.gross,
		PriceTotalNet:   p.net,
		Tax:             p.tax,
		Additionals:     p.Additionals(),
	}
	for _, id := range p.order {
		view.Variants = append(view.Variants, map[string]View{id: p.variants[id].View()})
	}
	return view
}
