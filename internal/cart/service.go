package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/obs"
	"github.com/noah-isme/pricing-api/internal/variant"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Service replays tree mutations against stored carts.
type Service struct {
	Store  *Store
	Logger zerolog.Logger
}

// TaxClassInput describes the tax class of a new product.
type TaxClassInput struct {
	ID   int     `json:"id"`
	Rate float64 `json:"rate" validate:"gte=0"`
	Calc float64 `json:"calc" validate:"gte=0"`
	Name string  `json:"name"`
}

// TierPriceInput describes one quantity-tier price.
type TierPriceInput struct {
	Quantity int     `json:"quantity" validate:"gt=0"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// VariantInput describes a variant subtree to attach.
type VariantInput struct {
	ID                 string         `json:"id" validate:"required"`
	Sku                string         `json:"sku"`
	Title              string         `json:"title"`
	PriceCalcMethod    int            `json:"priceCalcMethod" validate:"gte=0,lte=5"`
	Price              float64        `json:"price"`
	SpecialPrice       *float64       `json:"specialPrice,omitempty"`
	Quantity           int            `json:"quantity" validate:"gte=0"`
	DisplayedAsVariant bool           `json:"displayedAsVariant"`
	Variants           []VariantInput `json:"variants" validate:"dive"`
}

// ProductInput describes the product a cart is opened with.
type ProductInput struct {
	ID         string           `json:"id" validate:"required"`
	Sku        string           `json:"sku"`
	Title      string           `json:"title"`
	Price      float64          `json:"price" validate:"gte=0"`
	NetPrice   bool             `json:"netPrice"`
	Quantity   int              `json:"quantity" validate:"gte=0"`
	TaxClass   TaxClassInput    `json:"taxClass"`
	TierPrices []TierPriceInput `json:"tierPrices" validate:"dive"`
	Variants   []VariantInput   `json:"variants" validate:"dive"`
}

// QuantityNode is either a concrete quantity or a nested map descending into
// a child, mirroring the engine's quantity maps in JSON.
type QuantityNode struct {
	Quantity int
	Nested   map[string]QuantityNode
}

// UnmarshalJSON accepts either a number or an object of child nodes.
func (q *QuantityNode) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, &q.Nested)
	}
	return json.Unmarshal(trimmed, &q.Quantity)
}

// RemovalNode mirrors the engine's removal maps in JSON: null removes the
// child outright, an object recurses.
type RemovalNode map[string]RemovalNode

// Create opens a cart around a new product tree and returns its id and view.
func (s *Service) Create(in ProductInput) (string, variant.ProductView, error) {
	start := time.Now()
	id, view, err := s.create(in)
	obs.ObserveRecalc("create", time.Since(start))
	obs.CountMutation("create", err)
	return id, view, err
}

func (s *Service) create(in ProductInput) (string, variant.ProductView, error) {
	if s == nil || s.Store == nil {
		return "", variant.ProductView{}, errors.New("cart service not configured")
	}
	product := variant.NewProduct(variant.ProductConfig{
		ID:       in.ID,
		Sku:      in.Sku,
		Title:    in.Title,
		Price:    in.Price,
		NetPrice: in.NetPrice,
		Quantity: in.Quantity,
		TaxClass: variant.NewTaxClass(in.TaxClass.ID, in.TaxClass.Rate, in.TaxClass.Calc, in.TaxClass.Name),
	})
	for _, tier := range in.TierPrices {
		if err := product.SetTierPrice(tier.Quantity, tier.Price); err != nil {
			return "", variant.ProductView{}, err
		}
	}
	built, err := buildVariants(product, in.Variants)
	if err != nil {
		return "", variant.ProductView{}, err
	}
	if err := product.AddVariants(built); err != nil {
		return "", variant.ProductView{}, err
	}

	id := s.Store.Put(product)
	s.Logger.Debug().Str("cart_id", id).Str("product_id", in.ID).Msg("cart created")
	return id, product.View(), nil
}

// Get returns the serialized tree with current totals.
func (s *Service) Get(id string) (variant.ProductView, error) {
	if s == nil || s.Store == nil {
		return variant.ProductView{}, errors.New("cart service not configured")
	}
	var view variant.ProductView
	err := s.Store.With(id, func(p *variant.Product) error {
		view = p.View()
		return nil
	})
	return view, err
}

// AddVariants attaches variant subtrees at the node addressed by path (empty
// path addresses the product), merging on duplicate ids.
func (s *Service) AddVariants(id string, path []string, inputs []VariantInput) (variant.ProductView, error) {
	start := time.Now()
	view, err := s.mutate(id, func(p *variant.Product) error {
		node, err := walk(p, path)
		if err != nil {
			return err
		}
		built, err := buildVariants(node.(variant.PricingContext), inputs)
		if err != nil {
			return err
		}
		return node.AddVariants(built)
	})
	obs.ObserveRecalc("add_variants", time.Since(start))
	obs.CountMutation("add_variants", err)
	return view, err
}

// RemoveVariants removes the referenced subtrees, fail-fast on the first
// missing id.
func (s *Service) RemoveVariants(id string, removals RemovalNode) (variant.ProductView, error) {
	start := time.Now()
	view, err := s.mutate(id, func(p *variant.Product) error {
		return p.RemoveVariants(toRemovalMap(removals))
	})
	obs.ObserveRecalc("remove_variants", time.Since(start))
	obs.CountMutation("remove_variants", err)
	return view, err
}

// ChangeQuantities applies nested quantity changes to the tree.
func (s *Service) ChangeQuantities(id string, changes map[string]QuantityNode) (variant.ProductView, error) {
	start := time.Now()
	view, err := s.mutate(id, func(p *variant.Product) error {
		qm, err := toQuantityMap(changes)
		if err != nil {
			return err
		}
		return p.ChangeQuantities(qm)
	})
	obs.ObserveRecalc("change_quantities", time.Since(start))
	obs.CountMutation("change_quantities", err)
	return view, err
}

// SetVariantPrice updates the list price, and optionally the special price,
// of the variant addressed by path.
func (s *Service) SetVariantPrice(id string, path []string, price float64, specialPrice *float64) (variant.ProductView, error) {
	start := time.Now()
	view, err := s.mutate(id, func(p *variant.Product) error {
		v, err := walkToVariant(p, path)
		if err != nil {
			return err
		}
		if err := v.SetPrice(price); err != nil {
			return err
		}
		if specialPrice != nil {
			return v.SetSpecialPrice(*specialPrice)
		}
		return nil
	})
	obs.ObserveRecalc("set_price", time.Since(start))
	obs.CountMutation("set_price", err)
	return view, err
}

// BoundsInput carries optional bound updates for a variant.
type BoundsInput struct {
	Min   *int `json:"min" validate:"omitempty,gte=0"`
	Max   *int `json:"max" validate:"omitempty,gte=0"`
	Stock *int `json:"stock"`
}

// SetVariantBounds updates min/max/stock of the variant addressed by path.
// Min and max apply in the order that keeps a widening or narrowing change
// valid; a request with min greater than max still fails.
func (s *Service) SetVariantBounds(id string, path []string, in BoundsInput) (variant.ProductView, error) {
	start := time.Now()
	view, err := s.mutate(id, func(p *variant.Product) error {
		v, err := walkToVariant(p, path)
		if err != nil {
			return err
		}
		applyMin := func() error {
			if in.Min == nil {
				return nil
			}
			return v.SetMin(*in.Min)
		}
		applyMax := func() error {
			if in.Max == nil {
				return nil
			}
			return v.SetMax(*in.Max)
		}
		if in.Max != nil && *in.Max >= v.Min() {
			if err := applyMax(); err != nil {
				return err
			}
			if err := applyMin(); err != nil {
				return err
			}
		} else {
			if err := applyMin(); err != nil {
				return err
			}
			if err := applyMax(); err != nil {
				return err
			}
		}
		if in.Stock != nil {
			v.SetStock(*in.Stock)
		}
		return nil
	})
	obs.ObserveRecalc("set_bounds", time.Since(start))
	obs.CountMutation("set_bounds", err)
	return view, err
}

func (s *Service) mutate(id string, fn func(*variant.Product) error) (variant.ProductView, error) {
	if s == nil || s.Store == nil {
		return variant.ProductView{}, errors.New("cart service not configured")
	}
	var view variant.ProductView
	err := s.Store.With(id, func(p *variant.Product) error {
		if err := fn(p); err != nil {
			return err
		}
		view = p.View()
		return nil
	})
	return view, err
}

// treeNode is the structural surface shared by the product root and variant
// nodes.
type treeNode interface {
	VariantByID(string) *variant.Variant
	AddVariants([]*variant.Variant) error
	RemoveVariants(variant.RemovalMap) error
	ChangeQuantities(variant.QuantityMap) error
}

func walk(p *variant.Product, path []string) (treeNode, error) {
	var node treeNode = p
	for _, seg := range path {
		child := node.VariantByID(seg)
		if child == nil {
			return nil, variant.ErrVariantNotFound
		}
		node = child
	}
	return node, nil
}

func walkToVariant(p *variant.Product, path []string) (*variant.Variant, error) {
	if len(path) == 0 {
		return nil, ErrInvalidInput
	}
	node, err := walk(p, path)
	if err != nil {
		return nil, err
	}
	return node.(*variant.Variant), nil
}

func buildVariants(parent variant.PricingContext, inputs []VariantInput) ([]*variant.Variant, error) {
	out := make([]*variant.Variant, 0, len(inputs))
	for _, in := range inputs {
		v, err := buildVariant(parent, in)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func buildVariant(parent variant.PricingContext, in VariantInput) (*variant.Variant, error) {
	v, err := variant.New(variant.Config{
		ID:         in.ID,
		Parent:     parent,
		Title:      in.Title,
		Sku:        in.Sku,
		CalcMethod: variant.CalcMethod(in.PriceCalcMethod),
		Price:      in.Price,
		Quantity:   in.Quantity,
	})
	if err != nil {
		return nil, err
	}
	v.SetDisplayedAsVariant(in.DisplayedAsVariant)
	if in.SpecialPrice != nil {
		if err := v.SetSpecialPrice(*in.SpecialPrice); err != nil {
			return nil, err
		}
	}
	children, err := buildVariants(v, in.Variants)
	if err != nil {
		return nil, err
	}
	if err := v.AddVariants(children); err != nil {
		return nil, err
	}
	return v, nil
}

func toQuantityMap(nodes map[string]QuantityNode) (variant.QuantityMap, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make(variant.QuantityMap, len(nodes))
	for id, node := range nodes {
		if node.Nested == nil && node.Quantity < 0 {
			return nil, fmt.Errorf("%w: negative quantity for %q", ErrInvalidInput, id)
		}
		nested, err := toQuantityMap(node.Nested)
		if err != nil {
			return nil, err
		}
		out[id] = variant.QuantityChange{Quantity: node.Quantity, Nested: nested}
	}
	return out, nil
}

// toRemovalMap keeps the null/empty-object distinction: null removes a child
// outright, an empty object recurses and only removes a child left without
// children of its own.
func toRemovalMap(nodes RemovalNode) variant.RemovalMap {
	if nodes == nil {
		return nil
	}
	out := make(variant.RemovalMap, len(nodes))
	for id, nested := range nodes {
		out[id] = toRemovalMap(nested)
	}
	return out
}
