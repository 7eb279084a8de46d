package variant

// TaxClass is the immutable tax bracket a product belongs to. Rate is the
// display percentage (e.g. 19), Calc the decimal factor used for gross/net
// conversion (e.g. 0.19).
type TaxClass struct {
	id   int
	rate float64
	calc float64
	name string
}

// NewTaxClass constructs a tax class value.
func NewTaxClass(id int, rate, calc float64, name string) TaxClass {
	return TaxClass{id: id, rate: rate, calc: calc, name: name}
}

// ID returns the tax class identifier.
func (t TaxClass) ID() int { return t.id }

// Rate returns the display percentage.
func (t TaxClass) Rate() float64 { return t.rate }

// Calc returns the decimal conversion factor.
func (t TaxClass) Calc() float64 { return t.calc }

// Name returns the human-readable name.
func (t TaxClass) Name() string { return t.name }

// TaxClassView is the serialized snapshot of a tax class.
type TaxClassView struct {
	ID   int     `json:"id"`
	Rate float64 `json:"rate"`
	Calc float64 `json:"calc"`
	Name string  `json:"name"`
}

// View returns the serialization snapshot.
func (t TaxClass) View() TaxClassView {
	return TaxClassView{ID: t.id, Rate: t.rate, Calc: t.calc, Name: t.name}
}
