package sweet

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitPiece Unit = "piece"
	UnitKg    Unit = "kg"
	UnitGram  Unit = "gm"
)

// ParseUnit accepts piece, kg or gm (case-insensitive); empty means piece.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if u == "" {
		return UnitPiece, nil
	}
	if !u.Valid() {
		return "", invalid("quantityUnit", "must be one of piece, kg, gm")
	}
	return u, nil
}

func (u Unit) Valid() bool {
	switch u {
	case UnitPiece, UnitKg, UnitGram:
		return true
	}
	return false
}

// Integral reports whether stock in this unit must be a whole number.
func (u Unit) Integral() bool { return u == UnitPiece }

type Sweet struct {
	ID           string
	Name         string
	Category     string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	QuantityUnit Unit
	Image        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Sweet) Clone() *Sweet {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

func (s *Sweet) InStock() bool { return s.Quantity.IsPositive() }

// NormalizeQuantity rounds piece counts to the nearest whole number; kg and gm pass through.
func NormalizeQuantity(q decimal.Decimal, unit Unit) decimal.Decimal {
	if unit.Integral() {
		return q.Round(0)
	}
	return q
}

func isWhole(q decimal.Decimal) bool {
	return q.Equal(q.Truncate(0))
}

// Draft carries the fields of a sweet that does not exist yet.
type Draft struct {
	Name         string
	Category     string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	QuantityUnit Unit
	Image        string
}

// NewSweet validates a draft and returns the record to persist. ID and timestamps are left to the store.
func NewSweet(d Draft) (*Sweet, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	category := strings.TrimSpace(d.Category)
	if category == "" {
		return nil, invalid("category", "is required")
	}
	if d.Price.IsNegative() {
		return nil, invalid("price", "must be zero or greater")
	}
	if d.Quantity.IsNegative() {
		return nil, invalid("quantity", "must be zero or greater")
	}
	unit := d.QuantityUnit
	if unit == "" {
		unit = UnitPiece
	}
	if !unit.Valid() {
		return nil, invalid("quantityUnit", "must be one of piece, kg, gm")
	}
	return &Sweet{
		Name:         name,
		Category:     category,
		Price:        d.Price,
		Quantity:     NormalizeQuantity(d.Quantity, unit),
		QuantityUnit: unit,
		Image:        d.Image,
	}, nil
}

// Patch is a partial update; nil fields keep their stored value.
type Patch struct {
	Name         *string
	Category     *string
	Price        *decimal.Decimal
	Quantity     *decimal.Decimal
	QuantityUnit *Unit
	Image        *string
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil &&
		p.Quantity == nil && p.QuantityUnit == nil && p.Image == nil
}

// Normalize validates p against the current record and applies piece rounding.
// Switching a record with fractional stock to piece requires an explicit quantity,
// otherwise the stored value would have to be rewritten from a stale read.
func (p Patch) Normalize(current *Sweet) (Patch, error) {
	out := p
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return Patch{}, invalid("name", "must not be empty")
		}
		out.Name = &name
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		if category == "" {
			return Patch{}, invalid("category", "must not be empty")
		}
		out.Category = &category
	}
	if p.Price != nil && p.Price.IsNegative() {
		return Patch{}, invalid("price", "must be zero or greater")
	}
	if p.QuantityUnit != nil && !p.QuantityUnit.Valid() {
		return Patch{}, invalid("quantityUnit", "must be one of piece, kg, gm")
	}

	unit := current.QuantityUnit
	if p.QuantityUnit != nil {
		unit = *p.QuantityUnit
	}

	if p.Quantity != nil {
		if p.Quantity.IsNegative() {
			return Patch{}, invalid("quantity", "must be zero or greater")
		}
		q := NormalizeQuantity(*p.Quantity, unit)
		out.Quantity = &q
	} else if unit.Integral() && !current.QuantityUnit.Integral() && !isWhole(current.Quantity) {
		return Patch{}, invalid("quantity", "is required when switching fractional stock to piece")
	}
	return out, nil
}

// GuardFor returns the stored state a normalized p relies on. Rounding was decided
// against current's unit, and a switch to piece without a quantity keeps the stored
// value, so those writes must only land while the record still looks like current.
func (p Patch) GuardFor(current *Sweet) Guard {
	switch {
	case p.Quantity == nil && p.QuantityUnit == nil:
		return Guard{}
	case p.Quantity != nil && p.QuantityUnit != nil:
		return Guard{}
	case p.Quantity != nil:
		return Guard{Unit: current.QuantityUnit}
	}
	g := Guard{Unit: current.QuantityUnit}
	if p.QuantityUnit.Integral() && !current.QuantityUnit.Integral() {
		q := current.Quantity
		g.Quantity = &q
	}
	return g
}

// Apply copies the supplied fields onto s. Callers normalize first.
func (p Patch) Apply(s *Sweet) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.Quantity != nil {
		s.Quantity = *p.Quantity
	}
	if p.QuantityUnit != nil {
		s.QuantityUnit = *p.QuantityUnit
	}
	if p.Image != nil {
		s.Image = *p.Image
	}
}

// Filter composes search criteria with logical AND; zero values impose no constraint.
type Filter struct {
	// Name matches as a case-insensitive substring.
	Name     string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func (f Filter) Matches(s *Sweet) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && s.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && s.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}
