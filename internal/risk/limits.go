package risk

import "math"

// Limits clips order sizes against total exposure: the confirmed position plus
// the signed requested quantity of every live order for the instrument.
type Limits struct {
	MaxQuantity      float64
	QuantityPerTrade float64
}

func (l Limits) CanBuy(exposure float64) bool {
	return exposure < l.MaxQuantity
}

// BuyQuantity is the clip size for a buy, shrunk so the new exposure never
// exceeds MaxQuantity.
func (l Limits) BuyQuantity(exposure float64) float64 {
	return math.Min(l.QuantityPerTrade, l.MaxQuantity-exposure)
}

// CanSell reports whether there is anything left to reduce.
func (l Limits) CanSell(exposure float64) bool {
	return exposure > 0
}

func (l Limits) SellQuantity(exposure float64) float64 {
	return math.Min(l.QuantityPerTrade, exposure)
}
