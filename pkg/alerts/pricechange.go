package alerts

import "math"

// Direction of a detected price movement.
const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStable = "stable"
	DirectionNew    = "new"
)

// PriceChange summarizes the movement between two observed prices.
type PriceChange struct {
	Changed        bool
	Direction      string
	PercentChange  float64
	AbsoluteChange float64
}

// minAbsoluteChange is the smallest movement per currency that counts as a
// real change; anything below is formatting noise.
var minAbsoluteChange = map[string]float64{
	"USD": 0.01,
	"EUR": 0.01,
	"GBP": 0.01,
	"CAD": 0.01,
	"BRL": 0.05,
	"INR": 0.50,
}

const minPercentChange = 1.0

// DetectPriceChange decides whether the price genuinely moved. A first-ever
// price counts as a change with direction "new"; losing the price does not.
// Otherwise a move registers only above 1% or above the currency's absolute
// floor. History appends are gated on this.
func DetectPriceChange(oldPrice, newPrice float64, currency string) PriceChange {
	if oldPrice == 0 {
		if newPrice > 0 {
			return PriceChange{Changed: true, Direction: DirectionNew, AbsoluteChange: newPrice}
		}
		return PriceChange{Direction: DirectionStable}
	}

	if newPrice == 0 {
		return PriceChange{Direction: DirectionStable}
	}

	absolute := math.Abs(newPrice - oldPrice)
	percent := absolute / oldPrice * 100

	floor, ok := minAbsoluteChange[currency]
	if !ok {
		floor = 0.01
	}

	change := PriceChange{
		PercentChange:  math.Round(percent*100) / 100,
		AbsoluteChange: math.Round(absolute*100) / 100,
		Direction:      DirectionStable,
	}

	if percent > minPercentChange || absolute > floor {
		change.Changed = true
		if newPrice > oldPrice {
			change.Direction = DirectionUp
		} else {
			change.Direction = DirectionDown
		}
	}

	return change
}
