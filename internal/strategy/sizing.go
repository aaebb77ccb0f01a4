package strategy

// PositionFraction converts confidence and current portfolio exposure
// into the capital fraction allocated to a new position.
//
// With dynamic sizing off, a fixed three-tier table applies. With it on,
// a base fraction is scaled by a confidence multiplier and then cut by a
// risk haircut when exposure is elevated. The two haircut bands are
// checked as an else-if chain: the first matching band wins, they never
// stack. The result is clamped to MaxPositionSize.
func PositionFraction(confidence, exposure float64, p Params) float64 {
	if !p.DynamicPositionSize {
		switch {
		case confidence > 0.8:
			return 0.225
		case confidence > 0.65:
			return 0.15
		default:
			return 0.105
		}
	}

	const base = 0.15
	var mult float64
	switch {
	case confidence > 0.8:
		mult = 1.5
	case confidence > 0.65:
		mult = 1.0
	default:
		mult = 0.7
	}

	if exposure > p.MaxTotalExposure {
		mult *= 0.5
	} else if exposure > 0.6 {
		mult *= 0.75
	}

	fraction := base * mult
	if fraction > p.MaxPositionSize {
		fraction = p.MaxPositionSize
	}
	return fraction
}

// Exposure returns the fraction of total portfolio value committed to
// open positions, given their summed mark-to-market value and free cash.
// Returns 0 when the portfolio is empty.
func Exposure(positionValue, cash float64) float64 {
	total := cash + positionValue
	if total <= 0 {
		return 0
	}
	return positionValue / total
}
