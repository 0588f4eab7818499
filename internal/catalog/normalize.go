package catalog

// Normalize min-max scales values into [0,1] relative to the present values
// in the same slice. Output index i always corresponds to input index i.
//
//   - no present values: every slot is 0
//   - all present values equal: present slots are 0.5, nil slots 0
//   - otherwise (v-min)/(max-min), nil slots 0
//
// With invert set, present slots become 1-v. Nil slots stay 0 so that a
// missing value is never rewarded.
func Normalize(values []*float64, invert bool) []float64 {
	out := make([]float64, len(values))
	lo, hi, ok := bounds(values)
	if !ok {
		return out
	}

	span := hi - lo
	for i, v := range values {
		if v == nil {
			continue
		}
		n := 0.5
		if span != 0 {
			n = (*v - lo) / span
		}
		if invert {
			n = 1 - n
		}
		out[i] = n
	}
	return out
}

// bounds returns the min and max of the present values and whether any were
// present.
func bounds(values []*float64) (lo, hi float64, ok bool) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if !ok {
			lo, hi, ok = *v, *v, true
			continue
		}
		if *v < lo {
			lo = *v
		}
		if *v > hi {
			hi = *v
		}
	}
	return lo, hi, ok
}
