package voxel

import (
	"fmt"
	"math"
	"math/bits"
)

// FixedScale is the number of fixed-point units per unit value (1e-9
// resolution).
const FixedScale = 1e9

// MaxFixedInput bounds the magnitude of a single value converted with
// ToFixed. Sums of up to 2^34 such values fit in a Fixed.
const MaxFixedInput = 1 << 63

// Fixed is a signed 128-bit count of 1e-9 units. Sums of Fixed values are
// exact, so they do not depend on the order in which contributions
// arrive. The zero value is 0.
type Fixed struct {
	hi int64
	lo uint64
}

// ToFixed rounds v to the nearest fixed-point unit. It fails for NaN,
// infinities and magnitudes of MaxFixedInput or more.
func ToFixed(v float64) (Fixed, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= MaxFixedInput {
		return Fixed{}, fmt.Errorf("value %g is outside the fixed-point range", v)
	}
	mag := math.Abs(v)
	whole := math.Floor(mag)
	w := uint64(whole)
	n := uint64(math.Round((mag - whole) * FixedScale))
	if n == FixedScale {
		w, n = w+1, 0
	}
	hi, lo := bits.Mul64(w, FixedScale)
	lo, carry := bits.Add64(lo, n, 0)
	f := Fixed{hi: int64(hi + carry), lo: lo}
	if v < 0 {
		f = f.neg()
	}
	return f, nil
}

func (f Fixed) neg() Fixed {
	lo, borrow := bits.Sub64(0, f.lo, 0)
	return Fixed{hi: -f.hi - int64(borrow), lo: lo}
}

// Add returns f + o.
func (f Fixed) Add(o Fixed) Fixed {
	lo, carry := bits.Add64(f.lo, o.lo, 0)
	return Fixed{hi: f.hi + o.hi + int64(carry), lo: lo}
}

// Cmp returns -1, 0 or +1 as f is less than, equal to or greater than o.
func (f Fixed) Cmp(o Fixed) int {
	switch {
	case f.hi < o.hi:
		return -1
	case f.hi > o.hi:
		return 1
	case f.lo < o.lo:
		return -1
	case f.lo > o.lo:
		return 1
	}
	return 0
}

// IsZero reports whether f is 0.
func (f Fixed) IsZero() bool { return f.hi == 0 && f.lo == 0 }

// units returns f as a float64 count of fixed-point units.
func (f Fixed) units() float64 {
	if (f.hi == 0 && f.lo < 1<<63) || (f.hi == -1 && f.lo >= 1<<63) {
		return float64(int64(f.lo))
	}
	return float64(f.hi)*(1<<64) + float64(f.lo)
}

// Float converts back to floating point.
func (f Fixed) Float() float64 { return f.units() / FixedScale }

// Accumulator sums the energy of the deposits landing in one voxel and
// the energy-weighted dE/dx of those that carry a stopping power.
type Accumulator struct {
	Energy       Fixed
	WeightedDEDX Fixed
	DEDXWeight   Fixed
	Deposits     int
}

// Add records one deposit. hasDEDX is false for deposits without a usable
// path length or stopping power; they add energy but no dE/dx weight.
// The accumulator is unchanged when a value cannot be represented.
func (a *Accumulator) Add(energy, dedx float64, hasDEDX bool) error {
	e, err := ToFixed(energy)
	if err != nil {
		return fmt.Errorf("energy: %w", err)
	}
	var w Fixed
	if hasDEDX {
		if w, err = ToFixed(energy * dedx); err != nil {
			return fmt.Errorf("energy-weighted dE/dx: %w", err)
		}
		a.WeightedDEDX = a.WeightedDEDX.Add(w)
		a.DEDXWeight = a.DEDXWeight.Add(e)
	}
	a.Energy = a.Energy.Add(e)
	a.Deposits++
	return nil
}

// Merge folds o into a.
func (a *Accumulator) Merge(o Accumulator) {
	a.Energy = a.Energy.Add(o.Energy)
	a.WeightedDEDX = a.WeightedDEDX.Add(o.WeightedDEDX)
	a.DEDXWeight = a.DEDXWeight.Add(o.DEDXWeight)
	a.Deposits += o.Deposits
}

// EnergyValue returns the accumulated energy.
func (a Accumulator) EnergyValue() float64 { return a.Energy.Float() }

// DEDX returns the energy-weighted mean dE/dx, or 0 when no deposit
// carried one.
func (a Accumulator) DEDX() float64 {
	if a.DEDXWeight.IsZero() {
		return 0
	}
	return a.WeightedDEDX.units() / a.DEDXWeight.units()
}
