package device

// DefaultPotThreshold is how far the pot must move before the tempo follows.
const DefaultPotThreshold = 4

// PotFilter drops ADC jitter. The first reading always passes; after that a
// reading passes only when it differs from the last accepted one by more
// than Threshold.
type PotFilter struct {
	Threshold uint16

	last   uint16
	primed bool
}

// Accept reports whether v should be applied, remembering it if so.
func (f *PotFilter) Accept(v uint16) bool {
	if f.primed {
		d := int(v) - int(f.last)
		if d < 0 {
			d = -d
		}
		if d <= int(f.Threshold) {
			return false
		}
	}
	f.last = v
	f.primed = true
	return true
}

// Last returns the last accepted reading.
func (f *PotFilter) Last() (uint16, bool) {
	return f.last, f.primed
}
