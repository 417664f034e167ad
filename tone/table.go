package tone

import "math"

// TableLen is the number of entries in one waveform cycle.
const TableLen = 2048

// Table is one full cycle of a cosine scaled to the int16 range.
type Table [TableLen]int16

// NewTable computes the cosine table.
func NewTable() *Table {
	var t Table
	for i := range t {
		t[i] = int16(math.MaxInt16 * math.Cos(float64(i)*2*math.Pi/TableLen))
	}
	return &t
}

// DefaultTable is computed once and shared by every Synth.
var DefaultTable = NewTable()
