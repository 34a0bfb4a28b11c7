package model

// Flags is the 3-bit reading state mask of a device book.
type Flags uint8

const (
	// FlagRead marks a finished book.
	FlagRead Flags = 1
	// FlagReadingList marks a book queued on the reading list.
	FlagReadingList Flags = 2
	// FlagNew marks a book that has not been opened yet.
	FlagNew Flags = 4

	// FlagMask covers every valid flag bit.
	FlagMask = FlagRead | FlagReadingList | FlagNew
)

// Reserved collection names carrying the flags on the wire.
const (
	FlagNameNew         = "NEW"
	FlagNameReadingList = "READING LIST"
	FlagNameRead        = "READ"
)

// inhibitMask lists, per flag, the flags cleared when it is set.
var inhibitMask = map[Flags]Flags{
	FlagRead:        FlagNew | FlagReadingList,
	FlagNew:         FlagReadingList | FlagRead,
	FlagReadingList: FlagNew | FlagRead,
}

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagNew, FlagNameNew},
	{FlagReadingList, FlagNameReadingList},
	{FlagRead, FlagNameRead},
}

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return mask != 0 && f&mask == mask
}

// Set applies mask, clearing the flags each set bit inhibits. When the mask names
// several flags, the highest one wins (NEW over READING_LIST over READ).
func (f Flags) Set(mask Flags) Flags {
	mask &= FlagMask
	for _, fl := range []Flags{FlagRead, FlagReadingList, FlagNew} {
		if mask&fl == 0 {
			continue
		}
		f &^= inhibitMask[fl]
		f |= fl
	}
	return f
}

// Clear removes the bits in mask.
func (f Flags) Clear(mask Flags) Flags {
	return f &^ (mask & FlagMask)
}

// Names returns the reserved collection names for the set flags.
func (f Flags) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

// IsFlagName reports whether name is one of the reserved flag collection names.
func IsFlagName(name string) bool {
	for _, fn := range flagNames {
		if fn.name == name {
			return true
		}
	}
	return false
}

// MergeWire interleaves flags and collections into the single list the device expects.
func MergeWire(flags Flags, collections []string) []string {
	out := flags.Names()
	rest := NormalizeSet(collections)
	for _, c := range rest {
		if !IsFlagName(c) {
			out = append(out, c)
		}
	}
	return out
}

// SplitWire separates a device collection list into flags and user collections.
func SplitWire(names []string) (Flags, []string) {
	var f Flags
	var rest []string
	for _, n := range names {
		matched := false
		for _, fn := range flagNames {
			if fn.name == n {
				f |= fn.flag
				matched = true
				break
			}
		}
		if !matched {
			rest = append(rest, n)
		}
	}
	return f, NormalizeSet(rest)
}
