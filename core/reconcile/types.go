package reconcile

import "marvin-sync/core/model"

// Facts are the inputs classification depends on. Classify is a pure function of them.
type Facts struct {
	// UUID is the device book's uuid, possibly empty.
	UUID string
	// Matches is the list of desktop uuids accepted for the book.
	Matches []string
	// HasMismatches is true when any metadata field differs from the counterpart.
	HasMismatches bool
	// OnPrimary is true when the book lives on the device's primary location.
	OnPrimary bool
	// DeviceOnlyHashCount is how many unmatched device books share the book's content hash.
	DeviceOnlyHashCount int
	// Soft is true when the content hash is known to the library but the uuid
	// is not among the desktop uuids recorded for it.
	Soft bool
}

// Direction selects which side a plan writes to.
type Direction string

const (
	// Export writes desktop values to the device.
	Export Direction = "export"
	// Import writes device values to the desktop library.
	Import Direction = "import"
)

// FieldChange is one field a plan will write.
type FieldChange struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// BookPlan lists the changes for one book.
type BookPlan struct {
	BookID    int64         `json:"book_id"`
	CalibreID int64         `json:"calibre_id"`
	Title     string        `json:"title"`
	Changes   []FieldChange `json:"changes"`
}

// Fields returns the names of the planned fields.
func (p BookPlan) Fields() []string {
	out := make([]string, 0, len(p.Changes))
	for _, c := range p.Changes {
		out = append(out, c.Field)
	}
	return out
}

// Plan is the set of metadata writes for a batch of books.
type Plan struct {
	Direction Direction  `json:"direction"`
	Books     []BookPlan `json:"books"`
	// Skipped lists the requested books with no desktop counterpart.
	Skipped []int64 `json:"skipped"`
	Summary Summary `json:"summary"`
}

// Summary provides aggregate statistics over a set of records.
type Summary struct {
	// Total is the number of records considered.
	Total int `json:"total"`
	// ByQuality counts records per match quality.
	ByQuality map[model.MatchQuality]int `json:"by_quality"`
	// Mismatched counts records with at least one differing field.
	Mismatched int `json:"mismatched"`
	// Planned counts books that have at least one change in the plan.
	Planned int `json:"planned"`
	// Changes counts field writes across all books.
	Changes int `json:"changes"`
}
