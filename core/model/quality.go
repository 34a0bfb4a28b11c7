package model

import "fmt"

// MatchQuality classifies how well a device book's identity is established against
// the desktop library. Higher values mean higher confidence.
type MatchQuality int

const (
	// MatchWhite means no match was found; the book only exists on the device.
	MatchWhite MatchQuality = iota
	// MatchRed means the content hash collides with another device-only book.
	MatchRed
	// MatchOrange means the book duplicates an already matched library book.
	MatchOrange
	// MatchYellow means a soft match (content hash) or a uuid match with differing metadata.
	MatchYellow
	// MatchGreen means the uuid matches and all metadata agrees.
	MatchGreen
)

var qualityNames = map[MatchQuality]string{
	MatchWhite:  "white",
	MatchRed:    "red",
	MatchOrange: "orange",
	MatchYellow: "yellow",
	MatchGreen:  "green",
}

// String returns the lowercase color name.
func (q MatchQuality) String() string {
	if s, ok := qualityNames[q]; ok {
		return s
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

// ParseMatchQuality converts a color name back into a MatchQuality.
func ParseMatchQuality(s string) (MatchQuality, error) {
	for q, name := range qualityNames {
		if name == s {
			return q, nil
		}
	}
	return MatchWhite, fmt.Errorf("unknown match quality %q", s)
}

// MarshalText encodes the quality as its color name, in JSON values and map keys alike.
func (q MatchQuality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText decodes a color name.
func (q *MatchQuality) UnmarshalText(data []byte) error {
	parsed, err := ParseMatchQuality(string(data))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// AllQualities lists the qualities from best to worst.
func AllQualities() []MatchQuality {
	return []MatchQuality{MatchGreen, MatchYellow, MatchOrange, MatchRed, MatchWhite}
}
