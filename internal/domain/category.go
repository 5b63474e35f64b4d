package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the fixed classification of a campaign. The numeric values are
// persisted and must not be reordered.
type Category uint8

const (
	CategoryEnvironment Category = iota
	CategoryEducation
	CategoryHealthcare
	CategoryTechnology
	CategoryCommunity
	CategoryArts
)

var categoryNames = [...]string{
	CategoryEnvironment: "environment",
	CategoryEducation:   "education",
	CategoryHealthcare:  "healthcare",
	CategoryTechnology:  "technology",
	CategoryCommunity:   "community",
	CategoryArts:        "arts",
}

// Categories lists every accepted category in persisted order.
func Categories() []Category {
	out := make([]Category, len(categoryNames))
	for i := range categoryNames {
		out[i] = Category(i)
	}
	return out
}

// ParseCategory matches s case-insensitively against the known categories.
// Unknown values are rejected rather than mapped to a default.
func ParseCategory(s string) (Category, error) {
	folded := cases.Fold().String(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if folded == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	return int(c) < len(categoryNames)
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// DisplayName returns the title-cased label shown to users.
func (c Category) DisplayName(tag language.Tag) string {
	return cases.Title(tag).String(c.String())
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
