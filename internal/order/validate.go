package order

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a problem with a submitted form field.
// It is raised locally and never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

const (
	MinPercentage     = 0
	MaxPercentage     = 100
	PercentageStep    = 5
	DefaultPercentage = 50
)

// Normalize validates d against the menu and fills in defaults.
// An empty size becomes Medium; a milky coffee without a milk level gets the
// coffee's default level.
func Normalize(menu Menu, d Draft) (Draft, error) {
	d.GuestName = strings.TrimSpace(d.GuestName)
	if d.GuestName == "" {
		return Draft{}, &ValidationError{Field: "guestName", Reason: "name is required"}
	}

	if d.CoffeeType == "" {
		return Draft{}, &ValidationError{Field: "coffeeType", Reason: "select a coffee"}
	}
	coffee, ok := menu.Find(d.CoffeeType)
	if !ok {
		return Draft{}, &ValidationError{Field: "coffeeType", Reason: fmt.Sprintf("%q is not on the menu", d.CoffeeType)}
	}
	if coffee.ComingSoon {
		return Draft{}, &ValidationError{Field: "coffeeType", Reason: fmt.Sprintf("%s is coming soon", coffee.Name)}
	}

	if d.Size == "" {
		d.Size = SizeMedium
	}
	if !d.Size.IsValid() {
		return Draft{}, &ValidationError{Field: "size", Reason: fmt.Sprintf("unknown size %q", d.Size)}
	}

	if d.Percentage < MinPercentage || d.Percentage > MaxPercentage || d.Percentage%PercentageStep != 0 {
		return Draft{}, &ValidationError{Field: "percentage", Reason: fmt.Sprintf("must be between %d and %d in steps of %d", MinPercentage, MaxPercentage, PercentageStep)}
	}

	def, milky := coffee.DefaultMilk()
	switch {
	case milky && d.MilkLevel == nil:
		d.MilkLevel = Milk(def)
	case milky && !d.MilkLevel.IsValid():
		return Draft{}, &ValidationError{Field: "milkLevel", Reason: fmt.Sprintf("unknown milk level %q", *d.MilkLevel)}
	case !milky && d.MilkLevel != nil:
		return Draft{}, &ValidationError{Field: "milkLevel", Reason: fmt.Sprintf("%s is not served with milk", coffee.Name)}
	}

	return d, nil
}
