// Package parse turns loosely typed user input from the terminal and HTTP
// forms into order values.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"brewpulse/internal/order"
)

var (
	percentRe   = regexp.MustCompile(`^(\d{1,3})\s*%?$`)
	separatorRe = regexp.MustCompile(`[\s_\-]+`)
)

// Percentage parses "60", "60%" or "60 %". The value is not range checked;
// order.Normalize does that.
func Percentage(raw string) (int, error) {
	m := percentRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, fmt.Errorf("unable to parse percentage: %q", raw)
	}
	return strconv.Atoi(m[1])
}

// Size accepts the full name or its first letter, in any case.
func Size(raw string) (order.Size, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s", "small":
		return order.SizeSmall, nil
	case "m", "medium", "":
		return order.SizeMedium, nil
	case "l", "large":
		return order.SizeLarge, nil
	}
	return "", fmt.Errorf("unable to parse size: %q", raw)
}

// MilkLevel returns nil for empty input so the coffee's default applies.
func MilkLevel(raw string) (*order.MilkLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil, nil
	case "light", "less":
		return order.Milk(order.MilkLight), nil
	case "standard", "std", "normal":
		return order.Milk(order.MilkStandard), nil
	case "extra", "more":
		return order.Milk(order.MilkExtra), nil
	}
	return nil, fmt.Errorf("unable to parse milk level: %q", raw)
}

// Status accepts status names in any case plus a few barista shorthands.
func Status(raw string) (order.Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "reset":
		return order.StatusPending, nil
	case "preparing", "prep", "brewing":
		return order.StatusPreparing, nil
	case "completed", "complete", "done", "served":
		return order.StatusCompleted, nil
	}
	return "", fmt.Errorf("unable to parse status: %q", raw)
}

// Coffee finds a menu entry by id or name, ignoring case, spaces, hyphens
// and underscores, so "latte-macchiato" matches "Latte Macchiato".
func Coffee(menu order.Menu, raw string) (order.Coffee, error) {
	want := fold(raw)
	if want == "" {
		return order.Coffee{}, fmt.Errorf("unable to parse coffee: %q", raw)
	}
	for _, c := range menu {
		if fold(c.ID) == want || fold(c.Name) == want {
			return c, nil
		}
	}
	return order.Coffee{}, fmt.Errorf("%q is not on the menu", raw)
}

func fold(s string) string {
	return strings.ToLower(separatorRe.ReplaceAllString(strings.TrimSpace(s), ""))
}
