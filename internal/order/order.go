package order

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPreparing Status = "PREPARING"
	StatusCompleted Status = "COMPLETED"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// Size is the cup size of a drink.
type Size string

const (
	SizeSmall  Size = "Small"
	SizeMedium Size = "Medium"
	SizeLarge  Size = "Large"
)

// Sizes lists the sizes in display order.
var Sizes = []Size{SizeSmall, SizeMedium, SizeLarge}

func (s Size) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	default:
		return false
	}
}

// MilkLevel is the amount of milk for milk-capable drinks.
type MilkLevel string

const (
	MilkLight    MilkLevel = "Light"
	MilkStandard MilkLevel = "Standard"
	MilkExtra    MilkLevel = "Extra"
)

// MilkLevels lists the milk levels in display order.
var MilkLevels = []MilkLevel{MilkLight, MilkStandard, MilkExtra}

func (m MilkLevel) IsValid() bool {
	switch m {
	case MilkLight, MilkStandard, MilkExtra:
		return true
	default:
		return false
	}
}

// Order is a single guest drink request.
type Order struct {
	ID         string     `json:"id"`
	GuestName  string     `json:"guestName"`
	CoffeeType string     `json:"coffeeType"`
	Size       Size       `json:"size"`
	Percentage int        `json:"percentage"`
	MilkLevel  *MilkLevel `json:"milkLevel,omitempty"`
	Timestamp  int64      `json:"timestamp"` // ms since epoch, store clock
	Status     Status     `json:"status"`
}

// CreatedAt returns the order timestamp as a time.Time.
func (o Order) CreatedAt() time.Time {
	return time.UnixMilli(o.Timestamp)
}

// Draft is an order before the store has assigned id, timestamp and status.
type Draft struct {
	GuestName  string     `json:"guestName"`
	CoffeeType string     `json:"coffeeType"`
	Size       Size       `json:"size"`
	Percentage int        `json:"percentage"`
	MilkLevel  *MilkLevel `json:"milkLevel,omitempty"`
}

// Patch holds the fields an update merges into an existing order.
type Patch struct {
	Status *Status `json:"status,omitempty"`
}

// StatusPatch is a convenience constructor for a status-only patch.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

// Milk returns a pointer to level, for building drafts.
func Milk(level MilkLevel) *MilkLevel {
	return &level
}
