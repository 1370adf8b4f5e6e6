package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPreparing, StatusCompleted, true},
		{StatusPreparing, StatusPending, true},
		{StatusPending, StatusPending, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusPreparing, false},
		{StatusPending, Status("CANCELLED"), false},
		{Status(""), StatusPending, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestCheckTransition_WrapsSentinel(t *testing.T) {
	err := CheckTransition(StatusCompleted, StatusPending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "COMPLETED -> PENDING")
}

func TestNextStatuses_CompletedHasNone(t *testing.T) {
	assert.Empty(t, NextStatuses(StatusCompleted))
	assert.ElementsMatch(t, []Status{StatusPreparing, StatusCompleted}, NextStatuses(StatusPending))
}

func TestNormalize(t *testing.T) {
	menu := DefaultMenu()

	t.Run("non-milky coffee keeps milk absent", func(t *testing.T) {
		d, err := Normalize(menu, Draft{GuestName: "Ada", CoffeeType: "Espresso", Size: SizeMedium, Percentage: 60})
		require.NoError(t, err)
		assert.Nil(t, d.MilkLevel)
		assert.Equal(t, "Ada", d.GuestName)
	})

	t.Run("milky coffee defaults to standard milk", func(t *testing.T) {
		d, err := Normalize(menu, Draft{GuestName: "Grace", CoffeeType: "Latte Macchiato", Percentage: 50})
		require.NoError(t, err)
		require.NotNil(t, d.MilkLevel)
		assert.Equal(t, MilkStandard, *d.MilkLevel)
		assert.Equal(t, SizeMedium, d.Size)
	})

	t.Run("milky coffee keeps chosen milk", func(t *testing.T) {
		d, err := Normalize(menu, Draft{GuestName: "Grace", CoffeeType: "Flat White", MilkLevel: Milk(MilkExtra)})
		require.NoError(t, err)
		assert.Equal(t, MilkExtra, *d.MilkLevel)
	})

	t.Run("name is trimmed", func(t *testing.T) {
		d, err := Normalize(menu, Draft{GuestName: "  Linus ", CoffeeType: "Americano"})
		require.NoError(t, err)
		assert.Equal(t, "Linus", d.GuestName)
	})

	errorCases := []struct {
		name  string
		draft Draft
		field string
	}{
		{"missing name", Draft{GuestName: "  ", CoffeeType: "Espresso"}, "guestName"},
		{"missing coffee", Draft{GuestName: "Ada"}, "coffeeType"},
		{"unknown coffee", Draft{GuestName: "Ada", CoffeeType: "Mocha"}, "coffeeType"},
		{"coming soon", Draft{GuestName: "Ada", CoffeeType: "Iced Latte Macchiato"}, "coffeeType"},
		{"bad size", Draft{GuestName: "Ada", CoffeeType: "Espresso", Size: "Huge"}, "size"},
		{"percentage off step", Draft{GuestName: "Ada", CoffeeType: "Espresso", Percentage: 62}, "percentage"},
		{"percentage too high", Draft{GuestName: "Ada", CoffeeType: "Espresso", Percentage: 105}, "percentage"},
		{"negative percentage", Draft{GuestName: "Ada", CoffeeType: "Espresso", Percentage: -5}, "percentage"},
		{"milk on espresso", Draft{GuestName: "Ada", CoffeeType: "Espresso", MilkLevel: Milk(MilkLight)}, "milkLevel"},
		{"unknown milk", Draft{GuestName: "Ada", CoffeeType: "Caffe Latte", MilkLevel: Milk("Oat")}, "milkLevel"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(menu, tc.draft)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestMenu_MilkIffMilky(t *testing.T) {
	for _, coffee := range DefaultMenu().Orderable() {
		d, err := Normalize(DefaultMenu(), Draft{GuestName: "Ada", CoffeeType: coffee.ID})
		require.NoError(t, err, coffee.ID)
		assert.Equal(t, coffee.IsMilky(), d.MilkLevel != nil, coffee.ID)
	}
}

func TestMenu_Orderable(t *testing.T) {
	menu := Menu{
		{ID: "a", Milk: NonMilky{}},
		{ID: "b", Milk: Milky{}, ComingSoon: true},
	}
	orderable := menu.Orderable()
	require.Len(t, orderable, 1)
	assert.Equal(t, "a", orderable[0].ID)

	def, ok := menu[1].DefaultMilk()
	assert.True(t, ok)
	assert.Equal(t, MilkStandard, def, "zero default falls back to standard")
}

func TestMenuEntriesRoundTrip(t *testing.T) {
	menu := DefaultMenu()
	assert.Equal(t, menu, MenuFromEntries(menu.Entries()))

	entries := menu.Entries()
	assert.True(t, entries[0].Milky)
	assert.Equal(t, MilkStandard, entries[0].DefaultMilk)
}
