package order

// MilkOption describes whether a coffee takes a milk level.
// It is either Milky or NonMilky.
type MilkOption interface {
	milkOption()
}

// Milky coffees accept a milk level and default to Default.
type Milky struct {
	Default MilkLevel
}

// NonMilky coffees never carry a milk level.
type NonMilky struct{}

func (Milky) milkOption()    {}
func (NonMilky) milkOption() {}

// Coffee is one entry of the menu.
type Coffee struct {
	ID          string
	Name        string
	Description string
	Image       string
	Milk        MilkOption
	ComingSoon  bool
}

// IsMilky reports whether the coffee takes a milk level.
func (c Coffee) IsMilky() bool {
	_, ok := c.Milk.(Milky)
	return ok
}

// DefaultMilk returns the milk level applied when the guest does not pick one.
func (c Coffee) DefaultMilk() (MilkLevel, bool) {
	m, ok := c.Milk.(Milky)
	if !ok {
		return "", false
	}
	if !m.Default.IsValid() {
		return MilkStandard, true
	}
	return m.Default, true
}

// Menu is the list of coffees guests can choose from.
type Menu []Coffee

// Find returns the coffee with the given id.
func (m Menu) Find(id string) (Coffee, bool) {
	for _, c := range m {
		if c.ID == id {
			return c, true
		}
	}
	return Coffee{}, false
}

// Orderable returns the coffees that can currently be ordered.
func (m Menu) Orderable() Menu {
	var out Menu
	for _, c := range m {
		if !c.ComingSoon {
			out = append(out, c)
		}
	}
	return out
}

// DefaultMenu is used when no menu is configured.
func DefaultMenu() Menu {
	milky := Milky{Default: MilkStandard}
	return Menu{
		{ID: "Latte Macchiato", Name: "Latte Macchiato", Description: "Steamed milk stained with a shot of espresso.", Milk: milky},
		{ID: "Caffe Latte", Name: "Caffe Latte", Description: "Espresso with plenty of steamed milk.", Milk: milky},
		{ID: "Flat White", Name: "Flat White", Description: "Double ristretto with velvety microfoam.", Milk: milky},
		{ID: "Americano", Name: "Americano", Description: "Espresso shots topped with hot water.", Milk: NonMilky{}},
		{ID: "Espresso", Name: "Espresso", Description: "Intense and concentrated coffee shot.", Milk: NonMilky{}},
		{ID: "Ristretto", Name: "Ristretto", Description: "A shorter, sweeter espresso.", Milk: NonMilky{}},
		{ID: "Espresso Lungo", Name: "Espresso Lungo", Description: "A long pull of espresso.", Milk: NonMilky{}},
		{ID: "Caramel Macchiato", Name: "Caramel Macchiato", Description: "Steamed milk with vanilla syrup, marked with espresso and a caramel drizzle.", Milk: milky},
		{ID: "Iced Latte Macchiato", Name: "Iced Latte Macchiato", Description: "Cold milk over ice with espresso.", Milk: milky, ComingSoon: true},
		{ID: "Iced Caramel Macchiato", Name: "Iced Caramel Macchiato", Description: "The caramel classic, on ice.", Milk: milky, ComingSoon: true},
		{ID: "Cafe Crema", Name: "Cafe Crema", Description: "A long espresso with a thick crema.", Milk: NonMilky{}},
	}
}

// MenuEntry is the JSON form of a Coffee.
type MenuEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Milky       bool      `json:"milky"`
	DefaultMilk MilkLevel `json:"defaultMilk,omitempty"`
	ComingSoon  bool      `json:"comingSoon"`
}

// Entries converts the menu to its JSON form.
func (m Menu) Entries() []MenuEntry {
	out := make([]MenuEntry, 0, len(m))
	for _, c := range m {
		e := MenuEntry{ID: c.ID, Name: c.Name, Description: c.Description, Image: c.Image, ComingSoon: c.ComingSoon}
		if def, ok := c.DefaultMilk(); ok {
			e.Milky = true
			e.DefaultMilk = def
		}
		out = append(out, e)
	}
	return out
}

// MenuFromEntries rebuilds a menu from its JSON form.
func MenuFromEntries(entries []MenuEntry) Menu {
	menu := make(Menu, 0, len(entries))
	for _, e := range entries {
		c := Coffee{ID: e.ID, Name: e.Name, Description: e.Description, Image: e.Image, Milk: NonMilky{}, ComingSoon: e.ComingSoon}
		if e.Milky {
			c.Milk = Milky{Default: e.DefaultMilk}
		}
		menu = append(menu, c)
	}
	return menu
}
