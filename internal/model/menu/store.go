package menu

// Catalog exposes read-only menu lookups for the conversation layer.
type Catalog interface {
	List() []Item
	FindByID(id string) (Item, bool)
}

// MemoryCatalog implements Catalog with an in-memory slice, suitable for a
// single-restaurant deployment where the menu is seeded at startup.
type MemoryCatalog struct {
	items []Item
}

// NewMemoryCatalog returns a MemoryCatalog preloaded with the supplied items.
func NewMemoryCatalog(items []Item) *MemoryCatalog {
	return &MemoryCatalog{items: append([]Item(nil), items...)}
}

// List returns the menu in display order.
func (c *MemoryCatalog) List() []Item {
	return append([]Item(nil), c.items...)
}

// FindByID looks up a menu item by identifier.
func (c *MemoryCatalog) FindByID(id string) (Item, bool) {
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// Seed returns the default restaurant menu.
func Seed() []Item {
	return []Item{
		{ID: "jollof-rice", Name: "Jollof Rice & Chicken", Price: 2500, Description: "Smoky party jollof with grilled chicken"},
		{ID: "fried-rice", Name: "Fried Rice & Turkey", Price: 2800, Description: "Fried rice with peppered turkey"},
		{ID: "pounded-yam", Name: "Pounded Yam & Egusi", Price: 3200, Description: "Pounded yam with egusi soup and assorted meat"},
		{ID: "suya", Name: "Beef Suya", Price: 1500, Description: "Spicy grilled beef skewers"},
		{ID: "moi-moi", Name: "Moi Moi", Price: 800, Description: "Steamed bean pudding"},
		{ID: "pepper-soup", Name: "Catfish Pepper Soup", Price: 3500, Description: "Fresh catfish in spicy broth"},
		{ID: "chapman", Name: "Chapman", Price: 1200, Description: "Chilled Chapman cocktail"},
		{ID: "puff-puff", Name: "Puff Puff (6pcs)", Price: 600, Description: "Golden fried dough bites"},
	}
}
