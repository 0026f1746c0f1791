package menu

// Item is a single dish on the restaurant menu. Price is in whole
// currency units.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int    `json:"price"`
	Description string `json:"description"`
}
