package domain

// Product is catalog state shared by all concurrent buyers. Stock is the
// only field this engine mutates, and only through the store's atomic path.
type Product struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  float64  `json:"price"`
	Stock  int      `json:"stock"`
	Images []string `json:"images,omitempty"`
}
