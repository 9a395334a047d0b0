package domain

// Product is the inventory record a cart line or order item points at.
// Nothing in this service writes products.
type Product struct {
	ID          string  `bson:"-" json:"id"`
	Title       string  `bson:"title" json:"title"`
	Price       float64 `bson:"price" json:"price"`
	Description string  `bson:"description" json:"description"`
	Image       string  `bson:"image" json:"image"`
	Category    string  `bson:"category,omitempty" json:"category,omitempty"`
}
