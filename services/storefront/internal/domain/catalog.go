package domain

// Product is a catalog entry. Quantity is the stock a fresh counter starts from.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Quantity   int
	ImageRef   string
}
