// Package seed generates a deterministic demo catalog.
package seed

import (
	"fmt"
	"math/rand/v2"

	"github.com/gothglitter/storefront/services/storefront/internal/domain"
)

type kind struct {
	slug     string
	name     string
	minCents int64
	maxCents int64
}

var kinds = []kind{
	{"gown", "Gown", 8900, 34900},
	{"corset", "Corset", 4900, 18900},
	{"boots", "Platform Boots", 7900, 24900},
	{"veil", "Lace Veil", 1900, 6900},
	{"choker", "Choker", 900, 4900},
	{"cape", "Cape", 5900, 19900},
	{"gloves", "Opera Gloves", 1500, 5900},
	{"lipstick", "Lipstick", 1200, 3400},
}

var adjectives = []string{
	"Velvet", "Midnight", "Raven", "Crimson", "Obsidian", "Moonlit",
	"Bone", "Ashen", "Thorned", "Silk", "Wraith", "Candlelit",
}

// Products returns n products. The same seed always yields the same catalog,
// so re-running the seeder updates rows instead of adding new ones.
func Products(n int, seed uint64) []domain.Product {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) // #nosec G404 -- demo data
	out := make([]domain.Product, 0, n)
	for i := 1; i <= n; i++ {
		k := kinds[rng.IntN(len(kinds))]
		adj := adjectives[rng.IntN(len(adjectives))]
		// Round to .00 or .50 like a shelf price.
		price := k.minCents + rng.Int64N(k.maxCents-k.minCents)
		price = price - price%50
		// A few products start sold out; most are scarce.
		qty := rng.IntN(6)
		if rng.IntN(10) == 0 {
			qty = 0
		}
		id := fmt.Sprintf("%s-%05d", k.slug, i)
		out = append(out, domain.Product{
			ID:         id,
			Name:       adj + " " + k.name,
			PriceCents: price,
			Quantity:   qty,
			ImageRef:   "products/" + id + ".webp",
		})
	}
	return out
}
