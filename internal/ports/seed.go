package ports

import (
	"encoding/json"
	"fmt"
	"os"

	"duka/internal/core"
)

// Seed is the on-disk shape of a seed file.
type Seed struct {
	Products     []core.Product     `json:"products"`
	Transactions []core.Transaction `json:"transactions"`
	Exchanges    []core.Exchange    `json:"exchanges"`
	Debts        []core.Debt        `json:"debts"`
}

// DefaultSeed is the starter catalogue of a fresh shop.
func DefaultSeed() Seed {
	return Seed{Products: []core.Product{
		{Name: "Sugar", Unit: "kg", Quantity: 100},
		{Name: "Rice", Unit: "kg", Quantity: 150},
		{Name: "Cooking Oil", Unit: "liters", Quantity: 50},
		{Name: "Flour", Unit: "kg", Quantity: 200},
		{Name: "Salt", Unit: "kg", Quantity: 75},
	}}
}

// LoadSeed reads a seed file. An empty path or a missing file yields
// DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSeed(), nil
	}
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seed, nil
}
