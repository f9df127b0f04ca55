// Package ports declares the persistence contract shared by every backend.
package ports

import (
	"context"

	"duka/internal/core"
)

// Ports for outbound adapters.
type (
	ProductStore interface {
		ListProducts(ctx context.Context) ([]core.Product, error)
		CreateProduct(ctx context.Context, p core.Product) (core.Product, error)
		// UpdateProduct changes descriptive fields only; quantity moves through
		// AdjustStock or RecordMovement.
		UpdateProduct(ctx context.Context, id string, patch core.ProductPatch) (core.Product, error)
		DeleteProduct(ctx context.Context, id string) error
		// AdjustStock adds delta to the product quantity atomically. A result
		// below zero is rejected with core.ErrInsufficientStock and the product
		// is left unchanged.
		AdjustStock(ctx context.Context, id string, delta int) (core.Product, error)
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
		// RecordMovement applies a stock transaction to its product and stores
		// it. Either both happen or neither does.
		RecordMovement(ctx context.Context, tx core.Transaction) (core.Transaction, core.Product, error)
	}

	ExchangeStore interface {
		ListExchanges(ctx context.Context) ([]core.Exchange, error)
		CreateExchange(ctx context.Context, ex core.Exchange) (core.Exchange, error)
	}

	DebtStore interface {
		ListDebts(ctx context.Context) ([]core.Debt, error)
		CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error)
		UpdateDebt(ctx context.Context, id string, patch core.DebtPatch) (core.Debt, error)
		DeleteDebt(ctx context.Context, id string) error
	}

	// Store is the full persistence adapter. List calls return an empty
	// slice, never nil.
	Store interface {
		ProductStore
		TransactionStore
		ExchangeStore
		DebtStore
		Close() error
	}
)

// StockDelta is the signed quantity change a stock transaction applies.
func StockDelta(tx core.Transaction) int {
	return int(tx.Amount.IntPart())
}
