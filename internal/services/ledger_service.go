package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/amqp"
	"duka/internal/core"
	"duka/internal/guard"
	"duka/internal/ports"
	"duka/internal/state"
	"duka/internal/stats"
	"duka/internal/validation"
)

// EventPublisher is implemented by *amqp.Client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService runs every write: validate, guard, persist, publish, then
// refresh the application state.
type LedgerService struct {
	store  ports.Store
	state  *state.Store
	guard  *guard.InFlight
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*LedgerService)

// WithEvents enables event publishing. A nil publisher disables it.
func WithEvents(p EventPublisher) Option {
	return func(s *LedgerService) { s.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store ports.Store, st *state.Store, g *guard.InFlight, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		state:  st,
		guard:  g,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.guard == nil {
		s.guard = guard.New()
	}
	return s
}

type CashDirection string

const (
	CashIn  CashDirection = "in"
	CashOut CashDirection = "out"
)

type CashRequest struct {
	Direction   CashDirection `json:"direction"`
	Amount      string        `json:"amount"`
	PaymentType string        `json:"paymentType"`
	Description string        `json:"description"`
	Notes       string        `json:"notes"`
}

// RecordCash stores a cash in or cash out entry.
func (s *LedgerService) RecordCash(ctx context.Context, req CashRequest) (core.Transaction, error) {
	in, _, err := validation.CashEntry(req.Amount, req.PaymentType)
	if err != nil {
		return core.Transaction{}, err
	}
	amount := in.Amount
	switch req.Direction {
	case CashIn, "":
		req.Direction = CashIn
	case CashOut:
		amount = amount.Neg()
	default:
		return core.Transaction{}, core.NewValidationError("direction", core.ReasonInvalidValue, "direction must be in or out")
	}

	var stored core.Transaction
	err = s.guard.Do(ctx, "cash-"+string(req.Direction), func(ctx context.Context) error {
		var err error
		stored, err = s.store.CreateTransaction(ctx, core.Transaction{
			Kind:        core.KindCash,
			Amount:      amount,
			PaymentType: in.PaymentType,
			Description: req.Description,
			Notes:       strings.TrimSpace(req.Notes),
		})
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "Cash entry recorded",
		"id", stored.ID,
		"amount", stored.Amount.String(),
		"payment_type", stored.PaymentType)
	s.afterWrite(ctx, amqp.EventTransactionRecorded, stored.ID, string(stored.Kind))
	return stored, nil
}

// StockResult is the outcome of a stock movement.
type StockResult struct {
	Transaction core.Transaction `json:"transaction"`
	Product     core.Product     `json:"product"`
	Level       stats.StockLevel `json:"level"`
}

// NewProductInput describes a product created as part of a stock-in.
type NewProductInput struct {
	Name            string `json:"name"`
	Unit            string `json:"unit"`
	InitialQuantity int    `json:"initialQuantity"`
}

type StockInRequest struct {
	ProductID   string           `json:"productId"`
	NewProduct  *NewProductInput `json:"newProduct,omitempty"`
	Quantity    int              `json:"quantity"`
	Description string           `json:"description"`
}

// StockIn adds units to an existing product, or to a product created first
// when NewProduct is set.
func (s *LedgerService) StockIn(ctx context.Context, req StockInRequest) (StockResult, error) {
	if _, err := validation.StockIn(req.Quantity, req.Description); err != nil {
		return StockResult{}, err
	}
	var np core.Product
	if req.NewProduct != nil {
		var err error
		np, err = validation.NewProduct(req.NewProduct.Name, req.NewProduct.Unit, req.NewProduct.InitialQuantity)
		if err != nil {
			return StockResult{}, err
		}
	} else if strings.TrimSpace(req.ProductID) == "" {
		return StockResult{}, core.NewValidationError("productId", core.ReasonRequired, "please select a product or add a new one")
	}

	var res StockResult
	err := s.guard.Do(ctx, "stock-in", func(ctx context.Context) error {
		productID := req.ProductID
		created := false
		if req.NewProduct != nil {
			p, err := s.store.CreateProduct(ctx, np)
			if err != nil {
				return fmt.Errorf("create product: %w", err)
			}
			productID, created = p.ID, true
		}
		tx, p, err := s.store.RecordMovement(ctx, core.Transaction{
			Kind:        core.KindStock,
			Type:        core.MovementIn,
			ProductID:   productID,
			Amount:      decimal.NewFromInt(int64(req.Quantity)),
			Description: req.Description,
		})
		if err != nil {
			if created {
				s.discardProduct(ctx, productID)
			}
			return err
		}
		res = StockResult{Transaction: tx, Product: p, Level: stats.StockStatus(p.Quantity)}
		return nil
	})
	if err != nil {
		return StockResult{}, err
	}

	s.logger.InfoContext(ctx, "Stock added",
		"product_id", res.Product.ID,
		"quantity", req.Quantity,
		"stock", res.Product.Quantity)
	s.afterWrite(ctx, amqp.EventTransactionRecorded, res.Transaction.ID, string(core.KindStock))
	return res, nil
}

type StockOutRequest struct {
	ProductID   string `json:"productId"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
	Confirmed   bool   `json:"confirmed"`
}

// StockOut removes units from a product. Removing more than half of the
// stock needs Confirmed.
func (s *LedgerService) StockOut(ctx context.Context, req StockOutRequest) (StockResult, error) {
	id := strings.TrimSpace(req.ProductID)
	if id == "" {
		return StockResult{}, core.NewValidationError("productId", core.ReasonRequired, "product is required")
	}

	var res StockResult
	err := s.guard.Do(ctx, "stock-out:"+id, func(ctx context.Context) error {
		// Checked under the guard so the warning sees the stock this
		// movement will actually change.
		p, err := s.currentProduct(ctx, id)
		if err != nil {
			return err
		}
		outcome, err := validation.StockOut(req.Quantity, p.Quantity, req.Description)
		if err != nil {
			return err
		}
		if err := outcome.Gate(req.Confirmed); err != nil {
			return err
		}
		tx, updated, err := s.store.RecordMovement(ctx, core.Transaction{
			Kind:        core.KindStock,
			Type:        core.MovementOut,
			ProductID:   p.ID,
			Amount:      decimal.NewFromInt(int64(-req.Quantity)),
			Description: req.Description,
		})
		if err != nil {
			return err
		}
		res = StockResult{Transaction: tx, Product: updated, Level: stats.StockStatus(updated.Quantity)}
		return nil
	})
	if err != nil {
		return StockResult{}, err
	}

	s.logger.InfoContext(ctx, "Stock removed",
		"product_id", res.Product.ID,
		"quantity", req.Quantity,
		"stock", res.Product.Quantity)
	s.afterWrite(ctx, amqp.EventTransactionRecorded, res.Transaction.ID, string(core.KindStock))
	return res, nil
}

// discardProduct removes a product created for a stock-in whose movement
// failed. It runs even when ctx is already cancelled.
func (s *LedgerService) discardProduct(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to discard product after stock-in failure",
			"product_id", id, "error", err)
	}
}

// currentProduct reads the product from the store, not the cached state,
// so stock checks see the latest quantity.
func (s *LedgerService) currentProduct(ctx context.Context, id string) (core.Product, error) {
	if strings.TrimSpace(id) == "" {
		return core.Product{}, core.NewValidationError("productId", core.ReasonRequired, "product is required")
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return core.Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Product{}, &core.NotFoundError{Kind: core.EntityProduct, ID: id}
}

func (s *LedgerService) CreateProduct(ctx context.Context, in NewProductInput) (core.Product, error) {
	p, err := validation.NewProduct(in.Name, in.Unit, in.InitialQuantity)
	if err != nil {
		return core.Product{}, err
	}
	var created core.Product
	err = s.guard.Do(ctx, "product-create", func(ctx context.Context) error {
		var err error
		created, err = s.store.CreateProduct(ctx, p)
		return err
	})
	if err != nil {
		return core.Product{}, err
	}
	s.logger.InfoContext(ctx, "Product created", "id", created.ID, "name", created.Name)
	s.refresh(ctx)
	return created, nil
}

func (s *LedgerService) UpdateProduct(ctx context.Context, id string, patch core.ProductPatch) (core.Product, error) {
	var updated core.Product
	err := s.guard.Do(ctx, "product:"+id, func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateProduct(ctx, id, patch)
		return err
	})
	if err != nil {
		return core.Product{}, err
	}
	s.refresh(ctx)
	return updated, nil
}

func (s *LedgerService) DeleteProduct(ctx context.Context, id string) error {
	err := s.guard.Do(ctx, "product:"+id, func(ctx context.Context) error {
		return s.store.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Product deleted", "id", id)
	s.afterWrite(ctx, amqp.EventProductDeleted, id, "")
	return nil
}

type ExchangeRequest struct {
	Amount    string `json:"amount"`
	Rate      string `json:"rate"`
	Direction string `json:"direction"`
	Confirmed bool   `json:"confirmed"`
}

// Quote is a priced but unsaved exchange.
type Quote struct {
	Exchange core.Exchange  `json:"exchange"`
	Warnings []core.Warning `json:"warnings,omitempty"`
}

func (s *LedgerService) QuoteExchange(req ExchangeRequest) (Quote, error) {
	q, out, err := s.priceExchange(req)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Exchange: q.Exchange, Warnings: out.Warnings}, nil
}

func (s *LedgerService) priceExchange(req ExchangeRequest) (validation.ExchangeQuote, validation.Outcome, error) {
	dir := core.KSHToUSD
	if strings.TrimSpace(req.Direction) != "" {
		var ok bool
		if dir, ok = core.ParseExchangeDirection(req.Direction); !ok {
			return validation.ExchangeQuote{}, validation.Outcome{},
				core.NewValidationError("direction", core.ReasonInvalidValue, "direction must be KSH_TO_USD or USD_TO_KSH")
		}
	}
	return validation.Exchange(req.Amount, req.Rate, dir, s.now())
}

// CreateExchange stores a conversion. Amounts under 1,000 KSH need Confirmed.
func (s *LedgerService) CreateExchange(ctx context.Context, req ExchangeRequest) (core.Exchange, error) {
	q, out, err := s.priceExchange(req)
	if err != nil {
		return core.Exchange{}, err
	}
	if err := out.Gate(req.Confirmed); err != nil {
		return core.Exchange{}, err
	}

	var stored core.Exchange
	err = s.guard.Do(ctx, "exchange", func(ctx context.Context) error {
		var err error
		stored, err = s.store.CreateExchange(ctx, q.Exchange)
		return err
	})
	if err != nil {
		return core.Exchange{}, err
	}
	s.logger.InfoContext(ctx, "Exchange recorded",
		"id", stored.ID,
		"ksh", stored.KSH.String(),
		"usd", stored.USD.String(),
		"rate", stored.Rate.String())
	s.afterWrite(ctx, amqp.EventExchangeRecorded, stored.ID, string(stored.Direction))
	return stored, nil
}

type DebtRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (s *LedgerService) AddDebt(ctx context.Context, req DebtRequest) (core.Debt, error) {
	amount, err := validation.Debt(req.Name, req.Amount)
	if err != nil {
		return core.Debt{}, err
	}
	var stored core.Debt
	err = s.guard.Do(ctx, "debt-add", func(ctx context.Context) error {
		var err error
		stored, err = s.store.CreateDebt(ctx, core.Debt{
			Name:        strings.TrimSpace(req.Name),
			Phone:       strings.TrimSpace(req.Phone),
			Amount:      amount,
			Description: strings.TrimSpace(req.Description),
			Status:      core.DebtPending,
			Date:        s.now(),
		})
		return err
	})
	if err != nil {
		return core.Debt{}, err
	}
	s.logger.InfoContext(ctx, "Debt added", "id", stored.ID, "amount", stored.Amount.String())
	s.afterWrite(ctx, amqp.EventDebtCreated, stored.ID, "")
	return stored, nil
}

// MarkDebtPaid settles a pending debt. A paid debt cannot be paid again.
func (s *LedgerService) MarkDebtPaid(ctx context.Context, id string) (core.Debt, error) {
	paid := core.DebtPaid
	var updated core.Debt
	err := s.guard.Do(ctx, "debt:"+id, func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateDebt(ctx, id, core.DebtPatch{Status: &paid})
		return err
	})
	if err != nil {
		return core.Debt{}, err
	}
	s.logger.InfoContext(ctx, "Debt marked as paid", "id", id)
	s.afterWrite(ctx, amqp.EventDebtPaid, id, "")
	return updated, nil
}

func (s *LedgerService) DeleteDebt(ctx context.Context, id string) error {
	err := s.guard.Do(ctx, "debt:"+id, func(ctx context.Context) error {
		return s.store.DeleteDebt(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Debt deleted", "id", id)
	s.refresh(ctx)
	return nil
}

// afterWrite publishes the event and refreshes state. Neither step can fail
// the write, which is already stored.
func (s *LedgerService) afterWrite(ctx context.Context, t amqp.EventType, id, kind string) {
	s.publish(ctx, t, id, kind)
	s.refresh(ctx)
}

func (s *LedgerService) publish(ctx context.Context, t amqp.EventType, id, kind string) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "Event publishing disabled, skipping", "type", t)
		return
	}
	if err := s.events.PublishEvent(ctx, amqp.NewLedgerEvent(t, id, kind)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"type", t,
			"entity_id", id,
			"error", err)
	}
}

func (s *LedgerService) refresh(ctx context.Context) {
	if s.state == nil {
		return
	}
	if err := s.state.Reload(ctx); err != nil {
		s.logger.WarnContext(ctx, "State refresh after write failed", "error", err)
	}
}

// Close releases the store and the event publisher when it can be closed.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.events.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
