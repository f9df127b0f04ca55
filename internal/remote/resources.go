package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"duka/internal/core"
	"duka/internal/ports"
)

var _ ports.Store = (*Client)(nil)

type productDTO struct {
	ID        string    `json:"_id"`
	AltID     string    `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p productDTO) toCore() core.Product {
	id := p.ID
	if id == "" {
		id = p.AltID
	}
	return core.Product{ID: id, Name: p.Name, Unit: p.Unit, Quantity: p.Quantity, CreatedAt: p.CreatedAt}
}

// productRef is either a bare id or a populated product object.
type productRef string

func (r *productRef) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		*r = productRef(id)
		return nil
	}
	var p productDTO
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = productRef(p.toCore().ID)
	return nil
}

type movementDTO struct {
	ID          string     `json:"_id"`
	Product     productRef `json:"product"`
	Type        string     `json:"type"`
	Quantity    int        `json:"quantity"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (m movementDTO) toCore() core.Transaction {
	typ, _ := core.ParseMovementType(m.Type)
	qty := decimal.NewFromInt(int64(m.Quantity))
	if typ == core.MovementOut {
		qty = qty.Neg()
	}
	return core.Transaction{
		ID:          m.ID,
		Kind:        core.KindStock,
		Amount:      qty,
		Type:        typ,
		ProductID:   string(m.Product),
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

type movementRequest struct {
	Product     string `json:"product"`
	Type        string `json:"type"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
}

type cashDTO struct {
	ID          string          `json:"_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	PaymentType string          `json:"paymentType"`
	Description string          `json:"description"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (c cashDTO) toCore() core.Transaction {
	amount := c.Amount
	if strings.EqualFold(c.Type, string(core.MovementOut)) && amount.IsPositive() {
		amount = amount.Neg()
	}
	pt, ok := core.ParsePaymentType(c.PaymentType)
	if !ok {
		pt = core.PaymentType(c.PaymentType)
	}
	return core.Transaction{
		ID:          c.ID,
		Kind:        core.KindCash,
		Amount:      amount,
		PaymentType: pt,
		Description: c.Description,
		Notes:       c.Notes,
		CreatedAt:   c.CreatedAt,
	}
}

type cashSummary struct {
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Transactions []cashDTO       `json:"transactions"`
}

type cashRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"paymentType"`
	Description string          `json:"description"`
	Notes       string          `json:"notes,omitempty"`
}

func (c *Client) ListProducts(ctx context.Context) ([]core.Product, error) {
	var dtos []productDTO
	if err := c.do(ctx, http.MethodGet, "/products", nil, &dtos, core.EntityProduct, ""); err != nil {
		return nil, err
	}
	out := make([]core.Product, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toCore())
	}
	return out, nil
}

func (c *Client) getProduct(ctx context.Context, id string) (core.Product, error) {
	var dto productDTO
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &dto, core.EntityProduct, id); err != nil {
		return core.Product{}, err
	}
	return dto.toCore(), nil
}

func (c *Client) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	body := map[string]any{"name": p.Name, "unit": p.Unit, "quantity": p.Quantity}
	var dto productDTO
	if err := c.do(ctx, http.MethodPost, "/products", body, &dto, core.EntityProduct, ""); err != nil {
		return core.Product{}, err
	}
	created := dto.toCore()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = c.now()
	}
	return created, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, patch core.ProductPatch) (core.Product, error) {
	current, err := c.getProduct(ctx, id)
	if err != nil {
		return core.Product{}, err
	}
	if _, err := patch.Apply(current); err != nil {
		return core.Product{}, err
	}
	var dto productDTO
	if err := c.do(ctx, http.MethodPatch, "/products/"+url.PathEscape(id), patch, &dto, core.EntityProduct, id); err != nil {
		return core.Product{}, err
	}
	return dto.toCore(), nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, core.EntityProduct, id)
}

// AdjustStock posts a stock movement; the server applies it atomically.
func (c *Client) AdjustStock(ctx context.Context, id string, delta int) (core.Product, error) {
	_, p, err := c.RecordMovement(ctx, core.Transaction{ProductID: id, Amount: decimal.NewFromInt(int64(delta))})
	return p, err
}

func (c *Client) RecordMovement(ctx context.Context, tx core.Transaction) (core.Transaction, core.Product, error) {
	if tx.ProductID == "" {
		return core.Transaction{}, core.Product{}, core.NewValidationError("productId", core.ReasonRequired, errMissingProduct.Error())
	}
	tx.Kind = core.KindStock
	tx = tx.WithDefaults(c.now())
	qty := int(tx.Amount.Abs().IntPart())
	if qty == 0 {
		return core.Transaction{}, core.Product{}, core.NewValidationError("quantity", core.ReasonInvalidQuantity, "quantity cannot be zero")
	}
	req := movementRequest{Product: tx.ProductID, Type: string(tx.Type), Quantity: qty, Description: tx.Description}
	var dto movementDTO
	if err := c.do(ctx, http.MethodPost, "/stock-movements", req, &dto, core.EntityProduct, tx.ProductID); err != nil {
		return core.Transaction{}, core.Product{}, err
	}
	if dto.ID != "" {
		tx.ID = dto.ID
	}
	if !dto.CreatedAt.IsZero() {
		tx.CreatedAt = dto.CreatedAt
	}
	p, err := c.getProduct(ctx, tx.ProductID)
	if err != nil {
		return core.Transaction{}, core.Product{}, err
	}
	return tx, p, nil
}

// ListTransactions merges cash entries and stock movements, oldest first.
func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var summary cashSummary
	if err := c.do(ctx, http.MethodGet, "/cash", nil, &summary, core.EntityTransaction, ""); err != nil {
		return nil, err
	}
	var moves []movementDTO
	if err := c.do(ctx, http.MethodGet, "/stock-movements", nil, &moves, core.EntityTransaction, ""); err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(summary.Transactions)+len(moves))
	for _, t := range summary.Transactions {
		out = append(out, t.toCore())
	}
	for _, m := range moves {
		out = append(out, m.toCore())
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = tx.WithDefaults(c.now())
	if tx.Amount.IsZero() {
		return core.Transaction{}, core.NewValidationError("amount", core.ReasonInvalidAmount, "amount cannot be zero")
	}
	if tx.Kind == core.KindStock {
		stored, _, err := c.RecordMovement(ctx, tx)
		return stored, err
	}
	path := "/cash"
	if tx.IsExpense() {
		path = "/cash/out"
	}
	req := cashRequest{Amount: tx.Amount.Abs(), PaymentType: string(tx.PaymentType), Description: tx.Description, Notes: tx.Notes}
	var dto cashDTO
	if err := c.do(ctx, http.MethodPost, path, req, &dto, core.EntityTransaction, ""); err != nil {
		return core.Transaction{}, err
	}
	if dto.ID != "" {
		tx.ID = dto.ID
	}
	if !dto.CreatedAt.IsZero() {
		tx.CreatedAt = dto.CreatedAt
	}
	return tx, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/cash/"+url.PathEscape(id), nil, nil, core.EntityTransaction, id)
}

func (c *Client) ListExchanges(ctx context.Context) ([]core.Exchange, error) {
	var out []core.Exchange
	if err := c.do(ctx, http.MethodGet, "/exchanges", nil, &out, core.EntityExchange, ""); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Exchange{}
	}
	return out, nil
}

func (c *Client) CreateExchange(ctx context.Context, ex core.Exchange) (core.Exchange, error) {
	if ex.Date.IsZero() {
		ex.Date = c.now()
	}
	var stored core.Exchange
	if err := c.do(ctx, http.MethodPost, "/exchanges", ex, &stored, core.EntityExchange, ""); err != nil {
		return core.Exchange{}, err
	}
	if stored.ID == "" {
		stored = ex
	}
	return stored, nil
}

func (c *Client) ListDebts(ctx context.Context) ([]core.Debt, error) {
	var out []core.Debt
	if err := c.do(ctx, http.MethodGet, "/debts", nil, &out, core.EntityDebt, ""); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Debt{}
	}
	return out, nil
}

func (c *Client) CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if d.Status == "" {
		d.Status = core.DebtPending
	}
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	if d.Date.IsZero() {
		d.Date = c.now()
	}
	var stored core.Debt
	if err := c.do(ctx, http.MethodPost, "/debts", d, &stored, core.EntityDebt, ""); err != nil {
		return core.Debt{}, err
	}
	if stored.ID == "" {
		stored = d
	}
	return stored, nil
}

func (c *Client) UpdateDebt(ctx context.Context, id string, patch core.DebtPatch) (core.Debt, error) {
	var stored core.Debt
	if err := c.do(ctx, http.MethodPatch, "/debts/"+url.PathEscape(id), patch, &stored, core.EntityDebt, id); err != nil {
		return core.Debt{}, err
	}
	return stored, nil
}

func (c *Client) DeleteDebt(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/debts/"+url.PathEscape(id), nil, nil, core.EntityDebt, id)
}
