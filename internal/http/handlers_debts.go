package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"duka/internal/core"
	"duka/internal/services"
	"duka/internal/stats"
)

type debtList struct {
	Debts        []core.Debt     `json:"debts"`
	PendingTotal decimal.Decimal `json:"pendingTotal"`
}

// handleListDebts lists debts, optionally only those with ?status=.
func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	status := core.DebtStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	switch status {
	case "", "all", core.DebtPending, core.DebtPaid:
	default:
		s.writeError(w, r, "list debts",
			core.NewValidationError("status", core.ReasonInvalidValue, "status must be pending, paid or all"))
		return
	}
	s.refreshState(w, r)

	all := s.state.Debts()
	debts := make([]core.Debt, 0, len(all))
	for _, d := range all {
		if status == "" || status == "all" || d.Status == status {
			debts = append(debts, d)
		}
	}
	OK(debtList{Debts: debts, PendingTotal: stats.PendingDebtTotal(all)}).Write(w)
}

func (s *Server) handleAddDebt(w http.ResponseWriter, r *http.Request) {
	body := parseBody(w, r)
	if body == nil {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	d, err := s.ledger.AddDebt(ctx, services.DebtRequest{
		Name:        body.Get("name"),
		Phone:       body.Get("phone"),
		Amount:      body.Get("amount"),
		Description: body.Get("description"),
	})
	if err != nil {
		s.writeError(w, r, "add debt", err)
		return
	}
	Created(d).Write(w)
}

func (s *Server) handleMarkDebtPaid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	d, err := s.ledger.MarkDebtPaid(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "mark debt paid", err)
		return
	}
	OK(d).Write(w)
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.DeleteDebt(ctx, r.PathValue("id")); err != nil {
		s.writeError(w, r, "delete debt", err)
		return
	}
	NewJSONResponse().Message("debt deleted").Write(w)
}
