package http

import (
	"bytes"
	"net/http"

	"github.com/shopspring/decimal"

	"duka/internal/core"
	"duka/internal/filter"
	"duka/internal/services"
	"duka/internal/stats"
)

type cashSummary struct {
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Net          decimal.Decimal `json:"net"`
	Count        int             `json:"count"`
}

type cashView struct {
	Balance      decimal.Decimal    `json:"balance"`
	Criteria     filter.Criteria    `json:"criteria"`
	Transactions []core.Transaction `json:"transactions"`
	Summary      cashSummary        `json:"summary"`
}

// handleListCash returns the balance over all cash entries and the
// filtered, sorted history with a summary of that view.
func (s *Server) handleListCash(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseCriteria(r.URL.Query())
	if err != nil {
		s.writeError(w, r, "list cash", err)
		return
	}
	s.refreshState(w, r)

	view := s.state.View(criteria, s.now())
	split := stats.IncomeExpenseSplit(view)
	OK(cashView{
		Balance:      stats.Balance(s.state.CashTransactions()),
		Criteria:     criteria,
		Transactions: view,
		Summary: cashSummary{
			TotalIncome:  split.TotalIncome,
			TotalExpense: split.TotalExpense,
			Net:          split.Net(),
			Count:        len(view),
		},
	}).Write(w)
}

func (s *Server) handleCashIn(w http.ResponseWriter, r *http.Request) {
	s.recordCash(w, r, services.CashIn)
}

func (s *Server) handleCashOut(w http.ResponseWriter, r *http.Request) {
	s.recordCash(w, r, services.CashOut)
}

func (s *Server) recordCash(w http.ResponseWriter, r *http.Request, dir services.CashDirection) {
	body := parseBody(w, r)
	if body == nil {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	tx, err := s.ledger.RecordCash(ctx, services.CashRequest{
		Direction:   dir,
		Amount:      body.Get("amount"),
		PaymentType: body.Get("paymentType"),
		Description: body.Get("description"),
		Notes:       body.Get("notes"),
	})
	if err != nil {
		s.writeError(w, r, "record cash", err)
		return
	}
	s.structured.LogTransactionRecorded(r.Context(), tx)
	Created(tx).Write(w)
}

// handleExportTransactions streams the filtered view as CSV, in view order.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseCriteria(r.URL.Query())
	if err != nil {
		s.writeError(w, r, "export transactions", err)
		return
	}
	s.refreshState(w, r)

	now := s.now()
	var buf bytes.Buffer
	if err := filter.WriteCSV(&buf, s.state.View(criteria, now)); err != nil {
		s.writeError(w, r, "export transactions", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="duka-transactions-`+now.Format("20060102")+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
