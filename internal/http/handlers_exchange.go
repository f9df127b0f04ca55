package http

import (
	"net/http"
	"slices"

	"github.com/shopspring/decimal"

	"duka/internal/core"
	"duka/internal/services"
)

type exchangeList struct {
	Exchanges []core.Exchange `json:"exchanges"`
	TotalKSH  decimal.Decimal `json:"totalKsh"`
	TotalUSD  decimal.Decimal `json:"totalUsd"`
}

// handleListExchanges returns exchange records, newest first.
func (s *Server) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	s.refreshState(w, r)

	exchanges := slices.Clone(s.state.Exchanges())
	slices.SortStableFunc(exchanges, func(a, b core.Exchange) int { return b.Date.Compare(a.Date) })

	out := exchangeList{Exchanges: exchanges, TotalKSH: decimal.Zero, TotalUSD: decimal.Zero}
	for _, ex := range exchanges {
		out.TotalKSH = out.TotalKSH.Add(ex.KSH)
		out.TotalUSD = out.TotalUSD.Add(ex.USD)
	}
	OK(out).Write(w)
}

func exchangeRequest(body *RequestBodyParser) services.ExchangeRequest {
	return services.ExchangeRequest{
		Amount:    body.Get("amount"),
		Rate:      body.Get("rate"),
		Direction: body.Get("direction"),
		Confirmed: body.Confirmed(),
	}
}

// handleQuoteExchange prices a conversion without storing it.
func (s *Server) handleQuoteExchange(w http.ResponseWriter, r *http.Request) {
	body := parseBody(w, r)
	if body == nil {
		return
	}
	q, err := s.ledger.QuoteExchange(exchangeRequest(body))
	if err != nil {
		s.writeError(w, r, "quote exchange", err)
		return
	}
	OK(q).Write(w)
}

func (s *Server) handleCreateExchange(w http.ResponseWriter, r *http.Request) {
	body := parseBody(w, r)
	if body == nil {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	ex, err := s.ledger.CreateExchange(ctx, exchangeRequest(body))
	if err != nil {
		s.writeError(w, r, "create exchange", err)
		return
	}
	Created(ex).Write(w)
}
