package http

import (
	"net/http"

	"duka/internal/core"
	"duka/internal/filter"
	"duka/internal/services"
	"duka/internal/stats"
)

type productView struct {
	core.Product
	Level stats.StockLevel `json:"level"`
}

type productDetails struct {
	Product   productView        `json:"product"`
	Movements []core.Transaction `json:"movements"`
	Totals    stats.Movement     `json:"totals"`
}

func viewOf(p core.Product) productView {
	return productView{Product: p, Level: stats.StockStatus(p.Quantity)}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	sort, ok := filter.ParseProductSort(r.URL.Query().Get("sort"))
	if !ok {
		s.writeError(w, r, "list products",
			core.NewValidationError("sort", core.ReasonInvalidValue, "sort must be name, quantity or recent"))
		return
	}
	s.refreshState(w, r)

	products := filter.Products(s.state.Products(), filter.ProductQuery{
		Search: r.URL.Query().Get("search"),
		Sort:   sort,
	})
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, viewOf(p))
	}
	OK(views).Write(w)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.refreshState(w, r)

	p, err := s.state.Product(id)
	if err != nil {
		s.writeError(w, r, "get product", err)
		return
	}
	movements := s.state.ProductMovements(id)
	OK(productDetails{
		Product:   viewOf(p),
		Movements: movements,
		Totals:    stats.MovementTotals(movements, id),
	}).Write(w)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	body := parseBody(w, r)
	if body == nil {
		return
	}
	initial, err := body.GetInt("initialQuantity")
	if err != nil {
		s.writeError(w, r, "create product",
			core.NewValidationError("initialQuantity", core.ReasonInvalidQuantity, "initial quantity must be a whole number"))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	p, err := s.ledger.CreateProduct(ctx, services.NewProductInput{
		Name:            body.Get("name"),
		Unit:            body.Get("unit"),
		InitialQuantity: initial,
	})
	if err != nil {
		s.writeError(w, r, "create product", err)
		return
	}
	Created(viewOf(p)).Write(w)
}

// handleUpdateProduct renames a product or changes its unit. Quantity only
// moves through stock movements.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	body := parseBody(w, r)
	if body == nil {
		return
	}
	var patch core.ProductPatch
	if body.Has("name") {
		name := body.Get("name")
		patch.Name = &name
	}
	if body.Has("unit") {
		unit := body.Get("unit")
		patch.Unit = &unit
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	p, err := s.ledger.UpdateProduct(ctx, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, "update product", err)
		return
	}
	OK(viewOf(p)).Write(w)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.DeleteProduct(ctx, r.PathValue("id")); err != nil {
		s.writeError(w, r, "delete product", err)
		return
	}
	NewJSONResponse().Message("product deleted").Write(w)
}

// handleStockMovement records stock IN or OUT. A stock-in may create the
// product on the fly through the newProduct fields.
func (s *Server) handleStockMovement(w http.ResponseWriter, r *http.Request) {
	body := parseBody(w, r)
	if body == nil {
		return
	}
	movement, ok := core.ParseMovementType(body.Get("type"))
	if !ok {
		s.writeError(w, r, "stock movement",
			core.NewValidationError("type", core.ReasonInvalidValue, "type must be IN or OUT"))
		return
	}
	qty, err := body.GetInt("quantity")
	if err != nil {
		s.writeError(w, r, "stock movement", core.NewValidationError("quantity", core.ReasonInvalidQuantity, "please enter a valid quantity"))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	var res services.StockResult
	if movement == core.MovementIn {
		req := services.StockInRequest{
			ProductID:   body.Get("productId"),
			Quantity:    qty,
			Description: body.Get("description"),
		}
		if body.Has("newProduct.name") {
			initial, err := body.GetInt("newProduct.initialQuantity")
			if err != nil {
				s.writeError(w, r, "stock movement",
					core.NewValidationError("newProduct.initialQuantity", core.ReasonInvalidQuantity, "initial quantity must be a whole number"))
				return
			}
			req.NewProduct = &services.NewProductInput{
				Name:            body.Get("newProduct.name"),
				Unit:            body.Get("newProduct.unit"),
				InitialQuantity: initial,
			}
		}
		res, err = s.ledger.StockIn(ctx, req)
	} else {
		res, err = s.ledger.StockOut(ctx, services.StockOutRequest{
			ProductID:   body.Get("productId"),
			Quantity:    qty,
			Description: body.Get("description"),
			Confirmed:   body.Confirmed(),
		})
	}
	if err != nil {
		s.writeError(w, r, "stock movement", err)
		return
	}
	Created(res).Write(w)
}
