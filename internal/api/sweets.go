package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/IlyasAtabaev731/sweet-shop/internal/lib/api/response"
	"github.com/IlyasAtabaev731/sweet-shop/internal/storage"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

type CreateSweetRequest struct {
	Name        string           `json:"name" validate:"required,min=2,max=200"`
	Category    string           `json:"category" validate:"required,min=2,max=100"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required,price"`
	Quantity    *int             `json:"quantity" validate:"required,min=0,max=2147483647"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
}

type UpdateSweetRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=200"`
	Category    *string          `json:"category" validate:"omitempty,min=2,max=100"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"omitnil,price"`
	Quantity    *int             `json:"quantity" validate:"omitnil,min=0,max=2147483647"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
}

// QuantityRequest is the body of both purchase and restock.
type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"gt=0,max=2147483647"`
}

type listParams struct {
	Page      int    `json:"page" validate:"min=1"`
	Limit     int    `json:"limit" validate:"min=1,max=100"`
	SortBy    string `json:"sortBy" validate:"oneof=name price createdAt"`
	SortOrder string `json:"sortOrder" validate:"oneof=asc desc"`
}

type searchParams struct {
	Q     string `json:"q" validate:"required,min=1"`
	Page  int    `json:"page" validate:"min=1"`
	Limit int    `json:"limit" validate:"min=1,max=100"`
}

type SweetResponse struct {
	Sweet *models.Sweet `json:"sweet"`
}

type ListSweetsResponse struct {
	Sweets     []models.Sweet    `json:"sweets"`
	Pagination models.Pagination `json:"pagination"`
}

type SearchSweetsResponse struct {
	Results    []models.Sweet    `json:"results"`
	Pagination models.Pagination `json:"pagination"`
}

type PurchaseResponse struct {
	Purchase       *models.Purchase `json:"purchase"`
	RemainingStock int              `json:"remainingStock"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (s *APIServer) listSweetsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		page, limit, err := pageParams(query)
		if err != nil {
			s.badRequest(w, r, err)
			return
		}
		params := listParams{
			Page:      page,
			Limit:     limit,
			SortBy:    valueOr(query, "sortBy", string(models.SortByCreatedAt)),
			SortOrder: valueOr(query, "sortOrder", string(models.SortDesc)),
		}
		if err := validateStruct(params); err != nil {
			s.badRequest(w, r, err)
			return
		}

		sweets, total, err := s.storage.ListSweets(r.Context(), models.ListQuery{
			Page:      params.Page,
			Limit:     params.Limit,
			Category:  query.Get("category"),
			SortBy:    models.SortField(params.SortBy),
			SortOrder: models.SortOrder(params.SortOrder),
		})
		if err != nil {
			s.internalError(w, r, "Failed to fetch sweets", err)
			return
		}

		response.OK(w, http.StatusOK, ListSweetsResponse{
			Sweets:     sweets,
			Pagination: models.NewPagination(params.Page, params.Limit, total),
		})
	}
}

func (s *APIServer) searchSweetsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		page, limit, err := pageParams(query)
		if err != nil {
			s.badRequest(w, r, err)
			return
		}
		params := searchParams{Q: query.Get("q"), Page: page, Limit: limit}
		if err := validateStruct(params); err != nil {
			s.badRequest(w, r, err)
			return
		}

		minPrice, err := priceParam(query, "minPrice")
		if err != nil {
			s.badRequest(w, r, err)
			return
		}
		maxPrice, err := priceParam(query, "maxPrice")
		if err != nil {
			s.badRequest(w, r, err)
			return
		}

		results, total, err := s.storage.SearchSweets(r.Context(), models.SearchQuery{
			Q:        params.Q,
			Category: query.Get("category"),
			MinPrice: minPrice,
			MaxPrice: maxPrice,
			Page:     params.Page,
			Limit:    params.Limit,
		})
		if err != nil {
			s.internalError(w, r, "Search failed", err)
			return
		}

		response.OK(w, http.StatusOK, SearchSweetsResponse{
			Results:    results,
			Pagination: models.NewPagination(params.Page, params.Limit, total),
		})
	}
}

func (s *APIServer) createSweetHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSweetRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}

		sweet := &models.Sweet{
			Name:        req.Name,
			Category:    req.Category,
			Description: req.Description,
			Price:       *req.Price,
			Quantity:    *req.Quantity,
			ImageURL:    req.ImageURL,
		}
		if err := s.storage.SaveSweet(r.Context(), sweet); err != nil {
			s.internalError(w, r, "Failed to create sweet", err)
			return
		}

		s.logger.Info("Sweet created", slog.String("sweet_id", sweet.ID), slog.String("name", sweet.Name))

		response.OK(w, http.StatusCreated, SweetResponse{Sweet: sweet})
	}
}

func (s *APIServer) updateSweetHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req UpdateSweetRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}

		sweet, err := s.storage.UpdateSweet(r.Context(), id, models.SweetPatch{
			Name:        req.Name,
			Category:    req.Category,
			Description: req.Description,
			Price:       req.Price,
			Quantity:    req.Quantity,
			ImageURL:    req.ImageURL,
		})
		if err != nil {
			if errors.Is(err, storage.ErrSweetNotFound) {
				response.Error(w, response.CodeNotFound, "Sweet not found")
				return
			}
			s.internalError(w, r, "Failed to update sweet", err)
			return
		}

		response.OK(w, http.StatusOK, SweetResponse{Sweet: sweet})
	}
}

func (s *APIServer) deleteSweetHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		if err := s.storage.DeleteSweet(r.Context(), id); err != nil {
			if errors.Is(err, storage.ErrSweetNotFound) {
				response.Error(w, response.CodeNotFound, "Sweet not found")
				return
			}
			s.internalError(w, r, "Failed to delete sweet", err)
			return
		}

		s.logger.Info("Sweet deleted", slog.String("sweet_id", id))

		response.OK(w, http.StatusOK, MessageResponse{Message: "Sweet deleted successfully"})
	}
}

func (s *APIServer) purchaseHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Error(w, response.CodeUnauthorized, "You are not authenticated")
			return
		}

		var req QuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}

		purchase, remaining, err := s.storage.PurchaseSweet(r.Context(), id, identity.UserID, req.Quantity)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrSweetNotFound):
				response.Error(w, response.CodeNotFound, "Sweet not found")
			case errors.Is(err, storage.ErrOutOfStock):
				s.metrics.OutOfStockTotal.Inc()
				response.Error(w, response.CodeOutOfStock, "Insufficient stock")
			default:
				s.internalError(w, r, "Purchase failed", err)
			}
			return
		}

		s.metrics.PurchasesTotal.Inc()
		s.metrics.UnitsSoldTotal.Add(float64(purchase.Quantity))
		s.logger.Info("Purchase",
			slog.String("purchase_id", purchase.ID),
			slog.String("sweet_id", id),
			slog.String("user_id", identity.UserID),
			slog.Int("quantity", purchase.Quantity),
			slog.Int("remaining", remaining),
		)

		response.OK(w, http.StatusOK, PurchaseResponse{Purchase: purchase, RemainingStock: remaining})
	}
}

func (s *APIServer) restockHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req QuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, r, err)
			return
		}

		sweet, err := s.storage.RestockSweet(r.Context(), id, req.Quantity)
		if err != nil {
			if errors.Is(err, storage.ErrSweetNotFound) {
				response.Error(w, response.CodeNotFound, "Sweet not found")
				return
			}
			if errors.Is(err, storage.ErrStockLimit) {
				s.badRequest(w, r, invalid("Validation failed", FieldError{
					Field:   "quantity",
					Message: fmt.Sprintf("stock cannot exceed %d", models.MaxQuantity),
				}))
				return
			}
			s.internalError(w, r, "Restock failed", err)
			return
		}

		s.logger.Info("Restock",
			slog.String("sweet_id", id),
			slog.Int("added", req.Quantity),
			slog.Int("quantity", sweet.Quantity),
		)

		response.OK(w, http.StatusOK, SweetResponse{Sweet: sweet})
	}
}

func pageParams(q url.Values) (page, limit int, err error) {
	page, err = intParam(q, "page", defaultPage)
	if err != nil {
		return 0, 0, err
	}
	limit, err = intParam(q, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("Invalid query parameters", FieldError{Field: key, Message: "must be a whole number"})
	}
	return n, nil
}

func priceParam(q url.Values, key string) (*decimal.Decimal, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !models.PriceInRange(d) {
		return nil, invalid("Invalid query parameters", FieldError{Field: key, Message: "must be a positive number up to 99999999.99"})
	}
	return &d, nil
}

func valueOr(q url.Values, key, def string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	return def
}
