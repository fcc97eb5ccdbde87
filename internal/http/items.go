package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"campusmarket/internal/model"
	"campusmarket/internal/repository"
)

type itemResponse struct {
	ID           int64               `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Price        float64             `json:"price"`
	Condition    model.ItemCondition `json:"condition"`
	Status       model.ItemStatus    `json:"status"`
	Category     model.ItemCategory  `json:"category"`
	Location     *string             `json:"location"`
	IsNegotiable bool                `json:"is_negotiable"`
	ItemURL      *string             `json:"item_url"`
	SellerID     int64               `json:"seller_id"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    *time.Time          `json:"updated_at"`
}

func toItemResponse(item model.Item) itemResponse {
	return itemResponse{
		ID:           item.ID,
		Title:        item.Title,
		Description:  item.Description,
		Price:        item.Price,
		Condition:    item.Condition,
		Status:       item.Status,
		Category:     item.Category,
		Location:     item.Location,
		IsNegotiable: item.IsNegotiable,
		ItemURL:      item.ItemURL,
		SellerID:     item.SellerID,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func writeItems(w http.ResponseWriter, items []model.Item) {
	responses := make([]itemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toItemResponse(item))
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req struct {
		Title        string              `json:"title"`
		Description  string              `json:"description"`
		Price        float64             `json:"price"`
		Condition    model.ItemCondition `json:"condition"`
		Category     model.ItemCategory  `json:"category"`
		Location     *string             `json:"location"`
		IsNegotiable bool                `json:"is_negotiable"`
		ItemURL      *string             `json:"item_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Price < 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !req.Condition.Valid() || !req.Category.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_enum_value")
		return
	}

	item, err := s.store.CreateItem(r.Context(), model.Item{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Condition:    req.Condition,
		Status:       model.StatusAvailable,
		Category:     req.Category,
		Location:     req.Location,
		IsNegotiable: req.IsNegotiable,
		ItemURL:      req.ItemURL,
		SellerID:     user.ID,
		CreatedBy:    &user.Username,
	})
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset := queryPage(r)
	filter := repository.ItemFilter{Limit: limit, Offset: offset, Search: strings.TrimSpace(query.Get("search"))}

	if raw := query.Get("category"); raw != "" {
		category := model.ItemCategory(raw)
		if !category.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_enum_value")
			return
		}
		filter.Category = category
	}
	if raw := query.Get("condition"); raw != "" {
		condition := model.ItemCondition(raw)
		if !condition.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_enum_value")
			return
		}
		filter.Condition = condition
	}
	if raw := query.Get("status"); raw != "" {
		status := model.ItemStatus(raw)
		// Removed items are invisible in the public listing.
		if !status.Valid() || status == model.StatusRemoved {
			writeError(w, http.StatusBadRequest, "invalid_enum_value")
			return
		}
		filter.Status = status
	}
	if raw := query.Get("seller_id"); raw != "" {
		sellerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_id")
			return
		}
		filter.SellerID = &sellerID
	}
	if raw := query.Get("min_price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_price")
			return
		}
		filter.MinPrice = &price
	}
	if raw := query.Get("max_price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_price")
			return
		}
		filter.MaxPrice = &price
	}

	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeItems(w, items)
}

func (s *Server) handleMyItems(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	items, err := s.store.ListItemsBySeller(r.Context(), user.ID)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeItems(w, items)
}

func (s *Server) handleAdminListItems(w http.ResponseWriter, r *http.Request) {
	limit, offset := queryPage(r)
	items, err := s.store.ListAllItems(r.Context(), limit, offset)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeItems(w, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	item, err := s.store.GetItemByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.writeAuthError(w, r, err)
		return
	}
	// A soft-deleted item is gone as far as the public API is concerned.
	if item.Status == model.StatusRemoved {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// loadOwnedItem fetches an item and checks the caller may modify it: the
// seller or an admin.
func (s *Server) loadOwnedItem(w http.ResponseWriter, r *http.Request) (model.Item, model.User, bool) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return model.Item{}, model.User{}, false
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return model.Item{}, model.User{}, false
	}
	item, err := s.store.GetItemByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return model.Item{}, model.User{}, false
		}
		s.writeAuthError(w, r, err)
		return model.Item{}, model.User{}, false
	}
	if item.Status == model.StatusRemoved {
		writeError(w, http.StatusNotFound, "not_found")
		return model.Item{}, model.User{}, false
	}
	if item.SellerID != user.ID && user.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return model.Item{}, model.User{}, false
	}
	return item, user, true
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	item, user, ok := s.loadOwnedItem(w, r)
	if !ok {
		return
	}
	var req struct {
		Title        *string              `json:"title"`
		Description  *string              `json:"description"`
		Price        *float64             `json:"price"`
		Condition    *model.ItemCondition `json:"condition"`
		Category     *model.ItemCategory  `json:"category"`
		Location     *string              `json:"location"`
		IsNegotiable *bool                `json:"is_negotiable"`
		ItemURL      *string              `json:"item_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Condition != nil && !req.Condition.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_enum_value")
		return
	}
	if req.Category != nil && !req.Category.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_enum_value")
		return
	}
	if req.Price != nil && *req.Price < 0 {
		writeError(w, http.StatusBadRequest, "invalid_price")
		return
	}

	updated, err := s.store.UpdateItem(r.Context(), item.ID, repository.ItemUpdate{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Condition:    req.Condition,
		Category:     req.Category,
		Location:     req.Location,
		IsNegotiable: req.IsNegotiable,
		ItemURL:      req.ItemURL,
	}, user.Username)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(updated))
}

func (s *Server) handleMarkItemSold(w http.ResponseWriter, r *http.Request) {
	item, user, ok := s.loadOwnedItem(w, r)
	if !ok {
		return
	}
	updated, err := s.store.UpdateItemStatus(r.Context(), item.ID, model.StatusSold, user.Username)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(updated))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	item, user, ok := s.loadOwnedItem(w, r)
	if !ok {
		return
	}
	if _, err := s.store.UpdateItemStatus(r.Context(), item.ID, model.StatusRemoved, user.Username); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item removed"})
}
