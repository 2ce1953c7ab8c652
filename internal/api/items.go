package api

import (
	"net/http"
	"strconv"

	"github.com/punchamoorthee/swapledger/internal/auth"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/service"
)

// itemRequest checks shape only; catalogue values are checked by the service.
type itemRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required,max=5000"`
	Category    string   `json:"category" validate:"required"`
	Type        string   `json:"type" validate:"omitempty,oneof=swap donation points"`
	Size        string   `json:"size" validate:"required"`
	Condition   string   `json:"condition" validate:"required"`
	Brand       *string  `json:"brand" validate:"omitempty,max=100"`
	Color       *string  `json:"color" validate:"omitempty,max=50"`
	PointsValue int64    `json:"points_value" validate:"gte=0"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
	Images      []string `json:"images" validate:"max=10,dive,url"`
}

func (req itemRequest) input() service.ItemInput {
	return service.ItemInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Type:        domain.ListingType(req.Type),
		Size:        req.Size,
		Condition:   req.Condition,
		Brand:       req.Brand,
		Color:       req.Color,
		Tags:        req.Tags,
		PointsValue: req.PointsValue,
		Images:      req.Images,
	}
}

func (h *Handler) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	it, err := h.svc.CreateItem(r.Context(), principal(r), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/items/"+it.ID.String())
	respondWithJSON(w, http.StatusCreated, it)
}

func (h *Handler) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	it, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, it)
}

func (h *Handler) UpdateItemHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req itemRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	it, err := h.svc.UpdateItem(r.Context(), id, principal(r), req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, it)
}

func (h *Handler) RemoveItemHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	it, err := h.svc.RemoveItem(r.Context(), id, principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, it)
}

func (h *Handler) BrowseItemsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.BrowseFilter{
		Category:  q.Get("category"),
		Size:      q.Get("size"),
		Condition: q.Get("condition"),
		Search:    q.Get("search"),
	}
	var err error
	if f.MinPoints, err = queryInt(r, "min_points"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if f.MaxPoints, err = queryInt(r, "max_points"); err != nil {
		h.writeError(w, r, err)
		return
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if raw := q.Get(name); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 0 {
				h.writeError(w, r, domain.NewValidationError(name, "must be a non-negative integer"))
				return
			}
			*dst = n
		}
	}
	if id, ok := auth.Principal(r.Context()); ok {
		f.ExcludeAccount = id
	}

	items, err := h.svc.Browse(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listResponse[domain.Item]{Count: len(items), Results: items})
}
