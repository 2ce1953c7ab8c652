package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/service"
	"github.com/shopspring/decimal"
)

type createSwapRequest struct {
	ItemID        uuid.UUID  `json:"item_id" validate:"required"`
	Method        string     `json:"method" validate:"required,oneof=swap points donation"`
	PointsAmount  int64      `json:"points_amount" validate:"gte=0"`
	OfferedItemID *uuid.UUID `json:"offered_item_id"`
	Message       *string    `json:"message" validate:"omitempty,max=1000"`
}

type updateSwapRequest struct {
	Action string `json:"action" validate:"required,oneof=accept decline complete cancel dispute"`
}

type purchaseRequest struct {
	Mode       string           `json:"mode" validate:"required,oneof=points currency"`
	PointsUsed int64            `json:"points_used" validate:"gte=0"`
	Amount     *decimal.Decimal `json:"amount" validate:"omitempty,positive_decimal"`
}

func (h *Handler) CreateSwapHandler(w http.ResponseWriter, r *http.Request) {
	var req createSwapRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.svc.CreateSwap(r.Context(), principal(r), service.CreateSwapInput{
		ItemID:        req.ItemID,
		Method:        domain.Method(req.Method),
		PointsAmount:  req.PointsAmount,
		OfferedItemID: req.OfferedItemID,
		Message:       req.Message,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/swaps/"+t.ID.String())
	respondWithJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListSwapsHandler(w http.ResponseWriter, r *http.Request) {
	status := domain.TxStatus(r.URL.Query().Get("status"))
	txs, err := h.svc.ListTransactions(r.Context(), principal(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listResponse[domain.Transaction]{Count: len(txs), Results: txs})
}

func (h *Handler) GetSwapHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.svc.GetTransaction(r.Context(), id, principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateSwapHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateSwapRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.svc.Act(r.Context(), id, principal(r), domain.Action(req.Action))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

// PurchaseHandler buys an item with points. With an Idempotency-Key header a
// retried request replays the original purchase (200) instead of buying
// again; reusing the key for a different body is rejected.
func (h *Handler) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req purchaseRequest
	if err := h.decodeJSON(body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	hash := sha256.Sum256(append([]byte(id.String()+"\n"), body...))
	in := service.PurchaseInput{
		ItemID:         id,
		Mode:           service.PurchaseMode(req.Mode),
		PointsUsed:     req.PointsUsed,
		Amount:         req.Amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		RequestHash:    hex.EncodeToString(hash[:]),
	}
	res, err := h.svc.Purchase(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.Header().Set("Location", "/api/v1/swaps/"+res.Transaction.ID.String())
	respondWithJSON(w, code, res)
}
