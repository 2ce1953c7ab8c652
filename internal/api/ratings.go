package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/service"
)

type rateRequest struct {
	TransactionID *uuid.UUID `json:"transaction_id"`
	Score         int        `json:"score"`
	Comment       *string    `json:"comment" validate:"omitempty,max=1000"`
}

type updateRatingRequest struct {
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

func (h *Handler) RateUserHandler(w http.ResponseWriter, r *http.Request) {
	rated, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req rateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rating, err := h.svc.SubmitRating(r.Context(), principal(r), rated, service.RatingInput{
		TransactionID: req.TransactionID,
		Score:         req.Score,
		Comment:       req.Comment,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rating)
}

func (h *Handler) ListRatingsHandler(w http.ResponseWriter, r *http.Request) {
	rated, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.svc.ListRatings(r.Context(), rated)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) UpdateRatingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateRatingRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rating, err := h.svc.UpdateRatingComment(r.Context(), id, principal(r), req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rating)
}
