package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/swapledger/internal/domain"
	"github.com/punchamoorthee/swapledger/internal/service"
)

type signupRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"account"`
}

func (h *Handler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	acct, err := h.svc.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondSession(w, r, http.StatusCreated, acct)
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	acct, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondSession(w, r, http.StatusOK, acct)
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, code int, acct *domain.Account) {
	token, exp, err := h.tokens.Issue(acct.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, code, sessionResponse{Token: token, ExpiresAt: exp, Account: acct})
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

type updateMeRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
}

func (h *Handler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.svc.UpdateNames(r.Context(), principal(r), service.NamesInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) MyItemsHandler(w http.ResponseWriter, r *http.Request) {
	status := domain.ItemStatus(r.URL.Query().Get("status"))
	items, err := h.svc.ListMyItems(r.Context(), principal(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listResponse[domain.Item]{Count: len(items), Results: items})
}

func (h *Handler) MyLedgerHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Entries(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, listResponse[domain.LedgerEntry]{Count: len(entries), Results: entries})
}

// publicProfile omits contact details and balance from another member's view.
type publicProfile struct {
	ID            uuid.UUID           `json:"id"`
	FirstName     string              `json:"first_name"`
	LastName      string              `json:"last_name"`
	Stats         domain.AccountStats `json:"stats"`
	AverageRating float64             `json:"average_rating"`
	RatingCount   int                 `json:"rating_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (h *Handler) UserProfileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.svc.Profile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !p.IsActive {
		h.writeError(w, r, domain.ErrNotFound)
		return
	}
	respondWithJSON(w, http.StatusOK, publicProfile{
		ID:            p.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Stats:         p.Stats,
		AverageRating: p.AverageRating,
		RatingCount:   p.RatingCount,
		CreatedAt:     p.CreatedAt,
	})
}

type listResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}
