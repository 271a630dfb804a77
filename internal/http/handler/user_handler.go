package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdflux-api/internal/http/middleware"
	"pdflux-api/internal/http/response"
	"pdflux-api/internal/service"
)

type UserHandler struct {
	authSvc *service.AuthService
	subSvc  *service.SubscriptionService
}

func NewUserHandler(authSvc *service.AuthService, subSvc *service.SubscriptionService) *UserHandler {
	return &UserHandler{
		authSvc: authSvc,
		subSvc:  subSvc,
	}
}

func (h *UserHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	snapshot, err := h.subSvc.Snapshot(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load subscription", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, snapshot)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	updated, err := h.authSvc.UpdateProfile(r.Context(), user.ID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		case errors.Is(err, service.ErrUserNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to update profile", nil)
		}
		return
	}

	response.JSON(w, r, http.StatusOK, updated)
}
