package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/http/middleware"
	"pdflux-api/internal/http/response"
	"pdflux-api/internal/repository"
	"pdflux-api/internal/service"
)

// multipartMemoryLimit caps the in-memory part of an upload; larger bodies
// spill to temp files.
const multipartMemoryLimit = 32 << 20

type ConversionHandler struct {
	conversionSvc *service.ConversionService
}

func NewConversionHandler(conversionSvc *service.ConversionService) *ConversionHandler {
	return &ConversionHandler{conversionSvc: conversionSvc}
}

func (h *ConversionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "failed to parse multipart form", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "file is required", nil)
		return
	}
	defer func() { _ = file.Close() }()

	toFormat := domain.ConversionFormat(strings.ToLower(strings.TrimSpace(r.FormValue("to_format"))))
	priority := r.FormValue("priority") == "true"

	upload := service.SourceUpload{
		File:        file,
		FileName:    header.Filename,
		FileSize:    header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}

	job, err := h.conversionSvc.Submit(r.Context(), user.ID, upload, toFormat, priority)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedFormat):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unsupported target format", nil)
		case errors.Is(err, service.ErrPlanInsufficient):
			response.Error(w, r, http.StatusForbidden, "PLAN_INSUFFICIENT", "priority conversions need the pro plan", nil)
		case errors.Is(err, service.ErrSubscriptionExpired):
			response.Error(w, r, http.StatusForbidden, "SUBSCRIPTION_EXPIRED", "subscription has expired", nil)
		case errors.Is(err, service.ErrLimitReached):
			response.Error(w, r, http.StatusForbidden, "LIMIT_REACHED", "conversion limit reached for current plan", nil)
		case errors.Is(err, service.ErrFileTooBig):
			response.Error(w, r, http.StatusBadRequest, "FILE_TOO_LARGE", "file size exceeds 100MB limit", nil)
		case errors.Is(err, service.ErrInvalidFileType):
			response.Error(w, r, http.StatusBadRequest, "INVALID_FILE_TYPE", "only PDF documents are accepted", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to submit conversion", nil)
		}
		return
	}

	response.JSON(w, r, http.StatusAccepted, job)
}

func (h *ConversionHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	jobID64, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid conversion id", nil)
		return
	}

	view, err := h.conversionSvc.Status(r.Context(), uint(jobID64), user.ID)
	if err != nil {
		if errors.Is(err, service.ErrConversionNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "conversion not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load conversion", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, view)
}

func (h *ConversionHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	page := repository.PageRequest{}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.PageSize = n
		}
	}

	result, err := h.conversionSvc.History(r.Context(), user.ID, page)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load history", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}
