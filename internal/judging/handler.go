package judging

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/forge-club/forge/internal/observability"
	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/platform/httpx"
	"github.com/forge-club/forge/internal/rbac"
	"github.com/forge-club/forge/internal/shared"
)

// Handler exposes activation, room administration, and roster endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	judge     Middleware
	metrics   *observability.Metrics
	secure    bool
	validator *validator.Validate
}

// NewHandler builds Handler instance. secure toggles the Secure cookie flag
// and should follow the production setting.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, metrics *observability.Metrics, secure bool) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbacMW,
		judge:     Middleware{Service: service, Logger: logger},
		metrics:   metrics,
		secure:    secure,
		validator: validator.New(),
	}
}

// MountRoutes registers judging routes.
func (h *Handler) MountRoutes(r chi.Router) {
	// Public: the activation endpoint is the only unauthenticated entry.
	// The tight per-IP limit slows down token guessing without bothering
	// a room full of judges scanning one QR code.
	r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/activate", h.activate)

	// Officer-facing administration.
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(perm.IsOfficer))
		r.Post("/links", h.issueLink)
		r.Get("/rooms", h.roomCounts)
		r.Delete("/rooms/{room}", h.revokeRoom)
		r.Post("/judges", h.createJudge)
		r.Put("/judges/{id}", h.updateJudge)
		r.Delete("/judges/{id}", h.deleteJudge)
	})

	// Judge-scoped reads, also open to officers through the role gate.
	r.Group(func(r chi.Router) {
		r.Use(h.judge.RequireSession)
		r.Get("/session", h.currentSession)
		r.Get("/judges", h.listJudges)
		r.Get("/roster/rooms", h.listRoomNames)
	})
}

type activatePayload struct {
	Token string `json:"token" validate:"required,min=16,max=2048"`
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var payload activatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "")
		return
	}

	session, err := h.service.Activate(r.Context(), payload.Token)
	if err != nil {
		// One denial for bad signature, wrong subject, expiry, and
		// malformed tokens alike; distinguishing them would hand an
		// attacker an oracle.
		if errors.Is(err, shared.ErrUnauthorized) || errors.Is(err, shared.ErrExpired) || errors.Is(err, shared.ErrMalformed) {
			httpx.Deny(w)
			return
		}
		h.logger.Error("activate token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.metrics.RecordActivation()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.SessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.service.SessionTTL() / time.Second),
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "roomName": session.RoomName})
}

type issueLinkPayload struct {
	RoomName   string `json:"roomName" validate:"required,max=255"`
	TTLSeconds int    `json:"ttlSeconds" validate:"omitempty,gt=0"`
}

func (h *Handler) issueLink(w http.ResponseWriter, r *http.Request) {
	var payload issueLinkPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	magicURL, err := h.service.IssueLink(r.Context(), payload.RoomName, time.Duration(payload.TTLSeconds)*time.Second)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"magicUrl": magicURL})
}

func (h *Handler) roomCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.CountSessionsByRoom(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counts)
}

func (h *Handler) revokeRoom(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.RevokeRoom(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"deletedCount": deleted})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		httpx.Deny(w)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roomName":  session.RoomName,
		"expiresAt": session.ExpiresAt,
	})
}

type judgePayload struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	RoomName    string `json:"roomName" validate:"omitempty,max=255"`
	ChallengeID string `json:"challengeId" validate:"omitempty,uuid4"`
}

func (h *Handler) createJudge(w http.ResponseWriter, r *http.Request) {
	var payload judgePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	judge, err := h.service.CreateJudge(r.Context(), payload.Name, payload.RoomName, payload.ChallengeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, judge)
}

func (h *Handler) updateJudge(w http.ResponseWriter, r *http.Request) {
	var payload judgePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	judge, err := h.service.UpdateJudge(r.Context(), chi.URLParam(r, "id"), payload.Name, payload.RoomName, payload.ChallengeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, judge)
}

func (h *Handler) deleteJudge(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteJudge(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listJudges(w http.ResponseWriter, r *http.Request) {
	judges, err := h.service.ListJudges(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, judges)
}

func (h *Handler) listRoomNames(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.ListRoomNames(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rooms)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrInvalidArgument):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
	case errors.Is(err, shared.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "")
	default:
		if h.logger != nil {
			h.logger.Error("judging handler", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
