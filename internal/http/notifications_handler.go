package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
	"github.com/kobbycode/prestige-merchandise/internal/notify"
)

const feedLimit = 50

type NotificationsHandler struct {
	notifs  notify.Store
	timeout time.Duration
}

func NewNotificationsHandler(notifs notify.Store, timeout time.Duration) *NotificationsHandler {
	return &NotificationsHandler{notifs: notifs, timeout: timeout}
}

type NotificationDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Link      string `json:"link,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// GET /api/v1/notifications
//
// Staff accounts see the merged user and role feeds; a notification present
// in both appears once, newest first.
func (h *NotificationsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := getActorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	userFeed, err := h.notifs.ListByUser(ctx, actor.ID, feedLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var roleFeed []domain.Notification
	if actor.Staff {
		roleFeed, err = h.notifs.ListByRole(ctx, domain.RoleStaff, feedLimit)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}

	merged := notify.MergeAndDedup(userFeed, roleFeed)
	dtos := make([]NotificationDTO, 0, len(merged))
	for _, n := range merged {
		dtos = append(dtos, NotificationDTO{
			ID:        n.ID,
			Type:      string(n.Type),
			Message:   n.Message,
			Link:      n.Link,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	respondJSON(w, http.StatusOK, dtos)
}

// POST /api/v1/notifications/{notification_id}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := getActorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	notificationID := chi.URLParam(r, "notification_id")
	if notificationID == "" {
		respondError(w, http.StatusBadRequest, "missing_notification_id", "notification_id is required")
		return
	}

	if err := h.notifs.MarkRead(ctx, notificationID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
