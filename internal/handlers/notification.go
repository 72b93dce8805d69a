package handlers

import (
	"net/http"

	"github.com/diewo77/theses-app/internal/httpx"
	"github.com/diewo77/theses-app/internal/models"
	"gorm.io/gorm"
)

// NotificationHandler serves the caller's own notification feed. The feed is
// plain storage: the business logic never reads it back.
type NotificationHandler struct{ DB *gorm.DB }

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

// List: GET /notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	var notifs []models.Notification
	if err := h.DB.Where("user_id = ?", ident.UserID).Order("id desc").Find(&notifs).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": notifs, "total": len(notifs)})
}

// MarkRead: POST /notifications/read?id=...
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	id, ok := queryID(w, r)
	if !ok {
		return
	}
	res := h.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, ident.UserID).
		Update("lu", true)
	if res.Error != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if res.RowsAffected == 0 {
		httpx.JSONError(w, http.StatusNotFound, "notification_introuvable", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}
