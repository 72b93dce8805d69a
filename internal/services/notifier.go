package services

import (
	"context"

	"github.com/diewo77/theses-app/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier is the notification dispatcher consumed by the services as a
// fire-and-forget side effect: it is always invoked after the primary
// transaction has committed, and a dispatch failure never propagates to the
// caller.
type Notifier interface {
	Notify(ctx context.Context, userID uint, titre, message string)
}

// DBNotifier stores notifications in the relational store. Failures are
// logged and dropped.
type DBNotifier struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDBNotifier(db *gorm.DB, log *zap.Logger) *DBNotifier {
	return &DBNotifier{db: db, log: log}
}

func (n *DBNotifier) Notify(ctx context.Context, userID uint, titre, message string) {
	if userID == 0 {
		return
	}
	notif := models.Notification{UserID: userID, Titre: titre, Message: message}
	if err := n.db.WithContext(ctx).Create(&notif).Error; err != nil {
		n.log.Warn("notification non envoyée",
			zap.Uint("user_id", userID),
			zap.String("titre", titre),
			zap.Error(err))
	}
}
