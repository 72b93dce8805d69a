package models

import "time"

// Notification est créée en effet de bord des transitions (fire-and-forget);
// jamais consultée par la logique métier elle-même.
type Notification struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"index;not null" json:"user_id"` // destinataire
	User      User   `gorm:"foreignKey:UserID" json:"-"`
	Titre     string `gorm:"size:255;not null" json:"titre"`
	Message   string `gorm:"type:text" json:"message"`
	Lu        bool   `gorm:"not null;default:false" json:"lu"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
