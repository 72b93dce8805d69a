package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PaiementStatus represents the validation status of a payment.
type PaiementStatus string

const (
	PaiementEnAttente PaiementStatus = "EN_ATTENTE"
	PaiementValide    PaiementStatus = "VALIDE"
	PaiementRejete    PaiementStatus = "REJETE"
)

// Paiement est un règlement de frais administratifs. La référence est unique;
// générée si absente à la création.
type Paiement struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Montant   float64        `gorm:"not null" json:"montant"`
	Reference string         `gorm:"size:50;uniqueIndex;not null" json:"reference"`
	Date      time.Time      `gorm:"not null" json:"date"`
	Methode   string         `gorm:"size:50;not null" json:"methode"` // ex: virement, CB, espèces
	Status    PaiementStatus `gorm:"size:20;not null;default:'EN_ATTENTE'" json:"status"`

	EtudiantID uint `gorm:"index;not null" json:"etudiant_id"`
	Etudiant   User `gorm:"foreignKey:EtudiantID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Paiement) GetEtudiantID() uint { return p.EtudiantID }

// GeneratePaiementReference synthesizes a payment reference for the given
// year. Format: PAY-YYYY-NNN (e.g. PAY-2025-003), NNN being the count of
// payments dated within the calendar year plus one. Concurrent creations can
// collide; the caller retries on the unique index.
func GeneratePaiementReference(db *gorm.DB, year int) (string, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	var count int64
	err := db.Model(&Paiement{}).
		Where("date >= ? AND date < ?", start, end).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%d-%03d", year, count+1), nil
}
