package models

import "time"

// Sujet de mémoire proposé par un encadreur puis validé par l'administration.
// Un étudiant ne peut créer un mémoire que sur un sujet validé.
type Sujet struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Titre       string `gorm:"size:255;not null" json:"titre"`
	Description string `gorm:"type:text" json:"description"`
	MotsCles    string `gorm:"size:500" json:"mots_cles"` // CSV
	EncadreurID uint   `gorm:"index;not null" json:"encadreur_id"`
	Encadreur   User   `gorm:"foreignKey:EncadreurID" json:"-"`
	Valide      bool   `gorm:"not null;default:false" json:"valide"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Sujet) GetEncadreurID() uint { return s.EncadreurID }
