package models

import "time"

// JuryStatut represents the scheduling status of a defense jury.
type JuryStatut string

const (
	JuryPlanifie JuryStatut = "PLANIFIE"
	JuryTermine  JuryStatut = "TERMINE"
	JuryAnnule   JuryStatut = "ANNULE"
)

// Jury est le panel de soutenance d'un mémoire: exactement un jury par mémoire
// (index unique sur memoire_id), trois membres, aucun ne peut être l'encadreur
// du mémoire.
type Jury struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Nom       string  `gorm:"size:255" json:"nom"`
	MemoireID uint    `gorm:"uniqueIndex;not null" json:"memoire_id"`
	Memoire   Memoire `gorm:"foreignKey:MemoireID" json:"-"`

	EncadreurJury1ID uint `gorm:"not null" json:"encadreur_jury1_id"`
	EncadreurJury2ID uint `gorm:"not null" json:"encadreur_jury2_id"`
	EncadreurJury3ID uint `gorm:"not null" json:"encadreur_jury3_id"`

	DateSoutenance time.Time  `gorm:"not null" json:"date_soutenance"`
	Salle          string     `gorm:"size:100" json:"salle"`
	Statut         JuryStatut `gorm:"size:20;not null;default:'PLANIFIE'" json:"statut"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membres returns the three member ids.
func (j *Jury) Membres() [3]uint {
	return [3]uint{j.EncadreurJury1ID, j.EncadreurJury2ID, j.EncadreurJury3ID}
}

// StatutAffiche is the label shown to users: a TERMINE jury is displayed as
// SOUTENU (the defense took place).
func (j *Jury) StatutAffiche() string {
	if j.Statut == JuryTermine {
		return "SOUTENU"
	}
	return string(j.Statut)
}
