package models

import "time"

// SessionStatus represents the status of a mentoring session.
type SessionStatus string

const (
	// Les deux orthographes coexistent dans les données historiques; les
	// nouvelles séances sont créées en PLANIFIEE.
	SessionPlanifie  SessionStatus = "PLANIFIE"
	SessionPlanifiee SessionStatus = "PLANIFIEE"
	SessionEnCours   SessionStatus = "EN_COURS"
	SessionEffectuee SessionStatus = "EFFECTUEE"
	SessionTermine   SessionStatus = "TERMINE"
	SessionAnnulee   SessionStatus = "ANNULEE"
)

// Session types.
const (
	SessionPresentiel = "PRESENTIEL"
	SessionVirtuel    = "VIRTUEL"
)

// Session est une séance d'encadrement. Les séances sont créées par lot: une
// par étudiant encadré, partageant le même numero (séquence par encadreur) et
// la même date. Le double visa (encadreur + étudiant) fait passer la séance en
// TERMINE quel que soit son statut courant.
type Session struct {
	ID     uint          `gorm:"primaryKey" json:"id"`
	Numero int           `gorm:"not null;index" json:"numero"`
	Date   time.Time     `gorm:"not null" json:"date"`
	Duree  int           `gorm:"not null" json:"duree"` // minutes
	Type   string        `gorm:"size:20;not null" json:"type"`
	Status SessionStatus `gorm:"size:20;not null;default:'PLANIFIEE'" json:"status"`

	// Exclusifs selon le type: salle en présentiel, lien en virtuel.
	Salle       string `gorm:"size:100" json:"salle,omitempty"`
	MeetingLink string `gorm:"size:500" json:"meeting_link,omitempty"`

	Rapport   string `gorm:"type:text" json:"rapport,omitempty"`
	Remarques string `gorm:"type:text" json:"remarques,omitempty"`

	VisaEncadreur bool `gorm:"not null;default:false" json:"visa_encadreur"`
	VisaEtudiant  bool `gorm:"not null;default:false" json:"visa_etudiant"`

	EncadreurID uint `gorm:"index;not null" json:"encadreur_id"`
	EtudiantID  uint `gorm:"index;not null" json:"etudiant_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) GetEtudiantID() uint  { return s.EtudiantID }
func (s *Session) GetEncadreurID() uint { return s.EncadreurID }

// IsPlanned matches both historical spellings of the planned status.
func (s *Session) IsPlanned() bool {
	return s.Status == SessionPlanifie || s.Status == SessionPlanifiee
}
