package models

import "time"

// MemoireStatus represents the lifecycle status of a thesis.
type MemoireStatus string

const (
	// Chaîne de travail.
	MemoireEnCours    MemoireStatus = "EN_COURS"
	MemoireSoumis     MemoireStatus = "SOUMIS"
	MemoireEnRevision MemoireStatus = "EN_REVISION"
	MemoireValide     MemoireStatus = "VALIDE"
	MemoireRejete     MemoireStatus = "REJETE"
	MemoireSoutenu    MemoireStatus = "SOUTENU"

	// Chaîne de dépôt final, après planification de la soutenance.
	MemoireSoumisFinal     MemoireStatus = "SOUMIS_FINAL"
	MemoireValideEncadreur MemoireStatus = "VALIDE_ENCADREUR"
	MemoireValideAdmin     MemoireStatus = "VALIDE_ADMIN"
)

// KnownMemoireStatus reports whether s is one of the defined statuses.
func KnownMemoireStatus(s MemoireStatus) bool {
	switch s {
	case MemoireEnCours, MemoireSoumis, MemoireEnRevision, MemoireValide,
		MemoireRejete, MemoireSoutenu, MemoireSoumisFinal,
		MemoireValideEncadreur, MemoireValideAdmin:
		return true
	}
	return false
}

// Memoire est le dossier de mémoire d'un étudiant. Un étudiant possède au plus
// un mémoire (index unique sur etudiant_id).
type Memoire struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Titre       string        `gorm:"size:255;not null" json:"titre"`
	Description string        `gorm:"type:text" json:"description"`
	MotsCles    string        `gorm:"size:500" json:"mots_cles"` // CSV
	Status      MemoireStatus `gorm:"size:30;not null;default:'EN_COURS'" json:"status"`
	Progression int           `gorm:"not null;default:0" json:"progression"` // 0..100, informatif

	EtudiantID  uint `gorm:"uniqueIndex;not null" json:"etudiant_id"`
	Etudiant    User `gorm:"foreignKey:EtudiantID" json:"-"`
	EncadreurID uint `gorm:"index;not null" json:"encadreur_id"`
	SujetID     uint `gorm:"index;not null" json:"sujet_id"`

	DateDepot      *time.Time `json:"date_depot,omitempty"`
	DateSoutenance *time.Time `json:"date_soutenance,omitempty"`
	FichierURL     string     `gorm:"size:500" json:"fichier_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Memoire) GetEtudiantID() uint  { return m.EtudiantID }
func (m *Memoire) GetEncadreurID() uint { return m.EncadreurID }

// IsLocked returns true once the thesis has been formally validated; only an
// admin may still edit its fields.
func (m *Memoire) IsLocked() bool {
	return m.Status == MemoireValide || m.Status == MemoireSoutenu
}

// Document est une version déposée du mémoire. Numero est une séquence par
// mémoire (1, 2, 3...).
type Document struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Numero      int    `gorm:"not null" json:"numero"`
	FichierURL  string `gorm:"size:500;not null" json:"fichier_url"`
	Commentaire string `gorm:"type:text" json:"commentaire"` // annotation de l'encadreur
	MemoireID   uint   `gorm:"index;not null" json:"memoire_id"`
	Memoire     Memoire `gorm:"foreignKey:MemoireID" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HistoriqueMemoireStatus est le journal des transitions de statut. Les lignes
// ne sont jamais modifiées ni supprimées.
type HistoriqueMemoireStatus struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Status      MemoireStatus `gorm:"size:30;not null" json:"status"`
	Commentaire string        `gorm:"type:text" json:"commentaire"`
	MemoireID   uint          `gorm:"index;not null" json:"memoire_id"`
	CreatedAt   time.Time     `json:"created_at"`
}
