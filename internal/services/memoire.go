package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/theses-app/internal/apperr"
	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/gate"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
	"gorm.io/gorm"
)

// MemoireService owns the thesis lifecycle: creation, the status machine, the
// final-deposit chain and document versioning. Every status change appends an
// HistoriqueMemoireStatus row inside the same transaction and notifies the
// relevant party after commit.
type MemoireService struct {
	db       *gorm.DB
	gate     *gate.Gate[auth.Identity]
	notifier Notifier
}

func NewMemoireService(db *gorm.DB, g *gate.Gate[auth.Identity], notifier Notifier) *MemoireService {
	return &MemoireService{db: db, gate: g, notifier: notifier}
}

type CreateMemoireInput struct {
	Titre       string   `json:"titre" validate:"required,max=255"`
	Description string   `json:"description"`
	MotsCles    []string `json:"mots_cles"`
	SujetID     uint     `json:"sujet_id" validate:"required"`
	// EtudiantID n'est pris en compte que pour un appel admin; un étudiant
	// crée toujours pour lui-même.
	EtudiantID uint `json:"etudiant_id"`
}

// Create opens a thesis record on a validated subject. The supervisor is
// always taken from the subject, never from caller input.
func (s *MemoireService) Create(ctx context.Context, ident auth.Identity, in CreateMemoireInput) (*models.Memoire, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionCreate, policy.ResourceMemoire, nil); err != nil {
		return nil, apperr.Forbidden("creation_memoire_interdite")
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}
	etudiantID := ident.UserID
	if ident.Role == models.RoleAdmin {
		if in.EtudiantID == 0 {
			return nil, apperr.Validation("champs_invalides", map[string]string{"etudiant_id": "required"})
		}
		etudiantID = in.EtudiantID
	}

	var m models.Memoire
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Memoire{}).Where("etudiant_id = ?", etudiantID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("memoire_deja_existant")
		}
		var sujet models.Sujet
		if err := tx.First(&sujet, in.SujetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("sujet_introuvable")
			}
			return err
		}
		if !sujet.Valide {
			return apperr.InvalidState("sujet_non_valide")
		}
		m = models.Memoire{
			Titre:       in.Titre,
			Description: in.Description,
			MotsCles:    strings.Join(in.MotsCles, ","),
			Status:      models.MemoireEnCours,
			EtudiantID:  etudiantID,
			EncadreurID: sujet.EncadreurID,
			SujetID:     sujet.ID,
		}
		if err := tx.Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("memoire_deja_existant")
			}
			return err
		}
		hist := models.HistoriqueMemoireStatus{Status: models.MemoireEnCours, Commentaire: "Création du mémoire", MemoireID: m.ID}
		return tx.Create(&hist).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, m.EncadreurID, "Nouveau mémoire",
		fmt.Sprintf("Un mémoire a été créé sur votre sujet: %s", m.Titre))
	return &m, nil
}

// Get loads a memoire the caller is allowed to see.
func (s *MemoireService) Get(ctx context.Context, ident auth.Identity, id uint) (*models.Memoire, error) {
	var m models.Memoire
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("memoire_introuvable")
		}
		return nil, err
	}
	if err := s.gate.Authorize(ctx, ident, gate.ActionView, policy.ResourceMemoire, &m); err != nil {
		return nil, apperr.Forbidden("acces_memoire_interdit")
	}
	return &m, nil
}

// List returns the memoires visible to the caller: all for an admin, the
// supervised ones for an encadreur, the own one for a student.
func (s *MemoireService) List(ctx context.Context, ident auth.Identity) ([]models.Memoire, error) {
	q := s.db.WithContext(ctx).Model(&models.Memoire{}).Order("id")
	switch ident.Role {
	case models.RoleAdmin:
	case models.RoleEncadreur:
		q = q.Where("encadreur_id = ?", ident.UserID)
	case models.RoleEtudiant:
		q = q.Where("etudiant_id = ?", ident.UserID)
	default:
		return nil, apperr.Forbidden("acces_memoire_interdit")
	}
	var ms []models.Memoire
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	return ms, nil
}

// UpdateStatus applies a lifecycle transition. Progression is pinned to 100 on
// VALIDE and SOUTENU and to 0 on REJETE. An history row is appended and the
// student is notified.
func (s *MemoireService) UpdateStatus(ctx context.Context, ident auth.Identity, id uint, target models.MemoireStatus, commentaire string) (*models.Memoire, error) {
	if !models.KnownMemoireStatus(target) {
		return nil, apperr.Validation("statut_inconnu", map[string]string{"status": string(target)})
	}
	var m models.Memoire
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("memoire_introuvable")
			}
			return err
		}
		if !policy.CanSetMemoireStatus(ident, &m, target) {
			return apperr.Forbidden("transition_interdite")
		}
		m.Status = target
		switch target {
		case models.MemoireValide, models.MemoireSoutenu:
			m.Progression = 100
		case models.MemoireRejete:
			m.Progression = 0
		}
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		hist := models.HistoriqueMemoireStatus{Status: target, Commentaire: commentaire, MemoireID: m.ID}
		return tx.Create(&hist).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, m.EtudiantID, "Statut du mémoire",
		fmt.Sprintf("Votre mémoire est passé au statut %s", target))
	return &m, nil
}

type UpdateMemoireInput struct {
	Titre          *string    `json:"titre" validate:"omitempty,max=255"`
	Description    *string    `json:"description"`
	MotsCles       []string   `json:"mots_cles"`
	DateDepot      *time.Time `json:"date_depot"`
	DateSoutenance *time.Time `json:"date_soutenance"`
	Progression    *int       `json:"progression" validate:"omitempty,min=0,max=100"`
}

// Update edits informational fields. Restricted to the owning student or an
// admin; locked for non-admins once the memoire is VALIDE or SOUTENU.
func (s *MemoireService) Update(ctx context.Context, ident auth.Identity, id uint, in UpdateMemoireInput) (*models.Memoire, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var m models.Memoire
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("memoire_introuvable")
			}
			return err
		}
		if err := s.gate.Authorize(ctx, ident, gate.ActionUpdate, policy.ResourceMemoire, &m); err != nil {
			return apperr.Forbidden("modification_memoire_interdite")
		}
		if m.IsLocked() && ident.Role != models.RoleAdmin {
			return apperr.InvalidState("memoire_verrouille")
		}
		if in.Titre != nil {
			m.Titre = *in.Titre
		}
		if in.Description != nil {
			m.Description = *in.Description
		}
		if in.MotsCles != nil {
			m.MotsCles = strings.Join(in.MotsCles, ",")
		}
		if in.DateDepot != nil {
			m.DateDepot = in.DateDepot
		}
		if in.DateSoutenance != nil {
			m.DateSoutenance = in.DateSoutenance
		}
		if in.Progression != nil {
			m.Progression = *in.Progression
		}
		return tx.Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UploadFinal records the final deposit: file URL, deposit date, and the
// SOUMIS_FINAL status. Only the owning student may deposit.
func (s *MemoireService) UploadFinal(ctx context.Context, ident auth.Identity, id uint, fichierURL string) (*models.Memoire, error) {
	if fichierURL == "" {
		return nil, apperr.Validation("champs_invalides", map[string]string{"fichier": "required"})
	}
	var m models.Memoire
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("memoire_introuvable")
			}
			return err
		}
		if err := s.gate.Authorize(ctx, ident, gate.ActionUpload, policy.ResourceMemoire, &m); err != nil {
			return apperr.Forbidden("depot_final_interdit")
		}
		now := time.Now()
		m.FichierURL = fichierURL
		m.DateDepot = &now
		m.Status = models.MemoireSoumisFinal
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		hist := models.HistoriqueMemoireStatus{Status: models.MemoireSoumisFinal, Commentaire: "Dépôt de la version finale", MemoireID: m.ID}
		return tx.Create(&hist).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, m.EncadreurID, "Dépôt final",
		fmt.Sprintf("La version finale du mémoire %q a été déposée", m.Titre))
	return &m, nil
}

// Final validation actions.
const (
	ValidationAccepte = "ACCEPTE"
	ValidationRefuse  = "REFUSE"
)

// ValidateFinal advances the final-deposit chain: the memoire's own supervisor
// moves SOUMIS_FINAL to VALIDE_ENCADREUR (or back to EN_REVISION), then any
// admin moves VALIDE_ENCADREUR to VALIDE_ADMIN (or back to EN_REVISION).
func (s *MemoireService) ValidateFinal(ctx context.Context, ident auth.Identity, id uint, action string) (*models.Memoire, error) {
	if action != ValidationAccepte && action != ValidationRefuse {
		return nil, apperr.Validation("action_inconnue", map[string]string{"action": action})
	}
	var m models.Memoire
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("memoire_introuvable")
			}
			return err
		}
		var target models.MemoireStatus
		switch ident.Role {
		case models.RoleEncadreur:
			if m.EncadreurID != ident.UserID {
				return apperr.Forbidden("validation_finale_interdite")
			}
			if m.Status != models.MemoireSoumisFinal {
				return apperr.InvalidState("depot_final_absent")
			}
			target = models.MemoireValideEncadreur
		case models.RoleAdmin:
			if m.Status != models.MemoireValideEncadreur {
				return apperr.InvalidState("validation_encadreur_absente")
			}
			target = models.MemoireValideAdmin
		default:
			return apperr.Forbidden("validation_finale_interdite")
		}
		if action == ValidationRefuse {
			target = models.MemoireEnRevision
		}
		m.Status = target
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		hist := models.HistoriqueMemoireStatus{Status: target, Commentaire: "Validation du dépôt final: " + action, MemoireID: m.ID}
		return tx.Create(&hist).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, m.EtudiantID, "Dépôt final",
		fmt.Sprintf("Votre dépôt final est passé au statut %s", m.Status))
	return &m, nil
}

// AddDocument appends a new working version to the memoire. Numero is a
// per-memoire sequence. Only the owning student may deposit versions.
func (s *MemoireService) AddDocument(ctx context.Context, ident auth.Identity, memoireID uint, fichierURL string) (*models.Document, error) {
	if fichierURL == "" {
		return nil, apperr.Validation("champs_invalides", map[string]string{"fichier": "required"})
	}
	var doc models.Document
	var m models.Memoire
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, memoireID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("memoire_introuvable")
			}
			return err
		}
		if err := s.gate.Authorize(ctx, ident, gate.ActionCreate, policy.ResourceDocument, &m); err != nil {
			return apperr.Forbidden("depot_version_interdit")
		}
		var count int64
		if err := tx.Model(&models.Document{}).Where("memoire_id = ?", m.ID).Count(&count).Error; err != nil {
			return err
		}
		doc = models.Document{Numero: int(count) + 1, FichierURL: fichierURL, MemoireID: m.ID}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, m.EncadreurID, "Nouvelle version",
		fmt.Sprintf("Version %d du mémoire %q déposée", doc.Numero, m.Titre))
	return &doc, nil
}

// UpdateDocumentComment lets the memoire's supervisor annotate a version.
func (s *MemoireService) UpdateDocumentComment(ctx context.Context, ident auth.Identity, documentID uint, commentaire string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Memoire").First(&doc, documentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("document_introuvable")
			}
			return err
		}
		if err := s.gate.Authorize(ctx, ident, gate.ActionComment, policy.ResourceDocument, &doc.Memoire); err != nil {
			return apperr.Forbidden("annotation_interdite")
		}
		doc.Commentaire = commentaire
		return tx.Save(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns the version history of a memoire.
func (s *MemoireService) ListDocuments(ctx context.Context, ident auth.Identity, memoireID uint) ([]models.Document, error) {
	m, err := s.loadForRead(ctx, ident, memoireID, gate.ActionList, policy.ResourceDocument)
	if err != nil {
		return nil, err
	}
	var docs []models.Document
	if err := s.db.WithContext(ctx).Where("memoire_id = ?", m.ID).Order("numero").Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Historique returns the append-only status trail of a memoire.
func (s *MemoireService) Historique(ctx context.Context, ident auth.Identity, memoireID uint) ([]models.HistoriqueMemoireStatus, error) {
	m, err := s.loadForRead(ctx, ident, memoireID, gate.ActionView, policy.ResourceMemoire)
	if err != nil {
		return nil, err
	}
	var hist []models.HistoriqueMemoireStatus
	if err := s.db.WithContext(ctx).Where("memoire_id = ?", m.ID).Order("id").Find(&hist).Error; err != nil {
		return nil, err
	}
	return hist, nil
}

func (s *MemoireService) loadForRead(ctx context.Context, ident auth.Identity, memoireID uint, action gate.Action, resource string) (*models.Memoire, error) {
	var m models.Memoire
	if err := s.db.WithContext(ctx).First(&m, memoireID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("memoire_introuvable")
		}
		return nil, err
	}
	if err := s.gate.Authorize(ctx, ident, action, resource, &m); err != nil {
		return nil, apperr.Forbidden("acces_memoire_interdit")
	}
	return &m, nil
}
