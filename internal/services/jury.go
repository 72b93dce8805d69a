package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/theses-app/internal/apperr"
	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/gate"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
	"gorm.io/gorm"
)

// JuryService owns the defense panel: one jury per memoire, scheduled by the
// administration once the memoire is VALIDE. Creating or updating a jury
// writes the defense date back onto the memoire in the same transaction;
// deleting it reverts the memoire to VALIDE and clears the date.
type JuryService struct {
	db       *gorm.DB
	gate     *gate.Gate[auth.Identity]
	notifier Notifier
}

func NewJuryService(db *gorm.DB, g *gate.Gate[auth.Identity], notifier Notifier) *JuryService {
	return &JuryService{db: db, gate: g, notifier: notifier}
}

type CreateJuryInput struct {
	MemoireID        uint      `json:"memoire_id" validate:"required"`
	Nom              string    `json:"nom"`
	EncadreurJury1ID uint      `json:"encadreur_jury1_id" validate:"required"`
	EncadreurJury2ID uint      `json:"encadreur_jury2_id" validate:"required"`
	EncadreurJury3ID uint      `json:"encadreur_jury3_id" validate:"required"`
	DateSoutenance   time.Time `json:"date_soutenance" validate:"required"`
	Salle            string    `json:"salle"`
}

func conflictOfInterest(encadreurID uint, membres [3]uint) bool {
	for _, m := range membres {
		if m == encadreurID {
			return true
		}
	}
	return false
}

// Create schedules a defense. Fails if the memoire is not VALIDE, already has
// a jury, or if a member is the memoire's own supervisor.
func (s *JuryService) Create(ctx context.Context, ident auth.Identity, in CreateJuryInput) (*models.Jury, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionCreate, policy.ResourceJury, nil); err != nil {
		return nil, apperr.Forbidden("creation_jury_interdite")
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var j models.Jury
	var etudiantID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Memoire
		if err := tx.Preload("Etudiant").First(&m, in.MemoireID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("memoire_introuvable")
			}
			return err
		}
		if m.Status != models.MemoireValide {
			return apperr.InvalidState("memoire_non_valide")
		}
		var count int64
		if err := tx.Model(&models.Jury{}).Where("memoire_id = ?", m.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("jury_deja_existant")
		}
		membres := [3]uint{in.EncadreurJury1ID, in.EncadreurJury2ID, in.EncadreurJury3ID}
		if conflictOfInterest(m.EncadreurID, membres) {
			return apperr.ConflictOfInterest("membre_jury_est_encadreur")
		}
		nom := in.Nom
		if nom == "" {
			nom = fmt.Sprintf("Jury – %s %s", m.Etudiant.Prenom, m.Etudiant.Nom)
		}
		j = models.Jury{
			Nom:              nom,
			MemoireID:        m.ID,
			EncadreurJury1ID: in.EncadreurJury1ID,
			EncadreurJury2ID: in.EncadreurJury2ID,
			EncadreurJury3ID: in.EncadreurJury3ID,
			DateSoutenance:   in.DateSoutenance,
			Salle:            in.Salle,
			Statut:           models.JuryPlanifie,
		}
		if err := tx.Create(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("jury_deja_existant")
			}
			return err
		}
		etudiantID = m.EtudiantID
		date := in.DateSoutenance
		m.DateSoutenance = &date
		return tx.Save(&m).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, etudiantID, "Soutenance planifiée",
		fmt.Sprintf("Votre soutenance est planifiée le %s", in.DateSoutenance.Format("02/01/2006 15:04")))
	return &j, nil
}

type UpdateJuryInput struct {
	Nom              *string    `json:"nom"`
	EncadreurJury1ID *uint      `json:"encadreur_jury1_id"`
	EncadreurJury2ID *uint      `json:"encadreur_jury2_id"`
	EncadreurJury3ID *uint      `json:"encadreur_jury3_id"`
	DateSoutenance   *time.Time `json:"date_soutenance"`
	Salle            *string    `json:"salle"`
	Statut           *models.JuryStatut `json:"statut"`
}

// Update edits a jury. The conflict-of-interest check is re-applied against
// the memoire reached through the existing jury relation, never against
// caller input. The defense date is re-propagated onto the memoire.
func (s *JuryService) Update(ctx context.Context, ident auth.Identity, id uint, in UpdateJuryInput) (*models.Jury, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionUpdate, policy.ResourceJury, nil); err != nil {
		return nil, apperr.Forbidden("modification_jury_interdite")
	}
	var j models.Jury
	var etudiantID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Memoire").First(&j, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("jury_introuvable")
			}
			return err
		}
		if in.Nom != nil {
			j.Nom = *in.Nom
		}
		if in.EncadreurJury1ID != nil {
			j.EncadreurJury1ID = *in.EncadreurJury1ID
		}
		if in.EncadreurJury2ID != nil {
			j.EncadreurJury2ID = *in.EncadreurJury2ID
		}
		if in.EncadreurJury3ID != nil {
			j.EncadreurJury3ID = *in.EncadreurJury3ID
		}
		if in.Salle != nil {
			j.Salle = *in.Salle
		}
		if in.Statut != nil {
			j.Statut = *in.Statut
		}
		if conflictOfInterest(j.Memoire.EncadreurID, j.Membres()) {
			return apperr.ConflictOfInterest("membre_jury_est_encadreur")
		}
		if in.DateSoutenance != nil {
			j.DateSoutenance = *in.DateSoutenance
			date := *in.DateSoutenance
			if err := tx.Model(&models.Memoire{}).Where("id = ?", j.MemoireID).
				Update("date_soutenance", &date).Error; err != nil {
				return err
			}
		}
		etudiantID = j.Memoire.EtudiantID
		return tx.Save(&j).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, etudiantID, "Soutenance modifiée",
		fmt.Sprintf("Le jury de votre soutenance a été mis à jour (le %s)", j.DateSoutenance.Format("02/01/2006 15:04")))
	return &j, nil
}

// Delete removes the jury and un-schedules the defense: the memoire goes back
// to VALIDE with its defense date cleared.
func (s *JuryService) Delete(ctx context.Context, ident auth.Identity, id uint) error {
	if err := s.gate.Authorize(ctx, ident, gate.ActionDelete, policy.ResourceJury, nil); err != nil {
		return apperr.Forbidden("suppression_jury_interdite")
	}
	var etudiantID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j models.Jury
		if err := tx.Preload("Memoire").First(&j, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("jury_introuvable")
			}
			return err
		}
		if err := tx.Delete(&j).Error; err != nil {
			return err
		}
		m := j.Memoire
		m.Status = models.MemoireValide
		m.DateSoutenance = nil
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		hist := models.HistoriqueMemoireStatus{Status: models.MemoireValide, Commentaire: "Soutenance annulée", MemoireID: m.ID}
		if err := tx.Create(&hist).Error; err != nil {
			return err
		}
		etudiantID = m.EtudiantID
		return nil
	})
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, etudiantID, "Soutenance annulée",
		"La planification de votre soutenance a été annulée")
	return nil
}

// List returns the juries visible to the caller, after reconciling statuses.
func (s *JuryService) List(ctx context.Context, ident auth.Identity) ([]models.Jury, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionList, policy.ResourceJury, nil); err != nil {
		return nil, apperr.Forbidden("acces_jury_interdit")
	}
	if err := s.ReconcileTermine(ctx); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.Jury{}).Order("juries.id")
	switch ident.Role {
	case models.RoleAdmin:
	case models.RoleEncadreur:
		q = q.Joins("JOIN memoires ON memoires.id = juries.memoire_id").
			Where("memoires.encadreur_id = ?", ident.UserID)
	case models.RoleEtudiant:
		q = q.Joins("JOIN memoires ON memoires.id = juries.memoire_id").
			Where("memoires.etudiant_id = ?", ident.UserID)
	}
	var js []models.Jury
	if err := q.Find(&js).Error; err != nil {
		return nil, err
	}
	return js, nil
}

// ReconcileTermine is the lazy consistency fix-up run on every list: any
// PLANIFIE jury whose memoire is already SOUTENU is promoted to TERMINE. The
// sweep is idempotent and safe to run concurrently with reads.
func (s *JuryService) ReconcileTermine(ctx context.Context) error {
	sub := s.db.Model(&models.Memoire{}).Select("id").Where("status = ?", models.MemoireSoutenu)
	return s.db.WithContext(ctx).Model(&models.Jury{}).
		Where("statut = ? AND memoire_id IN (?)", models.JuryPlanifie, sub).
		Update("statut", models.JuryTermine).Error
}
