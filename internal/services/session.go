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

// SessionQuota is the lifetime number of session batches a supervisor may
// create. It is scoped per supervisor, not per student: all students under
// one supervisor share the same budget, one batch per numero.
const SessionQuota = 10

// expiryDelay: a planned session older than this past its date is swept to
// ANNULEE on the next listing.
const expiryDelay = 24 * time.Hour

// SessionService owns mentoring sessions: batch creation (one session per
// currently-supervised student, sharing numero and date), the dual-visa
// sign-off and the lazy auto-expiry sweep.
type SessionService struct {
	db       *gorm.DB
	gate     *gate.Gate[auth.Identity]
	notifier Notifier
}

func NewSessionService(db *gorm.DB, g *gate.Gate[auth.Identity], notifier Notifier) *SessionService {
	return &SessionService{db: db, gate: g, notifier: notifier}
}

type CreateSessionInput struct {
	Duree       int       `json:"duree" validate:"required,min=15,max=480"`
	Type        string    `json:"type" validate:"required,oneof=PRESENTIEL VIRTUEL"`
	Date        time.Time `json:"date" validate:"required"`
	MeetingLink string    `json:"meeting_link"`
	Salle       string    `json:"salle"`
}

// Create opens one session per student currently supervised by the caller, as
// a single atomic batch sharing the same numero and date.
func (s *SessionService) Create(ctx context.Context, ident auth.Identity, in CreateSessionInput) ([]models.Session, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionCreate, policy.ResourceSession, nil); err != nil {
		return nil, apperr.Forbidden("creation_seance_interdite")
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}
	// Salle et lien sont exclusifs selon le type.
	switch in.Type {
	case models.SessionVirtuel:
		if in.MeetingLink == "" {
			return nil, apperr.Validation("champs_invalides", map[string]string{"meeting_link": "required"})
		}
		if in.Salle != "" {
			return nil, apperr.Validation("champs_invalides", map[string]string{"salle": "forbidden"})
		}
	case models.SessionPresentiel:
		if in.Salle == "" {
			return nil, apperr.Validation("champs_invalides", map[string]string{"salle": "required"})
		}
		if in.MeetingLink != "" {
			return nil, apperr.Validation("champs_invalides", map[string]string{"meeting_link": "forbidden"})
		}
	}

	var sessions []models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var etudiants []uint
		if err := tx.Model(&models.Memoire{}).
			Distinct("etudiant_id").
			Where("encadreur_id = ?", ident.UserID).
			Pluck("etudiant_id", &etudiants).Error; err != nil {
			return err
		}
		if len(etudiants) == 0 {
			return apperr.InvalidState("aucun_etudiant_encadre")
		}
		// Le quota compte les lots (numéros), pas les lignes: un lot par
		// numero, partagé par tous les étudiants de l'encadreur.
		var lastNumero int
		row := tx.Model(&models.Session{}).
			Where("encadreur_id = ?", ident.UserID).
			Select("COALESCE(MAX(numero), 0)").Row()
		if err := row.Scan(&lastNumero); err != nil {
			return err
		}
		if lastNumero >= SessionQuota {
			return apperr.QuotaExceeded("quota_seances_atteint")
		}
		numero := lastNumero + 1
		sessions = make([]models.Session, 0, len(etudiants))
		for _, etudiantID := range etudiants {
			sessions = append(sessions, models.Session{
				Numero:      numero,
				Date:        in.Date,
				Duree:       in.Duree,
				Type:        in.Type,
				Status:      models.SessionPlanifiee,
				Salle:       in.Salle,
				MeetingLink: in.MeetingLink,
				EncadreurID: ident.UserID,
				EtudiantID:  etudiantID,
			})
		}
		return tx.Create(&sessions).Error
	})
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		s.notifier.Notify(ctx, sess.EtudiantID, "Séance d'encadrement",
			fmt.Sprintf("Séance n°%d planifiée le %s", sess.Numero, sess.Date.Format("02/01/2006 15:04")))
	}
	return sessions, nil
}

// List returns the sessions visible to the caller, after sweeping overdue
// planned sessions to ANNULEE.
func (s *SessionService) List(ctx context.Context, ident auth.Identity) ([]models.Session, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionList, policy.ResourceSession, nil); err != nil {
		return nil, apperr.Forbidden("acces_seance_interdit")
	}
	if err := s.ExpireOverdue(ctx); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.Session{}).Order("numero, id")
	switch ident.Role {
	case models.RoleAdmin:
	case models.RoleEncadreur:
		q = q.Where("encadreur_id = ?", ident.UserID)
	case models.RoleEtudiant:
		q = q.Where("etudiant_id = ?", ident.UserID)
	}
	var sessions []models.Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// ExpireOverdue is the lazy sweep run before every listing: planned sessions
// whose date is more than 24 hours past are cancelled in one batch update.
// Idempotent, safe to run concurrently with read traffic.
func (s *SessionService) ExpireOverdue(ctx context.Context) error {
	cutoff := time.Now().Add(-expiryDelay)
	return s.db.WithContext(ctx).Model(&models.Session{}).
		Where("status IN ? AND date < ?", []models.SessionStatus{models.SessionPlanifie, models.SessionPlanifiee}, cutoff).
		Update("status", models.SessionAnnulee).Error
}

// Visa types.
const (
	VisaEncadreur = "ENCADREUR"
	VisaEtudiant  = "ETUDIANT"
)

// Visa records a sign-off on a session. When both visas are present the
// session moves to TERMINE regardless of its prior status (dual sign-off is a
// terminal override).
func (s *SessionService) Visa(ctx context.Context, ident auth.Identity, id uint, visaType string) (*models.Session, error) {
	if visaType != VisaEncadreur && visaType != VisaEtudiant {
		return nil, apperr.Validation("type_visa_inconnu", map[string]string{"type": visaType})
	}
	var sess models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sess, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("seance_introuvable")
			}
			return err
		}
		if sess.Status == models.SessionAnnulee {
			return apperr.InvalidState("seance_annulee")
		}
		switch visaType {
		case VisaEncadreur:
			if sess.EncadreurID != ident.UserID {
				return apperr.Forbidden("visa_interdit")
			}
			sess.VisaEncadreur = true
		case VisaEtudiant:
			if sess.EtudiantID != ident.UserID {
				return apperr.Forbidden("visa_interdit")
			}
			sess.VisaEtudiant = true
		}
		if sess.VisaEncadreur && sess.VisaEtudiant {
			sess.Status = models.SessionTermine
		}
		return tx.Save(&sess).Error
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

type UpdateSessionInput struct {
	Date      *time.Time            `json:"date"`
	Duree     *int                  `json:"duree" validate:"omitempty,min=15,max=480"`
	Status    *models.SessionStatus `json:"status"`
	Rapport   *string               `json:"rapport"`
	Remarques *string               `json:"remarques"`
}

// Update edits a session; supervisor-only. A status change notifies the
// student.
func (s *SessionService) Update(ctx context.Context, ident auth.Identity, id uint, in UpdateSessionInput) (*models.Session, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var sess models.Session
	statusChanged := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sess, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("seance_introuvable")
			}
			return err
		}
		if err := s.gate.Authorize(ctx, ident, gate.ActionUpdate, policy.ResourceSession, &sess); err != nil {
			return apperr.Forbidden("modification_seance_interdite")
		}
		if in.Date != nil {
			sess.Date = *in.Date
		}
		if in.Duree != nil {
			sess.Duree = *in.Duree
		}
		if in.Rapport != nil {
			sess.Rapport = *in.Rapport
		}
		if in.Remarques != nil {
			sess.Remarques = *in.Remarques
		}
		if in.Status != nil && *in.Status != sess.Status {
			sess.Status = *in.Status
			statusChanged = true
		}
		return tx.Save(&sess).Error
	})
	if err != nil {
		return nil, err
	}
	if statusChanged {
		s.notifier.Notify(ctx, sess.EtudiantID, "Séance d'encadrement",
			fmt.Sprintf("La séance n°%d est passée au statut %s", sess.Numero, sess.Status))
	}
	return &sess, nil
}

// Delete removes a session; supervisor-only, and never once the session took
// place (EFFECTUEE).
func (s *SessionService) Delete(ctx context.Context, ident auth.Identity, id uint) error {
	var sess models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sess, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("seance_introuvable")
			}
			return err
		}
		if err := s.gate.Authorize(ctx, ident, gate.ActionDelete, policy.ResourceSession, &sess); err != nil {
			return apperr.Forbidden("suppression_seance_interdite")
		}
		if sess.Status == models.SessionEffectuee {
			return apperr.InvalidState("seance_deja_effectuee")
		}
		return tx.Delete(&sess).Error
	})
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, sess.EtudiantID, "Séance annulée",
		fmt.Sprintf("La séance n°%d du %s a été supprimée", sess.Numero, sess.Date.Format("02/01/2006")))
	return nil
}
