package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/theses-app/internal/apperr"
	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/gate"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
	"gorm.io/gorm"
)

// SujetService manages thesis subjects: proposed by supervisors, validated by
// the administration, listed by students for selection.
type SujetService struct {
	db       *gorm.DB
	gate     *gate.Gate[auth.Identity]
	notifier Notifier
}

func NewSujetService(db *gorm.DB, g *gate.Gate[auth.Identity], notifier Notifier) *SujetService {
	return &SujetService{db: db, gate: g, notifier: notifier}
}

type CreateSujetInput struct {
	Titre       string   `json:"titre" validate:"required,max=255"`
	Description string   `json:"description"`
	MotsCles    []string `json:"mots_cles"`
	// EncadreurID n'est pris en compte que pour un appel admin.
	EncadreurID uint `json:"encadreur_id"`
}

func (s *SujetService) Create(ctx context.Context, ident auth.Identity, in CreateSujetInput) (*models.Sujet, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionCreate, policy.ResourceSujet, nil); err != nil {
		return nil, apperr.Forbidden("creation_sujet_interdite")
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}
	encadreurID := ident.UserID
	if ident.Role == models.RoleAdmin {
		if in.EncadreurID == 0 {
			return nil, apperr.Validation("champs_invalides", map[string]string{"encadreur_id": "required"})
		}
		encadreurID = in.EncadreurID
	}
	sujet := models.Sujet{
		Titre:       in.Titre,
		Description: in.Description,
		MotsCles:    strings.Join(in.MotsCles, ","),
		EncadreurID: encadreurID,
	}
	if err := s.db.WithContext(ctx).Create(&sujet).Error; err != nil {
		return nil, err
	}
	return &sujet, nil
}

// Validate marks a subject as open for student selection; admin-only.
func (s *SujetService) Validate(ctx context.Context, ident auth.Identity, id uint) (*models.Sujet, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionValidate, policy.ResourceSujet, nil); err != nil {
		return nil, apperr.Forbidden("validation_sujet_interdite")
	}
	var sujet models.Sujet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sujet, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("sujet_introuvable")
			}
			return err
		}
		sujet.Valide = true
		return tx.Save(&sujet).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, sujet.EncadreurID, "Sujet validé",
		fmt.Sprintf("Votre sujet %q a été validé", sujet.Titre))
	return &sujet, nil
}

// List returns the subjects visible to the caller: validated ones for a
// student, own ones for a supervisor, everything for an admin.
func (s *SujetService) List(ctx context.Context, ident auth.Identity) ([]models.Sujet, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionList, policy.ResourceSujet, nil); err != nil {
		return nil, apperr.Forbidden("acces_sujet_interdit")
	}
	q := s.db.WithContext(ctx).Model(&models.Sujet{}).Order("id")
	switch ident.Role {
	case models.RoleAdmin:
	case models.RoleEncadreur:
		q = q.Where("encadreur_id = ?", ident.UserID)
	default:
		q = q.Where("valide = ?", true)
	}
	var sujets []models.Sujet
	if err := q.Find(&sujets).Error; err != nil {
		return nil, err
	}
	return sujets, nil
}
