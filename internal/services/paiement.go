package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/diewo77/theses-app/internal/apperr"
	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/gate"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
	"gorm.io/gorm"
)

// AdminResolver resolves the admin user to notify when a payment is created.
// Injected so the notification target is an explicit collaborator rather than
// a hidden global lookup.
type AdminResolver func(ctx context.Context) (uint, error)

// FirstAdminResolver returns the default resolver: the first ADMIN user in
// the store.
func FirstAdminResolver(db *gorm.DB) AdminResolver {
	return func(ctx context.Context) (uint, error) {
		var admin models.User
		err := db.WithContext(ctx).Where("role = ?", models.RoleAdmin).Order("id").First(&admin).Error
		if err != nil {
			return 0, err
		}
		return admin.ID, nil
	}
}

// PaiementService owns the administrative fee pipeline: creation with
// reference synthesis, admin-only validation and aggregate statistics.
type PaiementService struct {
	db       *gorm.DB
	gate     *gate.Gate[auth.Identity]
	notifier Notifier
	admin    AdminResolver
}

func NewPaiementService(db *gorm.DB, g *gate.Gate[auth.Identity], notifier Notifier, admin AdminResolver) *PaiementService {
	return &PaiementService{db: db, gate: g, notifier: notifier, admin: admin}
}

type CreatePaiementInput struct {
	Montant   float64   `json:"montant" validate:"required,gt=0"`
	Date      time.Time `json:"date"`
	Methode   string    `json:"methode" validate:"required,max=50"`
	Reference string    `json:"reference" validate:"omitempty,max=50"`
	// EtudiantID n'est pris en compte que pour un appel admin.
	EtudiantID uint `json:"etudiant_id"`
}

// referenceAttempts bounds the retry loop on the unique index: concurrent
// creations in the same year can synthesize the same PAY-YYYY-NNN.
const referenceAttempts = 3

// Create records a payment, always starting EN_ATTENTE. A non-admin caller
// only creates for themselves; the admin resolved by the injected collaborator
// is notified.
func (s *PaiementService) Create(ctx context.Context, ident auth.Identity, in CreatePaiementInput) (*models.Paiement, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionCreate, policy.ResourcePaiement, nil); err != nil {
		return nil, apperr.Forbidden("creation_paiement_interdite")
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
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	var p models.Paiement
	var err error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		p = models.Paiement{
			Montant:    in.Montant,
			Reference:  in.Reference,
			Date:       date,
			Methode:    in.Methode,
			Status:     models.PaiementEnAttente,
			EtudiantID: etudiantID,
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if p.Reference == "" {
				ref, genErr := models.GeneratePaiementReference(tx, date.Year())
				if genErr != nil {
					return genErr
				}
				p.Reference = ref
			}
			return tx.Create(&p).Error
		})
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		if in.Reference != "" {
			// Référence fournie par l'appelant: pas de régénération possible.
			return nil, apperr.Conflict("reference_deja_utilisee")
		}
	}
	if err != nil {
		return nil, apperr.Conflict("reference_deja_utilisee")
	}

	if adminID, resolveErr := s.admin(ctx); resolveErr == nil {
		s.notifier.Notify(ctx, adminID, "Nouveau paiement",
			fmt.Sprintf("Paiement %s de %.2f en attente de validation", p.Reference, p.Montant))
	}
	return &p, nil
}

// UpdateStatus is the admin-only terminal transition EN_ATTENTE -> VALIDE or
// REJETE. The owning student is notified of the outcome.
func (s *PaiementService) UpdateStatus(ctx context.Context, ident auth.Identity, id uint, status models.PaiementStatus) (*models.Paiement, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionValidate, policy.ResourcePaiement, nil); err != nil {
		return nil, apperr.Forbidden("validation_paiement_interdite")
	}
	if status != models.PaiementValide && status != models.PaiementRejete {
		return nil, apperr.Validation("statut_inconnu", map[string]string{"status": string(status)})
	}
	var p models.Paiement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("paiement_introuvable")
			}
			return err
		}
		p.Status = status
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, p.EtudiantID, "Paiement "+string(status),
		fmt.Sprintf("Votre paiement %s est passé au statut %s", p.Reference, status))
	return &p, nil
}

type UpdatePaiementInput struct {
	Montant   *float64   `json:"montant" validate:"omitempty,gt=0"`
	Date      *time.Time `json:"date"`
	Methode   *string    `json:"methode" validate:"omitempty,max=50"`
	Reference *string    `json:"reference" validate:"omitempty,max=50"`
	// EtudiantID est une chaîne: la réaffectation n'est appliquée que si une
	// valeur non vide est fournie.
	EtudiantID string `json:"etudiant_id"`
}

// Update is the admin-only full-field edit.
func (s *PaiementService) Update(ctx context.Context, ident auth.Identity, id uint, in UpdatePaiementInput) (*models.Paiement, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionUpdate, policy.ResourcePaiement, nil); err != nil {
		return nil, apperr.Forbidden("modification_paiement_interdite")
	}
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var p models.Paiement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("paiement_introuvable")
			}
			return err
		}
		if in.Montant != nil {
			p.Montant = *in.Montant
		}
		if in.Date != nil {
			p.Date = *in.Date
		}
		if in.Methode != nil {
			p.Methode = *in.Methode
		}
		if in.Reference != nil && *in.Reference != "" {
			p.Reference = *in.Reference
		}
		if in.EtudiantID != "" {
			eid, convErr := strconv.ParseUint(in.EtudiantID, 10, 64)
			if convErr != nil {
				return apperr.Validation("champs_invalides", map[string]string{"etudiant_id": "numeric"})
			}
			p.EtudiantID = uint(eid)
		}
		if err := tx.Save(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("reference_deja_utilisee")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns payments: all of them (optionally filtered by student) for an
// admin, the caller's own otherwise.
func (s *PaiementService) List(ctx context.Context, ident auth.Identity, etudiantID uint) ([]models.Paiement, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionList, policy.ResourcePaiement, nil); err != nil {
		return nil, apperr.Forbidden("acces_paiement_interdit")
	}
	q := s.db.WithContext(ctx).Model(&models.Paiement{}).Order("id")
	if ident.Role == models.RoleAdmin {
		if etudiantID != 0 {
			q = q.Where("etudiant_id = ?", etudiantID)
		}
	} else {
		q = q.Where("etudiant_id = ?", ident.UserID)
	}
	var ps []models.Paiement
	if err := q.Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

// StatBucket aggregates one status bucket.
type StatBucket struct {
	Count   int64   `json:"count"`
	Montant float64 `json:"montant"`
}

// PaiementStats always carries the three status buckets plus the total, even
// when a bucket has no row.
type PaiementStats struct {
	EnAttente StatBucket `json:"EN_ATTENTE"`
	Valide    StatBucket `json:"VALIDE"`
	Rejete    StatBucket `json:"REJETE"`
	Total     StatBucket `json:"TOTAL"`
}

// Stats is the admin-only aggregate: count and summed amount per status.
func (s *PaiementService) Stats(ctx context.Context, ident auth.Identity) (*PaiementStats, error) {
	if err := s.gate.Authorize(ctx, ident, gate.ActionStats, policy.ResourcePaiement, nil); err != nil {
		return nil, apperr.Forbidden("statistiques_interdites")
	}
	type row struct {
		Status  models.PaiementStatus
		Count   int64
		Montant float64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Paiement{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(montant), 0) AS montant").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	stats := &PaiementStats{}
	for _, r := range rows {
		b := StatBucket{Count: r.Count, Montant: r.Montant}
		switch r.Status {
		case models.PaiementEnAttente:
			stats.EnAttente = b
		case models.PaiementValide:
			stats.Valide = b
		case models.PaiementRejete:
			stats.Rejete = b
		}
		stats.Total.Count += r.Count
		stats.Total.Montant += r.Montant
	}
	return stats, nil
}
