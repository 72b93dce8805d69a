package policy

import (
	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/models"
)

// statusRule grants a set of target statuses to a role, optionally restricted
// by an ownership predicate on the memoire. Targets nil means unrestricted.
type statusRule struct {
	role    string
	owns    ownership
	targets []models.MemoireStatus
}

// Règles de transition de statut du mémoire:
//   - l'admin est sans restriction;
//   - l'encadreur du mémoire est sans restriction;
//   - un autre encadreur ne peut poser que EN_REVISION, VALIDE ou REJETE;
//   - l'étudiant propriétaire ne peut que soumettre (SOUMIS).
var statusRules = []statusRule{
	{role: models.RoleAdmin},
	{role: models.RoleEncadreur, owns: ownsEncadreur},
	{role: models.RoleEncadreur, targets: []models.MemoireStatus{
		models.MemoireEnRevision, models.MemoireValide, models.MemoireRejete,
	}},
	{role: models.RoleEtudiant, owns: ownsEtudiant, targets: []models.MemoireStatus{
		models.MemoireSoumis,
	}},
}

// CanSetMemoireStatus reports whether the caller may move the memoire to the
// target status.
func CanSetMemoireStatus(id auth.Identity, m *models.Memoire, target models.MemoireStatus) bool {
	for _, r := range statusRules {
		if !(rule{role: r.role, owns: r.owns}).matches(id, m) {
			continue
		}
		if r.targets == nil {
			return true
		}
		for _, t := range r.targets {
			if t == target {
				return true
			}
		}
	}
	return false
}
