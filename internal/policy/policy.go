// Package policy defines the permission table of the application: for each
// (resource, action) pair, which roles may act and under which ownership
// predicate. Keeping the rules in one declarative table keeps the gate logic
// auditable and testable without persistence.
package policy

import (
	"context"

	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/gate"
	"github.com/diewo77/theses-app/internal/models"
)

// Resource type names registered on the gate.
const (
	ResourceMemoire  = "memoire"
	ResourceDocument = "document"
	ResourceJury     = "jury"
	ResourceSession  = "session"
	ResourcePaiement = "paiement"
	ResourceSujet    = "sujet"
)

// EtudiantOwned is implemented by resources owned by a student.
type EtudiantOwned interface{ GetEtudiantID() uint }

// EncadreurOwned is implemented by resources owned by a supervisor.
type EncadreurOwned interface{ GetEncadreurID() uint }

// ownership predicate applied to the resource passed to the gate.
type ownership int

const (
	ownsAny       ownership = iota // no ownership requirement
	ownsEtudiant                   // caller must be the resource's student
	ownsEncadreur                  // caller must be the resource's supervisor
)

type rule struct {
	role string // "*" = any authenticated role
	owns ownership
}

// table is the permission table. A call is allowed when at least one rule for
// the (resource, action) pair matches the caller.
var table = map[string]map[gate.Action][]rule{
	ResourceMemoire: {
		gate.ActionCreate: {{role: models.RoleEtudiant}, {role: models.RoleAdmin}},
		gate.ActionView: {
			{role: models.RoleAdmin},
			{role: models.RoleEtudiant, owns: ownsEtudiant},
			{role: models.RoleEncadreur, owns: ownsEncadreur},
		},
		gate.ActionUpdate: {
			{role: models.RoleAdmin},
			{role: models.RoleEtudiant, owns: ownsEtudiant},
		},
		gate.ActionUpload: {{role: models.RoleEtudiant, owns: ownsEtudiant}},
		gate.ActionList:   {{role: "*"}},
	},
	ResourceDocument: {
		// resource du create = le mémoire cible
		gate.ActionCreate:  {{role: models.RoleEtudiant, owns: ownsEtudiant}},
		gate.ActionComment: {{role: models.RoleEncadreur, owns: ownsEncadreur}},
		gate.ActionList: {
			{role: models.RoleAdmin},
			{role: models.RoleEtudiant, owns: ownsEtudiant},
			{role: models.RoleEncadreur, owns: ownsEncadreur},
		},
	},
	ResourceJury: {
		gate.ActionCreate: {{role: models.RoleAdmin}},
		gate.ActionUpdate: {{role: models.RoleAdmin}},
		gate.ActionDelete: {{role: models.RoleAdmin}},
		gate.ActionList:   {{role: "*"}},
	},
	ResourceSession: {
		gate.ActionCreate: {{role: models.RoleEncadreur}},
		gate.ActionUpdate: {{role: models.RoleEncadreur, owns: ownsEncadreur}},
		gate.ActionDelete: {{role: models.RoleEncadreur, owns: ownsEncadreur}},
		gate.ActionList:   {{role: "*"}},
	},
	ResourcePaiement: {
		gate.ActionCreate:   {{role: "*"}},
		gate.ActionValidate: {{role: models.RoleAdmin}},
		gate.ActionUpdate:   {{role: models.RoleAdmin}},
		gate.ActionStats:    {{role: models.RoleAdmin}},
		gate.ActionList:     {{role: "*"}},
	},
	ResourceSujet: {
		gate.ActionCreate:   {{role: models.RoleEncadreur}, {role: models.RoleAdmin}},
		gate.ActionValidate: {{role: models.RoleAdmin}},
		gate.ActionList:     {{role: "*"}},
	},
}

func (r rule) matches(id auth.Identity, resource any) bool {
	if r.role != "*" && r.role != id.Role {
		return false
	}
	switch r.owns {
	case ownsEtudiant:
		owned, ok := resource.(EtudiantOwned)
		return ok && owned.GetEtudiantID() == id.UserID
	case ownsEncadreur:
		owned, ok := resource.(EncadreurOwned)
		return ok && owned.GetEncadreurID() == id.UserID
	}
	return true
}

// tablePolicy serves one resource type out of the shared table.
type tablePolicy struct{ resource string }

func (p tablePolicy) Can(_ context.Context, id auth.Identity, action gate.Action, resource any) bool {
	rules, ok := table[p.resource][action]
	if !ok {
		return false
	}
	for _, r := range rules {
		if r.matches(id, resource) {
			return true
		}
	}
	return false
}

// NewGate builds the application gate with every resource policy registered.
func NewGate() *gate.Gate[auth.Identity] {
	g := gate.NewGate[auth.Identity]()
	for resource := range table {
		g.Register(resource, tablePolicy{resource: resource})
	}
	return g
}
