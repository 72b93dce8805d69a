package services

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/theses-app/internal/apperr"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
)

type juryEnv struct {
	*memoireEnv
	svc     *JuryService
	memoire models.Memoire
	membres [3]models.User
}

func newJuryEnv(t *testing.T, status models.MemoireStatus) *juryEnv {
	t.Helper()
	base := newMemoireEnv(t)
	env := &juryEnv{
		memoireEnv: base,
		svc:        NewJuryService(base.db, policy.NewGate(), base.notifier),
		memoire:    seedMemoire(t, base.db, base.etudiant.ID, base.encadreur.ID, base.sujet.ID, status),
	}
	for i := range env.membres {
		env.membres[i] = seedUser(t, base.db, []string{"m1", "m2", "m3"}[i]+"@univ.test", models.RoleEncadreur)
	}
	return env
}

func (env *juryEnv) createInput() CreateJuryInput {
	return CreateJuryInput{
		MemoireID:        env.memoire.ID,
		EncadreurJury1ID: env.membres[0].ID,
		EncadreurJury2ID: env.membres[1].ID,
		EncadreurJury3ID: env.membres[2].ID,
		DateSoutenance:   time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC),
		Salle:            "Amphi A",
	}
}

func TestJuryCreateSchedulesDefense(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	ctx := context.Background()

	j, err := env.svc.Create(ctx, identOf(env.admin), env.createInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.Statut != models.JuryPlanifie {
		t.Errorf("statut: got %s want PLANIFIE", j.Statut)
	}
	if j.Nom == "" {
		t.Error("expected a default jury name")
	}

	// La date de soutenance est propagée sur le mémoire.
	var m models.Memoire
	if err := env.db.First(&m, env.memoire.ID).Error; err != nil {
		t.Fatalf("reload memoire: %v", err)
	}
	if m.DateSoutenance == nil || !m.DateSoutenance.Equal(j.DateSoutenance) {
		t.Errorf("date_soutenance non propagee: %v", m.DateSoutenance)
	}
	if note := env.notifier.last(t); note.UserID != env.etudiant.ID {
		t.Errorf("notification target: got %d want etudiant %d", note.UserID, env.etudiant.ID)
	}
}

func TestJuryCreateRequiresValideMemoire(t *testing.T) {
	env := newJuryEnv(t, models.MemoireSoumis)
	_, err := env.svc.Create(context.Background(), identOf(env.admin), env.createInput())
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestJuryCreateAdminOnly(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	_, err := env.svc.Create(context.Background(), identOf(env.encadreur), env.createInput())
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestJuryCreateConflictOfInterest(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	in := env.createInput()
	in.EncadreurJury2ID = env.encadreur.ID // l'encadreur du mémoire
	_, err := env.svc.Create(context.Background(), identOf(env.admin), in)
	if !apperr.Is(err, apperr.KindConflictOfInterest) {
		t.Fatalf("expected conflict of interest, got %v", err)
	}
}

func TestJuryCreateDuplicate(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	ctx := context.Background()
	if _, err := env.svc.Create(ctx, identOf(env.admin), env.createInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := env.svc.Create(ctx, identOf(env.admin), env.createInput())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestJuryUpdateReappliesConflictCheck(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	ctx := context.Background()
	j, err := env.svc.Create(ctx, identOf(env.admin), env.createInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = env.svc.Update(ctx, identOf(env.admin), j.ID, UpdateJuryInput{EncadreurJury1ID: &env.encadreur.ID})
	if !apperr.Is(err, apperr.KindConflictOfInterest) {
		t.Fatalf("expected conflict of interest, got %v", err)
	}

	// Un report de date est répercuté sur le mémoire.
	newDate := time.Date(2026, time.November, 2, 14, 0, 0, 0, time.UTC)
	if _, err := env.svc.Update(ctx, identOf(env.admin), j.ID, UpdateJuryInput{DateSoutenance: &newDate}); err != nil {
		t.Fatalf("update date: %v", err)
	}
	var m models.Memoire
	if err := env.db.First(&m, env.memoire.ID).Error; err != nil {
		t.Fatalf("reload memoire: %v", err)
	}
	if m.DateSoutenance == nil || !m.DateSoutenance.Equal(newDate) {
		t.Errorf("date non repercutee: %v", m.DateSoutenance)
	}
}

func TestJuryDeleteRevertsMemoire(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	ctx := context.Background()
	j, err := env.svc.Create(ctx, identOf(env.admin), env.createInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.svc.Delete(ctx, identOf(env.admin), j.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var m models.Memoire
	if err := env.db.First(&m, env.memoire.ID).Error; err != nil {
		t.Fatalf("reload memoire: %v", err)
	}
	if m.Status != models.MemoireValide || m.DateSoutenance != nil {
		t.Errorf("memoire non remis en etat: status=%s date=%v", m.Status, m.DateSoutenance)
	}

	var hist []models.HistoriqueMemoireStatus
	if err := env.db.Where("memoire_id = ?", m.ID).Find(&hist).Error; err != nil {
		t.Fatalf("historique: %v", err)
	}
	if len(hist) != 1 || hist[0].Commentaire != "Soutenance annulée" {
		t.Errorf("expected a cancellation history row, got %v", hist)
	}
}

func TestJuryReconcileTermine(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	ctx := context.Background()
	j, err := env.svc.Create(ctx, identOf(env.admin), env.createInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// La soutenance a eu lieu: le mémoire passe SOUTENU, le jury est rattrapé
	// au prochain listing.
	if err := env.db.Model(&models.Memoire{}).Where("id = ?", env.memoire.ID).
		Update("status", models.MemoireSoutenu).Error; err != nil {
		t.Fatalf("set soutenu: %v", err)
	}

	for i := 0; i < 2; i++ { // idempotent
		js, err := env.svc.List(ctx, identOf(env.admin))
		if err != nil {
			t.Fatalf("list (%d): %v", i, err)
		}
		if len(js) != 1 || js[0].ID != j.ID {
			t.Fatalf("list: got %v", js)
		}
		if js[0].Statut != models.JuryTermine {
			t.Errorf("statut: got %s want TERMINE", js[0].Statut)
		}
		if js[0].StatutAffiche() != "SOUTENU" {
			t.Errorf("statut affiche: got %s want SOUTENU", js[0].StatutAffiche())
		}
	}
}

func TestJuryListScoped(t *testing.T) {
	env := newJuryEnv(t, models.MemoireValide)
	ctx := context.Background()
	if _, err := env.svc.Create(ctx, identOf(env.admin), env.createInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
	autreEtudiant := seedUser(t, env.db, "autre.etudiant@univ.test", models.RoleEtudiant)

	own, err := env.svc.List(ctx, identOf(env.etudiant))
	if err != nil {
		t.Fatalf("etudiant list: %v", err)
	}
	if len(own) != 1 {
		t.Errorf("etudiant: got %d want 1", len(own))
	}

	none, err := env.svc.List(ctx, identOf(autreEtudiant))
	if err != nil {
		t.Fatalf("autre etudiant list: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("autre etudiant: got %d want 0", len(none))
	}
}
