package services

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/theses-app/internal/apperr"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
)

type sessionEnv struct {
	*memoireEnv
	svc       *SessionService
	etudiant2 models.User
}

// newSessionEnv wires a SessionService over two students supervised by the
// same encadreur.
func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	base := newMemoireEnv(t)
	env := &sessionEnv{
		memoireEnv: base,
		svc:        NewSessionService(base.db, policy.NewGate(), base.notifier),
		etudiant2:  seedUser(t, base.db, "etudiant2@univ.test", models.RoleEtudiant),
	}
	sujet2 := seedSujet(t, base.db, base.encadreur.ID, true)
	seedMemoire(t, base.db, base.etudiant.ID, base.encadreur.ID, base.sujet.ID, models.MemoireEnCours)
	seedMemoire(t, base.db, env.etudiant2.ID, base.encadreur.ID, sujet2.ID, models.MemoireEnCours)
	return env
}

func virtualInput(date time.Time) CreateSessionInput {
	return CreateSessionInput{
		Duree:       60,
		Type:        models.SessionVirtuel,
		Date:        date,
		MeetingLink: "https://meet.univ.test/abc",
	}
}

func TestSessionCreateBatch(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	date := time.Now().Add(48 * time.Hour)

	batch, err := env.svc.Create(ctx, identOf(env.encadreur), virtualInput(date))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected one session per student, got %d", len(batch))
	}
	for _, sess := range batch {
		if sess.Numero != 1 {
			t.Errorf("numero: got %d want 1", sess.Numero)
		}
		if sess.Status != models.SessionPlanifiee {
			t.Errorf("status: got %s want PLANIFIEE", sess.Status)
		}
		if sess.EncadreurID != env.encadreur.ID {
			t.Errorf("encadreur: got %d", sess.EncadreurID)
		}
	}
	// Un étudiant par séance, chacun notifié.
	if len(env.notifier.notes) != 2 {
		t.Errorf("notifications: got %d want 2", len(env.notifier.notes))
	}

	second, err := env.svc.Create(ctx, identOf(env.encadreur), virtualInput(date))
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if second[0].Numero != 2 {
		t.Errorf("second batch numero: got %d want 2", second[0].Numero)
	}
}

func TestSessionCreateWithoutStudents(t *testing.T) {
	env := newSessionEnv(t)
	autreEncadreur := seedUser(t, env.db, "autre.encadreur@univ.test", models.RoleEncadreur)
	_, err := env.svc.Create(context.Background(), identOf(autreEncadreur), virtualInput(time.Now().Add(time.Hour)))
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestSessionCreateQuota(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	// Le quota compte les lots: un lot existant au numéro 10 épuise le budget,
	// quel que soit le nombre de lignes.
	sess := models.Session{
		Numero: SessionQuota, Date: time.Now(), Duree: 60,
		Type: models.SessionPresentiel, Status: models.SessionEffectuee,
		Salle: "B12", EncadreurID: env.encadreur.ID, EtudiantID: env.etudiant.ID,
	}
	if err := env.db.Create(&sess).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	_, err := env.svc.Create(ctx, identOf(env.encadreur), virtualInput(time.Now().Add(time.Hour)))
	if !apperr.Is(err, apperr.KindQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}

func TestSessionCreateLocationRules(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	id := identOf(env.encadreur)
	date := time.Now().Add(time.Hour)

	in := CreateSessionInput{Duree: 60, Type: models.SessionVirtuel, Date: date}
	if _, err := env.svc.Create(ctx, id, in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("virtuel sans lien: expected validation, got %v", err)
	}

	in = CreateSessionInput{Duree: 60, Type: models.SessionVirtuel, Date: date, MeetingLink: "https://x", Salle: "B12"}
	if _, err := env.svc.Create(ctx, id, in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("virtuel avec salle: expected validation, got %v", err)
	}

	in = CreateSessionInput{Duree: 60, Type: models.SessionPresentiel, Date: date}
	if _, err := env.svc.Create(ctx, id, in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("presentiel sans salle: expected validation, got %v", err)
	}

	in = CreateSessionInput{Duree: 60, Type: "HYBRIDE", Date: date, Salle: "B12"}
	if _, err := env.svc.Create(ctx, id, in); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("type inconnu: expected validation, got %v", err)
	}
}

func TestSessionVisaTerminalOverride(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	batch, err := env.svc.Create(ctx, identOf(env.encadreur), virtualInput(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var sess models.Session
	for _, s := range batch {
		if s.EtudiantID == env.etudiant.ID {
			sess = s
		}
	}

	// Chaque visa est réservé à son signataire.
	if _, err := env.svc.Visa(ctx, identOf(env.etudiant), sess.ID, VisaEncadreur); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("etudiant signe visa encadreur: expected forbidden, got %v", err)
	}
	if _, err := env.svc.Visa(ctx, identOf(env.etudiant2), sess.ID, VisaEtudiant); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("autre etudiant signe: expected forbidden, got %v", err)
	}

	got, err := env.svc.Visa(ctx, identOf(env.etudiant), sess.ID, VisaEtudiant)
	if err != nil {
		t.Fatalf("visa etudiant: %v", err)
	}
	if got.Status == models.SessionTermine {
		t.Error("un seul visa ne doit pas terminer la seance")
	}

	got, err = env.svc.Visa(ctx, identOf(env.encadreur), sess.ID, VisaEncadreur)
	if err != nil {
		t.Fatalf("visa encadreur: %v", err)
	}
	// Le double visa est terminal quel que soit le statut courant.
	if got.Status != models.SessionTermine {
		t.Errorf("status: got %s want TERMINE", got.Status)
	}

	if _, err := env.svc.Visa(ctx, identOf(env.encadreur), sess.ID, "PARENT"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("type de visa inconnu: expected validation, got %v", err)
	}
}

func TestSessionVisaCancelled(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	sess := models.Session{
		Numero: 1, Date: time.Now(), Duree: 60, Type: models.SessionPresentiel,
		Status: models.SessionAnnulee, Salle: "B12",
		EncadreurID: env.encadreur.ID, EtudiantID: env.etudiant.ID,
	}
	if err := env.db.Create(&sess).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := env.svc.Visa(ctx, identOf(env.etudiant), sess.ID, VisaEtudiant)
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestSessionExpireOverdue(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()

	stale := models.Session{
		Numero: 1, Date: time.Now().Add(-72 * time.Hour), Duree: 60,
		Type: models.SessionPresentiel, Status: models.SessionPlanifie, Salle: "B12",
		EncadreurID: env.encadreur.ID, EtudiantID: env.etudiant.ID,
	}
	fresh := models.Session{
		Numero: 2, Date: time.Now().Add(2 * time.Hour), Duree: 60,
		Type: models.SessionPresentiel, Status: models.SessionPlanifiee, Salle: "B12",
		EncadreurID: env.encadreur.ID, EtudiantID: env.etudiant.ID,
	}
	done := models.Session{
		Numero: 3, Date: time.Now().Add(-72 * time.Hour), Duree: 60,
		Type: models.SessionPresentiel, Status: models.SessionEffectuee, Salle: "B12",
		EncadreurID: env.encadreur.ID, EtudiantID: env.etudiant.ID,
	}
	for _, s := range []*models.Session{&stale, &fresh, &done} {
		if err := env.db.Create(s).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	for i := 0; i < 2; i++ { // idempotent
		sessions, err := env.svc.List(ctx, identOf(env.encadreur))
		if err != nil {
			t.Fatalf("list (%d): %v", i, err)
		}
		byID := map[uint]models.SessionStatus{}
		for _, s := range sessions {
			byID[s.ID] = s.Status
		}
		if byID[stale.ID] != models.SessionAnnulee {
			t.Errorf("stale: got %s want ANNULEE", byID[stale.ID])
		}
		if byID[fresh.ID] != models.SessionPlanifiee {
			t.Errorf("fresh: got %s want PLANIFIEE", byID[fresh.ID])
		}
		if byID[done.ID] != models.SessionEffectuee {
			t.Errorf("done: got %s want EFFECTUEE", byID[done.ID])
		}
	}
}

func TestSessionDeleteRules(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	autreEncadreur := seedUser(t, env.db, "autre.encadreur@univ.test", models.RoleEncadreur)

	sess := models.Session{
		Numero: 1, Date: time.Now(), Duree: 60, Type: models.SessionPresentiel,
		Status: models.SessionEffectuee, Salle: "B12",
		EncadreurID: env.encadreur.ID, EtudiantID: env.etudiant.ID,
	}
	if err := env.db.Create(&sess).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := env.svc.Delete(ctx, identOf(autreEncadreur), sess.ID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("encadreur tiers: expected forbidden, got %v", err)
	}
	if err := env.svc.Delete(ctx, identOf(env.encadreur), sess.ID); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("seance effectuee: expected invalid state, got %v", err)
	}

	planned := models.Session{
		Numero: 2, Date: time.Now(), Duree: 60, Type: models.SessionPresentiel,
		Status: models.SessionPlanifiee, Salle: "B12",
		EncadreurID: env.encadreur.ID, EtudiantID: env.etudiant.ID,
	}
	if err := env.db.Create(&planned).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := env.svc.Delete(ctx, identOf(env.encadreur), planned.ID); err != nil {
		t.Fatalf("delete planned: %v", err)
	}
	var count int64
	if err := env.db.Model(&models.Session{}).Where("id = ?", planned.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Error("expected session to be removed")
	}
}

func TestSessionUpdateNotifiesOnStatusChange(t *testing.T) {
	env := newSessionEnv(t)
	ctx := context.Background()
	batch, err := env.svc.Create(ctx, identOf(env.encadreur), virtualInput(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sess := batch[0]
	before := len(env.notifier.notes)

	rapport := "Point d'avancement sur le chapitre 3"
	if _, err := env.svc.Update(ctx, identOf(env.encadreur), sess.ID, UpdateSessionInput{Rapport: &rapport}); err != nil {
		t.Fatalf("update rapport: %v", err)
	}
	if len(env.notifier.notes) != before {
		t.Error("rapport edit should not notify")
	}

	status := models.SessionEffectuee
	got, err := env.svc.Update(ctx, identOf(env.encadreur), sess.ID, UpdateSessionInput{Status: &status})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got.Status != models.SessionEffectuee {
		t.Errorf("status: got %s", got.Status)
	}
	if len(env.notifier.notes) != before+1 {
		t.Errorf("status change should notify once, got %d new", len(env.notifier.notes)-before)
	}
}
