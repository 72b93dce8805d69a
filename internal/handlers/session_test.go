package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
	"github.com/diewo77/theses-app/internal/services"
)

func TestSessionHandlerQuotaMapsTo429(t *testing.T) {
	db := setupHandlerDB(t)
	notifier := services.NewDBNotifier(db, testLogger)
	h := NewSessionHandler(services.NewSessionService(db, policy.NewGate(), notifier))

	encadreur := seedHandlerUser(t, db, "encadreur@univ.test", models.RoleEncadreur)
	etudiant := seedHandlerUser(t, db, "etudiant@univ.test", models.RoleEtudiant)
	sujet := models.Sujet{Titre: "Sujet", EncadreurID: encadreur.ID, Valide: true}
	if err := db.Create(&sujet).Error; err != nil {
		t.Fatalf("seed sujet: %v", err)
	}
	m := models.Memoire{Titre: "M", Status: models.MemoireEnCours, EtudiantID: etudiant.ID, EncadreurID: encadreur.ID, SujetID: sujet.ID}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed memoire: %v", err)
	}
	// Budget épuisé: un lot existe déjà au dernier numéro autorisé.
	sess := models.Session{
		Numero: services.SessionQuota, Date: time.Now(), Duree: 60,
		Type: models.SessionPresentiel, Status: models.SessionEffectuee, Salle: "B12",
		EncadreurID: encadreur.ID, EtudiantID: etudiant.ID,
	}
	if err := db.Create(&sess).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	body := `{"duree":60,"type":"VIRTUEL","date":"` + time.Now().Add(time.Hour).Format(time.RFC3339) + `","meeting_link":"https://meet.univ.test/x"}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	req = asUser(req, encadreur)
	w := httptest.NewRecorder()
	h.Collection(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSessionHandlerStudentCannotCreate(t *testing.T) {
	db := setupHandlerDB(t)
	notifier := services.NewDBNotifier(db, testLogger)
	h := NewSessionHandler(services.NewSessionService(db, policy.NewGate(), notifier))
	etudiant := seedHandlerUser(t, db, "etudiant@univ.test", models.RoleEtudiant)

	body := `{"duree":60,"type":"PRESENTIEL","date":"` + time.Now().Format(time.RFC3339) + `","salle":"B12"}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	req = asUser(req, etudiant)
	w := httptest.NewRecorder()
	h.Collection(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}
