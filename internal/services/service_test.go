package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/policy"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Sujet{},
		&models.Memoire{},
		&models.Document{},
		&models.HistoriqueMemoireStatus{},
		&models.Jury{},
		&models.Session{},
		&models.Paiement{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// recordingNotifier captures dispatches so tests can assert on the target and
// title without reading the notifications table.
type recordingNotifier struct {
	notes []recordedNote
}

type recordedNote struct {
	UserID uint
	Titre  string
}

func (n *recordingNotifier) Notify(_ context.Context, userID uint, titre, _ string) {
	n.notes = append(n.notes, recordedNote{UserID: userID, Titre: titre})
}

func (n *recordingNotifier) last(t *testing.T) recordedNote {
	t.Helper()
	if len(n.notes) == 0 {
		t.Fatal("expected at least one notification")
	}
	return n.notes[len(n.notes)-1]
}

func seedUser(t *testing.T, db *gorm.DB, email, role string) models.User {
	t.Helper()
	u := models.User{Email: email, Password: "hash", Nom: "Test", Prenom: "User", Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func seedSujet(t *testing.T, db *gorm.DB, encadreurID uint, valide bool) models.Sujet {
	t.Helper()
	s := models.Sujet{Titre: "Sujet de test", EncadreurID: encadreurID, Valide: valide}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("seed sujet: %v", err)
	}
	return s
}

func seedMemoire(t *testing.T, db *gorm.DB, etudiantID, encadreurID, sujetID uint, status models.MemoireStatus) models.Memoire {
	t.Helper()
	m := models.Memoire{
		Titre:       "Memoire de test",
		Status:      status,
		EtudiantID:  etudiantID,
		EncadreurID: encadreurID,
		SujetID:     sujetID,
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed memoire: %v", err)
	}
	return m
}

func identOf(u models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

// memoireEnv seeds the common admin/encadreur/etudiant trio plus a validated
// subject, and wires a MemoireService on a recording notifier.
type memoireEnv struct {
	db        *gorm.DB
	svc       *MemoireService
	notifier  *recordingNotifier
	admin     models.User
	encadreur models.User
	etudiant  models.User
	sujet     models.Sujet
}

func newMemoireEnv(t *testing.T) *memoireEnv {
	t.Helper()
	db := setupTestDB(t, t.Name())
	notifier := &recordingNotifier{}
	env := &memoireEnv{
		db:        db,
		notifier:  notifier,
		svc:       NewMemoireService(db, policy.NewGate(), notifier),
		admin:     seedUser(t, db, "admin@univ.test", models.RoleAdmin),
		encadreur: seedUser(t, db, "encadreur@univ.test", models.RoleEncadreur),
		etudiant:  seedUser(t, db, "etudiant@univ.test", models.RoleEtudiant),
	}
	env.sujet = seedSujet(t, db, env.encadreur.ID, true)
	return env
}
