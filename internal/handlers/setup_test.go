package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testLogger = zap.NewNop()

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
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

func seedHandlerUser(t *testing.T, db *gorm.DB, email, role string) models.User {
	t.Helper()
	u := models.User{Email: email, Password: "hash", Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

// asUser attaches the user's identity to the request context, the way the
// auth middleware would after resolving the session cookie.
func asUser(r *http.Request, u models.User) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: u.ID, Role: u.Role}))
}
