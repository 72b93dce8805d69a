package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/diewo77/theses-app/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models migrated by AutoMigrate, dependency order.
func allModels() []interface{} {
	return []interface{}{
		&models.User{}, &models.Sujet{}, &models.Memoire{}, &models.Document{},
		&models.HistoriqueMemoireStatus{}, &models.Jury{}, &models.Session{},
		&models.Paiement{}, &models.Notification{},
	}
}

// ConnectAndMigrate opens the database (postgres in production, sqlite when
// the DSN is a file path) and brings the schema up to date. With MIGRATIONS=1
// the SQL migrations in ./migrations run via golang-migrate; otherwise
// AutoMigrate is used (dev convenience).
func ConnectAndMigrate(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN est vide, vérifiez la configuration de l'environnement")
	}
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel), TranslateError: true}

	var db *gorm.DB
	var err error
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		for i := 0; i < 10; i++ {
			db, err = gorm.Open(postgres.Open(dsn), cfg)
			if err == nil {
				break
			}
			fmt.Println("Retrying DB connection...", err)
			time.Sleep(2 * time.Second)
		}
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	// Masked DSN once for diagnostics.
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)

	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range allModels() {
			if migErr := db.AutoMigrate(m); migErr != nil {
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
	}

	for _, table := range []string{"users", "memoires", "sessions", "paiements"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

// seed creates a minimal development dataset: one user per role and one
// validated subject.
func seed(db *gorm.DB) {
	users := []models.User{
		{Email: "admin@univ.test", Nom: "Diallo", Prenom: "Awa", Role: models.RoleAdmin},
		{Email: "encadreur@univ.test", Nom: "Ndiaye", Prenom: "Moussa", Role: models.RoleEncadreur},
		{Email: "etudiant@univ.test", Nom: "Sow", Prenom: "Fatou", Role: models.RoleEtudiant},
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	for i := range users {
		var existing models.User
		if err := db.Where("email = ?", users[i].Email).First(&existing).Error; err == gorm.ErrRecordNotFound {
			users[i].Password = string(hash)
			db.Create(&users[i])
		}
	}
	var encadreur models.User
	if err := db.Where("role = ?", models.RoleEncadreur).First(&encadreur).Error; err != nil {
		return
	}
	var count int64
	db.Model(&models.Sujet{}).Count(&count)
	if count == 0 {
		db.Create(&models.Sujet{
			Titre:       "Systèmes de recommandation pour bibliothèques universitaires",
			Description: "Étude et prototype d'un moteur de recommandation.",
			MotsCles:    "recommandation,IA",
			EncadreurID: encadreur.ID,
			Valide:      true,
		})
	}
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
