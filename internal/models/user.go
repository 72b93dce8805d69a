package models

import "time"

// Rôles applicatifs. Le rôle est porté par l'utilisateur et résolu une seule
// fois par requête par le middleware d'authentification.
const (
	RoleAdmin     = "ADMIN"
	RoleEncadreur = "ENCADREUR"
	RoleEtudiant  = "ETUDIANT"
)

type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"unique;not null;index" json:"email"`
	Password  string `gorm:"not null" json:"-"` // hashé (bcrypt)
	Nom       string `gorm:"index" json:"nom"`
	Prenom    string `gorm:"index" json:"prenom"`
	Role      string `gorm:"size:20;not null;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin évite de comparer la constante partout.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
