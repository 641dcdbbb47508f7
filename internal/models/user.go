package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin          UserRole = "ADMIN"
	RoleDirector       UserRole = "DIRECTEUR_ETUDES"
	RoleDepartmentHead UserRole = "CHEF_DEPARTEMENT"
	RoleTrainer        UserRole = "FORMATEUR"
	RoleStudent        UserRole = "ELEVE"
)

// User represents an application user stored in the users table.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	LastName     string     `db:"last_name" json:"nom"`
	FirstName    string     `db:"first_name" json:"prenom"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins last and first names the way the institute prints them.
func (u User) FullName() string {
	return joinName(u.LastName, u.FirstName)
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

func joinName(last, first string) string {
	switch {
	case last == "":
		return first
	case first == "":
		return last
	default:
		return last + " " + first
	}
}
