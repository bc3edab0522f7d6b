package models

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity is the caller as resolved by the auth middleware.
// Business logic never re-derives privilege from anything else.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type User struct {
	Email               string `json:"email" db:"email"`
	Name                string `json:"name" db:"name"`
	Role                Role   `json:"role" db:"role"`
	SessionsCount       int    `json:"sessionsCount" db:"sessions_count"`
	TotalParticipations int    `json:"totalParticipations" db:"total_participations"`
	Banned              bool   `json:"banned" db:"banned"`
}
