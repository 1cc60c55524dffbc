package models

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleProctor UserRole = "proctor"
	RoleStudent UserRole = "student"
)

// User is the caller identity extracted from a platform-issued token. User
// management itself lives in the identity service; this service only reads
// the claims.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
}
