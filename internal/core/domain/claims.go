package domain

import "time"

// Claims is the verified content of a bearer token. Roles are a snapshot
// taken when the token was issued.
type Claims struct {
	SubjectID int64
	Username  string
	Roles     RoleSet
	IssuedAt  time.Time
	ExpiresAt time.Time
}
