package domain

import "time"

// Identity is a registered actor: admin, scheduler, technician or customer.
// Roles are fixed at registration.
type Identity struct {
	ID             int64
	Username       string
	CredentialHash string
	Roles          RoleSet
	ContactInfo    string
	Address        string
	CreatedAt      time.Time
}

// Clone returns a deep copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Roles = i.Roles.Clone()
	return &cp
}
