// Package policy is the role-based access decision table for every mutating
// or listing operation. It is pure: decisions depend only on the arguments.
package policy

import (
	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionRegister         Action = "register"
	ActionListIdentities   Action = "list_identities"
	ActionDeleteIdentity   Action = "delete_identity"
	ActionCreateJob        Action = "create_job"
	ActionListAllJobs      Action = "list_all_jobs"
	ActionListOwnJobs      Action = "list_own_jobs"
	ActionUpdateJobStatus  Action = "update_job_status"
	ActionAssignTechnician Action = "assign_technician"
	ActionDeleteJob        Action = "delete_job"
	ActionViewJobEvents    Action = "view_job_events"
)

// Ownership describes the caller's relation to the target resource. The zero
// value means no resource-level context.
type Ownership struct {
	CallerID int64
	// JobTechnicianID is the technician currently assigned to the target job.
	JobTechnicianID *int64
}

func (o Ownership) ownsJob() bool {
	return o.JobTechnicianID != nil && *o.JobTechnicianID == o.CallerID
}

var roleTable = map[Action][]domain.Role{
	ActionRegister:         {domain.RoleAdmin},
	ActionListIdentities:   {domain.RoleAdmin},
	ActionDeleteIdentity:   {domain.RoleAdmin},
	ActionCreateJob:        {domain.RoleAdmin, domain.RoleScheduler, domain.RoleTechnician},
	ActionListAllJobs:      {domain.RoleAdmin, domain.RoleScheduler},
	ActionListOwnJobs:      {domain.RoleTechnician, domain.RoleCustomer},
	ActionUpdateJobStatus:  {domain.RoleAdmin, domain.RoleScheduler},
	ActionAssignTechnician: {domain.RoleAdmin, domain.RoleScheduler},
	ActionDeleteJob:        {domain.RoleAdmin, domain.RoleScheduler},
	ActionViewJobEvents:    {domain.RoleAdmin, domain.RoleScheduler},
}

// RolesFor returns the roles that unconditionally qualify for action.
func RolesFor(action Action) []domain.Role {
	return roleTable[action]
}

// Permits decides whether a caller holding roles may perform action given
// the ownership context. Unknown actions are denied.
func Permits(roles domain.RoleSet, action Action, own Ownership) bool {
	allowed, ok := roleTable[action]
	if !ok {
		return false
	}
	if roles.HasAny(allowed...) {
		return true
	}
	// An assigned technician may move their own job along.
	if action == ActionUpdateJobStatus && roles.Has(domain.RoleTechnician) {
		return own.ownsJob()
	}
	return false
}

// Authorize is Permits for verified claims, returning domain.ErrForbidden on
// denial. A nil caller is unauthenticated.
func Authorize(caller *domain.Claims, action Action, own Ownership) error {
	if caller == nil {
		return domain.ErrUnauthenticated
	}
	own.CallerID = caller.SubjectID
	if !Permits(caller.Roles, action, own) {
		return domain.ErrForbidden
	}
	return nil
}

// CanBootstrap reports whether an unauthenticated registration requesting
// roles qualifies as the first administrator. Directory emptiness is checked
// by the store atomically with the insert, not here.
func CanBootstrap(requested domain.RoleSet) bool {
	return requested.Has(domain.RoleAdmin)
}

// TechnicianSelfScoped reports whether a job created by a caller with roles
// must be pinned to the caller: TECHNICIAN is their only job-creating role.
func TechnicianSelfScoped(roles domain.RoleSet) bool {
	return roles.Has(domain.RoleTechnician) &&
		!roles.HasAny(domain.RoleAdmin, domain.RoleScheduler)
}

// Scope selects which jobs a caller sees on the own-jobs listing.
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeTechnician lists jobs assigned to the caller.
	ScopeTechnician
	// ScopeCustomer lists jobs requested by the caller.
	ScopeCustomer
)

// OwnJobsScope picks the listing scope; TECHNICIAN takes precedence over CUSTOMER.
func OwnJobsScope(roles domain.RoleSet) Scope {
	switch {
	case roles.Has(domain.RoleTechnician):
		return ScopeTechnician
	case roles.Has(domain.RoleCustomer):
		return ScopeCustomer
	default:
		return ScopeNone
	}
}
