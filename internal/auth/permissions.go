package auth

// Action is one fine-grained administrative capability.
type Action string

const (
	ActionValidateOrganization Action = "organization.validate"
	ActionSuspendOrganization  Action = "organization.suspend"
	ActionSuspendUser          Action = "user.suspend"
	ActionRestoreUser          Action = "user.restore"
	ActionManageAdmins         Action = "admin.manage"
	ActionManagePermissions    Action = "permission.manage"
	ActionViewAudit            Action = "audit.view"
	ActionModerateContent      Action = "content.moderate"
)

// KnownActions enumerates every grantable action.
var KnownActions = []Action{
	ActionValidateOrganization,
	ActionSuspendOrganization,
	ActionSuspendUser,
	ActionRestoreUser,
	ActionManageAdmins,
	ActionManagePermissions,
	ActionViewAudit,
	ActionModerateContent,
}

// KnownAction reports whether a is part of the catalog.
func KnownAction(a Action) bool {
	for _, known := range KnownActions {
		if a == known {
			return true
		}
	}
	return false
}

// RoutePermissions statically maps administrative route identifiers to the
// actions that unlock them. Any one listed action suffices.
var RoutePermissions = map[string][]Action{
	"admin.organizations.validate": {ActionValidateOrganization},
	"admin.organizations.suspend":  {ActionSuspendOrganization},
	"admin.users.suspend":          {ActionSuspendUser},
	"admin.users.restore":          {ActionSuspendUser, ActionRestoreUser},
	"admin.admins.manage":          {ActionManageAdmins},
	"admin.grants.manage":          {ActionManageAdmins, ActionManagePermissions},
	"admin.audit.view":             {ActionViewAudit},
	"admin.content.moderate":       {ActionModerateContent},
}
