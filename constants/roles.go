package constants

// Workshop roles
const (
	RoleAdmin             = "Admin"
	RoleWorkshopManager   = "Workshop Manager"
	RoleSecurityGuard     = "Security Guard"
	RoleActiveReception   = "Active Reception Technician"
	RoleServiceAdvisor    = "Service Advisor"
	RoleJobController     = "Job Controller"
	RoleBayTechnician     = "Bay Technician"
	RoleFinalInspection   = "Final Inspection Technician"
	RoleDiagnosisEngineer = "Diagnosis Engineer"
	RoleWashing           = "Washing"
	RolePartsTeam         = "Parts Team"
)

// AllowedRoles lists every role a user may register with.
var AllowedRoles = []string{
	RoleAdmin,
	RoleWorkshopManager,
	RoleSecurityGuard,
	RoleActiveReception,
	RoleServiceAdvisor,
	RoleJobController,
	RoleBayTechnician,
	RoleFinalInspection,
	RoleDiagnosisEngineer,
	RoleWashing,
	RolePartsTeam,
}

// IsAllowedRole reports whether the role is one of the workshop roles.
func IsAllowedRole(role string) bool {
	for _, r := range AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}
