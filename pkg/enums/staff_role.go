package enums

// StaffRole is the permission level of a POS user. Roles are ordered:
// admin can do everything a manager can, and a manager everything a cashier can.
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleManager StaffRole = "manager"
	StaffRoleCashier StaffRole = "cashier"
)

// staffRoles is ordered from least to most privileged.
var staffRoles = set[StaffRole]{StaffRoleCashier, StaffRoleManager, StaffRoleAdmin}

func (r StaffRole) String() string { return string(r) }

func (r StaffRole) IsValid() bool { return staffRoles.has(r) }

// AtLeast reports whether r grants every permission of floor. Unknown roles
// grant nothing.
func (r StaffRole) AtLeast(floor StaffRole) bool {
	have, want := indexOf(staffRoles, r), indexOf(staffRoles, floor)
	return have >= 0 && have >= want
}

func indexOf[T ~string](s set[T], v T) int {
	for i, c := range s {
		if c == v {
			return i
		}
	}
	return -1
}

func ParseStaffRole(value string) (StaffRole, error) {
	return staffRoles.parse("staff role", value)
}
