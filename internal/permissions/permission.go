package permissions

// Permission enumerates the share permission levels in ascending order of
// capability: READ < WRITE < FULL.
type Permission string

const (
	// PermissionRead allows viewing a shared resource.
	PermissionRead Permission = "READ"
	// PermissionWrite allows editing a shared resource.
	PermissionWrite Permission = "WRITE"
	// PermissionFull allows editing and managing the sharing of a resource.
	PermissionFull Permission = "FULL"
)

var permissionRanks = map[Permission]int{
	PermissionRead:  1,
	PermissionWrite: 2,
	PermissionFull:  3,
}

// Valid reports whether p is one of the known permission levels.
func (p Permission) Valid() bool {
	_, ok := permissionRanks[p]
	return ok
}

// Rank returns the ordering weight of the permission. Unknown values rank 0,
// below every valid level.
func (p Permission) Rank() int {
	return permissionRanks[p]
}

// AtLeast reports whether p grants at least the capability of min.
func (p Permission) AtLeast(min Permission) bool {
	return p.Rank() >= min.Rank() && p.Rank() > 0
}

// Ptr returns a pointer to p, convenient when populating optional grants.
func (p Permission) Ptr() *Permission {
	return &p
}
