package permissions

// Flags carries the capability bits derived for a caller on one resource.
type Flags struct {
	CanEdit  bool `json:"canEdit"`
	CanShare bool `json:"canShare"`
	IsOwner  bool `json:"isOwner"`
}

// Derive folds ownership and the caller's best applicable grant into
// capability flags. The owner implicitly holds FULL and never needs a grant
// row; for everyone else WRITE or better unlocks editing and only FULL
// unlocks sharing management.
func Derive(isOwner bool, grant *Permission) Flags {
	if isOwner {
		return Flags{CanEdit: true, CanShare: true, IsOwner: true}
	}

	flags := Flags{}
	if grant != nil {
		flags.CanEdit = grant.AtLeast(PermissionWrite)
		flags.CanShare = grant.AtLeast(PermissionFull)
	}
	return flags
}

// Effective resolves the permission level applicable to callerID on a
// resource owned by ownerID, given the caller's personal grant and the
// resource's wildcard grant (either may be nil). The owner is always FULL.
// A personal grant always takes precedence over the wildcard grant, even
// when the wildcard grants a higher level.
func Effective(ownerID, callerID string, personal, wildcard *Permission) *Permission {
	if callerID != "" && callerID == ownerID {
		return PermissionFull.Ptr()
	}
	if personal != nil {
		return personal
	}
	return wildcard
}
