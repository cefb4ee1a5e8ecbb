// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

// Package roles authorizes role-management operations. The checker
// works on a per-request snapshot of a party's roles fetched inside
// the mutating transaction, never on the long-lived caches: role
// management needs linearizable data.
//
// Hierarchy is a hard ceiling independent of the permission bitset: a
// user may act on a role only if its position is strictly below the
// user's own highest held role. The party owner and administrators
// bypass the ceiling.
package roles

import (
	"github.com/samber/oops"

	"github.com/partyline/partyline/internal/models"
)

// MaxRoles bounds roles per party; position space is 0..255.
const MaxRoles = 256

// PartialRole is the slice of a role the checker needs.
type PartialRole struct {
	Permissions models.Permissions
	Position    uint8
}

// Status is the outcome of a check. Callers collapse every non-Allowed
// status except RoleLimit into a generic authorization failure before
// it reaches a client; the distinctions exist for logging and tests.
type Status int

const (
	// StatusAllowed permits the operation.
	StatusAllowed Status = iota
	// StatusNotFound means the target role does not exist in the
	// snapshot. Reported to clients identically to a denial.
	StatusNotFound
	// StatusNoPerms means the user lacks the management permission bit.
	StatusNoPerms
	// StatusAboveRank means the target position is at or above the
	// user's own highest role.
	StatusAboveRank
	// StatusInvalidAddition means the user tried to grant permissions
	// they do not hold.
	StatusInvalidAddition
	// StatusInvalidRemoval means the change would strip the user's own
	// last source of a permission.
	StatusInvalidRemoval
	// StatusProtected means the operation targets the immutable base
	// role (delete or reposition).
	StatusProtected
	// StatusRoleLimit means the party is at MaxRoles. Distinct from an
	// authorization failure and reported as such.
	StatusRoleLimit
)

func (s Status) String() string {
	switch s {
	case StatusAllowed:
		return "allowed"
	case StatusNotFound:
		return "not_found"
	case StatusNoPerms:
		return "no_perms"
	case StatusAboveRank:
		return "above_rank"
	case StatusInvalidAddition:
		return "invalid_addition"
	case StatusInvalidRemoval:
		return "invalid_removal"
	case StatusProtected:
		return "protected"
	case StatusRoleLimit:
		return "role_limit"
	default:
		return "unknown"
	}
}

// UserAction is a member-directed operation gated by hierarchy.
type UserAction int

const (
	ActionKick UserAction = iota
	ActionBan
	ActionRename
)

// ModifyRole describes a pending role change; nil fields are left
// untouched.
type ModifyRole struct {
	Permissions *models.Permissions
	Position    *uint8
	Delete      bool
}

// Checker evaluates role-management requests against one party's role
// snapshot. Immutable after construction.
type Checker struct {
	partyID models.PartyID
	ownerID models.UserID
	roles   map[models.RoleID]PartialRole
}

// NewChecker builds a checker from a role snapshot. The snapshot must
// contain the base role (id == party id); its absence is a data
// integrity error, not an authorization outcome.
func NewChecker(partyID models.PartyID, ownerID models.UserID, snapshot map[models.RoleID]PartialRole) (*Checker, error) {
	if _, ok := snapshot[partyID]; !ok {
		return nil, oops.In("roles").
			Code("MISSING_BASE_ROLE").
			With("party_id", partyID.String()).
			New("role snapshot missing base role")
	}

	roles := make(map[models.RoleID]PartialRole, len(snapshot))
	for id, r := range snapshot {
		roles[id] = r
	}
	return &Checker{partyID: partyID, ownerID: ownerID, roles: roles}, nil
}

// highest returns the user's aggregate permissions and the position of
// their highest held role. Every member implicitly holds the base role
// at position 0. Role ids missing from the snapshot contribute
// nothing; the snapshot is transaction-consistent, so a miss means the
// role was deleted concurrently.
func (c *Checker) highest(userRoles []models.RoleID) (models.Permissions, uint8) {
	base := c.roles[c.partyID]
	perms := base.Permissions
	top := base.Position

	for _, id := range userRoles {
		r, ok := c.roles[id]
		if !ok {
			continue
		}
		perms = perms.Union(r.Permissions)
		if r.Position > top {
			top = r.Position
		}
	}
	return perms.Normalize(), top
}

// bypasses reports whether the user skips the hierarchy ceiling.
func (c *Checker) bypasses(userID models.UserID, perms models.Permissions) bool {
	return userID == c.ownerID || perms.IsAdmin() || perms == models.AllPermissions
}

// CheckModify authorizes modifying or deleting the target role.
func (c *Checker) CheckModify(userID models.UserID, userRoles []models.RoleID, target models.RoleID, form ModifyRole) Status {
	targetRole, ok := c.roles[target]
	if !ok {
		return StatusNotFound
	}

	// The base role cannot be deleted or repositioned by anyone.
	if target == c.partyID && (form.Delete || form.Position != nil) {
		return StatusProtected
	}

	perms, top := c.highest(userRoles)
	bypass := c.bypasses(userID, perms)

	if !perms.Contains(models.PartyPerms(models.PermManageRoles)) && !bypass {
		return StatusNoPerms
	}

	if !bypass {
		// Equal-or-higher target is always denied, even with the
		// management bit.
		if targetRole.Position >= top {
			return StatusAboveRank
		}

		if form.Permissions != nil {
			if st := c.checkPermissionChange(userRoles, target, perms, *form.Permissions); st != StatusAllowed {
				return st
			}
		}

		if form.Position != nil && *form.Position >= top {
			// Cannot move a role to or above your own ceiling.
			return StatusAboveRank
		}
	}

	return StatusAllowed
}

// checkPermissionChange enforces that a user can only grant
// permissions they hold, and cannot remove their own last source of a
// permission by editing a role they themselves hold.
func (c *Checker) checkPermissionChange(userRoles []models.RoleID, target models.RoleID, userPerms, newPerms models.Permissions) Status {
	if !userPerms.Contains(newPerms) {
		return StatusInvalidAddition
	}

	held := target == c.partyID
	for _, id := range userRoles {
		if id == target {
			held = true
			break
		}
	}
	if !held {
		return StatusAllowed
	}

	removed := c.roles[target].Permissions.Difference(newPerms)
	if removed.IsEmpty() {
		return StatusAllowed
	}

	// Count how many of the user's roles carry the removed bits. If the
	// edited role is the only source, the edit would lock the user out.
	sources := 0
	if c.roles[c.partyID].Permissions.Contains(removed) {
		sources++
	}
	for _, id := range userRoles {
		if r, ok := c.roles[id]; ok && r.Permissions.Contains(removed) {
			sources++
			if sources >= 2 {
				break
			}
		}
	}
	if sources == 1 {
		return StatusInvalidRemoval
	}
	return StatusAllowed
}

// CheckCreate authorizes creating a role. currentCount is the party's
// role count including the base role.
func (c *Checker) CheckCreate(userID models.UserID, userRoles []models.RoleID, currentCount int) Status {
	perms, _ := c.highest(userRoles)

	if !perms.Contains(models.PartyPerms(models.PermManageRoles)) && !c.bypasses(userID, perms) {
		return StatusNoPerms
	}
	if currentCount >= MaxRoles {
		return StatusRoleLimit
	}
	return StatusAllowed
}

// CheckAssign authorizes granting or revoking the target role on a
// member. The base role is implicit on every member and can never be
// assigned or revoked directly.
func (c *Checker) CheckAssign(userID models.UserID, userRoles []models.RoleID, target models.RoleID) Status {
	targetRole, ok := c.roles[target]
	if !ok {
		return StatusNotFound
	}
	if target == c.partyID {
		return StatusProtected
	}

	perms, top := c.highest(userRoles)
	if c.bypasses(userID, perms) {
		return StatusAllowed
	}
	if !perms.Contains(models.PartyPerms(models.PermManageRoles)) {
		return StatusNoPerms
	}
	if targetRole.Position >= top {
		return StatusAboveRank
	}
	return StatusAllowed
}

// CheckUser authorizes a member-directed action (kick/ban/rename)
// against the target member's held roles. The actor must hold the
// matching permission bit and outrank the target's highest role.
func (c *Checker) CheckUser(userID models.UserID, userRoles, targetRoles []models.RoleID, action UserAction) Status {
	perms, top := c.highest(userRoles)
	if c.bypasses(userID, perms) {
		return StatusAllowed
	}

	var required models.Permissions
	switch action {
	case ActionKick:
		required = models.PartyPerms(models.PermKickMembers)
	case ActionBan:
		required = models.PartyPerms(models.PermBanMembers)
	case ActionRename:
		required = models.PartyPerms(models.PermManageNicknames)
	}

	if !perms.Contains(required) {
		return StatusNoPerms
	}

	_, targetTop := c.highest(targetRoles)
	if targetTop >= top {
		return StatusAboveRank
	}
	return StatusAllowed
}
