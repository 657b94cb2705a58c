package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aiusage/disclosure/internal/platform/httpx"
)

// Role is one of the fixed user roles. A user's role never changes after creation.
type Role string

// Supported roles.
const (
	RoleStudent       Role = "student"
	RoleInstructor    Role = "instructor"
	RoleHeadOfFaculty Role = "head_of_faculty"
	RoleAdmin         Role = "admin"
)

// ParseRole validates raw against the fixed role set.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := registry[role]; !ok {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return role, nil
}

// Capability names a permitted operation. The string values are part of the
// wire contract (audit entries, error messages) and must not be renamed.
type Capability string

// Capability tokens.
const (
	CapAssignmentReadOwn       Capability = "assignment:read:own"
	CapAssignmentReadCourse    Capability = "assignment:read:course"
	CapDeclarationWrite        Capability = "declaration:write"
	CapDeclarationReadOwn      Capability = "declaration:read:own"
	CapDeclarationReadShared   Capability = "declaration:read:shared"
	CapDashboardReadOwn        Capability = "dashboard:read:own"
	CapDashboardReadCourseAgg  Capability = "dashboard:read:course_aggregate"
	CapDashboardReadFacultyAgg Capability = "dashboard:read:faculty_aggregate"
	CapSharingManage           Capability = "sharing:manage"
	CapDataExportOwn           Capability = "data:export:own"
	CapGuidanceRead            Capability = "guidance:read"
	CapGuidanceWrite           Capability = "guidance:write"
	CapPolicyWrite             Capability = "policy:write"
	CapToolsWrite              Capability = "tools:write"
	CapPrivacyNoticeWrite      Capability = "privacy_notice:write"
)

// CapabilitySet is an unordered set of capabilities.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from caps.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Slice returns the capabilities sorted by token.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Principal describes the authenticated actor for a single request. It is
// never persisted.
type Principal struct {
	ID                string
	Role              Role
	Capabilities      CapabilitySet
	PrivacyAckVersion int
}

// NewPrincipal derives the capability set from role.
func NewPrincipal(id string, role Role, privacyAckVersion int) (*Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("rbac: principal id required: %w", httpx.ErrUnauthenticated)
	}
	caps, ok := CapabilitiesFor(role)
	if !ok {
		return nil, fmt.Errorf("rbac: unknown role %q", role)
	}
	return &Principal{
		ID:                id,
		Role:              role,
		Capabilities:      caps,
		PrivacyAckVersion: privacyAckVersion,
	}, nil
}
