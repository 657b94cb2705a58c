package rbac

// registry is the role to capability table. It is built once at package init
// and never mutated; CapabilitiesFor hands out copies.
var registry = map[Role]CapabilitySet{
	RoleStudent: NewCapabilitySet(
		CapAssignmentReadOwn,
		CapDeclarationWrite,
		CapDeclarationReadOwn,
		CapDashboardReadOwn,
		CapSharingManage,
		CapDataExportOwn,
		CapGuidanceRead,
	),
	RoleInstructor: NewCapabilitySet(
		CapAssignmentReadCourse,
		CapGuidanceWrite,
		CapGuidanceRead,
		CapDashboardReadCourseAgg,
		CapDeclarationReadShared,
	),
	RoleHeadOfFaculty: NewCapabilitySet(
		CapDashboardReadFacultyAgg,
	),
	RoleAdmin: NewCapabilitySet(
		CapPolicyWrite,
		CapToolsWrite,
		CapPrivacyNoticeWrite,
	),
}

// CapabilitiesFor returns the capabilities granted to role. ok is false for a
// role outside the fixed set, which is a programming error upstream.
func CapabilitiesFor(role Role) (CapabilitySet, bool) {
	caps, ok := registry[role]
	if !ok {
		return CapabilitySet{}, false
	}
	out := make(CapabilitySet, len(caps))
	for c := range caps {
		out[c] = struct{}{}
	}
	return out, true
}

// Roles lists every supported role.
func Roles() []Role {
	return []Role{RoleStudent, RoleInstructor, RoleHeadOfFaculty, RoleAdmin}
}

// AllCapabilities lists every capability token known to the registry.
func AllCapabilities() []Capability {
	return []Capability{
		CapAssignmentReadOwn,
		CapAssignmentReadCourse,
		CapDeclarationWrite,
		CapDeclarationReadOwn,
		CapDeclarationReadShared,
		CapDashboardReadOwn,
		CapDashboardReadCourseAgg,
		CapDashboardReadFacultyAgg,
		CapSharingManage,
		CapDataExportOwn,
		CapGuidanceRead,
		CapGuidanceWrite,
		CapPolicyWrite,
		CapToolsWrite,
		CapPrivacyNoticeWrite,
	}
}
