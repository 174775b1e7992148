package types

import (
	"regexp"
)

// Identifier rules shared by users, projects, and stories: 1-50 characters,
// alphanumeric plus underscore and hyphen. The same rules apply across the
// REST backend so identifiers survive round trips unchanged.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// IsValidUserID reports whether id is an acceptable user identifier.
func IsValidUserID(id string) bool {
	return identifierPattern.MatchString(id)
}

// IsValidProjectID reports whether id is an acceptable project identifier.
func IsValidProjectID(id string) bool {
	return identifierPattern.MatchString(id)
}

// IsValidStoryID reports whether id is an acceptable story identifier.
func IsValidStoryID(id string) bool {
	return identifierPattern.MatchString(id)
}

// IsValidRole reports whether role is one of the recognized project roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleContributor, RoleViewer:
		return true
	}
	return false
}
