// Opaque identities for the actors the moderation engine records.
//
// The engine never interprets the contents of an ID: authentication and format validation happen before a principal reaches it.
package principal

import "strings"

type ID string

const (
	// actor recorded on automatic transitions (auto-hide, suspension expiry)
	System ID = "system"
	// actor recorded on moderator content actions; the individual moderator goes in ModeratorID
	Admin ID = "admin"
)

func (id ID) String() string {
	return string(id)
}

// true if the ID is non-blank
func (id ID) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}
