package agent

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is the behavioral category under test.
type Role string

const (
	RolePrey     Role = "prey"
	RolePredator Role = "predator"
)

// Roles lists every role in test order.
var Roles = []Role{RolePrey, RolePredator}

// adversaryMarker identifies predator participants in environment ids.
const adversaryMarker = "adversary"

// ParseRole parses a role name, ignoring case and surrounding space.
func ParseRole(s string) (Role, error) {
	folded := Role(cases.Fold().String(strings.TrimSpace(s)))
	switch folded {
	case RolePrey, RolePredator:
		return folded, nil
	}
	return "", fmt.Errorf("unknown role %q: must be one of %v", s, Roles)
}

// IsPredatorID reports whether a participant id names a predator.
func IsPredatorID(participantID string) bool {
	return strings.Contains(participantID, adversaryMarker)
}

// Controls reports whether participants with this id are driven by the agent
// under test when testing role r.
func (r Role) Controls(participantID string) bool {
	switch r {
	case RolePredator:
		return IsPredatorID(participantID)
	case RolePrey:
		return !IsPredatorID(participantID)
	}
	return false
}

// Title returns the role name with its first letter upper-cased ("Prey").
func (r Role) Title() string {
	return cases.Title(language.English).String(string(r))
}

// Upper returns the role name in upper case ("PREY").
func (r Role) Upper() string {
	return cases.Upper(language.English).String(string(r))
}

func (r Role) String() string {
	return string(r)
}
