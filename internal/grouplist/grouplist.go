// Package grouplist gates which groups the engine participates in.
package grouplist

// Mode selects how the configured group list is interpreted.
type Mode string

const (
	ModeBlacklist Mode = "blacklist" // listed groups are excluded
	ModeWhitelist Mode = "whitelist" // only listed groups are allowed
)

type Checker struct {
	mode   Mode
	groups map[string]struct{}
}

func New(mode string, groups []string) *Checker {
	set := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g != "" {
			set[g] = struct{}{}
		}
	}
	return &Checker{mode: Mode(mode), groups: set}
}

// Allowed reports whether the engine should process messages from groupID.
// Unknown modes fail closed.
func (c *Checker) Allowed(groupID string) bool {
	_, listed := c.groups[groupID]
	switch c.mode {
	case ModeBlacklist:
		return !listed
	case ModeWhitelist:
		return listed
	default:
		return false
	}
}
