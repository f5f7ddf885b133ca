package model

// Capability names carried in the caller's token claims. Enforcement of who
// holds which capability is the auth service's concern; this core only gates
// on their presence.
const (
	CapRejudge        = "rejudge"
	CapRejudgeLot     = "rejudge-lot"
	CapEditOwnProblem = "edit-own-problem"
	CapEditAllProblem = "edit-all-problem"
)

// Caller identifies who is driving a batch operation and what they may do.
type Caller struct {
	ProfileID    int64
	Capabilities map[string]struct{}
}

// NewCaller builds a Caller from a capability list.
func NewCaller(profileID int64, capabilities ...string) Caller {
	caps := make(map[string]struct{}, len(capabilities))
	for _, capability := range capabilities {
		caps[capability] = struct{}{}
	}
	return Caller{ProfileID: profileID, Capabilities: caps}
}

// Has reports whether the caller holds the given capability.
func (c Caller) Has(capability string) bool {
	_, ok := c.Capabilities[capability]
	return ok
}
