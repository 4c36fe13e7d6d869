package ml

import (
	"fmt"
	"sort"
)

// ActionCatalog maps an action identifier to its human-readable description.
type ActionCatalog map[int]string

// DefaultActionCatalog returns the built-in remediation actions.
func DefaultActionCatalog() ActionCatalog {
	return ActionCatalog{
		0: "No critical action required",
		1: "Block the source IP address",
		2: "Isolate the machine from the network",
		3: "Close the suspicious port/protocol",
		4: "Increase monitoring (IDS / SIEM / logs)",
		5: "Scan the machine (antivirus / EDR)",
	}
}

// Describe returns the catalog description, or a synthesized one for unlisted actions.
func (c ActionCatalog) Describe(actionID int) string {
	if desc, ok := c[actionID]; ok {
		return desc
	}
	return fmt.Sprintf("Action %d", actionID)
}

// IDs returns the catalog's action identifiers in ascending order.
func (c ActionCatalog) IDs() []int {
	ids := make([]int, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c ActionCatalog) clone() ActionCatalog {
	out := make(ActionCatalog, len(c))
	for id, desc := range c {
		out[id] = desc
	}
	return out
}
