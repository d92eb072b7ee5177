package domain

// ProductPolicy holds per-product exceptions to the exchange rules.
type ProductPolicy struct {
	// AllowUnregisteredShare exempts products whose documents were finalized by an external
	// process from the Registered-state check on send.
	AllowUnregisteredShare bool
}

type PolicyTable map[string]ProductPolicy

func NewPolicyTable(unregisteredShareProducts []string) PolicyTable {
	table := make(PolicyTable, len(unregisteredShareProducts))
	for _, productID := range unregisteredShareProducts {
		if productID == "" {
			continue
		}
		policy := table[productID]
		policy.AllowUnregisteredShare = true
		table[productID] = policy
	}
	return table
}

func (t PolicyTable) For(productID string) ProductPolicy {
	return t[productID]
}
