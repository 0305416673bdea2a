package awsauth

import "github.com/yairfalse/kartta/types"

// AccountTargets maps requested account ids to collection targets. An id
// present in configured keeps its configured target (including an empty
// RoleARN for the caller's home account); any other id gets the conventional
// inventory role. No ids means the caller's own account.
func AccountTargets(ids []string, configured []types.AccountTarget, roleName string) []types.AccountTarget {
	if len(ids) == 0 {
		return nil
	}

	known := make(map[string]types.AccountTarget, len(configured))
	for _, target := range configured {
		known[target.AccountID] = target
	}

	targets := make([]types.AccountTarget, 0, len(ids))
	for _, id := range ids {
		if target, ok := known[id]; ok {
			targets = append(targets, target)
			continue
		}
		targets = append(targets, types.AccountTarget{
			AccountID: id,
			RoleARN:   RoleARN(id, roleName),
		})
	}
	return targets
}
