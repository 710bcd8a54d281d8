package element

// Last-write-wins acceptance rule for a commit attempt. This is the
// single decision point for every durable write: version is the primary
// ordering signal, the client-supplied timestamp only discriminates
// colliding versions. A symmetric tie (equal version and timestamp)
// rejects the challenger.
//
// stored is nil when no state exists yet for the candidate's id; the
// first writer always wins.
func Resolve(candidate Element, stored *Element) bool {
	if stored == nil {
		return true
	}
	if candidate.Version != stored.Version {
		return candidate.Version > stored.Version
	}
	return candidate.UpdatedAt > stored.UpdatedAt
}
