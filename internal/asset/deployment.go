package asset

// NoDeployment is the sentinel deployment ID meaning "no deployment has
// ever been active", mirroring the original's id == -1 convention.
const NoDeployment = -1

// Deployment is an immutable manifest: a script asset plus every asset
// it (transitively) depends on, tagged with the etag the control plane
// returned it under. Modules is a separate top-level list of assets the
// manifest wants materialised alongside the script (e.g. a model the
// script does not itself reference as a graph child but that the device
// should still prefetch) -- distinct from Script.Children, which are the
// script's own declared dependencies.
type Deployment struct {
	ID          int64
	ETag        string
	Script      *Asset
	Modules     []*Asset
	ForceUpdate bool
}

// IsAbsent reports whether d represents "no deployment", the state a
// freshly provisioned device starts in before it has ever synced one.
func (d *Deployment) IsAbsent() bool {
	return d == nil || d.ID == NoDeployment
}

// Equal reports whether two deployments refer to the same manifest
// revision. Two absent deployments are equal to each other.
func (d *Deployment) Equal(other *Deployment) bool {
	if d.IsAbsent() && other.IsAbsent() {
		return true
	}
	if d.IsAbsent() != other.IsAbsent() {
		return false
	}
	return d.ID == other.ID
}
