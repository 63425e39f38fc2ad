// Package asset models the dependency graph of artifacts a deployment
// needs materialised on disk before its script can run: scripts,
// models, documents, retrievers and the LLM handles scripts bind
// against. ScheduleDownload (download_job.go) and BuildLoadJob
// (load_job.go) resolve that graph through the scheduler; a Ledger keeps
// two jobs from downloading the same asset ID at the same time, but each
// ScheduleDownload call admits its own job.
//
// Grounded on asset_download_job.hpp/.cpp and asset_load_job.hpp/.cpp,
// and on the Asset/AssetId types they operate over.
package asset

import "fmt"

// Type enumerates the kinds of artifact a deployment manifest can
// reference.
type Type int

const (
	TypeScript Type = iota
	TypeModel
	TypeDocument
	TypeRetriever
	TypeLLM
)

func (t Type) String() string {
	switch t {
	case TypeScript:
		return "SCRIPT"
	case TypeModel:
		return "MODEL"
	case TypeDocument:
		return "DOCUMENT"
	case TypeRetriever:
		return "RETRIEVER"
	case TypeLLM:
		return "LLM"
	default:
		return fmt.Sprintf("TYPE(%d)", int(t))
	}
}

// ID identifies an asset by name, version and type. IDs order
// lexicographically by (Name, Version, Type) so a deployment's asset
// list can be deduplicated and diffed deterministically.
type ID struct {
	Name    string
	Version string
	Type    Type
}

// Less reports whether id sorts before other under the (Name, Version,
// Type) lexicographic order.
func (id ID) Less(other ID) bool {
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	if id.Version != other.Version {
		return id.Version < other.Version
	}
	return id.Type < other.Type
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%s:%s", id.Name, id.Version, id.Type)
}

// Location is the on-disk path an asset resolves to once materialised.
type Location struct {
	Path string
}

// Asset is one node in a deployment's dependency graph. Leaf assets
// (Children empty) resolve through a download; composite assets (e.g. a
// script that binds sub-models) resolve once every child has resolved.
type Asset struct {
	ID          ID
	WebLocation string
	Children    []*Asset
}

// IsLeaf reports whether the asset has no dependencies of its own.
func (a *Asset) IsLeaf() bool {
	return len(a.Children) == 0
}

// ValidateGraph walks a and every descendant, enforcing the invariants
// spec.md §3/§5.6 place on the dependency graph: a RETRIEVER must bind
// exactly three children (embedding model, embedding store, document)
// and a composite asset's children must be pairwise distinct by ID. A
// SCRIPT may have zero children, so it is otherwise unconstrained.
// Returns ErrConfigInvalid (wrapped with the offending asset) on the
// first violation found.
func ValidateGraph(a *Asset) error {
	return validateNode(a, make(map[ID]bool))
}

func validateNode(a *Asset, visited map[ID]bool) error {
	if visited[a.ID] {
		return nil // shared sub-graph (e.g. two RETRIEVERs binding the same document); already checked
	}
	visited[a.ID] = true

	if a.ID.Type == TypeRetriever && len(a.Children) != 3 {
		return fmt.Errorf("%w: RETRIEVER %s must have exactly 3 children, got %d", ErrConfigInvalid, a.ID, len(a.Children))
	}
	if len(a.Children) > 1 {
		seen := make(map[ID]bool, len(a.Children))
		for _, c := range a.Children {
			if seen[c.ID] {
				return fmt.Errorf("%w: asset %s has duplicate child %s", ErrConfigInvalid, a.ID, c.ID)
			}
			seen[c.ID] = true
		}
	}
	for _, c := range a.Children {
		if err := validateNode(c, visited); err != nil {
			return err
		}
	}
	return nil
}
