package asset

import "errors"

// ErrConfigInvalid is returned by ValidateGraph when an asset graph
// violates one of its invariants (a malformed RETRIEVER, duplicate
// children) -- a configuration defect the control plane served, not a
// transient fetch failure. Unresolved references and schema failures are
// reported by internal/controlplane with its own errors, not this one.
var ErrConfigInvalid = errors.New("asset: invalid deployment configuration")

// ErrRetrieverNotDownloadable is returned if a RETRIEVER asset is ever
// handed to a Downloader. A RETRIEVER resolves purely from its three
// children (embedding model, embedding store, document); constructing
// one that reaches a download step is a programmer error upstream, not
// a recoverable runtime condition.
var ErrRetrieverNotDownloadable = errors.New("asset: RETRIEVER assets are not downloadable")
