package persistence

import "context"

// Mode selects which backend(s) a DualAdapter writes to.
type Mode int

const (
	// ModeLocalOnly writes only to the local adapter.
	ModeLocalOnly Mode = iota
	// ModeRemoteOnly writes only to the remote adapter.
	ModeRemoteOnly
	// ModeDual writes to both; remote failure downgrades to a warning.
	ModeDual
)

// DualAdapter composes a required local adapter with an optional remote
// one, per spec §4.10: remote-write failure in any mode falls back to the
// local write and never surfaces as an error from Save.
type DualAdapter struct {
	local  Adapter
	remote Adapter
	mode   Mode

	// onRemoteError, if set, is called with remote-write failures that
	// were downgraded to a warning rather than propagated.
	onRemoteError func(error)
}

var _ Adapter = (*DualAdapter)(nil)

// NewDualAdapter builds a DualAdapter. remote may be nil, in which case
// mode is forced to ModeLocalOnly regardless of the requested mode.
func NewDualAdapter(local, remote Adapter, mode Mode, onRemoteError func(error)) *DualAdapter {
	if remote == nil {
		mode = ModeLocalOnly
	}
	return &DualAdapter{local: local, remote: remote, mode: mode, onRemoteError: onRemoteError}
}

// Save writes per mode. In ModeDual and ModeRemoteOnly, a remote failure
// never propagates — it is reported via onRemoteError and the local write
// (if not already attempted) proceeds so DocumentSaved is always emitted.
func (d *DualAdapter) Save(ctx context.Context, doc Document) error {
	switch d.mode {
	case ModeRemoteOnly:
		if err := d.remote.Save(ctx, doc); err != nil {
			d.reportRemoteError(err)
			return d.local.Save(ctx, doc)
		}
		return nil
	case ModeDual:
		if err := d.remote.Save(ctx, doc); err != nil {
			d.reportRemoteError(err)
		}
		return d.local.Save(ctx, doc)
	default:
		return d.local.Save(ctx, doc)
	}
}

// Exists consults the remote store when enabled, else the local index.
func (d *DualAdapter) Exists(ctx context.Context, qParam string) (bool, error) {
	if d.mode != ModeLocalOnly && d.remote != nil {
		return d.remote.Exists(ctx, qParam)
	}
	return d.local.Exists(ctx, qParam)
}

// SaveChunks mirrors Save's fallback behavior.
func (d *DualAdapter) SaveChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error {
	switch d.mode {
	case ModeRemoteOnly:
		if err := d.remote.SaveChunks(ctx, documentID, chunks); err != nil {
			d.reportRemoteError(err)
			return d.local.SaveChunks(ctx, documentID, chunks)
		}
		return nil
	case ModeDual:
		if err := d.remote.SaveChunks(ctx, documentID, chunks); err != nil {
			d.reportRemoteError(err)
		}
		return d.local.SaveChunks(ctx, documentID, chunks)
	default:
		return d.local.SaveChunks(ctx, documentID, chunks)
	}
}

func (d *DualAdapter) reportRemoteError(err error) {
	if d.onRemoteError != nil {
		d.onRemoteError(err)
	}
}
