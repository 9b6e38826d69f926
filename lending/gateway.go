/*
gateway.go - Persistence boundary for the lending engine

PURPOSE:
  The engine never touches a file or database. After every successful
  mutation it hands a whole-library Snapshot to a Gateway, and at startup
  it asks the Gateway for the last one.

CONTRACT:
  - Save replaces the stored state with snap. It is all-or-nothing: a
    failed Save leaves the previously saved snapshot readable.
  - Load returns the last saved snapshot, or ErrSnapshotNotFound when
    nothing was ever saved. A document that cannot be decoded is reported
    as ErrCorruptSnapshot.
  - A Gateway that can set a stored document aside implements
    Quarantiner. Open calls it when a snapshot decodes but fails Verify,
    so the next Save does not overwrite the evidence.
  - Implementations must not retain references into snap after Save
    returns.

IMPLEMENTATIONS:
  - lending/store/memory.go: in-process, for tests and demos
  - store/jsonfile:          one JSON document on disk
  - store/sqlite:            append-only snapshot history

SEE ALSO:
  - snapshot.go: the document
  - engine.go:   the only caller
*/
package lending

import "context"

type Gateway interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// Quarantiner moves the current stored document out of the way and
// returns where it went.
type Quarantiner interface {
	Quarantine(ctx context.Context) (string, error)
}
