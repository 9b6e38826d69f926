package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warp/lending-engine/api"
	"github.com/warp/lending-engine/config"
	"github.com/warp/lending-engine/identity"
	"github.com/warp/lending-engine/lending"
	"github.com/warp/lending-engine/lending/store"
	"github.com/warp/lending-engine/store/jsonfile"
	"github.com/warp/lending-engine/store/sqlite"
)

// backend is an opened library: the engine, its state, and the storage
// behind them.
type backend struct {
	engine  *lending.Engine
	state   *lending.State
	history api.HistorySource // sqlite only
	sqlite  *sqlite.Store     // sqlite only
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackend builds the gateway for cfg.Storage.Driver and loads the last
// snapshot.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	var gw lending.Gateway
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		gw = store.NewMemory()
	case config.DriverJSONFile:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		gw = jsonfile.New(cfg.Storage.Path, jsonfile.WithIndent())
	case config.DriverSQLite:
		if cfg.Storage.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		s, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		b.sqlite, b.history = s, sqliteHistory{s}
		b.closers = append(b.closers, s.Close)
		gw = s
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	eng, err := lending.NewEngine(gw, lending.WithPolicy(cfg.Policy()))
	if err != nil {
		b.Close()
		return nil, err
	}

	var validate lending.IDValidator
	if cfg.Lending.ValidateNationalIDs {
		validate = identity.Valid
	}
	st, err := eng.Open(ctx, validate)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.engine, b.state = eng, st
	return b, nil
}

// sqliteHistory serves the api history view from the sqlite revisions.
type sqliteHistory struct{ store *sqlite.Store }

func (h sqliteHistory) History(ctx context.Context, limit int) ([]api.RevisionDTO, error) {
	revs, err := h.store.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]api.RevisionDTO, 0, len(revs))
	for _, r := range revs {
		out = append(out, api.RevisionDTO{
			Seq:           r.Seq,
			Revision:      r.Revision,
			TakenAt:       r.TakenAt,
			Resources:     r.Resources,
			Patrons:       r.Patrons,
			Loans:         r.Loans,
			Consultations: r.Consultations,
			Bytes:         r.Bytes,
		})
	}
	return out, nil
}
