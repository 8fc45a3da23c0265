package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/config"
	"github.com/Othello1111/edx-platform/internal/enrollments"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

// app is the runtime wired from a config file.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	blocks  *blockstore.Store
	enroll  *enrollments.Store
	runtime *runtime.Runtime
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.blocks, err = blockstore.Open(cfg.BlockstoreDB)
	if err != nil {
		return nil, fmt.Errorf("open blockstore: %w", err)
	}

	types, err := blocktype.Builtin()
	if err != nil {
		return nil, fmt.Errorf("builtin block types: %w", err)
	}
	if cfg.BlockTypesDir != "" {
		if err := types.LoadDir(cfg.BlockTypesDir); err != nil {
			return nil, fmt.Errorf("block types %s: %w", cfg.BlockTypesDir, err)
		}
	}

	cached := blockstore.NewCached(a.blocks)
	fields := fielddata.New(cached,
		fielddata.WithMaxDefinitions(cfg.MaxDefinitionsLoaded),
		fielddata.WithLogger(logger))
	a.runtime = runtime.New(cached, fields, types,
		runtime.WithWriter(a.blocks),
		runtime.WithLogger(logger))

	for _, c := range cfg.Contexts {
		lc, err := a.bundleContext(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("context %q: %w", c.Key, err)
		}
		a.runtime.AddContext(c.Key, lc)
	}

	enrollOpts := []enrollments.Option{enrollments.WithLogger(logger)}
	if cfg.ReadReplicaDB != "" {
		enrollOpts = append(enrollOpts, enrollments.WithReadReplica(cfg.ReadReplicaDB))
	}
	a.enroll, err = enrollments.Open(cfg.EnrollmentsDB, enrollOpts...)
	if err != nil {
		return nil, fmt.Errorf("open enrollments: %w", err)
	}
	return a, nil
}

// bundleContext resolves a configured context to a bundle revision. A
// context with neither draft nor version follows the latest version at
// startup.
func (a *app) bundleContext(ctx context.Context, c config.Context) (*runtime.BundleContext, error) {
	b, err := a.blocks.GetBundleBySlug(ctx, c.Bundle)
	if err != nil {
		return nil, err
	}

	var rev blockstore.Revision
	switch {
	case c.Draft != "":
		rev.DraftName = c.Draft
	case c.Version > 0:
		rev.Version = c.Version
	case b.LatestVersion == 0:
		return nil, fmt.Errorf("bundle %q has no committed version", c.Bundle)
	default:
		rev.Version = b.LatestVersion
	}

	a.logger.Info("learning context registered",
		"key", c.Key,
		"bundle", c.Bundle,
		"revision", rev.String())
	return runtime.NewBundleContext(c.Key, b.UUID, rev,
		runtime.WithPublic(c.Public),
		runtime.WithEditors(c.Editors...),
		runtime.WithViewers(c.Viewers...)), nil
}

// user resolves a platform user ID. Zero is anonymous.
func (a *app) user(ctx context.Context, id int64) (runtime.User, error) {
	if id == 0 {
		return runtime.Anonymous, nil
	}
	u, err := a.enroll.UserByID(ctx, id)
	if err != nil {
		return runtime.User{}, err
	}
	return runtime.User{ID: u.ID, Username: u.Username}, nil
}

func (a *app) Close() error {
	var errs []error
	if a.enroll != nil {
		errs = append(errs, a.enroll.Close())
	}
	if a.blocks != nil {
		errs = append(errs, a.blocks.Close())
	}
	return errors.Join(errs...)
}
