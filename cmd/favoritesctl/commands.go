package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/apesoftware1/Memorial-sub001/internal"
	"github.com/apesoftware1/Memorial-sub001/internal/configs"
	"github.com/apesoftware1/Memorial-sub001/internal/constants"
	"github.com/apesoftware1/Memorial-sub001/internal/core/storage"
	"github.com/apesoftware1/Memorial-sub001/internal/core/usecase"
)

// storeOpener returns an initialized store of origin and a function that
// releases it.
type storeOpener func(ctx context.Context, origin, envPath string) (*usecase.FavoritesStore, func(), error)

type rootOptions struct {
	origin  string
	envPath string
}

func newRootCmd(out io.Writer, open storeOpener) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "favoritesctl",
		Short:         "Inspect and maintain the stored favorites of a browser origin",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.origin, "origin", constants.DefaultOrigin, "browser origin whose key space is used")
	root.PersistentFlags().StringVar(&opts.envPath, "env", "", "path to a .env file")

	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, store *usecase.FavoritesStore) error) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, release, err := open(ctx, opts.origin, opts.envPath)
		if err != nil {
			return err
		}
		defer release()
		return fn(ctx, store)
	}

	root.AddCommand(
		newListCmd(out, withStore),
		newInfoCmd(out, withStore),
		newRemoveCmd(out, withStore),
		newClearCmd(out, withStore),
		newRefreshCacheCmd(out, withStore),
	)
	return root
}

type storeRunner func(cmd *cobra.Command, fn func(ctx context.Context, store *usecase.FavoritesStore) error) error

func newListCmd(out io.Writer, withStore storeRunner) *cobra.Command {
	var (
		sortOrder string
		page      int
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the favorites list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sortOrder != "" && sortOrder != "asc" && sortOrder != "desc" {
				return fmt.Errorf("invalid --sort %q: use asc or desc", sortOrder)
			}
			return withStore(cmd, func(_ context.Context, store *usecase.FavoritesStore) error {
				items := store.State().Favorites
				if sortOrder != "" {
					items = store.GetSortedFavorites(sortOrder == "asc")
				}
				if cmd.Flags().Changed("page") || cmd.Flags().Changed("limit") {
					return writeJSON(out, usecase.Paginate(items, page, limit, constants.DefaultPageSize))
				}
				return writeJSON(out, items)
			})
		},
	}
	cmd.Flags().StringVar(&sortOrder, "sort", "", "sort by date added: asc or desc")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&limit, "limit", constants.DefaultPageSize, "items per page")
	return cmd
}

func newInfoCmd(out io.Writer, withStore storeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print storage usage of the origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *usecase.FavoritesStore) error {
				return writeJSON(out, store.GetStorageInfo(ctx))
			})
		},
	}
}

func newRemoveCmd(out io.Writer, withStore storeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *usecase.FavoritesStore) error {
				store.RemoveFavorite(ctx, args[0])
				return writeState(out, store)
			})
		},
	}
}

func newClearCmd(out io.Writer, withStore storeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every favorite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *usecase.FavoritesStore) error {
				store.ClearAllFavorites(ctx)
				return writeState(out, store)
			})
		},
	}
}

func newRefreshCacheCmd(out io.Writer, withStore storeRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-cache",
		Short: "Drop the cached copy of the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *usecase.FavoritesStore) error {
				store.RefreshCache(ctx)
				return writeState(out, store)
			})
		},
	}
}

// writeState fails when the last write could not be persisted.
func writeState(out io.Writer, store *usecase.FavoritesStore) error {
	state := store.State()
	if err := writeJSON(out, state); err != nil {
		return err
	}
	if state.Error != nil {
		return fmt.Errorf("%s", *state.Error)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// openBackendStore opens the configured backends and acts as a tab of its
// own, so running services see the changes as another tab's writes.
func openBackendStore(ctx context.Context, origin, envPath string) (*usecase.FavoritesStore, func(), error) {
	var envPaths []string
	if envPath != "" {
		envPaths = append(envPaths, envPath)
	}
	cfg, err := configs.LoadConfig(envPaths...)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}

	logger, fluentClient, err := internal.NewLogger(cfg, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	closeFluent := func() {
		if fluentClient != nil {
			fluentClient.Close()
		}
	}

	backends, err := internal.OpenBackends(ctx, cfg, logger)
	if err != nil {
		closeFluent()
		return nil, nil, err
	}

	kv, err := backends.Factory.Open(ctx, origin)
	if err != nil {
		backends.Close(logger)
		closeFluent()
		return nil, nil, err
	}

	tabID := "favoritesctl-" + uuid.NewString()
	storeConfig := internal.StoreTemplate(cfg)
	storeConfig.Origin = origin
	storeConfig.TabID = tabID

	store, err := usecase.NewFavoritesStore(storage.NewTabStorage(kv, backends.Bus, origin, tabID, logger), storeConfig, logger)
	if err != nil {
		backends.Close(logger)
		closeFluent()
		return nil, nil, err
	}
	store.Initialize(ctx)

	return store, func() {
		store.Close()
		backends.Close(logger)
		closeFluent()
	}, nil
}
