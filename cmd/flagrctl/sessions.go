package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rrens/flagr/internal/app"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/storage"
)

func newSessionsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored chat sessions",
	}

	var userID, output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Print every session stored for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output, "json", "yaml"); err != nil {
				return err
			}
			kv, err := openStorage(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer kv.Close()
			return exportSessions(cmd.Context(), cmd.OutOrStdout(), kv, userID, output)
		},
	}
	export.Flags().StringVarP(&userID, "user", "u", "", "User id")
	export.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	_ = export.MarkFlagRequired("user")

	users := &cobra.Command{
		Use:   "users",
		Short: "List users with stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := openStorage(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer kv.Close()
			return listUsers(cmd.Context(), cmd.OutOrStdout(), kv)
		},
	}

	cmd.AddCommand(export, users)
	return cmd
}

func openStorage(ctx context.Context, root *rootOptions) (storage.Store, error) {
	cfg, err := root.load()
	if err != nil {
		return nil, err
	}
	return app.OpenStorage(ctx, cfg.Storage)
}

func exportSessions(ctx context.Context, out io.Writer, kv storage.Store, userID, format string) error {
	data, err := kv.Get(ctx, storage.SessionsKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no sessions stored for user %s", userID)
	}
	if err != nil {
		return err
	}

	var sessions []domain.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("stored sessions for %s are corrupt: %w", userID, err)
	}

	if format == "yaml" {
		return writeYAML(out, sessions)
	}
	return writeJSON(out, sessions)
}

func listUsers(ctx context.Context, out io.Writer, kv storage.Store) error {
	prefix := storage.SessionsKey("")
	keys, err := storage.ListKeys(ctx, kv, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(out, strings.TrimPrefix(k, prefix))
	}
	return nil
}
