package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/folio/portfolio/feed"
	"github.com/folio/portfolio/store"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the comments section as HTML",
		Long:  "Fetch every comment once and write the escaped HTML comments section to stdout or --out.",
		Args:  cobra.NoArgs,
		RunE:  runSnapshot,
	}
	cmd.Flags().StringP("out", "o", "", "write to this file instead of stdout")
	return cmd
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")

	view := feed.NewHTMLView()
	fc := newFeedController(cfg, view)
	err = runOnce(cmd.Context(), func(ctx context.Context) error {
		return fetchAll(ctx, fc, view, cfg.CommentsPageLimit)
	})
	if err != nil {
		return fmt.Errorf("fetch comments: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return view.Render(w)
}

// fetchAll polls until a page comes back shorter than the server's page size.
func fetchAll(ctx context.Context, fc *feed.Controller, view *feed.HTMLView, limit int) error {
	if limit <= 0 {
		limit = feed.DefaultLimit
	}
	limit = store.ClampLimit(limit)
	for {
		before := len(view.Comments())
		if err := fc.Poll(ctx); err != nil {
			return err
		}
		if len(view.Comments())-before < limit {
			return nil
		}
	}
}
