package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/folio/portfolio/feed"
)

var errNotPosted = errors.New("comment not posted")

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   `post "message"`,
		Short: "Post a comment",
		Long:  "Post one comment through the comment API. The message is validated locally before it is sent.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPost,
	}
	cmd.Flags().String("name", "", "display name (required)")
	cmd.Flags().String("email", "", "contact email, never shown publicly")
	return cmd
}

func runPost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")

	fc := newFeedController(cfg, feed.NewTerminalView(cmd.OutOrStdout(), true))
	form := feed.Form{Name: name, Email: email, Message: strings.Join(args, " ")}

	// The view already printed the reason.
	if err := runOnce(cmd.Context(), func(ctx context.Context) error {
		return fc.Submit(ctx, form)
	}); err != nil {
		return errNotPosted
	}
	return nil
}
