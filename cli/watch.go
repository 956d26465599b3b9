package cli

import (
	"bufio"
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/folio/portfolio/config"
	"github.com/folio/portfolio/feed"
	"github.com/folio/portfolio/utils"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the comment feed in the terminal",
		Long: "Print comments as they arrive, polling the API on the configured interval. " +
			"With --name, every line typed on stdin is posted as a comment under that name.",
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
	cmd.Flags().String("name", "", "post stdin lines under this name")
	cmd.Flags().String("email", "", "contact email sent with posted comments")
	return cmd
}

func newFeedController(cfg config.AppConfig, view feed.View, extra ...feed.Option) *feed.Controller {
	opts := []feed.Option{
		feed.WithInterval(cfg.CommentsPollInterval),
		feed.WithLimit(cfg.CommentsPageLimit),
		feed.WithLogger(utils.NewConsoleLogger(cfg.LogLevel)),
	}
	return feed.NewController(newAPIClient(cfg), view, append(opts, extra...)...)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The server's advertised interval wins over the local default.
	var opts []feed.Option
	if s, err := newAPIClient(cfg).Settings(ctx); err == nil {
		opts = append(opts, feed.WithInterval(s.PollInterval()), feed.WithLimit(s.PageLimit))
	}

	fc := newFeedController(cfg, feed.NewTerminalView(cmd.OutOrStdout(), false), opts...)
	fc.Start(ctx)
	defer fc.Stop()

	if name == "" {
		<-ctx.Done()
		return nil
	}

	// Lines are posted one at a time; the view reports each outcome.
	lines := make(chan string)
	go scanLines(ctx, cmd.InOrStdin(), lines)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			_ = fc.Submit(ctx, feed.Form{Name: name, Email: email, Message: line})
		}
	}
}

// scanLines sends every line of r to out until r ends or ctx is done.
func scanLines(ctx context.Context, r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

// runOnce is used by commands that need a single foreground call with
// interrupt handling.
func runOnce(ctx context.Context, fn func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx)
}
