package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flowpad/flowpad/editor"
	"github.com/flowpad/flowpad/seed"
	"github.com/flowpad/flowpad/watcher"
)

var (
	pushWatch      bool
	pushDebounceMs int
)

var pushCmd = &cobra.Command{
	Use:   "push <id> <file>",
	Short: "Replace a flowchart's title and graph with the contents of a file",
	Long: `Replace a flowchart's title and graph with the contents of an .hcl or .json
seed file (see 'flowpad create --help' for the format).

With --watch, the file is pushed again every time it changes, so a flowchart
can be edited in any text editor and kept in sync.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		out := cmd.OutOrStdout()
		if !pushWatch {
			return pushFile(cmd.Context(), c, out, args[0], args[1])
		}
		return watchAndPush(cmd.Context(), c, out, args[0], args[1], time.Duration(pushDebounceMs)*time.Millisecond, log)
	},
}

func init() {
	pushCmd.Flags().BoolVarP(&pushWatch, "watch", "w", false, "Keep running and push on every change")
	pushCmd.Flags().IntVar(&pushDebounceMs, "debounce-ms", 300, "Wait this long after the last change before pushing")
}

func pushFile(ctx context.Context, remote editor.Remote, w io.Writer, id, path string) error {
	doc, err := seed.Load(path)
	if err != nil {
		return err
	}
	f, err := remote.Save(ctx, id, doc)
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", path, err)
	}
	fmt.Fprintf(w, "Pushed %s to %q (%d nodes, %d edges)\n", path, f.Title, len(f.Data.Nodes), len(f.Data.Edges))
	return nil
}

// watchAndPush pushes path once, then again after every change until ctx is
// cancelled. A file that fails to parse is reported and skipped; the next
// change is pushed as usual.
func watchAndPush(ctx context.Context, remote editor.Remote, w io.Writer, id, path string, debounce time.Duration, log zerolog.Logger) error {
	if err := pushFile(ctx, remote, w, id, path); err != nil {
		return err
	}

	fw, err := watcher.New([]string{path}, debounce, log)
	if err != nil {
		return err
	}
	defer fw.Close()

	g, ctx := errgroup.WithContext(ctx)
	if err := fw.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "Watching %s (ctrl+c to stop)\n", path)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-fw.Events():
				switch ev.Type {
				case watcher.EventDelete, watcher.EventRename:
					log.Warn().Str("path", ev.Path).Str("event", ev.Type.String()).Msg("seed file went away, waiting for it to return")
					continue
				}
				if err := pushFile(ctx, remote, w, id, path); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Warn().Err(err).Str("path", path).Msg("push failed")
					fmt.Fprintf(w, "Warning: %v\n", err)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		return fw.Close()
	})

	return g.Wait()
}
