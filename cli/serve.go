package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flowpad/flowpad/config"
	"github.com/flowpad/flowpad/daemon"
	"github.com/flowpad/flowpad/server"
	"github.com/flowpad/flowpad/store"
)

const (
	backgroundStartTimeout = 15 * time.Second
	backgroundStopTimeout  = 10 * time.Second
)

var (
	serveListen     string
	serveBackground bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the flowchart REST API",
	Long: `Serve the flowchart REST API from the configured store.

Backends:
  gob       a single file under .flowpad/ (default)
  postgres  a flowcharts table, created on first start
  redis     one key per flowchart plus a sorted index

Routes (under /api):
  GET    /flowcharts/                     list
  POST   /flowcharts/                     create
  GET    /flowcharts/<id>/                fetch
  PUT    /flowcharts/<id>/                replace title and/or data
  PATCH  /flowcharts/<id>/                same as PUT
  DELETE /flowcharts/<id>/                delete
  GET    /flowcharts/<id>/validate_graph/
  GET    /flowcharts/<id>/outgoing_edges/?node_id=<node>
  GET    /flowcharts/<id>/connected_nodes/?node_id=<node>

With --background the server detaches and logs to flowpad-serve.log in the
project's .flowpad directory. Use 'flowpad serve status' and
'flowpad serve stop' to manage it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a background server is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runDir, err := serveRunDir()
		if err != nil {
			return err
		}
		return printServeStatus(cmd.OutOrStdout(), runDir)
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runDir, err := serveRunDir()
		if err != nil {
			return err
		}
		return stopBackgroundServer(cmd.OutOrStdout(), runDir)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Address to listen on (default from config, localhost:8000)")
	serveCmd.Flags().BoolVarP(&serveBackground, "background", "d", false, "Run the server in the background")
	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
}

// serveRunDir holds the background server's pid, ready and log files.
func serveRunDir() (string, error) {
	if projectRoot != "" {
		return config.GetConfigDir(projectRoot), nil
	}
	return daemon.GetDefaultRunDir()
}

func runServe(cmd *cobra.Command, args []string) error {
	runDir, err := serveRunDir()
	if err != nil {
		return err
	}

	addr := cfg.Server.Listen
	if serveListen != "" {
		addr = serveListen
	}

	if serveBackground {
		return startBackgroundServer(cmd.OutOrStdout(), runDir, addr)
	}
	if os.Getenv(daemon.BackgroundEnv) == "1" {
		return runBackgroundChild(cmd.Context(), runDir, addr)
	}
	return serveAPI(cmd.Context(), addr, nil)
}

func serveAPI(ctx context.Context, addr string, ready func(addr string)) error {
	st, err := store.New(ctx, cfg.Server.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()

	log.Info().Str("backend", cfg.Server.Store.Backend).Msg("store ready")
	opts := []server.Option{server.WithLogger(log)}
	if ready != nil {
		opts = append(opts, server.WithReadyHook(ready))
	}
	return server.New(st, opts...).ListenAndServe(ctx, addr)
}

func startBackgroundServer(w io.Writer, runDir, addr string) error {
	if pid, err := daemon.GetRunningPID(runDir); err != nil {
		return err
	} else if pid > 0 {
		return fmt.Errorf("a background server is already running (PID %d)", pid)
	}

	args := []string{"serve", "--listen", addr}
	if apiURLFlag != "" {
		args = append(args, "--api-url", apiURLFlag)
	}
	if logLevelFlag != "" {
		args = append(args, "--log-level", logLevelFlag)
	}

	pid, exitCh, err := daemon.SpawnBackground(runDir, args)
	if err != nil {
		return err
	}
	if err := daemon.WaitReady(runDir, exitCh, backgroundStartTimeout); err != nil {
		return err
	}

	fmt.Fprintf(w, "flowpad server started in background (PID %d)\n", pid)
	fmt.Fprintf(w, "  Listening: %s\n", daemon.ReadyAddr(runDir))
	fmt.Fprintf(w, "  Logs:      %s\n", daemon.LogPath(runDir))
	return nil
}

// runBackgroundChild is the detached side of --background: it claims the
// run directory, serves, and cleans up on the way out.
func runBackgroundChild(ctx context.Context, runDir, addr string) error {
	lock, err := daemon.WritePIDFile(runDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := daemon.RemovePIDFile(runDir); err != nil {
			log.Warn().Err(err).Msg("failed to remove PID file")
		}
		lock.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-daemon.StopChannel(runDir):
			log.Info().Msg("stop requested")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return serveAPI(gctx, addr, func(bound string) {
			if err := daemon.WriteReadyFile(runDir, bound); err != nil {
				log.Warn().Err(err).Msg("failed to write ready file")
			}
		})
	})

	return g.Wait()
}

func printServeStatus(w io.Writer, runDir string) error {
	pid, err := daemon.GetRunningPID(runDir)
	if err != nil {
		return err
	}
	if pid == 0 {
		fmt.Fprintln(w, "No background server is running.")
		return nil
	}

	fmt.Fprintf(w, "Background server running (PID %d)\n", pid)
	if addr := daemon.ReadyAddr(runDir); addr != "" {
		fmt.Fprintf(w, "  Listening: %s\n", addr)
	} else {
		fmt.Fprintln(w, "  Starting up")
	}
	fmt.Fprintf(w, "  Logs:      %s\n", daemon.LogPath(runDir))
	return nil
}

func stopBackgroundServer(w io.Writer, runDir string) error {
	pid, err := daemon.GetRunningPID(runDir)
	if err != nil {
		return err
	}
	if pid == 0 {
		fmt.Fprintln(w, "No background server is running.")
		return nil
	}

	if err := daemon.StopProcess(runDir, pid); err != nil {
		return err
	}

	deadline := time.Now().Add(backgroundStopTimeout)
	for daemon.IsProcessRunning(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("background server (PID %d) did not stop within %s", pid, backgroundStopTimeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
	_ = daemon.RemovePIDFile(runDir)

	fmt.Fprintf(w, "Stopped background server (PID %d)\n", pid)
	return nil
}
