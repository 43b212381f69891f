package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowpad/flowpad/config"
	"github.com/flowpad/flowpad/git"
)

var (
	initAPIURL         string
	initBackend        string
	initNonInteractive bool
	initInherit        bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize flowpad in the current directory",
	Long: `Initialize flowpad by creating a .flowpad directory with configuration.

This command will:
- Create .flowpad/config.yaml with default settings
- Prompt for the flowchart API URL
- Prompt for the storage backend used by 'flowpad serve' (GOB file, PostgreSQL or Redis)
- Add .flowpad/ to .gitignore when inside a git repository

In a linked git worktree whose main checkout is already initialized, the main
checkout's configuration can be reused instead.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initAPIURL, "api-url", "u", "", "Flowchart API base URL")
	initCmd.Flags().StringVarP(&initBackend, "backend", "b", "", "Storage backend for 'flowpad serve' (gob, postgres, or redis)")
	initCmd.Flags().BoolVar(&initNonInteractive, "yes", false, "Use defaults without prompting")
	initCmd.Flags().BoolVar(&initInherit, "inherit", false, "Reuse the configuration of the main git worktree")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	out := cmd.OutOrStdout()

	if config.Exists(cwd) {
		fmt.Fprintln(out, "flowpad is already initialized in this directory.")
		fmt.Fprintf(out, "Configuration: %s\n", config.GetConfigPath(cwd))
		return nil
	}

	// One buffered reader serves every prompt.
	var in io.Reader
	if !initNonInteractive {
		in = bufio.NewReader(cmd.InOrStdin())
	}

	newCfg := inheritedConfig(cmd.Context(), in, out, cwd)
	if newCfg == nil {
		newCfg, err = buildInitConfig(in, out, initAPIURL, initBackend)
		if err != nil {
			return err
		}
	}

	if err := newCfg.Save(cwd); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	if git.IsRepo(cmd.Context(), cwd) {
		config.EnsureGitignoreEntry(cwd, config.ConfigDir+"/")
	}

	fmt.Fprintf(out, "\nflowpad initialized in %s\n", cwd)
	fmt.Fprintf(out, "  API:     %s\n", newCfg.API.BaseURL)
	fmt.Fprintf(out, "  Backend: %s\n", newCfg.Server.Store.Backend)

	switch newCfg.Server.Store.Backend {
	case "postgres":
		fmt.Fprintln(out, "\nMake sure the DSN in .flowpad/config.yaml (or FLOWPAD_POSTGRES_DSN) points at a reachable database.")
	case "redis":
		fmt.Fprintln(out, "\nMake sure the URL in .flowpad/config.yaml (or FLOWPAD_REDIS_URL) points at a reachable Redis.")
	}
	fmt.Fprintln(out, "\nNext: run 'flowpad serve' to host the API locally, or 'flowpad list' against an existing one.")
	return nil
}

// inheritedConfig returns the main worktree's config when cwd is a linked
// worktree of an initialized checkout and the user agrees (or passed
// --inherit). It returns nil otherwise.
func inheritedConfig(ctx context.Context, in io.Reader, out io.Writer, cwd string) *config.Config {
	repo, err := git.Detect(ctx, cwd)
	if err != nil || !repo.IsWorktree || !config.Exists(repo.MainWorktree) {
		return nil
	}
	mainCfg, err := config.Load(repo.MainWorktree)
	if err != nil {
		fmt.Fprintf(out, "Warning: could not load main worktree config: %v\n", err)
		return nil
	}

	fmt.Fprintln(out, "\nGit worktree detected.")
	fmt.Fprintf(out, "  Main worktree: %s\n", repo.MainWorktree)
	fmt.Fprintf(out, "  API:           %s\n", mainCfg.API.BaseURL)
	fmt.Fprintf(out, "  Backend:       %s\n", mainCfg.Server.Store.Backend)

	inherit := initInherit
	if !inherit && in != nil {
		fmt.Fprint(out, "\nInherit configuration from main worktree? [Y/n]: ")
		input, _ := bufio.NewReader(in).ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))
		inherit = input == "" || input == "y" || input == "yes"
	}
	if !inherit {
		return nil
	}

	if mainCfg.Server.Store.Backend == "gob" {
		// The GOB file belongs to the main checkout; this worktree gets its own.
		mainCfg.Server.Store.GOBPath = ""
		fmt.Fprintln(out, "\nNote: the gob backend keeps a separate flowchart file per worktree.")
	}
	return mainCfg
}

// buildInitConfig returns the config init writes. Values given as flags win;
// anything else is asked for on in, or defaulted when in is nil.
func buildInitConfig(in io.Reader, out io.Writer, apiURL, backend string) (*config.Config, error) {
	newCfg := config.DefaultConfig()

	var reader *bufio.Reader
	if in != nil {
		reader = bufio.NewReader(in)
	}
	ask := func(prompt string) string {
		if reader == nil {
			return ""
		}
		fmt.Fprint(out, prompt)
		input, _ := reader.ReadString('\n')
		return strings.TrimSpace(input)
	}

	if apiURL == "" {
		apiURL = ask(fmt.Sprintf("Flowchart API URL [%s]: ", newCfg.API.BaseURL))
	}
	if apiURL != "" {
		newCfg.API.BaseURL = apiURL
	}

	if backend == "" && reader != nil {
		fmt.Fprintln(out, "\nSelect storage backend for 'flowpad serve':")
		fmt.Fprintln(out, "  1) gob (local file, recommended for a single user)")
		fmt.Fprintln(out, "  2) postgres (shared database)")
		fmt.Fprintln(out, "  3) redis (shared key-value store)")
		switch ask("Choice [1]: ") {
		case "2", "postgres":
			backend = "postgres"
		case "3", "redis":
			backend = "redis"
		default:
			backend = "gob"
		}
	}

	switch backend {
	case "", "gob":
		newCfg.Server.Store.Backend = "gob"
	case "postgres":
		newCfg.Server.Store.Backend = "postgres"
		dsn := ask("PostgreSQL DSN [postgres://localhost:5432/flowpad]: ")
		if dsn == "" {
			dsn = "postgres://localhost:5432/flowpad"
		}
		newCfg.Server.Store.Postgres.DSN = dsn
	case "redis":
		newCfg.Server.Store.Backend = "redis"
		url := ask("Redis URL [redis://localhost:6379/0]: ")
		if url == "" {
			url = "redis://localhost:6379/0"
		}
		newCfg.Server.Store.Redis.URL = url
		newCfg.Server.Store.Redis.Prefix = "flowpad"
	default:
		return nil, fmt.Errorf("unknown backend: %s (want gob, postgres, or redis)", backend)
	}

	return newCfg, nil
}
