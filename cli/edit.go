package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/flowpad/flowpad/autosave"
	"github.com/flowpad/flowpad/config"
	"github.com/flowpad/flowpad/editor"
	"github.com/flowpad/flowpad/logger"
	"github.com/flowpad/flowpad/manager"
)

var editNew bool

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Open a flowchart in the terminal editor",
	Long: `Open a flowchart in the terminal editor.

Changes are saved automatically on the configured interval, immediately on
ctrl+s, and once more when the editor exits. The save indicator in the header
shows Saving..., Saved or Error Saving.

Keys:
  a          add a node          t        cycle the node type
  tab        select next node    arrows   move the selected node
  c          connect from/to     x        delete the selected node
  e          edit the label      r        edit the title
  ctrl+s     save now            q        quit

The editor logs to .flowpad/flowpad.log.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().BoolVar(&editNew, "new", false, "Create a new flowchart and open it")
}

func runEdit(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !editNew {
		return errors.New("a flowchart id is required (or use --new)")
	}
	ctx := cmd.Context()

	fileLog, closer, err := logger.NewFile(cfg.Log, editLogPath())
	if err != nil {
		return err
	}
	defer closer.Close()

	m := manager.New(newClient(), fileLog)

	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		f, err := m.Create(ctx, "", nil)
		if err != nil {
			return err
		}
		id = f.ID
	}

	session, err := m.Open(ctx, id, editor.WithAutosave(autosaveOptions(cfg.Autosave)...))
	if err != nil {
		return err
	}

	p := tea.NewProgram(editor.NewModel(session), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	// The exit save runs even when the program was interrupted.
	if err := session.Close(context.WithoutCancel(ctx)); err != nil {
		reportExitSave(cmd.ErrOrStderr(), err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("editor failed: %w", runErr)
	}
	return nil
}

func autosaveOptions(c config.AutosaveConfig) []autosave.Option {
	return []autosave.Option{
		autosave.WithInterval(time.Duration(c.IntervalMs) * time.Millisecond),
		autosave.WithErrorCooldown(time.Duration(c.ErrorCooldownMs) * time.Millisecond),
		autosave.WithExitBudget(time.Duration(c.ExitBudgetMs) * time.Millisecond),
	}
}

// editLogPath keeps editor logs out of the terminal the UI draws on.
func editLogPath() string {
	if projectRoot != "" {
		return config.GetLogPath(projectRoot)
	}
	return filepath.Join(os.TempDir(), config.LogFileName)
}

func reportExitSave(w io.Writer, err error) {
	fmt.Fprintf(w, "Warning: final save did not complete: %v\n", err)
	fmt.Fprintln(w, "Changes made in the last few seconds may not be stored.")
}
