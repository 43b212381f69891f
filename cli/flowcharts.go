package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flowpad/flowpad/client"
	"github.com/flowpad/flowpad/graph"
	"github.com/flowpad/flowpad/manager"
	"github.com/flowpad/flowpad/mcp"
	"github.com/flowpad/flowpad/seed"
)

var (
	outputJSON bool
	outputTOON bool
	showHCL    bool
	createName string
	createFrom string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List flowcharts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := manager.New(newClient(), log)
		return runList(cmd.Context(), m, cmd.OutOrStdout(), pickFormat(outputJSON, outputTOON))
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a flowchart",
	Long: `Create a flowchart, empty or seeded from a file.

Seed files are either HCL:

  title = "Checkout"

  node "1" {
    type  = "process"
    label = "Start"
    x     = 0
    y     = 0
  }

  edge {
    source = "1"
    target = "2"
  }

or JSON in the API's {"title": ..., "data": {"nodes": [...], "edges": [...]}} form.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := manager.New(newClient(), log)
		return runCreate(cmd.Context(), m, cmd.OutOrStdout(), createName, createFrom, pickFormat(outputJSON, outputTOON))
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a flowchart's nodes and edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := pickFormat(outputJSON, outputTOON)
		if showHCL {
			format = formatHCL
		}
		return runShow(cmd.Context(), newClient(), cmd.OutOrStdout(), args[0], format)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a flowchart",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := manager.New(newClient(), log)
		if err := m.Rename(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a flowchart",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := manager.New(newClient(), log)
		if err := m.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <id>",
	Short: "Check that every edge joins existing nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.Context(), newClient(), cmd.OutOrStdout(), args[0], pickFormat(outputJSON, outputTOON))
	},
}

var edgesCmd = &cobra.Command{
	Use:   "edges <id> <node-id>",
	Short: "List the edges leaving a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdges(cmd.Context(), newClient(), cmd.OutOrStdout(), args[0], args[1], pickFormat(outputJSON, outputTOON))
	},
}

var reachCmd = &cobra.Command{
	Use:   "reach <id> <node-id>",
	Short: "List the nodes reachable from a node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReach(cmd.Context(), newClient(), cmd.OutOrStdout(), args[0], args[1], pickFormat(outputJSON, outputTOON))
	},
}

func init() {
	for _, cmd := range []*cobra.Command{listCmd, createCmd, showCmd, validateCmd, edgesCmd, reachCmd} {
		cmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "Output in JSON format (for AI agents)")
		cmd.Flags().BoolVarP(&outputTOON, "toon", "t", false, "Output in TOON format (token-efficient for AI agents)")
		cmd.MarkFlagsMutuallyExclusive("json", "toon")
	}
	showCmd.Flags().BoolVar(&showHCL, "hcl", false, "Output as an HCL seed file")
	showCmd.MarkFlagsMutuallyExclusive("json", "hcl")
	showCmd.MarkFlagsMutuallyExclusive("toon", "hcl")

	createCmd.Flags().StringVar(&createName, "title", "", "Flowchart title (default: seed file title, then 'New Flowchart')")
	createCmd.Flags().StringVarP(&createFrom, "from", "f", "", "Seed the flowchart from an .hcl or .json file")
}

func runList(ctx context.Context, m *manager.Manager, w io.Writer, format string) error {
	if err := m.Refresh(ctx); err != nil {
		return err
	}
	items := m.Items()

	if done, err := writeStructured(w, toSummaryJSON(items), format); done {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No flowcharts yet. Create one with 'flowpad create'.")
		return nil
	}
	fmt.Fprintln(w, renderSummaryTable(items))
	return nil
}

func runCreate(ctx context.Context, m *manager.Manager, w io.Writer, title, from, format string) error {
	var data *graph.Data
	if from != "" {
		doc, err := seed.Load(from)
		if err != nil {
			return err
		}
		data = &doc.Data
		if title == "" {
			title = doc.Title
		}
	}

	f, err := m.Create(ctx, title, data)
	if err != nil {
		return err
	}

	if done, err := writeStructured(w, toSummaryJSON([]graph.Summary{f.Summary()})[0], format); done {
		return err
	}
	fmt.Fprintf(w, "Created %q (%s) with %d nodes and %d edges\n", f.Title, f.ID, len(f.Data.Nodes), len(f.Data.Edges))
	return nil
}

func runShow(ctx context.Context, c *client.Client, w io.Writer, id, format string) error {
	f, err := c.Fetch(ctx, id)
	if err != nil {
		return err
	}

	if format == formatHCL {
		_, err := w.Write(seed.EncodeHCL(f.Document()))
		return err
	}
	if done, err := writeStructured(w, toFlowchartJSON(f), format); done {
		return err
	}
	printFlowchart(w, f)
	return nil
}

// errInvalidGraph makes validate exit non-zero after printing its report.
var errInvalidGraph = errors.New("graph is invalid")

func runValidate(ctx context.Context, c *client.Client, w io.Writer, id, format string) error {
	report := mcp.ValidationReport{Valid: true, Message: "Graph is valid."}
	if err := c.Validate(ctx, id); err != nil {
		var verr *client.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		report = mcp.ValidationReport{
			Message:      verr.Message,
			Problems:     verr.Problems,
			InvalidEdges: verr.InvalidEdges,
		}
	}

	done, err := writeStructured(w, report, format)
	if err != nil {
		return err
	}
	if !done {
		fmt.Fprintln(w, report.Message)
		for _, p := range report.Problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		for _, e := range report.InvalidEdges {
			fmt.Fprintf(w, "  - %s\n", formatEdge(e))
		}
	}
	if !report.Valid {
		return errInvalidGraph
	}
	return nil
}

func runEdges(ctx context.Context, c *client.Client, w io.Writer, id, nodeID, format string) error {
	edges, err := c.OutgoingEdges(ctx, id, nodeID)
	if err != nil {
		return err
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	if done, err := writeStructured(w, edges, format); done {
		return err
	}
	if len(edges) == 0 {
		fmt.Fprintf(w, "No edges leave %s.\n", nodeID)
		return nil
	}
	for _, e := range edges {
		fmt.Fprintln(w, formatEdge(e))
	}
	return nil
}

func runReach(ctx context.Context, c *client.Client, w io.Writer, id, nodeID, format string) error {
	nodes, err := c.ConnectedNodes(ctx, id, nodeID)
	if err != nil {
		return err
	}
	if done, err := writeStructured(w, nodes, format); done {
		return err
	}
	fmt.Fprintln(w, renderNodeTable(nodes))
	return nil
}
