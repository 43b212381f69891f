package cli

import (
	"github.com/spf13/cobra"

	"github.com/flowpad/flowpad/mcp"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Start flowpad as an MCP server",
	Long: `Start flowpad as an MCP (Model Context Protocol) server.

This allows AI agents to read and inspect flowcharts through the MCP protocol.
The server communicates via stdio and talks to the configured flowchart API.
It exposes the following tools:

  - flowpad_list: List flowcharts
  - flowpad_get: Fetch a flowchart's nodes and edges
  - flowpad_validate: Check that every edge joins existing nodes
  - flowpad_outgoing_edges: List the edges leaving a node
  - flowpad_connected_nodes: List the nodes reachable from a node
  - flowpad_create: Create an empty flowchart
  - flowpad_rename: Rename a flowchart

Configuration for Cursor (.cursor/mcp.json):
  {
    "mcpServers": {
      "flowpad": {
        "command": "flowpad",
        "args": ["mcp-serve", "--api-url", "http://localhost:8000/api"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(newClient()).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}
