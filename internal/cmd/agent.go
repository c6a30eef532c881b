package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/render"
	"github.com/beacon-works/beacon/internal/runtime"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Register and inspect agents",
}

var agentJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Register this agent (idempotent by name)",
	RunE:  runAgentJoin,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents and their leases",
	RunE:  runAgentList,
}

var agentHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Refresh this agent's last-seen timestamp",
	RunE:  runAgentHeartbeat,
}

var (
	joinName         string
	joinRole         string
	joinCapabilities []string
	joinMeta         map[string]string
	heartbeatAgent   string
)

func init() {
	agentJoinCmd.Flags().StringVar(&joinName, "name", "", "agent name (required)")
	agentJoinCmd.Flags().StringVar(&joinRole, "role", "", "agent role, e.g. worker or reviewer")
	agentJoinCmd.Flags().StringSliceVar(&joinCapabilities, "capability", nil, "capability tags")
	agentJoinCmd.Flags().StringToStringVar(&joinMeta, "meta", nil, "session metadata as key=value pairs")
	_ = agentJoinCmd.MarkFlagRequired("name")

	agentHeartbeatCmd.Flags().StringVar(&heartbeatAgent, "agent", "", "acting agent id (default $BEACON_AGENT_ID)")

	agentCmd.AddCommand(agentJoinCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentHeartbeatCmd)
	rootCmd.AddCommand(agentCmd)
}

func runAgentJoin(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	agent, err := coord.JoinAgent(runtime.JoinParams{
		Name:         joinName,
		Role:         joinRole,
		Capabilities: joinCapabilities,
		SessionMeta:  joinMeta,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"id":           agent.ID,
			"name":         agent.Name,
			"role":         agent.Role,
			"capabilities": agent.Capabilities,
			"session_meta": agent.SessionMeta,
		})
	}
	fmt.Printf("joined as %s (%s)\n", agent.ID, agent.Name)
	fmt.Printf("export BEACON_AGENT_ID=%s\n", agent.ID)
	return nil
}

func runAgentList(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	agents, err := coord.Runtime().ListAgents()
	if err != nil {
		return err
	}

	if jsonOutput {
		type agentJSON struct {
			ID           string            `json:"id"`
			Name         string            `json:"name"`
			Role         string            `json:"role,omitempty"`
			Capabilities []string          `json:"capabilities,omitempty"`
			SessionMeta  map[string]string `json:"session_meta,omitempty"`
			LastSeen     string            `json:"last_seen"`
			Leases       []string          `json:"leases,omitempty"`
		}
		out := make([]agentJSON, 0, len(agents))
		for _, a := range agents {
			leases, err := coord.Runtime().LeasesByAgent(a.ID)
			if err != nil {
				return err
			}
			held := make([]string, 0, len(leases))
			for _, l := range leases {
				held = append(held, l.TaskID)
			}
			out = append(out, agentJSON{
				ID: a.ID, Name: a.Name, Role: a.Role, Capabilities: a.Capabilities,
				SessionMeta: a.SessionMeta, LastSeen: a.LastSeen.Format(time.RFC3339), Leases: held,
			})
		}
		return printJSON(out)
	}

	rows := make([][]string, 0, len(agents))
	for _, a := range agents {
		leases, err := coord.Runtime().LeasesByAgent(a.ID)
		if err != nil {
			return err
		}
		held := make([]string, 0, len(leases))
		for _, l := range leases {
			held = append(held, l.TaskID)
		}
		rows = append(rows, []string{
			a.ID,
			a.Name,
			a.Role,
			strings.Join(a.Capabilities, ","),
			a.LastSeen.Format("15:04:05"),
			strings.Join(held, ","),
		})
	}
	fmt.Print(render.Table([]string{"ID", "NAME", "ROLE", "CAPABILITIES", "LAST SEEN", "WORKING ON"}, rows))
	return nil
}

func runAgentHeartbeat(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(heartbeatAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	if err := coord.Runtime().Heartbeat(agentID); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]string{"agent": agentID, "status": "ok"})
	}
	fmt.Println("ok")
	return nil
}
