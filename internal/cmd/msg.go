package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/beacon-works/beacon/internal/config"
	"github.com/beacon-works/beacon/internal/render"
	"github.com/beacon-works/beacon/internal/runtime"
)

var msgCmd = &cobra.Command{
	Use:   "msg",
	Short: "Message board between agents",
}

var msgSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message to an agent or a task thread",
	RunE:  runMsgSend,
}

var msgInboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Read this agent's messages",
	RunE:  runMsgInbox,
}

var msgThreadCmd = &cobra.Command{
	Use:   "thread <task-id>",
	Short: "Read a task's message thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runMsgThread,
}

var msgSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search messages by subject and body",
	Args:  cobra.ExactArgs(1),
	RunE:  runMsgSearch,
}

var msgWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until an unread message arrives",
	RunE:  runMsgWait,
}

var (
	msgAgent     string
	sendTo       string
	sendTask     string
	sendSubject  string
	sendBody     string
	sendSeverity string

	inboxUnread   bool
	inboxMarkRead bool
	inboxSeverity string
	inboxFrom     string
	inboxLimit    int
	searchLimit   int

	waitTimeoutSeconds int
)

func init() {
	msgSendCmd.Flags().StringVar(&msgAgent, "agent", "", "sending agent id (default $BEACON_AGENT_ID)")
	msgSendCmd.Flags().StringVar(&sendTo, "to", "", "recipient agent id")
	msgSendCmd.Flags().StringVar(&sendTask, "task", "", "recipient task thread")
	msgSendCmd.Flags().StringVar(&sendSubject, "subject", "", "subject (required)")
	msgSendCmd.Flags().StringVar(&sendBody, "body", "", "message body")
	msgSendCmd.Flags().StringVar(&sendSeverity, "severity", "", "info, warning, handoff, or blocker")
	_ = msgSendCmd.MarkFlagRequired("subject")

	msgInboxCmd.Flags().StringVar(&msgAgent, "agent", "", "agent id (default $BEACON_AGENT_ID)")
	msgInboxCmd.Flags().BoolVar(&inboxUnread, "unread", false, "unread messages only")
	msgInboxCmd.Flags().BoolVar(&inboxMarkRead, "mark-read", false, "mark returned messages read")
	msgInboxCmd.Flags().StringVar(&inboxSeverity, "severity", "", "filter by severity")
	msgInboxCmd.Flags().StringVar(&inboxFrom, "from", "", "filter by sending agent")
	msgInboxCmd.Flags().IntVar(&inboxLimit, "limit", 0, "maximum messages to return")

	msgSearchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")

	msgWaitCmd.Flags().StringVar(&msgAgent, "agent", "", "agent id (default $BEACON_AGENT_ID)")
	msgWaitCmd.Flags().IntVar(&waitTimeoutSeconds, "timeout", 0, "give up after this many seconds (0 = wait forever)")

	msgCmd.AddCommand(msgSendCmd)
	msgCmd.AddCommand(msgInboxCmd)
	msgCmd.AddCommand(msgThreadCmd)
	msgCmd.AddCommand(msgSearchCmd)
	msgCmd.AddCommand(msgWaitCmd)
	rootCmd.AddCommand(msgCmd)
}

func printMessages(msgs []*runtime.Message) error {
	if jsonOutput {
		out := make([]messageJSON, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, toMessageJSON(m))
		}
		return printJSON(out)
	}

	if len(msgs) == 0 {
		fmt.Println("no messages")
		return nil
	}
	for i, m := range msgs {
		if i > 0 {
			fmt.Println(render.Rule(50))
		}
		marker := ""
		if !m.Read() {
			marker = " *"
		}
		target := m.ToAgent
		if m.TaskID != "" {
			target = m.TaskID
		}
		fmt.Printf("%s [%s] %s -> %s%s\n", m.ID, render.Severity(m.Severity), m.FromAgent, target, marker)
		fmt.Printf("%s  %s\n", m.SentAt.Format("2006-01-02 15:04:05"), render.Header(m.Subject))
		if m.Body != "" {
			fmt.Println(m.Body)
		}
	}
	return nil
}

func runMsgSend(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(msgAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	severity, err := runtime.ParseSeverity(sendSeverity)
	if err != nil {
		return err
	}
	sent, err := coord.SendMessage(&runtime.Message{
		FromAgent: agentID,
		ToAgent:   sendTo,
		TaskID:    sendTask,
		Subject:   sendSubject,
		Body:      sendBody,
		Severity:  severity,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(toMessageJSON(sent))
	}
	fmt.Printf("sent %s\n", sent.ID)
	return nil
}

func runMsgInbox(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(msgAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	var severity runtime.Severity
	if inboxSeverity != "" {
		severity, err = runtime.ParseSeverity(inboxSeverity)
		if err != nil {
			return err
		}
	}

	msgs, err := coord.Runtime().Inbox(agentID, runtime.InboxOptions{
		UnreadOnly: inboxUnread,
		Severity:   severity,
		From:       inboxFrom,
		Limit:      inboxLimit,
		MarkRead:   inboxMarkRead,
	})
	if err != nil {
		return err
	}
	return printMessages(msgs)
}

func runMsgThread(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	msgs, err := coord.Runtime().TaskThread(args[0])
	if err != nil {
		return err
	}
	return printMessages(msgs)
}

func runMsgSearch(cmd *cobra.Command, args []string) error {
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	msgs, err := coord.Runtime().SearchMessages(args[0], searchLimit)
	if err != nil {
		return err
	}
	return printMessages(msgs)
}

func runMsgWait(cmd *cobra.Command, args []string) error {
	agentID, err := requireAgent(msgAgent)
	if err != nil {
		return err
	}
	coord, closer, err := openCoordinator()
	if err != nil {
		return err
	}
	defer closer()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := config.Get().Message.WaitTimeout()
	if waitTimeoutSeconds > 0 {
		timeout = time.Duration(waitTimeoutSeconds) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msgs, err := coord.WaitForMessage(ctx, agentID)
	if err != nil {
		return err
	}
	return printMessages(msgs)
}
