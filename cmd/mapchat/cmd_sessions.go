// This file handles conversation listing and deletion from the command
// line, without touching the model service.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapchat/internal/session"
)

var deleteYes bool

// sessionsCmd manages saved conversations
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved conversations",
	Long: `List and manage saved conversations.

Subcommands:
  list    - List all saved conversations
  delete  - Delete a conversation by id`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved conversations",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, cleanup, err := buildSessionStore()
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := session.SanitizeAll(store.Load())
	if len(sessions) == 0 {
		fmt.Println("No saved conversations.")
		return nil
	}

	fmt.Println("Saved conversations")
	fmt.Println(strings.Repeat("─", 60))
	for _, s := range sessions {
		updated := time.UnixMilli(s.UpdatedAt).Format("2006-01-02 15:04")
		fmt.Printf("  %-36s  %-20s %3d msgs  %s\n", s.ID, truncate(s.Title, 20), len(s.Messages), updated)
	}
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("Total: %d\n", len(sessions))
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	store, cleanup, err := buildSessionStore()
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := session.SanitizeAll(store.Load())
	idx := -1
	for i := range sessions {
		if sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("conversation '%s' not found, use 'mapchat sessions list'", id)
	}

	if !deleteYes && !confirmOnTerminal(fmt.Sprintf("Delete %q (%d messages)?", sessions[idx].Title, len(sessions[idx].Messages))) {
		fmt.Println("Aborted.")
		return nil
	}

	sessions = append(sessions[:idx], sessions[idx+1:]...)
	if len(sessions) == 0 {
		// The collection is never left empty; an empty save would be
		// skipped and the deleted data would survive.
		sessions = []session.ChatSession{session.NewChatSession()}
	}
	if err := store.Save(sessions); err != nil {
		return fmt.Errorf("failed to save after delete: %w", err)
	}

	logger.Info("deleted conversation", zap.String("id", id))
	fmt.Println("Deleted.")
	return nil
}

func confirmOnTerminal(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func init() {
	sessionsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd)
}
