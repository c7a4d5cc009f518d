package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/ragent/internal/config"
	"github.com/kalambet/ragent/internal/runner"
	"github.com/kalambet/ragent/internal/storage"
)

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "View and manage saved sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		sessions, err := store.ListSessions(limit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		for _, s := range sessions {
			fmt.Println(formatSessionLine(s))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the conversation of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		sess, err := store.GetSession(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("session %q not found", args[0])
		}
		if err != nil {
			return err
		}

		transcript := runner.Transcript(sess.Messages)
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(transcript)
		}

		printStatus("Session", "%s", sess.Name)
		printStatus("Last model", "%s", sess.LastModel)
		printStatus("Updated", "%s", sess.UpdatedAt.Local().Format(time.DateTime))
		for _, m := range transcript {
			fmt.Println(formatTranscriptLine(m))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		if err := store.DeleteSession(args[0]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("session %q not found", args[0])
			}
			return err
		}
		printSuccess("Deleted session %s", args[0])
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsShowCmd.Flags().Bool("json", false, "print the transcript as JSON")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func formatSessionLine(s storage.Session) string {
	return fmt.Sprintf("%s  %s  %3d messages  %s",
		colorize(colorCyan, s.Name),
		s.UpdatedAt.Local().Format(time.DateTime),
		len(s.Messages),
		s.LastModel,
	)
}

func formatTranscriptLine(m runner.MappedMessage) string {
	label := colorize(colorBold+colorYellow, "User:")
	if m.Speaker == runner.SpeakerAgent {
		label = colorize(colorBold+colorGreen, "Agent:")
	}
	return fmt.Sprintf("\n%s %s", label, m.Text)
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent agent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		runs, err := store.RecentRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Println(formatRunLine(r))
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
}

func formatRunLine(r storage.Run) string {
	outcome := r.Ending
	if r.Error != "" {
		outcome = colorize(colorRed, "failed")
	}
	return fmt.Sprintf("%s  %s  %-15s %2d iter  %6dms  %s",
		colorize(colorCyan, shortID(r.ID)),
		r.CreatedAt.Local().Format(time.DateTime),
		outcome,
		r.Iterations,
		r.Duration.Milliseconds(),
		ellipsize(r.Prompt, 60),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- tools ---

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the built-in tools available to the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := defaultTools(cfg)
		if err != nil {
			return err
		}
		for _, def := range reg.Definitions() {
			fmt.Printf("  %s  %s\n", colorize(colorBold, def.Function.Name), def.Function.Description)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (agent.api_key, server.token) in the platform secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
