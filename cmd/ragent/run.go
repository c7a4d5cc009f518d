package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/ragent/internal/capability"
	"github.com/kalambet/ragent/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run the agent on a task",
	Long: `Run the agent on a task. The agent may call its local tools before answering.

Examples:
  ragent run "what changed in the last three commits?"
  ragent run --image ./screenshot.jpg "what does this error mean?"
  ragent run --session work --context "Go service in ./cmd" "where is main?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task := strings.Join(args, " ")
		imagePath, _ := cmd.Flags().GetString("image")
		session, _ := cmd.Flags().GetString("session")
		taskContext, _ := cmd.Flags().GetString("context")
		stream, _ := cmd.Flags().GetBool("stream")
		noTools, _ := cmd.Flags().GetBool("no-tools")
		model, _ := cmd.Flags().GetString("model")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if model != "" {
			cfg.Agent.Model = model
		}

		reg := capability.NewRegistry()
		if !noTools {
			if reg, err = defaultTools(cfg); err != nil {
				return err
			}
		}

		a, err := cfg.NewAgentBuilder().Tools(reg).Build()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		t := runner.Task{Prompt: task, Context: taskContext, Session: session}

		printStep("Task: %s", colorize(colorYellow, task))
		printStatus("Model", "%s", a.Model())
		if imagePath != "" {
			if t.Image, err = runner.ImageFromFile(imagePath); err != nil {
				return err
			}
			printStatus("Image", "%s (encoded to %d chars)", imagePath, len(t.Image))
		}
		if session != "" {
			printStatus("Session", "%s", session)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		r := runner.New(a, store, nil)
		if stream {
			_, err = r.Stream(ctx, t, func(fragment string) error {
				_, err := fmt.Fprint(os.Stdout, fragment)
				return err
			})
			fmt.Fprintln(os.Stdout)
			return err
		}

		out, err := r.Run(ctx, t)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, out.Text)
		return nil
	},
}

func init() {
	runCmd.Flags().String("image", "", "path to an image attached to the task")
	runCmd.Flags().String("session", "", "session name to continue and save")
	runCmd.Flags().String("context", "", "extra context prepended to the task")
	runCmd.Flags().Bool("stream", false, "stream the final answer as it is generated")
	runCmd.Flags().Bool("no-tools", false, "run without the built-in tools")
	runCmd.Flags().String("model", "", "override the configured model")
}
