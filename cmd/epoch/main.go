// cmd/epoch/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"epoch/internal/config"
	"epoch/internal/logging"
	"epoch/internal/repo"
	"epoch/internal/watch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Epoch is a single-user version control system",
	Long: `Epoch is a lightweight, local version control system. It stages file
snapshots into a content-addressed blob store and records them as a
linear chain of self-contained commits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// openRepo opens the repository at the current directory, building the
// logger from the repository config.
func openRepo() (*repo.Repository, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	if !repo.Exists(dir) {
		return nil, fmt.Errorf("not an epoch repository. Use %q to initialize the repository first", "epoch init")
	}

	cfg, err := config.Load(repo.Layout{Root: dir}.ConfigFile())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return repo.Open(dir, logger)
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new epoch repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			if err := repo.Init(dir); err != nil {
				if errors.Is(err, repo.ErrExists) {
					return errors.New("You cannot reinitialize an already existing repository.")
				}
				return fmt.Errorf("initializing repository: %w", err)
			}
			fmt.Println("A new epoch repository has been initialized")
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add [paths...]",
		Short: "Stage files for the next commit",
		Long:  `Stages the specified paths. Use '.' to stage everything.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			staged, err := r.Stage(args)
			if err != nil {
				return fmt.Errorf("staging files: %w", err)
			}
			if len(staged) == 0 {
				fmt.Println("Nothing new to stage.")
				return nil
			}
			fmt.Println("Added these files to the staging area:")
			for _, p := range staged {
				fmt.Printf("\t%s\n", p)
			}
			return nil
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			st, err := r.Status()
			if err != nil {
				return fmt.Errorf("getting status: %w", err)
			}
			if st.Clean() {
				fmt.Println("No changes detected (working tree clean)")
				return nil
			}

			green := color.New(color.FgGreen).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()

			if len(st.Staged) > 0 {
				fmt.Println("Changes staged for commit:")
				fmt.Println("  (use \"epoch unstage <file>...\" to unstage)")
				for _, f := range st.Staged {
					fmt.Printf("\t%s %s\n", green(f.State+":"), f.Path)
				}
				fmt.Println()
			}
			if len(st.Modified) > 0 {
				fmt.Println("Changes not staged for commit:")
				fmt.Println("  (use \"epoch add <file>...\" to stage)")
				for _, f := range st.Modified {
					mark := yellow(f.State + ":")
					if f.State == "deleted" {
						mark = red(f.State + ":")
					}
					fmt.Printf("\t%s %s\n", mark, f.Path)
				}
				fmt.Println()
			}
			if len(st.Untracked) > 0 {
				fmt.Println("Untracked files:")
				fmt.Println("  (use \"epoch add <file>...\" to start tracking)")
				for _, p := range st.Untracked {
					fmt.Printf("\t%s\n", red(p))
				}
			}
			return nil
		},
	}

	var commitMessage string
	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record the staged changes as a new commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Commit(commitMessage)
			if err != nil {
				if errors.Is(err, repo.ErrNothingToCommit) {
					return errors.New("There is nothing in the staging area to commit.")
				}
				return fmt.Errorf("creating commit: %w", err)
			}
			fmt.Printf("Commit created: %s %s\n", result.ID, commitMessage)
			return nil
		},
	}
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message")
	commitCmd.MarkFlagRequired("message")

	var unstageCmd = &cobra.Command{
		Use:   "unstage [paths...]",
		Short: "Remove files from the staging area",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			removed, err := r.Unstage(args)
			if err != nil {
				return fmt.Errorf("unstaging files: %w", err)
			}
			if len(removed) == 0 {
				fmt.Println("Nothing matched in the staging area.")
				return nil
			}
			fmt.Println("Removed these files from the staging area:")
			for _, p := range removed {
				fmt.Printf("\t%s\n", p)
			}
			return nil
		},
	}

	var restoreCmd = &cobra.Command{
		Use:   "restore [paths...]",
		Short: "Restore files from staged or committed content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			restored, err := r.Restore(args)
			if err != nil {
				return fmt.Errorf("restoring files: %w", err)
			}
			if len(restored) == 0 {
				fmt.Println("Nothing to restore.")
				return nil
			}
			fmt.Println("Restored these files:")
			for _, p := range restored {
				fmt.Printf("\t%s\n", p)
			}
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show the commit history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := r.Log()
			if err != nil {
				if errors.Is(err, repo.ErrNoCommits) {
					return errors.New("There are no commits yet.")
				}
				return fmt.Errorf("reading log: %w", err)
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				head := ""
				if i == len(entries)-1 {
					head = " (HEAD)"
				}
				fmt.Printf("commit %s%s\n", yellow(e.ID), head)
				fmt.Printf("Date: %s\n", e.Timestamp.Format("Monday, 02 January 2006, 15:04:05"))
				fmt.Printf("\n\t%s\n\n", e.Message)
			}
			return nil
		},
	}

	var revertCmd = &cobra.Command{
		Use:   "revert <commit-id>",
		Short: "Roll the working tree back to a commit",
		Long: `Restores the state recorded by the given commit and records it as a
new commit, keeping history strictly forward. Staged work is preserved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if _, err := r.Revert(args[0]); err != nil {
				if errors.Is(err, repo.ErrUnknownCommit) {
					return fmt.Errorf("No commit %s exists in this repository.", args[0])
				}
				return fmt.Errorf("reverting: %w", err)
			}
			fmt.Printf("Reverted back to %s\n", args[0])
			return nil
		},
	}

	var configCmd = &cobra.Command{
		Use:   "config <secret>",
		Short: "Store the user secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := repo.SetSecret(args[0]); err != nil {
				return fmt.Errorf("saving secret: %w", err)
			}
			fmt.Println("secret saved!")
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the working tree and report changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			cfg, err := config.Load(repo.Layout{Root: r.Root}.ConfigFile())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}

			w, err := watch.New(r.Root, r.Rules(), logger)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("Watching for changes. Press Ctrl+C to stop.")
			err = w.Run(ctx, func(ev watch.Event) {
				fmt.Printf("%s %s\n", ev.Op, ev.Path)
				logger.Debug("change detected",
					zap.String("path", ev.Path),
					zap.Stringer("op", ev.Op))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	rootCmd.AddCommand(initCmd, addCmd, statusCmd, commitCmd, unstageCmd,
		restoreCmd, logCmd, revertCmd, configCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
