package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/session"
	"github.com/burrowhq/burrow/internal/toon"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation snapshots",
	Long: `List, show, or clear the conversation snapshots for this project.

Snapshots live under .burrow/sessions/ next to the code they talk
about. Every exchange writes a new timestamp-named snapshot; a
"current" pointer tracks the latest one. Nothing is deleted
automatically, so history stays inspectable.

Examples:
  burrow session list
  burrow session show
  burrow session show .burrow/sessions/20260825-140302.toon
  burrow session clear`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print a decoded snapshot",
	Long: `Print a snapshot as canonical TOON text.

With no argument the current snapshot is shown. A malformed snapshot
is a hard error here: show is the explicit decode path, unlike resume,
which quietly starts fresh.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionShow,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Start the next conversation fresh",
	Long: `Detach the current pointer so the next run starts a fresh conversation.

Existing snapshots are kept and stay visible in 'burrow session list'.`,
	RunE: runSessionClear,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}

// projectSessions opens the snapshot store for the current directory.
func projectSessions() (*session.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return session.NewStore(config.SessionsDir(cwd)), nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	st, err := projectSessions()
	if err != nil {
		return err
	}

	snapshots, err := st.List()
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		fmt.Println("No saved sessions")
		return nil
	}

	fmt.Printf("Saved sessions in %s:\n", st.Dir())
	for _, snap := range snapshots {
		fmt.Printf("  %s  %s\n", snap.ModTime.Format("2006-01-02 15:04"), snap.Path)
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	st, err := projectSessions()
	if err != nil {
		return err
	}

	var sess *session.Session
	if len(args) == 1 {
		sess, err = st.Load(args[0])
	} else {
		sess, err = st.LoadCurrent()
	}
	if err != nil {
		return err
	}

	fmt.Print(toon.Encode(sess.Document()))
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	st, err := projectSessions()
	if err != nil {
		return err
	}
	if err := st.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	fmt.Println("Session cleared. The next run starts a fresh conversation.")
	return nil
}
