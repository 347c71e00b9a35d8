package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentpane/agentpane/internal/host"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List registered sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := openRegistry()
			if err != nil {
				return err
			}
			sessions := registry.List()
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions registered")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTOOL\tTMUX\tCREATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Title, s.Tool, s.TmuxSession,
					s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var title, tool string
	cmd := &cobra.Command{
		Use:   "register <tmux-session> [project-path]",
		Short: "Register an existing tmux session",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmuxSession := args[0]
			projectPath := ""
			if len(args) > 1 {
				projectPath = args[1]
			} else if wd, err := os.Getwd(); err == nil {
				projectPath = wd
			}

			if !host.NewTmux(tmuxSession).HasSession() {
				return fmt.Errorf("tmux session %q not found", tmuxSession)
			}

			registry, err := openRegistry()
			if err != nil {
				return err
			}
			s, err := registry.Register(title, projectPath, tool, tmuxSession)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "session title (defaults to project dir name)")
	cmd.Flags().StringVar(&tool, "tool", "", "agent tool running in the session")
	return cmd
}

func openRegistry() (*host.Registry, error) {
	path, err := host.DefaultRegistryPath()
	if err != nil {
		return nil, err
	}
	return host.OpenRegistry(path)
}
