package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/models"
)

func newFilesCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage vault documents",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if err := rt.requireLogin(); err != nil {
				return err
			}
			return rt.app.Files.List(cmd.Context())
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List uploaded files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				printFiles(rt.out, rt.app.Files.Snapshot())
				return nil
			},
		},
		&cobra.Command{
			Use:   "search <query>",
			Short: "Filter files by name, tags or summary",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var found []models.FileEntity
				for f := range rt.app.Files.Filter(strings.Join(args, " ")) {
					found = append(found, f)
				}
				printFiles(rt.out, found)
				return nil
			},
		},
		&cobra.Command{
			Use:   "upload <path>",
			Short: "Upload a document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.app.Upload.UploadPath(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "analyze <id>",
			Short: "Run AI analysis on a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := rt.app.Analysis.Run(cmd.Context(), id); err != nil {
					return err
				}
				if f, ok := rt.app.Files.Get(id); ok {
					printAnalysis(rt.out, f)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Rename a file",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return rt.app.Rename.Commit(cmd.Context(), id, strings.Join(args[1:], " "))
			},
		},
		newSuggestCmd(rt),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return rt.app.FileOps.Delete(cmd.Context(), id)
			},
		},
		&cobra.Command{
			Use:   "history",
			Short: "Show recent activity",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				logs, err := rt.app.FileOps.History(cmd.Context())
				if err != nil {
					return err
				}
				for _, l := range logs {
					fmt.Fprintf(rt.out, "%s  %s\n", l.Timestamp.Local().Format("2006-01-02 15:04:05"), l.Action)
				}
				return nil
			},
		},
		newChatCmd(rt),
	)
	return cmd
}

func newSuggestCmd(rt *runtime) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "suggest <id>",
		Short: "Ask the AI for a better filename",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := rt.app.Rename.Begin(id); err != nil {
				return err
			}
			name, err := rt.app.Rename.Suggest(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "Suggested: %s\n", name)
			if !apply {
				rt.app.Rename.Cancel()
				return nil
			}
			return rt.app.Rename.CommitBuffer(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "rename the file to the suggestion")
	return cmd
}

func newChatCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <id> [question]",
		Short: "Ask questions about an analyzed file",
		Long:  "With a question, prints one answer. Without, reads questions from stdin until EOF or /exit.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !rt.app.Files.Select(id) {
				return apperr.Precondition("chat", fmt.Sprintf("file %d not found", id))
			}
			if len(args) > 1 {
				return rt.ask(cmd, strings.Join(args[1:], " "))
			}
			for {
				line, err := prompt(rt.stdin(), rt.out, "> ")
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				line = strings.TrimSpace(line)
				if line == "/exit" {
					return nil
				}
				if line == "" {
					continue
				}
				if err := rt.ask(cmd, line); err != nil {
					return err
				}
			}
		},
	}
}

func (rt *runtime) ask(cmd *cobra.Command, question string) error {
	if err := rt.app.Chat.Ask(cmd.Context(), question); err != nil {
		return err
	}
	history := rt.app.Chat.History()
	if n := len(history); n > 0 && history[n-1].Role == models.RoleAssistant {
		color.New(color.FgCyan).Fprintln(rt.out, history[n-1].Text)
	}
	return nil
}
