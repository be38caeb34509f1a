package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbeckham/redmine-quickedit/internal/config"
	"github.com/jbeckham/redmine-quickedit/internal/fields"
	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
	"github.com/jbeckham/redmine-quickedit/internal/relay"
	"github.com/jbeckham/redmine-quickedit/internal/tui"
)

var (
	getJSON        bool
	getWidth       int
	optionsProject string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration directory",
	Long:  `Writes sample config.yaml and secrets.yaml files. Existing files are kept.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if config.DirExists(dir) {
			fmt.Fprintf(out, "%s/ already exists\n", dir)
			return nil
		}
		if err := config.Init(dir); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created %s/\n", dir)
		fmt.Fprintln(out, "  config.yaml   Redmine URL, editor and display settings")
		fmt.Fprintln(out, "  secrets.yaml  API access key")
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <issue>",
	Short: "Print an issue page",
	Long: `Prints the issue page as the editor shows it, or the raw issue JSON.

Examples:
  redmine-quickedit get 123
  redmine-quickedit get --json 123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIssueRef(args[0])
		if err != nil {
			return err
		}
		e, err := loadCommandEnv()
		if err != nil {
			return err
		}
		defer e.close()

		out := cmd.OutOrStdout()
		if getJSON {
			resp := <-e.relay.Dispatch(cmd.Context(), relay.Request{Action: relay.ActionGetIssueData, IssueID: id})
			if err := resp.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, resp.Data, "", "  "); err != nil {
				return fmt.Errorf("formatting issue: %w", err)
			}
			buf.WriteByte('\n')
			_, err = buf.WriteTo(out)
			return err
		}

		doc, err := tui.RelayLoader(e.relay, id, e.cfg.RenderOptions())(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, page.Lay(doc, page.LayoutOptions{Width: getWidth}).String())
		return nil
	},
}

var optionsCmd = &cobra.Command{
	Use:   "options <kind>",
	Short: "List the choices of a selection field",
	Long: `Lists ids and names for status, priority, users, versions or categories.
Versions and categories belong to a project.

Examples:
  redmine-quickedit options status
  redmine-quickedit options versions --project web-site`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"status", "priority", "users", "versions", "categories"},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadCommandEnv()
		if err != nil {
			return err
		}
		defer e.close()

		kind := redmine.OptionKind(args[0])
		resp := <-e.relay.Dispatch(cmd.Context(), relay.Request{
			Action:    relay.ActionGetSelectOptions,
			Kind:      string(kind),
			ProjectID: optionsProject,
		})
		if err := resp.Err(); err != nil {
			return err
		}
		opts, err := redmine.ExtractOptions(kind, resp.Data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, o := range opts {
			fmt.Fprintf(out, "%6d  %s\n", o.ID, o.Name)
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <issue> <field> <value>",
	Short: "Change one issue field",
	Long: `Changes a field the way the inline editor does. The field is its label
or API attribute. Selection values are option names or ids; "none" clears.
Dates take YYYY-MM-DD or the displayed format, durations H:MM or hours.

Examples:
  redmine-quickedit set 123 status Resolved
  redmine-quickedit set 123 "Estimated time" 2:30
  redmine-quickedit set 123 due_date none`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIssueRef(args[0])
		if err != nil {
			return err
		}
		e, err := loadCommandEnv()
		if err != nil {
			return err
		}
		defer e.close()

		doc, err := tui.RelayLoader(e.relay, id, e.cfg.RenderOptions())(cmd.Context())
		if err != nil {
			return err
		}
		field, changed, err := setField(cmd.Context(), e.relay, doc, fields.Default(), e.cfg.EditorOptions(), e.logger, args[1], args[2])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !changed {
			fmt.Fprintf(out, "%s unchanged\n", field.Name)
			return nil
		}
		fmt.Fprintf(out, "%s updated: %s\n", field.Name, valueText(doc, field))
		return nil
	},
}

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "print the issue JSON")
	getCmd.Flags().IntVar(&getWidth, "width", 80, "wrap width, 0 to disable")
	optionsCmd.Flags().StringVar(&optionsProject, "project", "", "project id or identifier for versions and categories")

	rootCmd.AddCommand(initCmd, getCmd, optionsCmd, setCmd)
}

// loadCommandEnv loads the environment for a non-interactive command.
func loadCommandEnv() (*env, error) {
	dir, err := resolveConfigDir()
	if err != nil {
		return nil, err
	}
	if !config.DirExists(dir) {
		return nil, fmt.Errorf("%s does not exist, run redmine-quickedit init", dir)
	}
	return loadEnv(dir)
}
