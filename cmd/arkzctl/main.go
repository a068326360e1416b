// Command arkzctl drives the drafts API from a terminal: upload attachments,
// score drafts and move them through review.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/pkg/client"
	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagServer string
	flagToken  string
	flagOrg    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newClient merges the config file with flags and the ARKZ_TOKEN variable.
func newClient() (*client.Client, error) {
	path := flagConfig
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.Override("", os.Getenv("ARKZ_TOKEN"), "")
	cfg.Override(flagServer, flagToken, flagOrg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return client.New(cfg.ServerURL, cfg.Token, cfg.OrgID, nil)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rootCmd = &cobra.Command{
	Use:           "arkzctl",
	Short:         "Work with drafts from the command line",
	SilenceUsage: true,
}

var getCmd = &cobra.Command{
	Use:   "get [draft-id]",
	Short: "Show a draft, or list drafts when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			d, err := c.GetDraft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		}
		var status draft.Status
		if s, _ := cmd.Flags().GetString("status"); s != "" {
			parsed, ok := draft.ParseStatus(s)
			if !ok {
				return fmt.Errorf("unknown status %q", s)
			}
			status = parsed
		}
		list, err := c.ListDrafts(cmd.Context(), status)
		if err != nil {
			return err
		}
		for _, d := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %s\n", d.ID, d.Status, d.Title)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <draft-id> <file>",
	Short: "Upload a file and attach it to a draft",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		f, closer, err := client.OpenFile(args[1])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[1], err)
		}
		defer closer.Close()
		if t, _ := cmd.Flags().GetString("type"); t != "" {
			f.ContentType = t
		}
		bar := newProgressBar(os.Stderr)
		d, err := client.NewUploader(c, nil).Upload(cmd.Context(), args[0], f, bar.Update)
		bar.Done()
		if err != nil {
			return err
		}
		att := d.Attachments[len(d.Attachments)-1]
		fmt.Fprintf(cmd.OutOrStdout(), "Attached %s (%s) to %s\n", att.Name, att.Type, d.ID)
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score <draft-id>",
	Short: "Score a draft against the organization blueprint",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if text, _ := cmd.Flags().GetString("text"); text != "" || len(args) == 0 {
			r, err := c.ScoreContent(cmd.Context(), text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		}
		d, err := c.Score(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if d.AlignmentScore != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Alignment: %.2f\n", *d.AlignmentScore)
		}
		if d.Justification != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Justification: %s\n", d.Justification)
		}
		for _, s := range d.Suggestions {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", s)
		}
		return nil
	},
}

func transitionCmd(use, short string, run func(ctx context.Context, c *client.Client, cmd *cobra.Command, id string) (*draft.Draft, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <draft-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			d, err := run(cmd.Context(), c, cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", d.ID, d.Status)
			return nil
		},
	}
}

var submitCmd = transitionCmd("submit", "Send a draft for review", func(ctx context.Context, c *client.Client, _ *cobra.Command, id string) (*draft.Draft, error) {
	return c.Submit(ctx, id)
})

var approveCmd = transitionCmd("approve", "Approve a draft in review", func(ctx context.Context, c *client.Client, _ *cobra.Command, id string) (*draft.Draft, error) {
	return c.Approve(ctx, id)
})

var rejectCmd = transitionCmd("reject", "Reject a draft in review with feedback", func(ctx context.Context, c *client.Client, cmd *cobra.Command, id string) (*draft.Draft, error) {
	feedback, _ := cmd.Flags().GetString("feedback")
	if strings.TrimSpace(feedback) == "" {
		return nil, fmt.Errorf("--feedback is required")
	}
	return c.Reject(ctx, id, feedback)
})

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.config/arkz/config.toml)")
	pf.StringVar(&flagServer, "server", "", "server URL")
	pf.StringVar(&flagToken, "token", "", "bearer token")
	pf.StringVar(&flagOrg, "org", "", "organization id")

	getCmd.Flags().String("status", "", "filter the listing by status")
	uploadCmd.Flags().String("type", "", "content type to declare (default from the file extension)")
	scoreCmd.Flags().String("text", "", "score this text instead of a stored draft")
	rejectCmd.Flags().String("feedback", "", "reason for the rejection")

	rootCmd.AddCommand(getCmd, uploadCmd, scoreCmd, submitCmd, approveCmd, rejectCmd)
}
