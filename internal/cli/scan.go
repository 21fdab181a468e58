package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/secboard/internal/app"
	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/results"
	"github.com/raysh454/secboard/internal/scan"
)

// Report is what scan and last print.
type Report struct {
	Domain   string                 `json:"domain"`
	ScanTime time.Time              `json:"scan_time"`
	Summary  results.Summary        `json:"summary"`
	Changes  []results.RecordChange `json:"changes,omitempty"`
}

func newScanCommand(o *rootOptions) *cobra.Command {
	var (
		email  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a full scan for an email's domain and print the summary",
		Long: `Start a new full scan for the domain of --email, poll it to completion and
print the module summary. The result replaces the cached one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.runScan(ctx, cmd.OutOrStdout(), email, output)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "email whose domain is scanned (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format (json, yaml, text)")
	cmd.Flags().Duration("poll-interval", 0, "status poll interval (default 3s)")
	cmd.Flags().Int("max-retries", 0, "pending polls before giving up (default 20)")
	_ = cmd.MarkFlagRequired("email")
	_ = o.v.BindPFlag("scan.poll_interval", cmd.Flags().Lookup("poll-interval"))
	_ = o.v.BindPFlag("scan.max_retries", cmd.Flags().Lookup("max-retries"))

	return cmd
}

func newLastCommand(o *rootOptions) *cobra.Command {
	var (
		email  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "last",
		Short: "Print the most recent scan of an email's domain",
		Long: `Print the cached scan of the domain of --email, or the service's latest scan
of that domain when nothing is cached. No new scan is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runLast(cmd.Context(), cmd.OutOrStdout(), email, output)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email whose domain is looked up (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format (json, yaml, text)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (o *rootOptions) runScan(ctx context.Context, w io.Writer, email, output string) error {
	if err := checkOutput(output); err != nil {
		return err
	}
	return o.withSession(ctx, email, func(c *scan.Coordinator) error {
		sessionID, err := c.StartNewScan(ctx)
		if err != nil {
			return scanError(c, err)
		}
		o.logger.Info("waiting for scan", logging.Field{Key: "session_id", Value: sessionID})

		if err := c.Wait(ctx, sessionID); err != nil {
			if ctx.Err() != nil {
				c.Cancel()
				return fmt.Errorf("scan interrupted: %w", ctx.Err())
			}
			return scanError(c, err)
		}
		return writeReport(w, c.State(), output)
	})
}

func (o *rootOptions) runLast(ctx context.Context, w io.Writer, email, output string) error {
	if err := checkOutput(output); err != nil {
		return err
	}
	return o.withSession(ctx, email, func(c *scan.Coordinator) error {
		if c.State().Result == nil {
			domain, err := identity.DomainFromEmail(email)
			if err != nil {
				return fmt.Errorf("%s: %w", scan.MsgInvalidDomain, err)
			}
			fmt.Fprintf(w, "No previous scan for %s.\n", domain)
			return nil
		}
		return writeReport(w, c.State(), output)
	})
}

// withSession builds the application, resolves the coordinator of email and
// tears everything down after fn returns.
func (o *rootOptions) withSession(ctx context.Context, email string, fn func(*scan.Coordinator) error) error {
	a, err := app.NewApplication(ctx, o.cfg, o.logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("application shutdown", logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	c, err := a.Sessions.For(ctx, identity.Identity{Email: email})
	if err != nil {
		return err
	}
	return fn(c)
}

// scanError attaches the user-facing state message to err.
func scanError(c *scan.Coordinator, err error) error {
	if msg := c.State().ErrorMessage; msg != "" {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}

func checkOutput(format string) error {
	switch format {
	case "json", "yaml", "text":
		return nil
	}
	return errors.New("invalid --output " + format + ": want json, yaml or text")
}

func newReport(st scan.State) Report {
	rep := Report{
		Summary: results.Summarize(st.Result),
		Changes: st.Changes,
	}
	if st.Result != nil {
		rep.Domain = st.Result.Domain
		rep.ScanTime = st.Result.ScanTime
	}
	if st.LastScanTime != nil {
		rep.ScanTime = *st.LastScanTime
	}
	return rep
}

func writeReport(w io.Writer, st scan.State, format string) error {
	rep := newReport(st)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		return writeYAML(w, rep)
	}

	fmt.Fprintf(w, "Domain:  %s\n", rep.Domain)
	fmt.Fprintf(w, "Scanned: %s\n", rep.ScanTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Grade:   %s (%d/%d modules passed)\n\n",
		rep.Summary.Grade, rep.Summary.PassedModules, rep.Summary.TotalModules)
	for _, m := range rep.Summary.Modules {
		status := "PASS"
		if !m.Passed {
			status = "ERROR"
		}
		fmt.Fprintf(w, "  %-32s %-6s %d findings\n", m.Label, status, m.Findings)
	}
	for _, ch := range rep.Changes {
		fmt.Fprintf(w, "\n%s record changed on %s:\n  - %s\n  + %s\n",
			strings.ToUpper(strings.TrimSuffix(ch.Module, "Security")), ch.Host, ch.Previous, ch.Current)
	}
	return nil
}

// writeYAML re-encodes the JSON form so YAML keys match the JSON field names.
func writeYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
