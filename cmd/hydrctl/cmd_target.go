package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"statehydrate/cmd/hydrctl/ui"
	"statehydrate/internal/logging"
	"statehydrate/pkg/bridge"
	"statehydrate/pkg/hydrate"
)

var (
	awaitWatch   bool
	awaitTimeout string
	loadURL      string
)

var injectCmd = &cobra.Command{
	Use:   "inject [payload-file]",
	Short: "Encode a payload and stage it in the target's preparation queue",
	Long: `Inject encodes the payload and POSTs it to the target's hydration
queue. The token waits there until the application's next bootstrap run
consumes it. Staging the same payload twice is a no-op.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInject,
}

var awaitCmd = &cobra.Command{
	Use:   "await",
	Short: "Wait for the target to publish a hydration result",
	Long: `Await polls the target's result endpoint until the engine publishes
a hydration outcome, then prints a per-section summary. The exit code is
non-zero when any section failed. With --watch a live view stays open
while polling.`,
	Args: cobra.NoArgs,
	RunE: runAwait,
}

var loadCmd = &cobra.Command{
	Use:   "load [payload-file]",
	Short: "Stage a payload, navigate the target, and await the result",
	Long: `Load is the one-shot path: it stages the payload, issues a GET
against --url to trigger the target's bootstrap run, and waits for the
published result.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	awaitCmd.Flags().BoolVar(&awaitWatch, "watch", false, "show a live view while waiting")
	awaitCmd.Flags().StringVar(&awaitTimeout, "timeout", "", "override the await timeout, e.g. 30s")
	loadCmd.Flags().StringVar(&loadURL, "url", "", "URL to navigate the target to (defaults to the target base URL)")
}

func httpTarget() *bridge.HTTP {
	return &bridge.HTTP{BaseURL: cfg.Target.BaseURL}
}

func resolveTimeout(flag string) (time.Duration, error) {
	raw := flag
	if raw == "" {
		raw = cfg.Target.AwaitTimeout
	}
	if raw == "" {
		return bridge.DefaultAwaitTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid await timeout %q: %w", raw, err)
	}
	return d, nil
}

func runInject(cmd *cobra.Command, args []string) error {
	log := logging.Get(logging.CategoryBridge)

	data, err := readPayload(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	token, err := bridge.Prepare(cmd.Context(), httpTarget(), payload)
	if err != nil {
		return err
	}
	log.Info("token staged", zap.String("target", cfg.Target.BaseURL), zap.Int("token_bytes", len(token)))
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runAwait(cmd *cobra.Command, args []string) error {
	timeout, err := resolveTimeout(awaitTimeout)
	if err != nil {
		return err
	}
	target := httpTarget()

	if awaitWatch {
		res, err := ui.Watch(cmd.Context(), target, timeout)
		if err != nil {
			return err
		}
		return reportResult(cmd, res)
	}

	res, err := bridge.AwaitResult(cmd.Context(), target, timeout)
	if res != nil {
		if rerr := reportResult(cmd, res); rerr != nil {
			return rerr
		}
	}
	return err
}

func runLoad(cmd *cobra.Command, args []string) error {
	data, err := readPayload(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	rawurl := loadURL
	if rawurl == "" {
		rawurl = cfg.Target.BaseURL
	}

	res, err := bridge.HydrateAndLoad(cmd.Context(), httpTarget(), payload, rawurl)
	if res != nil {
		if rerr := reportResult(cmd, res); rerr != nil {
			return rerr
		}
		return nil
	}
	return err
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// reportResult prints the per-section outcome and returns an error when any
// section failed, so the process exit code reflects the hydration outcome.
func reportResult(cmd *cobra.Command, res *hydrate.Result) error {
	out := cmd.OutOrStdout()

	names := make([]string, 0, len(res.Sections))
	for name := range res.Sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sr := res.Sections[name]
		status := okStyle.Render("ok")
		if !sr.Success {
			status = failStyle.Render("failed")
		}
		fmt.Fprintf(out, "%s  %s", status, name)
		if len(sr.AppliedFields) > 0 {
			fmt.Fprintf(out, "  %s", dimStyle.Render(fmt.Sprintf("applied: %v", sr.AppliedFields)))
		}
		fmt.Fprintln(out)
		if sr.Error != "" {
			fmt.Fprintf(out, "    %s\n", failStyle.Render(sr.Error))
		}
		for _, w := range sr.Warnings {
			fmt.Fprintf(out, "    %s\n", warnStyle.Render("warning: "+w))
		}
	}

	if !res.OverallSuccess {
		return fmt.Errorf("hydration completed with failed sections")
	}
	fmt.Fprintln(out, okStyle.Render("hydration succeeded"))
	return nil
}
