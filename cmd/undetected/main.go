package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/x/undetected"
)

var (
	flagVisible      bool
	flagSystemChrome bool
	flagNoImages     bool
	flagMobile       bool
	flagProxy        string
	flagAPIKey       string
	flagNoAutoSolve  bool
	flagManual       bool
	flagWait         time.Duration
	flagSolveTimeout time.Duration
	flagRetries      int
	flagHTML         bool
	flagVerbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "undetected [flags] <url>",
		Short: "Open a page in a stealth browser and solve its captchas",
		Long: `undetected opens a URL in a stealth Chromium, scans the loaded page
for captchas and bot checks, solves what it can and reports the result.
reCAPTCHA is solved inside the browser for free, other challenge types
go through Capsolver when an API key is configured.`,
		Args:         cobra.ExactArgs(1),
		RunE:         run,
		SilenceUsage: true,
	}

	f := rootCmd.Flags()
	f.BoolVar(&flagVisible, "visible", false, "show the browser window")
	f.BoolVar(&flagSystemChrome, "system-chrome", false, "attach to the system Chrome profile")
	f.BoolVar(&flagNoImages, "no-images", false, "skip image loading")
	f.BoolVar(&flagMobile, "mobile", false, "emulate a mobile viewport")
	f.StringVar(&flagProxy, "proxy", "", "proxy for the browser launch")
	f.StringVar(&flagAPIKey, "api-key", "", "Capsolver key for the fallback solver (default $CAPSOLVER_API_KEY)")
	f.BoolVar(&flagNoAutoSolve, "no-auto-solve", false, "do not solve captchas automatically after load")
	f.BoolVar(&flagManual, "solve", false, "run one synchronous solve cycle after load")
	f.DurationVar(&flagWait, "wait", time.Minute, "how long to wait for challenge resolution")
	f.DurationVar(&flagSolveTimeout, "solve-timeout", time.Minute, "bound of one solving attempt")
	f.IntVar(&flagRetries, "retries", 2, "retries per solving strategy")
	f.BoolVar(&flagHTML, "html", false, "print the final page HTML to stdout")
	f.BoolVar(&flagVerbose, "verbose", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := buildLogger(flagVerbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	model := undetected.DefaultModel()
	model.Visible = flagVisible
	model.UseSystemChrome = flagSystemChrome
	model.ShowImages = !flagNoImages
	model.Mobile = flagMobile
	model.AutoSolveCaptchas = !flagNoAutoSolve
	model.CapsolverAPIKey = flagAPIKey
	model.SolveTimeout = int(flagSolveTimeout / time.Second)
	model.MaxSolveRetries = flagRetries

	session := undetected.NewSession(model, log)
	defer session.Close()

	if flagProxy != "" {
		session.SetProxyGetter(undetected.StaticProxy(flagProxy))
	}

	url := normalizeURL(args[0])
	if err := session.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if flagManual {
		fmt.Fprintf(os.Stderr, "manual solve: %v\n", session.SolveCaptchas(flagWait))
	}

	resolved := session.WaitForCaptchaResolution(flagWait)
	printSummary(os.Stderr, session, resolved)

	if flagHTML {
		html, err := session.Page.HTML()
		if err != nil {
			return err
		}
		fmt.Println(html)
	}
	return nil
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// normalizeURL prepends https when the argument carries no scheme, so
// "example.com" works as a target.
func normalizeURL(s string) string {
	if strings.Contains(s, "://") {
		return s
	}
	return "https://" + s
}

func printSummary(w io.Writer, session *undetected.Session, resolved bool) {
	state := session.CaptchaState()
	fmt.Fprintf(w, "status: %d\n", session.GetNavigateStatus())
	fmt.Fprintf(w, "url: %s\n", session.ActualURL())
	fmt.Fprintf(w, "captchas clear: %v\n", resolved)
	if out := state.LastOutcome(); out != nil {
		fmt.Fprintf(w, "last outcome: %s", out.Status)
		if out.Reason != "" {
			fmt.Fprintf(w, " (%s)", out.Reason)
		}
		fmt.Fprintln(w)
	}
	if remaining := state.ActiveChallenges(); len(remaining) > 0 {
		names := make([]string, len(remaining))
		for i, typ := range remaining {
			names[i] = typ.String()
		}
		fmt.Fprintf(w, "unresolved: %s\n", strings.Join(names, ", "))
	}
}
