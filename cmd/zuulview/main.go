package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/zuulview/zuulview/internal/backoff"
	"github.com/zuulview/zuulview/internal/fetcher"
	"github.com/zuulview/zuulview/internal/manifest"
	"github.com/zuulview/zuulview/internal/transport"
	"github.com/zuulview/zuulview/internal/zuulapi"
	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
	memstore "github.com/zuulview/zuulview/pkg/store/memory"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string

	interactive bool
}

func newUI() *ui {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if !interactive {
		color.NoColor = true
	}
	return &ui{
		title:       color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:          color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:        color.New(color.FgCyan).SprintFunc(),
		warn:        color.New(color.FgYellow).SprintFunc(),
		err:         color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:         color.New(color.FgHiBlack).SprintFunc(),
		interactive: interactive,
	}
}

func (u *ui) spin(suffix string) *spinner.Spinner {
	if !u.interactive {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	s.Suffix = " " + suffix
	s.Start()
	return s
}

func stopSpin(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}

func (u *ui) result(result string) string {
	switch result {
	case "SUCCESS":
		return u.ok(result)
	case "", "RUNNING":
		return u.info("RUNNING")
	case "FAILURE", "POST_FAILURE", "ERROR", "TIMED_OUT":
		return u.err(result)
	default:
		return u.warn(result)
	}
}

type profile struct {
	APIURL string `yaml:"apiUrl"`
	Tenant string `yaml:"tenant"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

// session bundles the fetch stack behind a throwaway in-memory store; one
// CLI invocation is one cache lifetime.
type session struct {
	api   *zuulapi.Client
	orch  *fetcher.Orchestrator
	store store.Store
	get   transport.Getter
}

func newSession(apiURL string) (*session, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, errors.New("api url is required (run `zuulview init` or set ZUUL_API_URL)")
	}
	st, err := memstore.NewPlugin(store.PluginConfig{})
	if err != nil {
		return nil, err
	}
	get := transport.NewClient(&http.Client{Timeout: 60 * time.Second})
	api := zuulapi.NewClient(apiURL, get)
	return &session{
		api:   api,
		orch:  fetcher.New(api, get, st),
		store: st,
		get:   get,
	}, nil
}

func main() {
	apiURL := getenv("ZUUL_API_URL", "")
	tenant := getenv("ZUUL_TENANT", "")
	profileName := getenv("ZUULVIEW_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "zuulview",
		Short: "zuulview CLI",
		Long:  "zuulview CLI for inspecting Zuul builds, their logs and artifacts.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&apiURL, "api-url", apiURL, "Zuul API root (e.g. https://zuul.example.org/api)")
	root.PersistentFlags().StringVar(&tenant, "tenant", tenant, "Zuul tenant")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		active := resolveProfileName(profileName, cfg)
		prof := cfg.Profiles[active]

		flags := cmd.Flags()
		if !flags.Changed("api-url") {
			if v := strings.TrimSpace(os.Getenv("ZUUL_API_URL")); v != "" {
				apiURL = v
			} else if prof.APIURL != "" {
				apiURL = prof.APIURL
			}
		}
		if !flags.Changed("tenant") {
			if v := strings.TrimSpace(os.Getenv("ZUUL_TENANT")); v != "" {
				tenant = v
			} else if prof.Tenant != "" {
				tenant = prof.Tenant
			}
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(buildCmd(&apiURL, &tenant, ui))
	root.AddCommand(buildsetCmd(&apiURL, &tenant, ui))
	root.AddCommand(outputCmd(&apiURL, &tenant, ui))
	root.AddCommand(manifestCmd(&apiURL, &tenant, ui))
	root.AddCommand(downloadCmd(&apiURL, &tenant, ui))
	root.AddCommand(watchCmd(&apiURL, &tenant, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		apiURL   string
		tenant   string
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			if apiURL == "" {
				apiURL = prof.APIURL
			}
			if tenant == "" {
				tenant = prof.Tenant
			}

			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				apiURL = prompt(reader, "Zuul API root", apiURL)
				tenant = prompt(reader, "Tenant", tenant)
			}
			if strings.TrimSpace(apiURL) == "" {
				return errors.New("api url is required")
			}

			prof.APIURL = strings.TrimSpace(apiURL)
			prof.Tenant = strings.TrimSpace(tenant)

			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}
			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Zuul API root")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Zuul tenant")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func buildCmd(apiURL, tenant *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:     "build <uuid>",
		Short:   "Show a build",
		Example: "zuulview build a7f3c9d2 --tenant openstack",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(*tenant) == "" {
				return errors.New("tenant is required")
			}
			s, err := newSession(*apiURL)
			if err != nil {
				return err
			}
			spin := ui.spin("Fetching build...")
			build, err := s.orch.FetchBuild(cmd.Context(), *tenant, args[0])
			stopSpin(spin)
			if err != nil {
				return err
			}
			printBuild(ui, build)
			return nil
		},
	}
}

func buildsetCmd(apiURL, tenant *string, ui *ui) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "buildset <uuid>",
		Short:   "Show a buildset and its builds",
		Example: "zuulview buildset 9c1a22b0 --tenant openstack",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(*tenant) == "" {
				return errors.New("tenant is required")
			}
			s, err := newSession(*apiURL)
			if err != nil {
				return err
			}
			spin := ui.spin("Fetching buildset...")
			err = s.orch.FetchBuildset(cmd.Context(), *tenant, args[0], force)
			stopSpin(spin)
			if err != nil {
				return err
			}
			rec, err := s.store.Buildsets().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			bs := rec.Buildset
			fmt.Printf("%s %s %s\n", ui.title("buildset"), bs.UUID, ui.result(bs.Result))
			fmt.Printf("%s %s @ %s (%s)\n", ui.info("•"), bs.Project, bs.Branch, bs.Ref)
			for i := range bs.Builds {
				b := &bs.Builds[i]
				fmt.Printf("  %s %-30s %s\n", ui.dim(b.UUID[:minInt(8, len(b.UUID))]), b.JobName, ui.result(b.Result))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Refresh even if already fetched this run")
	return cmd
}

func outputCmd(apiURL, tenant *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:     "output <uuid>",
		Short:   "Show a build's task failures",
		Example: "zuulview output a7f3c9d2 --tenant openstack",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(*tenant) == "" {
				return errors.New("tenant is required")
			}
			s, err := newSession(*apiURL)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			spin := ui.spin("Fetching build output...")
			if _, err := s.orch.FetchBuild(ctx, *tenant, args[0]); err != nil {
				stopSpin(spin)
				return err
			}
			err = s.orch.FetchBuildOutput(ctx, args[0])
			stopSpin(spin)
			if err != nil {
				return err
			}
			st, _ := s.store.States().Get(ctx, args[0], domain.ResourceOutput)
			if st == domain.StateNotAvailable {
				fmt.Printf("%s No logs were published for this build\n", ui.warn("[WARN]"))
				return nil
			}
			rec, err := s.store.Outputs().Get(ctx, args[0])
			if err != nil {
				return err
			}
			printOutput(ui, rec)
			return nil
		},
	}
}

func manifestCmd(apiURL, tenant *string, ui *ui) *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:     "manifest <uuid>",
		Short:   "Show a build's log tree",
		Example: "zuulview manifest a7f3c9d2 --tenant openstack",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(*tenant) == "" {
				return errors.New("tenant is required")
			}
			s, err := newSession(*apiURL)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			spin := ui.spin("Fetching manifest...")
			build, err := s.orch.FetchBuild(ctx, *tenant, args[0])
			if err != nil {
				stopSpin(spin)
				return err
			}
			err = s.orch.FetchBuildManifest(ctx, args[0])
			stopSpin(spin)
			if err != nil {
				return err
			}
			st, _ := s.store.States().Get(ctx, args[0], domain.ResourceManifest)
			switch st {
			case domain.StateNotAvailable:
				fmt.Printf("%s This build published no file manifest\n", ui.warn("[WARN]"))
				return nil
			case domain.StateFailed:
				return errors.New("manifest fetch failed")
			}
			rec, err := s.store.Manifests().Get(ctx, args[0])
			if err != nil {
				return err
			}

			if flat {
				for _, p := range sortedPaths(rec.Index) {
					fmt.Printf("%s %s\n", ui.dim(rec.Index[p].Mimetype), p)
				}
				return nil
			}

			rc := manifest.RenderContext{Tenant: *tenant, Build: build, LogURL: build.LogURL}
			leafURL := func(rc manifest.RenderContext, path, name string, _ *domain.ManifestNode) any {
				return rc.LogURL + path + manifest.Separator + name
			}
			view := manifest.Project(rec.Manifest.Tree, "", rc, leafURL, leafURL)
			printTree(ui, view, "")
			return nil
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "List indexed paths instead of a tree")
	return cmd
}

func downloadCmd(apiURL, tenant *string, ui *ui) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:     "download <uuid> <path>",
		Short:   "Download one file from a build's logs",
		Example: "zuulview download a7f3c9d2 /docs/index.html --tenant openstack",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(*tenant) == "" {
				return errors.New("tenant is required")
			}
			s, err := newSession(*apiURL)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			uuid, path := args[0], args[1]
			if !strings.HasPrefix(path, manifest.Separator) {
				path = manifest.Separator + path
			}

			spin := ui.spin("Fetching manifest...")
			build, err := s.orch.FetchBuild(ctx, *tenant, uuid)
			if err != nil {
				stopSpin(spin)
				return err
			}
			err = s.orch.FetchBuildManifest(ctx, uuid)
			stopSpin(spin)
			if err != nil {
				return err
			}
			rec, err := s.store.Manifests().Get(ctx, uuid)
			if err != nil {
				return fmt.Errorf("build has no manifest: %w", err)
			}
			if _, ok := rec.Index[path]; !ok {
				return fmt.Errorf("no such file in manifest: %s", path)
			}

			if outPath == "" {
				outPath = filepath.Base(path)
			}
			return downloadFile(ctx, build.LogBaseURL()+path, outPath, ui)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination file (default: base name)")
	return cmd
}

func downloadFile(ctx context.Context, url, dest string, ui *ui) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if ui.interactive {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(dest))
		w = io.MultiWriter(f, bar)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return err
	}
	fmt.Printf("%s Saved %s\n", ui.ok("[OK]"), dest)
	return nil
}

func watchCmd(apiURL, tenant *string, ui *ui) *cobra.Command {
	var (
		policy     string
		baseSec    int
		maxSec     int
		timeoutMin int
	)
	cmd := &cobra.Command{
		Use:     "watch <uuid>",
		Short:   "Poll a running build until it finishes",
		Example: "zuulview watch a7f3c9d2 --tenant openstack --poll-seconds 10",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(*tenant) == "" {
				return errors.New("tenant is required")
			}
			if len(args) != 1 {
				return errors.New("exactly one build uuid is required")
			}
			s, err := newSession(*apiURL)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeoutMin > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMin)*time.Minute)
				defer cancel()
			}

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			spin := ui.spin("Waiting for build to finish...")
			defer stopSpin(spin)

			// The orchestrator's cache memoizes by presence, so a watch
			// loop reads the API client directly.
			for attempt := 0; ; attempt++ {
				build, err := s.api.Build(ctx, *tenant, args[0])
				if err != nil && !retryableWatchError(err) {
					return err
				}
				if err == nil && build.Result != "" {
					stopSpin(spin)
					printBuild(ui, build)
					if build.Result != "SUCCESS" {
						os.Exit(1)
					}
					return nil
				}

				delay := backoff.Interval(backoff.Policy(policy),
					time.Duration(baseSec)*time.Second,
					time.Duration(maxSec)*time.Second,
					attempt, rng)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		},
	}
	cmd.Flags().StringVar(&policy, "poll-policy", string(backoff.PolicyFixed), "Poll interval policy: fixed|linear|exponential|exp_full_jitter")
	cmd.Flags().IntVar(&baseSec, "poll-seconds", 10, "Base poll interval")
	cmd.Flags().IntVar(&maxSec, "max-poll-seconds", 60, "Poll interval ceiling")
	cmd.Flags().IntVar(&timeoutMin, "timeout-minutes", 0, "Give up after this many minutes (0 = never)")
	return cmd
}

// retryableWatchError keeps the poll loop alive across transient upstream
// trouble and across the 404 a build returns before it is reported.
func retryableWatchError(err error) bool {
	if transport.IsTransportFailure(err) {
		return true
	}
	var te *transport.Error
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}

func printBuild(ui *ui, b *domain.Build) {
	fmt.Printf("%s %s %s\n", ui.title(b.JobName), ui.dim(b.UUID), ui.result(b.Result))
	fmt.Printf("%s %s @ %s via %s\n", ui.info("•"), b.Project, b.Branch, b.Pipeline)
	if b.Duration > 0 {
		fmt.Printf("%s duration: %s\n", ui.info("•"), (time.Duration(b.Duration) * time.Second).String())
	}
	if b.LogURL != "" {
		fmt.Printf("%s logs: %s\n", ui.info("•"), b.LogURL)
	}
	for _, a := range b.Artifacts {
		fmt.Printf("%s artifact: %s %s\n", ui.info("•"), a.Name, ui.dim(b.ResolveArtifactURL(a)))
	}
}

func printOutput(ui *ui, rec *store.OutputRecord) {
	for host, stats := range rec.Hosts {
		line := fmt.Sprintf("%s ok=%d changed=%d failures=%d", host, stats.OK, stats.Changed, stats.Failures)
		if stats.Failures > 0 {
			fmt.Println(ui.err(line))
		} else {
			fmt.Println(ui.ok(line))
		}
		for _, f := range stats.Failed {
			fmt.Printf("  %s %s\n", ui.err("✗"), f.TaskName)
			if f.Msg != nil {
				fmt.Printf("    %s\n", ui.dim(fmt.Sprint(f.Msg)))
			}
			if f.Stderr != "" {
				fmt.Printf("    %s\n", ui.dim(f.Stderr))
			}
		}
	}
	if len(rec.ErrorIDs) > 0 {
		parts := make([]string, 0, len(rec.ErrorIDs))
		for _, id := range rec.ErrorIDs {
			parts = append(parts, string(id.Kind)+":"+id.Value)
		}
		fmt.Printf("%s failing: %s\n", ui.warn("[WARN]"), strings.Join(parts, ", "))
	}
}

func printTree(ui *ui, nodes []manifest.ViewNode, indent string) {
	for i := range nodes {
		n := &nodes[i]
		if len(n.Children) > 0 || strings.HasSuffix(n.Name, manifest.Separator) {
			fmt.Printf("%s%s\n", indent, ui.title(n.Name))
			printTree(ui, n.Children, indent+"  ")
			continue
		}
		if url, ok := n.Fragment.(string); ok {
			fmt.Printf("%s%s %s\n", indent, n.Name, ui.dim(url))
		} else {
			fmt.Printf("%s%s\n", indent, n.Name)
		}
	}
}

func sortedPaths(index domain.PathIndex) []string {
	out := make([]string, 0, len(index))
	for p := range index {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func helpTemplate(ui *ui) string {
	title := ui.title("zuulview")
	return fmt.Sprintf(`%s — CLI for Zuul build inspection

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  zuulview init
  zuulview build a7f3c9d2 --tenant openstack
  zuulview output a7f3c9d2 --tenant openstack
  zuulview manifest a7f3c9d2 --tenant openstack --flat
  zuulview download a7f3c9d2 /docs/index.html
  zuulview watch a7f3c9d2 --poll-policy exp_full_jitter

`, title, configPath())
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("ZUULVIEW_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".zuulview", "config.yaml")
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("ZUULVIEW_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
