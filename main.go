// txsync: Transifex translation sync tool with AI translation and review.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/edSPIRIT/transifex-tools/config"
	"github.com/edSPIRIT/transifex-tools/csvfile"
	"github.com/edSPIRIT/transifex-tools/i18n"
	"github.com/edSPIRIT/transifex-tools/jsonfile"
	"github.com/edSPIRIT/transifex-tools/lockfile"
	"github.com/edSPIRIT/transifex-tools/pofile"
	"github.com/edSPIRIT/transifex-tools/review"
	"github.com/edSPIRIT/transifex-tools/settings"
	"github.com/edSPIRIT/transifex-tools/transifex"
	"github.com/edSPIRIT/transifex-tools/translate"
	"github.com/edSPIRIT/transifex-tools/validate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// Fetch modes.
const (
	modeUntranslated = "untranslated"
	modeUnreviewed   = "unreviewed"
)

// Default directories.
const (
	defaultOutputDir       = "output"
	defaultTranslationsDir = "translations"
	defaultReviewsDir      = "reviews"
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "txsync",
		Short: "Transifex translation sync tool with AI translation and review",
		Long: `txsync: Transifex translation sync tool.

Synchronizes localization strings between Transifex and local files,
translates untranslated strings with an AI model (protecting template
placeholders), reviews existing translations concurrently, and validates
translation files (PO, JSON, YAML) for placeholder integrity.

Commands:
  fetch       Fetch untranslated/unreviewed strings from Transifex
  translate   Translate fetched strings using an AI model
  review      Review unreviewed translations using an AI model
  update      Push saved translations and reviews back to Transifex
  validate    Validate translation files for placeholder integrity

Configuration is read from the environment (or a .env file):
  TRANSIFEX_API_TOKEN, TRANSIFEX_ORGANIZATION, TRANSIFEX_PROJECT,
  TARGET_LANGUAGES (comma-separated language codes).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newFetchCmd(),
		newTranslateCmd(),
		newReviewCmd(),
		newUpdateCmd(),
		newValidateCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// signalContext returns a context canceled by Ctrl-C.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored AI provider API keys",
		Long: `Store, inspect, and remove AI provider API keys. Stored keys are used
when neither the --api-key flag nor the TXSYNC_API_KEY / OPENAI_API_KEY
environment variables are set.

Keys are kept in ` + settings.FilePath() + ` with 0600 permissions.`,
	}

	var baseURL string
	set := &cobra.Command{
		Use:   "set <provider> <api-key>",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, key := args[0], args[1]
			if _, ok := translate.DefaultProviders()[provider]; !ok {
				return fmt.Errorf("unknown provider %q", provider)
			}
			var err error
			if baseURL != "" {
				err = settings.SetAPIKeyWithBaseURL(provider, key, baseURL)
			} else {
				err = settings.SetAPIKey(provider, key)
			}
			if err != nil {
				return err
			}
			logSuccess("Stored API key for %s (%s)", provider, settings.MaskKey(key))
			return nil
		},
	}
	set.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL to store with the key")

	show := &cobra.Command{
		Use:   "show",
		Short: "List stored credentials (keys masked)",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()
			if len(store) == 0 {
				logInfo("No stored credentials.")
				return
			}
			providers := make([]string, 0, len(store))
			for p := range store {
				providers = append(providers, p)
			}
			sort.Strings(providers)
			for _, p := range providers {
				info := store[p]
				if info.BaseURL != "" {
					fmt.Printf("%s: %s (%s)\n", p, settings.MaskKey(info.Key), info.BaseURL)
				} else {
					fmt.Printf("%s: %s\n", p, settings.MaskKey(info.Key))
				}
			}
		},
	}

	remove := &cobra.Command{
		Use:   "remove [provider]",
		Short: "Remove a stored credential (or all of them)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("Removed all stored credentials")
				return nil
			}
			if err := settings.Remove(args[0]); err != nil {
				return err
			}
			logSuccess("Removed credentials for %s", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, show, remove)
	return cmd
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("txsync version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared setup helpers
// ---------------------------------------------------------------------------

// newAPIClient loads the environment configuration and builds the Transifex
// client from it.
func newAPIClient() (*transifex.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	client, err := transifex.NewClient(cfg.APIToken, cfg.Organization, cfg.Project)
	if err != nil {
		return nil, nil, err
	}
	client.OnLog = logInfo
	return client, cfg, nil
}

// providerFlags is the set of AI provider flags shared by the translate and
// review commands.
type providerFlags struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	proxy      string
	timeout    time.Duration
	maxRetries int
	verbose    bool
}

func (pf *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pf.provider, "provider", translate.ProviderOpenAI, "AI provider: openai, google, groq, ollama, custom-openai")
	cmd.Flags().StringVar(&pf.model, "model", "", "Model name (default: provider default)")
	cmd.Flags().StringVar(&pf.apiKey, "api-key", "", "API key (or TXSYNC_API_KEY / OPENAI_API_KEY env var)")
	cmd.Flags().StringVar(&pf.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&pf.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().DurationVar(&pf.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().IntVar(&pf.maxRetries, "max-retries", 3, "Maximum retries on rate limit (429)")
	cmd.Flags().BoolVar(&pf.verbose, "verbose", false, "Enable detailed logging")
}

// resolve turns the flags into a concrete provider configuration.
func (pf *providerFlags) resolve() (translate.Provider, error) {
	providers := translate.DefaultProviders()
	prov, ok := providers[pf.provider]
	if !ok {
		return translate.Provider{}, fmt.Errorf("unknown provider %q", pf.provider)
	}
	if pf.model != "" {
		prov.Model = pf.model
	}
	if prov.Model == "" {
		return translate.Provider{}, fmt.Errorf("provider %s requires --model", pf.provider)
	}
	if pf.baseURL != "" {
		prov.BaseURL = pf.baseURL
	} else if prov.BaseURL == "" {
		prov.BaseURL = settings.GetBaseURL(pf.provider)
	}
	if pf.timeout > 0 {
		prov.Timeout = pf.timeout
	}
	prov.Proxy = pf.proxy

	// Key lookup order: flag, environment, credential store.
	prov.APIKey = pf.apiKey
	if prov.APIKey == "" {
		prov.APIKey = os.Getenv("TXSYNC_API_KEY")
	}
	if prov.APIKey == "" {
		prov.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if prov.APIKey == "" {
		prov.APIKey = settings.GetAPIKey(pf.provider)
	}
	if prov.APIKey == "" && prov.ID != translate.ProviderOllama {
		return translate.Provider{}, fmt.Errorf("provider %s requires an API key (flag --api-key, env TXSYNC_API_KEY, or txsync auth set)", pf.provider)
	}
	return prov, nil
}

// engineOptions builds translate.Options for a target language.
func (pf *providerFlags) engineOptions(lang string) (translate.Options, error) {
	prov, err := pf.resolve()
	if err != nil {
		return translate.Options{}, err
	}
	return translate.Options{
		Provider:   prov,
		Language:   lang,
		MaxRetries: pf.maxRetries,
		Verbose:    pf.verbose,
		OnLog:      logInfo,
		OnError:    logWarning,
	}, nil
}

// ---------------------------------------------------------------------------
// fetch
// ---------------------------------------------------------------------------

func newFetchCmd() *cobra.Command {
	var (
		mode      string
		force     bool
		useAsync  bool
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch strings from Transifex",
		Long: `Fetch untranslated or unreviewed strings from Transifex into CSV files
under the output directory. Existing CSVs are reused unless --force is set.

With --async, whole translation files are downloaded instead, routed to
their on-disk locations via the transifex.yml resource mapping.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != modeUntranslated && mode != modeUnreviewed && mode != "all" {
				return fmt.Errorf("invalid mode %q", mode)
			}

			ctx, cancel := signalContext()
			defer cancel()

			client, cfg, err := newAPIClient()
			if err != nil {
				return err
			}
			resources, err := client.Resources(ctx)
			if err != nil {
				return err
			}
			logInfo(i18n.Tf("Found %d resources", len(resources)))

			if useAsync {
				return fetchFilesAsync(ctx, client, resources, cfg, force)
			}

			modes := []string{mode}
			if mode == "all" {
				modes = []string{modeUntranslated, modeUnreviewed}
			}
			for _, m := range modes {
				if _, err := fetchStrings(ctx, client, resources, cfg, m, force, outputDir); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeUntranslated, "Strings to fetch: untranslated, unreviewed, all")
	cmd.Flags().BoolVar(&force, "force", false, "Force download even if cached CSVs exist")
	cmd.Flags().BoolVar(&useAsync, "async", false, "Download whole translation files via async jobs")
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "Directory for cached CSV files")

	return cmd
}

// cachePath returns the cached CSV path for a mode and language.
func cachePath(outputDir, mode, lang string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.csv", mode, lang))
}

// cachedItems loads cached CSVs for every language that has one.
func cachedItems(outputDir, mode string, langs []string) map[string][]csvfile.Item {
	cached := make(map[string][]csvfile.Item)
	for _, lang := range langs {
		path := cachePath(outputDir, mode, lang)
		items, err := csvfile.ReadItems(path)
		if err != nil {
			continue
		}
		logInfo("Found cached %s strings for %s", mode, lang)
		cached[lang] = items
	}
	return cached
}

// fetchStrings returns items per language, from cache when allowed and
// populated, otherwise from the API (saving fresh CSVs).
func fetchStrings(ctx context.Context, client *transifex.Client, resources []transifex.Resource, cfg *config.Config, mode string, force bool, outputDir string) (map[string][]csvfile.Item, error) {
	if !force {
		if cached := cachedItems(outputDir, mode, cfg.TargetLanguages); len(cached) > 0 {
			logInfo(i18n.Tf("Using cached %s strings", mode))
			return cached, nil
		}
	}

	logInfo(i18n.Tf("Downloading %s strings from Transifex", mode))
	byLang := make(map[string][]csvfile.Item)

	for _, res := range resources {
		logInfo("Processing resource: %s", res.Name)
		for _, lang := range cfg.TargetLanguages {
			var strs []transifex.TranslationString
			var err error
			if mode == modeUntranslated {
				strs, err = client.UntranslatedStrings(ctx, res.ID, lang)
			} else {
				strs, err = client.UnreviewedStrings(ctx, res.ID, lang)
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logWarning("Error processing %s for language %s: %v", res.Name, lang, err)
				continue
			}
			for _, s := range strs {
				byLang[lang] = append(byLang[lang], csvfile.Item{
					Resource:    res.Name,
					Key:         s.Key,
					Source:      s.Source,
					Translation: s.Translation,
					Context:     s.Context,
				})
			}
		}
	}

	withTranslation := mode == modeUnreviewed
	for lang, items := range byLang {
		path := cachePath(outputDir, mode, lang)
		if err := csvfile.WriteItems(path, items, withTranslation); err != nil {
			return nil, err
		}
		logSuccess("Saved %d %s strings for %s to %s", len(items), mode, lang, path)
	}
	return byLang, nil
}

// fetchFilesAsync downloads whole translation files through async download
// jobs, using transifex.yml to route each file to its on-disk location.
func fetchFilesAsync(ctx context.Context, client *transifex.Client, resources []transifex.Resource, cfg *config.Config, force bool) error {
	rm, err := config.LoadResourceMap("transifex.yml")
	if err != nil {
		return err
	}
	logInfo("Loaded %d resource configurations from transifex.yml", rm.Len())

	type pendingJob struct {
		job      *transifex.DownloadJob
		resource string
		lang     string
		path     string
	}
	var jobs []pendingJob
	var completed, failed, skipped int
	processed := make(map[string]bool)

	for _, res := range resources {
		name, rc, ok := rm.Match(res.Name)
		if !ok {
			logWarning("No configuration found for %s in transifex.yml", res.Name)
			failed++
			continue
		}
		processed[name] = true

		for _, lang := range cfg.TargetLanguages {
			outputPath := rc.OutputPath(res.Name, lang)

			if !force {
				if _, err := os.Stat(outputPath); err == nil {
					logInfo("Skipping existing file: %s", outputPath)
					skipped++
					continue
				}
			}

			job, err := client.CreateDownloadJob(ctx, res.ID, lang)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logWarning("Error creating download job for %s (%s): %v", res.Name, lang, err)
				failed++
				continue
			}
			jobs = append(jobs, pendingJob{job: job, resource: res.Name, lang: lang, path: outputPath})
		}
	}

	for _, pj := range jobs {
		if err := client.WaitDownload(ctx, pj.job, pj.path, 5*time.Second, 30); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logWarning("Download failed for %s (%s): %v", pj.resource, pj.lang, err)
			failed++
			continue
		}
		if strings.HasSuffix(pj.path, ".po") {
			if err := normalizePOFile(pj.path); err != nil {
				logWarning("Could not normalize %s: %v", pj.path, err)
			}
		}
		logSuccess("Downloaded %s (%s) to %s", pj.resource, pj.lang, pj.path)
		completed++
	}

	// Report configured resources the project no longer exposes.
	for _, name := range rm.Names() {
		if !processed[name] {
			logWarning("Configured resource not present in project: %s", name)
		}
	}

	logInfo("Completed: %d, failed: %d, skipped: %d", completed, failed, skipped)
	if failed > 0 {
		return fmt.Errorf("%d download(s) failed", failed)
	}
	return nil
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		mode            string
		push            bool
		force           bool
		retranslate     bool
		outputDir       string
		translationsDir string
		pf              providerFlags
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate fetched strings using an AI model",
		Long: `Translate untranslated strings (or review unreviewed ones) using the
configured AI provider. Placeholders in source strings are protected by
opaque markers during the model call and verified afterwards; a translation
that loses a placeholder is replaced by the original source text.

Results are merged into per-language JSON files under the translations
directory, and a txsync.lock ledger records checksums of translated source
strings so later runs skip unchanged ones (disable with --retranslate).
With --update, the results are also pushed to Transifex.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != modeUntranslated && mode != modeUnreviewed {
				return fmt.Errorf("invalid mode %q", mode)
			}

			ctx, cancel := signalContext()
			defer cancel()

			client, cfg, err := newAPIClient()
			if err != nil {
				return err
			}
			resources, err := client.Resources(ctx)
			if err != nil {
				return err
			}
			logInfo(i18n.Tf("Found %d resources", len(resources)))

			byLang, err := fetchStrings(ctx, client, resources, cfg, mode, force, outputDir)
			if err != nil {
				return err
			}

			lock, err := lockfile.Load(translationsDir)
			if err != nil {
				return err
			}

			for lang, items := range byLang {
				opts, err := pf.engineOptions(lang)
				if err != nil {
					return err
				}
				engine := translate.NewEngine(opts)
				logInfo("Processing translations for %s (%s)", lang, translate.LangDisplayName(lang))

				for resource, group := range groupByResource(items) {
					target := lockfile.Target(lang, resource)
					if mode == modeUntranslated {
						// Prune ledger entries for keys no longer in the
						// untranslated set; they are never consulted again.
						lock.Clean(target, itemKeys(group))
					}
					if mode == modeUntranslated && !retranslate {
						unchanged := len(group)
						group = changedItems(lock, target, group)
						if skipped := unchanged - len(group); skipped > 0 {
							logInfo("Skipping %d unchanged strings in %s", skipped, resource)
						}
						if len(group) == 0 {
							continue
						}
					}
					logInfo("Processing %s (%d strings)...", resource, len(group))
					records := make([]jsonfile.Record, 0, len(group))

					for _, item := range group {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						if mode == modeUntranslated {
							translated := engine.Translate(ctx, item.Source, item.Context)
							if translated != item.Source {
								lock.Update(target, item.Key, lockfile.EntryContent(item.Source, item.Context))
							}
							records = append(records, jsonfile.Record{
								Key:         item.Key,
								Source:      item.Source,
								Translation: translated,
								Context:     item.Context,
								Action:      jsonfile.ActionTranslate,
							})
						} else {
							res := engine.Review(ctx, item)
							records = append(records, jsonfile.Record{
								Key:         item.Key,
								Source:      item.Source,
								Translation: item.Translation,
								Context:     item.Context,
								Action:      jsonfile.ActionReview,
								Approved:    res.IsValid,
							})
						}
					}

					path, err := jsonfile.Merge(translationsDir, lang, resource, records)
					if err != nil {
						return err
					}
					logSuccess("Updated translations for %s in %s", resource, path)
				}
			}

			if mode == modeUntranslated {
				if err := lock.Save(); err != nil {
					return err
				}
			}

			if push {
				return pushTranslations(ctx, client, resources, translationsDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeUntranslated, "Strings to process: untranslated, unreviewed")
	cmd.Flags().BoolVar(&push, "update", false, "Push results to Transifex after translating")
	cmd.Flags().BoolVar(&force, "force", false, "Force download even if cached CSVs exist")
	cmd.Flags().BoolVar(&retranslate, "retranslate", false, "Translate all strings, ignoring the txsync.lock ledger")
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "Directory for cached CSV files")
	cmd.Flags().StringVar(&translationsDir, "translations-dir", defaultTranslationsDir, "Directory for per-language JSON result files")
	pf.register(cmd)

	return cmd
}

// normalizePOFile rewrites a downloaded PO file through the parser so every
// file on disk carries the same quoting and line layout regardless of how
// Transifex serialized it.
func normalizePOFile(path string) error {
	f, err := pofile.ParseFile(path)
	if err != nil {
		return err
	}
	return f.WriteFile(path)
}

// itemKeys returns the string keys of items.
func itemKeys(items []csvfile.Item) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return keys
}

// changedItems filters out items whose source text is unchanged since the
// last recorded translation.
func changedItems(lock *lockfile.LockFile, target string, items []csvfile.Item) []csvfile.Item {
	changed := items[:0:0]
	for _, item := range items {
		if lock.IsChanged(target, item.Key, lockfile.EntryContent(item.Source, item.Context)) {
			changed = append(changed, item)
		}
	}
	return changed
}

// groupByResource partitions items by resource name, preserving item order
// within each group.
func groupByResource(items []csvfile.Item) map[string][]csvfile.Item {
	grouped := make(map[string][]csvfile.Item)
	for _, item := range items {
		grouped[item.Resource] = append(grouped[item.Resource], item)
	}
	return grouped
}

// ---------------------------------------------------------------------------
// update
// ---------------------------------------------------------------------------

func newUpdateCmd() *cobra.Command {
	var translationsDir string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Push saved translations and reviews back to Transifex",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			client, _, err := newAPIClient()
			if err != nil {
				return err
			}
			resources, err := client.Resources(ctx)
			if err != nil {
				return err
			}
			return pushTranslations(ctx, client, resources, translationsDir)
		},
	}

	cmd.Flags().StringVar(&translationsDir, "translations-dir", defaultTranslationsDir, "Directory with per-language JSON result files")
	return cmd
}

// pushTranslations reads every per-language JSON result file and pushes
// translate records as translations and approved review records as reviews.
func pushTranslations(ctx context.Context, client *transifex.Client, resources []transifex.Resource, translationsDir string) error {
	entries, err := os.ReadDir(translationsDir)
	if os.IsNotExist(err) {
		logWarning("No translations directory found at %s", translationsDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", translationsDir, err)
	}

	resourceIDs := make(map[string]string, len(resources))
	for _, res := range resources {
		resourceIDs[res.Name] = res.ID
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".json")

		store, err := jsonfile.Load(filepath.Join(translationsDir, entry.Name()))
		if err != nil {
			logWarning("Error reading %s: %v", entry.Name(), err)
			continue
		}

		for resource, records := range store {
			id, ok := resourceIDs[resource]
			if !ok {
				logWarning("Resource %s not found in project", resource)
				continue
			}
			logInfo("Pushing %d records for %s (%s)", len(records), resource, lang)

			for _, rec := range records {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				switch {
				case rec.Action == jsonfile.ActionTranslate:
					if err := client.UpdateTranslation(ctx, id, lang, rec.Key, rec.Translation); err != nil {
						logWarning("Error updating key %s: %v", rec.Key, err)
						continue
					}
					logSuccess("Updated translation for key: %s", rec.Key)
				case rec.Action == jsonfile.ActionReview && rec.Approved:
					if err := client.MarkReviewed(ctx, id, lang, rec.Key); err != nil {
						logWarning("Error reviewing key %s: %v", rec.Key, err)
						continue
					}
					logSuccess("Marked as reviewed for key: %s", rec.Key)
				}
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// review
// ---------------------------------------------------------------------------

func newReviewCmd() *cobra.Command {
	var (
		language   string
		push       bool
		force      bool
		approveAll bool
		workers    int
		outputDir  string
		reviewsDir string
		pf         providerFlags
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review unreviewed translations using an AI model",
		Long: `Review existing translations with a concurrent worker pool. Each
translation is classified as approved or rejected with an explanation;
results are written to approved_<lang>.csv and rejected_<lang>.csv in the
reviews directory. Per-item model failures never abort the batch: failed
items land in the rejected file with the error as explanation.

With --update, previously approved translations are marked reviewed in
Transifex (interactively, unless --approve-all is set).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			client, cfg, err := newAPIClient()
			if err != nil {
				return err
			}

			if push {
				return pushReviews(ctx, client, language, reviewsDir, approveAll)
			}

			langs := languagesToReview(language, outputDir)
			if len(langs) == 0 {
				logWarning("No languages found for review. Fetch unreviewed strings first or pass --language.")
				return nil
			}

			for _, lang := range langs {
				inputCSV := cachePath(outputDir, modeUnreviewed, lang)

				if force || !fileExists(inputCSV) {
					logInfo("Fetching unreviewed strings for %s...", lang)
					resources, err := client.Resources(ctx)
					if err != nil {
						return err
					}
					langCfg := *cfg
					langCfg.TargetLanguages = []string{lang}
					byLang, err := fetchStrings(ctx, client, resources, &langCfg, modeUnreviewed, true, outputDir)
					if err != nil {
						return err
					}
					if len(byLang[lang]) == 0 {
						logWarning("No unreviewed strings found for %s", lang)
						continue
					}
				}

				items, err := csvfile.ReadItems(inputCSV)
				if err != nil {
					return err
				}
				if err := reviewLanguage(ctx, lang, items, workers, reviewsDir, &pf); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Language code to review (default: all with unreviewed strings)")
	cmd.Flags().BoolVar(&push, "update", false, "Mark approved translations as reviewed in Transifex")
	cmd.Flags().BoolVar(&force, "force", false, "Fetch fresh unreviewed strings before review")
	cmd.Flags().BoolVar(&approveAll, "approve-all", false, "Apply all updates without asking")
	cmd.Flags().IntVar(&workers, "workers", review.DefaultWorkers, "Number of concurrent review workers")
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "Directory for cached CSV files")
	cmd.Flags().StringVar(&reviewsDir, "reviews-dir", defaultReviewsDir, "Directory for review result files")
	pf.register(cmd)

	return cmd
}

// languagesToReview returns the explicit language, or every language with a
// cached unreviewed CSV.
func languagesToReview(language, outputDir string) []string {
	if language != "" {
		return []string{language}
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil
	}
	var langs []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, modeUnreviewed+"_") && strings.HasSuffix(name, ".csv") {
			langs = append(langs, strings.TrimSuffix(strings.TrimPrefix(name, modeUnreviewed+"_"), ".csv"))
		}
	}
	sort.Strings(langs)
	return langs
}

// reviewLanguage runs the concurrent review batch for one language and
// writes the result files.
func reviewLanguage(ctx context.Context, lang string, items []csvfile.Item, workers int, reviewsDir string, pf *providerFlags) error {
	opts, err := pf.engineOptions(lang)
	if err != nil {
		return err
	}
	engine := translate.NewEngine(opts)

	logInfo(i18n.Tf("Reviewing %d translations using %d workers...", len(items), workers))

	bar := progressbar.Default(int64(len(items)), "reviewing "+lang)
	coord := &review.Coordinator{
		Engine:  engine,
		Workers: workers,
		OnResult: func(res csvfile.Result, done, total int) {
			_ = bar.Add(1)
			if pf.verbose {
				status := "REJECTED"
				if res.IsValid {
					status = "APPROVED"
				}
				logInfo("%s: %s: %s", status, res.Key, res.Explanation)
			}
		},
	}

	batch, err := coord.ProcessBatch(ctx, items)
	if err != nil {
		return err
	}
	_ = bar.Finish()

	approvedFile, rejectedFile, err := batch.WriteFiles(reviewsDir, lang)
	if err != nil {
		return err
	}

	logInfo("Total strings reviewed: %d", len(batch.All))
	logSuccess(i18n.Tf("Approved: %d", len(batch.Approved)))
	logWarning(i18n.Tf("Rejected: %d", len(batch.Rejected)))
	logInfo("Approved translations saved to: %s", approvedFile)
	logInfo("Rejected translations saved to: %s", rejectedFile)
	return nil
}

// pushReviews marks approved translations as reviewed in Transifex.
func pushReviews(ctx context.Context, client *transifex.Client, language, reviewsDir string, approveAll bool) error {
	type approvedFile struct {
		lang string
		path string
	}
	var files []approvedFile

	if language != "" {
		path := filepath.Join(reviewsDir, fmt.Sprintf("approved_%s.csv", language))
		if !fileExists(path) {
			logWarning("No approved translations found for %s", language)
			return nil
		}
		files = append(files, approvedFile{lang: language, path: path})
	} else {
		entries, err := os.ReadDir(reviewsDir)
		if err != nil {
			logWarning("No approved translations found to update.")
			return nil
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, "approved_") && strings.HasSuffix(name, ".csv") {
				lang := strings.TrimSuffix(strings.TrimPrefix(name, "approved_"), ".csv")
				files = append(files, approvedFile{lang: lang, path: filepath.Join(reviewsDir, name)})
			}
		}
	}
	if len(files) == 0 {
		logWarning("No approved translations found to update.")
		return nil
	}

	resources, err := client.Resources(ctx)
	if err != nil {
		return err
	}
	resourceIDs := make(map[string]string, len(resources))
	for _, res := range resources {
		resourceIDs[res.Name] = res.ID
	}

	reader := bufio.NewReader(os.Stdin)
	for _, af := range files {
		logInfo("Processing approved translations for %s from %s", af.lang, af.path)
		results, err := csvfile.ReadResults(af.path)
		if err != nil {
			return err
		}

		for _, res := range results {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			id, ok := resourceIDs[res.Resource]
			if !ok {
				logWarning("Resource not found for: %s", res.Resource)
				continue
			}

			if !approveAll {
				fmt.Printf("\nReview translation for: %s\n", res.Key)
				fmt.Printf("Source: %s\n", res.Source)
				fmt.Printf("Translation: %s\n", res.Translation)
				fmt.Printf("Explanation: %s\n", res.Explanation)
				fmt.Print("Mark as reviewed in Transifex? [y/N]: ")
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					logInfo("Skipped.")
					continue
				}
			}

			if err := client.MarkReviewed(ctx, id, af.lang, res.Key); err != nil {
				logWarning("Error marking %s as reviewed: %v", res.Key, err)
				continue
			}
			logSuccess("Marked as reviewed in Transifex: %s", res.Key)
		}
		logInfo("Finished processing %s", af.path)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

func newValidateCmd() *cobra.Command {
	var (
		directory string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate translation files for placeholder integrity",
		Long: `Validate PO, JSON, and YAML translation files: every placeholder in a
source string must appear in its translation, and translations must not
invent placeholders. Exits non-zero when any file fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(directory); err != nil {
				return fmt.Errorf("directory %s does not exist", directory)
			}

			f := validate.Format(format)
			switch f {
			case validate.FormatAll, validate.FormatPO, validate.FormatJSON, validate.FormatYAML:
			default:
				return fmt.Errorf("invalid format %q", format)
			}

			logInfo("Validating translation files in %s (format: %s)", directory, format)
			report, err := validate.Directory(directory, f)
			if err != nil {
				return err
			}
			printValidationReport(report)

			if report.HasErrors() {
				return fmt.Errorf("%d invalid file(s)", len(report.Invalid))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&directory, "directory", defaultTranslationsDir, "Directory containing translation files")
	cmd.Flags().StringVar(&format, "format", string(validate.FormatAll), "File format to validate: all, po, json, yaml")

	return cmd
}

func printValidationReport(report *validate.Report) {
	fmt.Println("\n=== Validation Report ===")
	fmt.Printf("\nValid files (%d):\n", len(report.Valid))
	for _, file := range report.Valid {
		fmt.Printf("  ✓ %s\n", file)
	}

	if len(report.Invalid) > 0 {
		fmt.Printf("\nInvalid files (%d):\n", len(report.Invalid))
		for _, fe := range report.Errors {
			fmt.Printf("\n  ✗ %s\n", fe.File)
			for _, line := range strings.Split(fe.Message, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}
}
