// Package main provides the TrackRelay CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"trackrelay/internal/chat/telegram"
	"trackrelay/internal/core"
	httpserver "trackrelay/internal/http"
	"trackrelay/internal/i18n"
	"trackrelay/internal/spotify"
	"trackrelay/internal/store"
	"trackrelay/pkg/musiclink"
)

const envPrefix = "TRACKRELAY"

// legacyEnvVars maps flags to the unprefixed variables of older deployments.
var legacyEnvVars = map[string]string{
	"telegram-bot-token": "TELEGRAM_BOT_TOKEN",
	"primary-api-key":    "RAPIDAPI_KEY",
	"primary-api-host":   "RAPIDAPI_HOST",
	"secondary-api-key":  "ZYLA_API_KEY",
	"server-port":        "PORT",
}

var (
	cfgFile   string
	config    *core.Config
	configErr error
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trackrelay",
	Short: "TrackRelay - Spotify links → audio files in Telegram",
	Long: `TrackRelay watches Telegram chats for Spotify track links, resolves each track through a
primary conversion provider with a secondary fallback and replies with the audio file.`,
	RunE: runTrackRelay,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", core.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("telegram-bot-token", "", "Telegram bot token")
	flags.String("telegram-allowed-chats", "", "Comma-separated chat IDs the bot answers in (empty allows all chats)")
	flags.String("primary-api-key", "", "Primary provider API key")
	flags.String("primary-api-host", "", "Primary provider API host header")
	flags.String("primary-base-url", musiclink.PrimaryDefaultBaseURL, "Primary provider endpoint")
	flags.Int("primary-timeout-secs", core.DefaultPrimaryTimeoutSecs, "Primary provider request timeout in seconds")
	flags.String("secondary-api-key", "", "Secondary provider API key")
	flags.String("secondary-base-url", musiclink.SecondaryDefaultBaseURL, "Secondary provider endpoint")
	flags.Int("secondary-timeout-secs", core.DefaultSecondaryTimeoutSecs, "Secondary provider request timeout in seconds")
	flags.String("spotify-client-id", "", "Spotify client ID for metadata lookups (optional)")
	flags.String("spotify-client-secret", "", "Spotify client secret for metadata lookups (optional)")
	flags.String("scratch-dir", core.DefaultScratchDir, "Directory for temporary audio files")
	flags.Int("resolution-cache-size", core.DefaultResolutionCacheSize, "Resolved tracks kept in memory (0 disables the cache)")
	flags.Int("resolution-cache-ttl-mins", core.DefaultResolutionCacheTTLMin, "Resolution cache entry lifetime in minutes")
	flags.Int("flood-limit-per-minute", core.DefaultFloodLimitPerMinute, "Maximum track requests per user per minute (0 disables)")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Bot language (%s)", supportedLangs))
	flags.String("server-host", core.DefaultServerHost, "HTTP server host")
	flags.Int("server-port", core.DefaultServerPort, "HTTP server port")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// A missing .env is fine, configuration may come from the environment.
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := bindLegacyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind environment: %v\n", err)
		os.Exit(1)
	}

	config, configErr = buildConfig()
	logger = buildLogger(config.Log.Level)
}

// bindLegacyEnv lets unprefixed variables fill in when the prefixed one is unset.
func bindLegacyEnv() error {
	for flag, legacy := range legacyEnvVars {
		if err := viper.BindEnv(flag, flagToEnvVar(flag), legacy); err != nil {
			return fmt.Errorf("failed to bind %s: %w", legacy, err)
		}
	}
	return nil
}

func buildConfig() (*core.Config, error) {
	cfg := core.DefaultConfig()

	if err := configureTelegram(cfg); err != nil {
		return cfg, err
	}
	configureProviders(cfg)
	configureSpotify(cfg)
	configureServer(cfg)
	configureApp(cfg)

	return cfg, nil
}

func configureTelegram(cfg *core.Config) error {
	cfg.Telegram.BotToken = viper.GetString("telegram-bot-token")

	chats, err := parseAllowedChats(viper.GetString("telegram-allowed-chats"))
	if err != nil {
		return err
	}
	cfg.Telegram.AllowedChats = chats
	return nil
}

// parseAllowedChats parses a comma-separated list of chat IDs.
func parseAllowedChats(raw string) ([]int64, error) {
	var chats []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat ID %q: %w", part, err)
		}
		chats = append(chats, id)
	}
	return chats, nil
}

func configureProviders(cfg *core.Config) {
	cfg.Primary.APIKey = viper.GetString("primary-api-key")
	cfg.Primary.APIHost = viper.GetString("primary-api-host")
	cfg.Primary.BaseURL = viper.GetString("primary-base-url")
	cfg.Primary.TimeoutSecs = viper.GetInt("primary-timeout-secs")

	cfg.Secondary.APIKey = viper.GetString("secondary-api-key")
	cfg.Secondary.BaseURL = viper.GetString("secondary-base-url")
	cfg.Secondary.TimeoutSecs = viper.GetInt("secondary-timeout-secs")
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = core.DefaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
}

func configureApp(cfg *core.Config) {
	cfg.App.ScratchDir = viper.GetString("scratch-dir")
	cfg.App.ResolutionCacheSize = viper.GetInt("resolution-cache-size")
	cfg.App.ResolutionCacheTTLMins = viper.GetInt("resolution-cache-ttl-mins")
	cfg.App.FloodLimitPerMinute = viper.GetInt("flood-limit-per-minute")

	requested := viper.GetString("language")
	cfg.App.Language = i18n.MatchLanguage(requested)
	if requested != "" && !i18n.IsSupported(requested) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', using '%s'. Supported languages: %s\n",
			requested, cfg.App.Language, strings.Join(i18n.GetSupportedLanguages(), ", "))
	}
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runTrackRelay(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	defer func() { _ = logger.Sync() }()

	if configErr != nil {
		return fmt.Errorf("configuration failed: %w", configErr)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting TrackRelay",
		zap.String("language", config.App.Language),
		zap.String("scratch_dir", config.App.ScratchDir),
		zap.Int("allowed_chats", len(config.Telegram.AllowedChats)),
		zap.Bool("metadata_lookup", config.Spotify.ClientID != ""),
		zap.Int("resolution_cache_size", config.App.ResolutionCacheSize))

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

type services struct {
	httpServer *httpserver.Server
	dispatcher *core.Dispatcher
	cache      *store.ResolutionCache
}

func initializeServices(ctx context.Context) (*services, error) {
	fs := afero.NewOsFs()
	if err := core.EnsureScratchDir(fs, config.App.ScratchDir); err != nil {
		return nil, err
	}

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"))

	cache := newResolutionCache(&config.App)
	resolver, err := createResolver(ctx, httpServer, cache)
	if err != nil {
		return nil, err
	}

	frontend := telegram.NewFrontend(&telegram.Config{
		BotToken:            config.Telegram.BotToken,
		AllowedChats:        config.Telegram.AllowedChats,
		FloodLimitPerMinute: config.App.FloodLimitPerMinute,
	}, logger.Named("telegram"))

	deliverer := core.NewDeliverer(fs, config.App.ScratchDir, frontend,
		i18n.NewLocalizer(config.App.Language), logger.Named("delivery"))
	dispatcher := core.NewDispatcher(config, frontend, resolver, deliverer, httpServer,
		logger.Named("dispatcher"))

	return &services{
		httpServer: httpServer,
		dispatcher: dispatcher,
		cache:      cache,
	}, nil
}

// newResolutionCache returns nil when caching is disabled.
func newResolutionCache(app *core.AppConfig) *store.ResolutionCache {
	if app.ResolutionCacheSize <= 0 {
		return nil
	}
	ttl := time.Duration(app.ResolutionCacheTTLMins) * time.Minute
	return store.NewResolutionCache(app.ResolutionCacheSize, ttl, store.DefaultFalsePositiveRate)
}

func createResolver(ctx context.Context, observer musiclink.CallObserver,
	cache *store.ResolutionCache) (*musiclink.Manager, error) {
	managerConfig := musiclink.ManagerConfig{
		Observer: observer,
		Logger:   logger.Named("musiclink"),
	}
	// Avoid storing a typed nil in the interface.
	if cache != nil {
		managerConfig.Cache = cache
	}

	spotifyConfig := spotify.Config{
		ClientID:     config.Spotify.ClientID,
		ClientSecret: config.Spotify.ClientSecret,
	}
	if spotifyConfig.Enabled() {
		client, err := spotify.NewClient(ctx, spotifyConfig, logger.Named("spotify"))
		if err != nil {
			return nil, fmt.Errorf("failed to create Spotify client: %w", err)
		}
		managerConfig.Metadata = client
	}

	return musiclink.NewDefaultManager(
		musiclink.PrimaryConfig{
			BaseURL: config.Primary.BaseURL,
			APIKey:  config.Primary.APIKey,
			APIHost: config.Primary.APIHost,
			Timeout: config.Primary.Timeout(),
		},
		musiclink.SecondaryConfig{
			BaseURL: config.Secondary.BaseURL,
			APIKey:  config.Secondary.APIKey,
			Timeout: config.Secondary.Timeout(),
		},
		managerConfig,
	), nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return svcs.dispatcher.Start(gCtx)
	})

	logger.Info("TrackRelay started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	err := g.Wait()
	if svcs.cache != nil {
		logger.Info("Resolution cache at shutdown", zap.Int("entries", svcs.cache.Size()))
	}
	if err != nil {
		logger.Error("TrackRelay stopped with error", zap.Error(err))
		return err
	}

	logger.Info("TrackRelay stopped gracefully")
	return nil
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# TrackRelay Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: TRACKRELAY_<SECTION>_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<section>-<setting>\n")
	content.WriteString("#\n")
	content.WriteString("# Legacy variables (TELEGRAM_BOT_TOKEN, RAPIDAPI_KEY, RAPIDAPI_HOST, ZYLA_API_KEY, PORT)\n")
	content.WriteString("# are still read when the prefixed variable is not set.\n")
	content.WriteString("#\n\n")

	generateTelegramSection(&content, cmd)
	generateProvidersSection(&content, cmd)
	generateSpotifySection(&content)
	generateAppSection(&content, cmd)
	generateServerSection(&content, cmd)
	generateLoggingSection(&content, cmd)

	return content.String()
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}

func writeSectionHeader(content *strings.Builder, title, cli string) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", title)
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# CLI: %s\n", cli)
}

func generateTelegramSection(content *strings.Builder, _ *cobra.Command) {
	writeSectionHeader(content, "Telegram Configuration", "--telegram-bot-token, --telegram-allowed-chats")

	fmt.Fprintf(content, "%s=                                # Bot token from @BotFather (REQUIRED)\n",
		flagToEnvVar("telegram-bot-token"))
	fmt.Fprintf(content, "%s=                            # Comma-separated chat IDs (default: all chats)\n",
		flagToEnvVar("telegram-allowed-chats"))
	content.WriteString("\n")
}

func generateProvidersSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Conversion Providers", "--primary-*, --secondary-*")

	primaryTimeout := getDefaultValueString(cmd, "primary-timeout-secs")
	secondaryTimeout := getDefaultValueString(cmd, "secondary-timeout-secs")

	fmt.Fprintf(content, "%s=                                   # Primary provider API key\n",
		flagToEnvVar("primary-api-key"))
	fmt.Fprintf(content, "%s=                                  # Primary provider API host header\n",
		flagToEnvVar("primary-api-host"))
	fmt.Fprintf(content, "# %s=%s\n",
		flagToEnvVar("primary-base-url"), getDefaultValueString(cmd, "primary-base-url"))
	fmt.Fprintf(content, "%s=%s                           # Primary request timeout (default: %s)\n",
		flagToEnvVar("primary-timeout-secs"), primaryTimeout, primaryTimeout)
	fmt.Fprintf(content, "%s=                                 # Secondary provider API key\n",
		flagToEnvVar("secondary-api-key"))
	fmt.Fprintf(content, "# %s=%s\n",
		flagToEnvVar("secondary-base-url"), getDefaultValueString(cmd, "secondary-base-url"))
	fmt.Fprintf(content, "%s=%s                           # Secondary request timeout (default: %s)\n",
		flagToEnvVar("secondary-timeout-secs"), secondaryTimeout, secondaryTimeout)
	content.WriteString("\n")
}

func generateSpotifySection(content *strings.Builder) {
	writeSectionHeader(content, "Spotify Metadata Lookup (optional)", "--spotify-client-id, --spotify-client-secret")

	content.WriteString("# Fills in missing titles and artists. Create an app at https://developer.spotify.com/dashboard\n")
	fmt.Fprintf(content, "%s=\n", flagToEnvVar("spotify-client-id"))
	fmt.Fprintf(content, "%s=\n", flagToEnvVar("spotify-client-secret"))
	content.WriteString("\n")
}

func generateAppSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Application Settings",
		"--scratch-dir, --resolution-cache-*, --flood-limit-per-minute, --language")

	scratchDefault := getDefaultValueString(cmd, "scratch-dir")
	cacheDefault := getDefaultValueString(cmd, "resolution-cache-size")
	ttlDefault := getDefaultValueString(cmd, "resolution-cache-ttl-mins")
	floodDefault := getDefaultValueString(cmd, "flood-limit-per-minute")
	langDefault := getDefaultValueString(cmd, "language")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")

	fmt.Fprintf(content, "%s=%s                                # Temporary audio files (default: %s)\n",
		flagToEnvVar("scratch-dir"), scratchDefault, scratchDefault)
	fmt.Fprintf(content, "%s=%s                         # Cached resolutions, 0 disables (default: %s)\n",
		flagToEnvVar("resolution-cache-size"), cacheDefault, cacheDefault)
	fmt.Fprintf(content, "%s=%s                    # Cache entry lifetime (default: %s)\n",
		flagToEnvVar("resolution-cache-ttl-mins"), ttlDefault, ttlDefault)
	fmt.Fprintf(content, "%s=%s                        # Requests per user per minute, 0 disables (default: %s)\n",
		flagToEnvVar("flood-limit-per-minute"), floodDefault, floodDefault)
	fmt.Fprintf(content, "%s=%s                                    # Bot language: %s (default: %s)\n",
		flagToEnvVar("language"), langDefault, supportedLangs, langDefault)
	content.WriteString("\n")
}

func generateServerSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "HTTP Server Configuration", "--server-host, --server-port")

	hostDefault := getDefaultValueString(cmd, "server-host")
	portDefault := getDefaultValueString(cmd, "server-port")

	fmt.Fprintf(content, "%s=%s                         # Server bind address (default: %s)\n",
		flagToEnvVar("server-host"), hostDefault, hostDefault)
	fmt.Fprintf(content, "%s=%s                              # Server port (default: %s)\n",
		flagToEnvVar("server-port"), portDefault, portDefault)
	content.WriteString("\n")
}

func generateLoggingSection(content *strings.Builder, cmd *cobra.Command) {
	writeSectionHeader(content, "Logging Configuration", "--log-level")

	logDefault := getDefaultValueString(cmd, "log-level")

	fmt.Fprintf(content, "%s=%s                                # Log level: debug, info, warn, error (default: %s)\n",
		flagToEnvVar("log-level"), logDefault, logDefault)
	content.WriteString("\n")
}
