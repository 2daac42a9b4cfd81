package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nachoal/gemini-chat-go/agent"
	"github.com/nachoal/gemini-chat-go/config"
	"github.com/nachoal/gemini-chat-go/imagesink"
	"github.com/nachoal/gemini-chat-go/internal/logger"
	"github.com/nachoal/gemini-chat-go/llm"
	"github.com/nachoal/gemini-chat-go/llm/gemini"
	"github.com/nachoal/gemini-chat-go/repl"
	"github.com/nachoal/gemini-chat-go/tui"
	"github.com/nachoal/gemini-chat-go/tui/styles"
)

var (
	// Flags
	model    string
	imageDir string
	verbose  bool

	// Root command
	rootCmd = &cobra.Command{
		Use:          "gemini-chat",
		Short:        "Chat with Gemini and generate images",
		Long:         "Gemini Chat - a terminal chat with Google's Gemini image generation model. Generated images are saved to disk.",
		SilenceUsage: true,
		RunE:         runTUI,
	}

	// Line-oriented console
	consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Chat in a plain console prompt",
		RunE:  runConsole,
	}

	// Query command for one-shot queries
	queryCmd = &cobra.Command{
		Use:   "query [message]",
		Short: "Send a one-shot message without entering the chat",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE:  showConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model to use")
	rootCmd.PersistentFlags().StringVar(&imageDir, "image-dir", "", "Directory for generated images")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// chat bundles what every front end needs for one session
type chat struct {
	cfg       *config.Config
	manager   *config.Manager
	log       zerolog.Logger
	client    llm.Client
	sink      *imagesink.Sink
	session   *agent.Session
	tracePath string
	closers   []io.Closer
}

func (c *chat) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
}

// loadManager creates the config manager with command flags bound into it
func loadManager(cmd *cobra.Command) (*config.Manager, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	v := manager.Viper()
	for key, flag := range map[string]string{
		config.KeyModel:    "model",
		config.KeyImageDir: "image-dir",
		config.KeyVerbose:  "verbose",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}
	return manager, nil
}

// newChat loads configuration and wires the client, image sink and session.
// A missing API key is returned as a ConfigurationError.
func newChat(cmd *cobra.Command, logOut io.Writer, pretty bool) (*chat, error) {
	manager, err := loadManager(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := manager.Load()
	if err != nil {
		return nil, err
	}

	c := &chat{cfg: cfg, manager: manager}

	level := cfg.LogLevel
	if cfg.Verbose {
		level = string(logger.LevelDebug)
	}
	if logOut == nil {
		logOut = io.Discard
		if cfg.Verbose {
			if f, path, err := openTrace(); err == nil {
				logOut = f
				c.tracePath = path
				c.closers = append(c.closers, f)
			} else {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}
	}
	c.log = logger.Configure(logOut, level, pretty)

	opts := []llm.ClientOption{
		llm.WithAPIKey(cfg.APIKey),
		llm.WithModel(cfg.Model),
		llm.WithTimeout(cfg.Timeout),
		llm.WithLogger(c.log),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	client, err := gemini.NewClient(opts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = client
	c.closers = append(c.closers, client)

	c.sink = imagesink.New(cfg.ImageDir, imagesink.WithLogger(c.log))

	session, err := agent.NewSession(client, c.sink,
		agent.WithModel(cfg.Model),
		agent.WithPersona(cfg.PersonaPrompt, cfg.PersonaAck),
		agent.WithReplayImages(cfg.ReplayImages),
		agent.WithResponseMIMEType(cfg.ResponseMIME),
		agent.WithTemperature(cfg.Temperature),
		agent.WithLogger(c.log),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	c.session = session
	return c, nil
}

func openTrace() (*os.File, string, error) {
	dir, err := logger.TraceDir()
	if err != nil {
		return nil, "", err
	}
	f, err := logger.OpenTraceFile(dir)
	if err != nil {
		return nil, "", err
	}
	return f, f.Name(), nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	c, err := newChat(cmd, nil, false)
	if err != nil {
		return err
	}
	defer c.Close()

	if c.tracePath != "" {
		fmt.Fprintf(os.Stderr, "[Trace] Logging to %s\n", c.tracePath)
	}

	st := styles.NewStyles(styles.GetTheme(c.cfg.Theme))
	tui.PrintHeader(os.Stdout, st, c.session.Model(), c.sink.Dir(), c.cfg.Verbose)

	screen := tui.NewChatTUI(c.session, tui.Options{
		ImageDir:  c.sink.Dir(),
		Theme:     c.cfg.Theme,
		TracePath: c.tracePath,
		Config:    c.manager,
		Logger:    c.log,
	})
	return tui.Run(context.Background(), screen)
}

func runConsole(cmd *cobra.Command, args []string) error {
	fmt.Println("Initializing Gemini Chatbot...")
	c, err := newChat(cmd, os.Stderr, true)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = repl.New(c.session, os.Stdin, os.Stdout, repl.WithLogger(c.log)).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runQuery(cmd *cobra.Command, args []string) error {
	c, err := newChat(cmd, os.Stderr, true)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := c.session.Send(ctx, strings.Join(args, " "), repl.Printer(os.Stdout))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if c.cfg.Verbose && result.Usage != nil {
		fmt.Printf("\n[Tokens: %d]\n", result.Usage.TotalTokens)
	}
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	manager, err := loadManager(cmd)
	if err != nil {
		return err
	}

	out, err := config.Dump(manager.Settings())
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n", manager.Path())
	fmt.Print(string(out))
	return nil
}
