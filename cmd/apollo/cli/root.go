package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/apollo/internal/config"
	"github.com/felixgeelhaar/apollo/internal/credential"
	"github.com/felixgeelhaar/apollo/internal/observe"
	"github.com/felixgeelhaar/apollo/internal/provider"
	"github.com/felixgeelhaar/apollo/internal/store"
	"github.com/felixgeelhaar/apollo/internal/ui/tui"
)

var (
	verbose       bool
	providerType  string
	modelName     string
	useCLI        bool
	ciMode        bool
	interactive   bool
	workspacePath string
	sessionID     string
	onceUtterance string
	profilePath   string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "apollo",
	Short: "Interactive coding assistant",
	Long: `Apollo is a coding assistant that turns chat into audited tool calls:
searching, editing, and running code inside a confined workspace.`,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a chat session in the current workspace",
	Run: func(cmd *cobra.Command, args []string) {
		runChat()
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List past sessions",
	Run: func(cmd *cobra.Command, args []string) {
		s := getStore()
		defer s.Close()

		sessions, err := s.ListSessions()
		if err != nil {
			fmt.Printf("Failed to list sessions: %v\n", err)
			os.Exit(1)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions recorded.")
			return
		}
		for _, sess := range sessions {
			fmt.Printf("%s  started %s\n", sess.ID, sess.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := getStore()
		defer s.Close()

		turns, err := s.ListTurns(args[0])
		if err != nil {
			fmt.Printf("Failed to load transcript: %v\n", err)
			os.Exit(1)
		}
		for _, turn := range turns {
			fmt.Printf("[%d] %s: %s\n", turn.Seq, turn.Role, turn.Content)
			if turn.Invocation != nil {
				fmt.Printf("      tool=%s status=%s duration=%dms\n",
					turn.Invocation.Tool, turn.Invocation.Status, turn.Invocation.DurationMS)
			}
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(chatCmd)
	RootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)

	chatCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	chatCmd.Flags().StringVarP(&providerType, "provider", "p", "", "Reasoning backend (openai, ollama, gemini, anthropic, stub)")
	chatCmd.Flags().StringVarP(&modelName, "model", "m", "", "Model name (default depends on provider)")
	chatCmd.Flags().BoolVar(&useCLI, "cli", false, "Use local CLI tool as backend if available")
	chatCmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: JSON output, non-interactive")
	chatCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start interactive TUI")
	chatCmd.Flags().StringVarP(&workspacePath, "workspace", "w", "", "Workspace root (default current directory)")
	chatCmd.Flags().StringVar(&sessionID, "session", "", "Resume a stored session by id")
	chatCmd.Flags().StringVar(&onceUtterance, "once", "", "Process a single utterance and exit")
	chatCmd.Flags().StringVarP(&profilePath, "config", "c", "", "Agent profile file (YAML or JSON)")
}

// loadProfile merges the profile file, if any, with command line overrides.
func loadProfile() (*config.Profile, error) {
	profile := config.DefaultProfile()
	if profilePath != "" {
		loaded, err := config.Load(profilePath)
		if err != nil {
			return nil, err
		}
		profile = *loaded
	}

	if providerType != "" {
		profile.Provider = providerType
	}
	if modelName != "" {
		profile.Model = modelName
	}
	if workspacePath != "" {
		profile.Workspace = workspacePath
	}

	result := config.Validate(profile)
	if !result.Valid {
		return nil, fmt.Errorf("invalid profile: %v", result.Errors)
	}
	return &profile, nil
}

func runChat() {
	var obs *observe.Observer
	if ciMode {
		obs = observe.NewJSON(os.Stdout, verbose)
	} else {
		obs = observe.New(os.Stdout, verbose)
	}
	defer obs.Close()

	profile, err := loadProfile()
	if err != nil {
		obs.Log().Fatal().Err(err).Msg("Failed to load profile")
	}
	for _, warning := range config.Validate(*profile).Warnings {
		obs.Log().Warn().Str("warning", warning).Msg("profile warning")
	}

	storeLayer := getStore()
	defer storeLayer.Close()

	p, pErr := buildProvider(storeLayer, profile)
	if pErr != nil {
		obs.Log().Fatal().Err(pErr).Msg("Failed to initialize provider")
	}

	runner := NewRunner(obs, storeLayer, p, profile, nil)
	runner.SessionID = sessionID

	if onceUtterance != "" {
		if err := runner.RunOnce(context.Background(), onceUtterance); err != nil {
			os.Exit(1)
		}
		return
	}

	if interactive {
		model := tui.NewModel("Apollo")
		program := tea.NewProgram(model)
		u := tui.NewTUI(program)
		runner.UI = u

		go func() {
			_ = runner.RunInteractive(context.Background(), model.Submit)
			u.Done()
		}()

		if _, err := program.Run(); err != nil {
			fmt.Printf("Alas, there's been an error: %v", err)
			os.Exit(1)
		}
	} else {
		if err := runner.RunREPL(context.Background(), os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
	}
}

func buildProvider(s store.Storage, profile *config.Profile) (provider.Provider, error) {
	if useCLI {
		return detectCLIProvider(s)
	}

	model := profile.Model
	switch profile.Provider {
	case "openai":
		apiKey := getSecret(s, "openai.api_key")
		baseURL, _ := s.GetConfig("openai.base_url")
		return provider.NewOpenAIProvider(apiKey, baseURL, model)
	case "ollama":
		return provider.NewOllamaProvider(model)
	case "gemini":
		return provider.NewGeminiProvider(getSecret(s, "gemini.api_key"), model)
	case "anthropic":
		return provider.NewAnthropicProvider(getSecret(s, "anthropic.api_key"), model)
	case "stub":
		return provider.NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", profile.Provider)
	}
}

// getSecret reads a config value, decrypting it when stored encrypted.
func getSecret(s store.Storage, key string) string {
	value, err := s.GetConfig(key)
	if err != nil || value == "" {
		return ""
	}
	mgr, err := credential.NewManager()
	if err != nil {
		return value
	}
	plain, err := mgr.Decrypt(value)
	if err != nil {
		return ""
	}
	return plain
}

func detectCLIProvider(s store.Storage) (provider.Provider, error) {
	// Configured path wins over auto-detection.
	cliPath, _ := s.GetConfig("provider.cli.path")
	if cliPath != "" {
		return provider.NewCLIProvider(cliPath, []string{})
	}

	tools := []string{"claude", "codex", "gemini", "llm"}
	for _, t := range tools {
		path, err := exec.LookPath(t)
		if err == nil {
			return provider.NewCLIProvider(path, []string{})
		}
	}

	return nil, fmt.Errorf("no local CLI agents detected (tried claude, codex, gemini, llm)")
}
