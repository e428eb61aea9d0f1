package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"scout/internal/store"
)

var version = "dev"

// flags holds global CLI overrides. Zero values leave the config file alone.
type flags struct {
	configPath string
	apiKey     string
	apiBaseURL string
	model      string
	maxRounds  int
	verbose    bool
	noColor    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "scout",
		Short:         "Research assistant with handbook, web page and web search tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file (default: search ./scout.yaml, ./configs/scout.yaml, ~/.config/scout/scout.yaml)")
	pf.StringVar(&f.apiKey, "api-key", "", "OpenAI API key (default: config or OPENAI_API_KEY)")
	pf.StringVar(&f.apiBaseURL, "api-base-url", os.Getenv("OPENAI_API_BASE_URL"), "OpenAI-compatible API base URL")
	pf.StringVar(&f.model, "model", "", "Model to use")
	pf.IntVar(&f.maxRounds, "max-rounds", 0, "Maximum model calls per question")
	pf.BoolVar(&f.verbose, "verbose", false, "Enable verbose output (debug mode)")
	pf.BoolVar(&f.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		newAskCmd(f),
		newChatCmd(f),
		newToolsCmd(f),
		newHistoryCmd(f),
	)
	return rootCmd
}

func newAskCmd(f *flags) *cobra.Command {
	var (
		stream         bool
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, f, appOptions{requireModel: true, conversationID: conversationID})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.ask(ctx, joinArgs(args), stream)
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "Display the answer progressively")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Resume and persist this conversation")
	return cmd
}

func newChatCmd(f *flags) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if conversationID == "" {
				conversationID = store.NewConversationID()
			}
			a, err := newApp(ctx, f, appOptions{requireModel: true, conversationID: conversationID})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.chat(ctx)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Resume this conversation (default: start a new one)")
	return cmd
}

func newToolsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), f, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			a.out.RenderToolCatalog(a.registry.Declare())
			for name, err := range a.mcp.Health(cmd.Context()) {
				a.log.Warn("MCP server %s is not responding: %v", name, err)
			}
			return nil
		},
	}
}

func newHistoryCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Print a stored conversation, or list them all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), f, appOptions{storeOnly: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				return a.listConversations(cmd.Context())
			}
			return a.showConversation(cmd.Context(), args[0])
		},
	}
}
