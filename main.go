package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"medchat/internal/api"
	"medchat/internal/config"
	"medchat/internal/engine"
	"medchat/internal/intent"
	"medchat/internal/logging"
	"medchat/internal/navigation"
)

func main() {
	var cfgPath string
	rootCmd := &cobra.Command{
		Use:          "medchat",
		Short:        "Conversational assistant for the medical records app",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("MEDCHAT_CONFIG"), "path to a JSON/YAML config file")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(askCmd(&cfgPath))
	rootCmd.AddCommand(classifyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*cfgPath)
		},
	}
}

func runServer(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(a.engine, a.dispatcher, a.statsSource(), logger)
	if a.cache != nil {
		handler.AddHealthCheck("redis", a.cache)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Server.Address).
			Bool("rule_based_only", cfg.Assistant.RuleBasedOnly).
			Strs("providers", cfg.Assistant.ProviderOrder).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func askCmd(cfgPath *string) *cobra.Command {
	var conversationID, extra string
	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Run one chat turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, "console")
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			reply, err := a.engine.Chat(cmd.Context(), engine.ChatRequest{
				ConversationID: conversationID,
				Message:        strings.Join(args, " "),
				Context:        extra,
			})
			if err != nil && !errors.Is(err, engine.ErrInternal) {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Content)
			if reply.NavigationAction != nil {
				fmt.Fprintf(out, "-> %s %s\n", reply.NavigationAction.Type, reply.NavigationAction.Target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "cli", "conversation id")
	cmd.Flags().StringVar(&extra, "context", "", "extra context passed to the providers")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <message...>",
		Short: "Print how a message is classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "classification: %s\n", intent.Classify(text))
			if target, ok := navigation.NewExtractor().ExtractRedirectTarget(text); ok {
				fmt.Fprintf(out, "redirect: %s\n", target)
			} else {
				fmt.Fprintln(out, "redirect: none")
			}
			return nil
		},
	}
}
