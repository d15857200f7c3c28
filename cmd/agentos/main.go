package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agentos-cli/internal/app"
	"agentos-cli/internal/tui"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var (
	flagConfig string
	flagServer string
)

// runtime bundles everything a command needs against one server and data root.
type runtime struct {
	cfg     app.Config
	store   *app.Store
	client  *app.Client
	basket  *app.Basket
	logFile *os.File
}

func (rt *runtime) Close() {
	if rt.logFile != nil {
		rt.logFile.Close()
	}
}

func dataRoot(cfg app.Config) string {
	if strings.TrimSpace(cfg.DataRoot) != "" {
		return cfg.DataRoot
	}
	return app.DefaultStorageRoot()
}

func newRuntime() (*runtime, error) {
	path := flagConfig
	if path == "" {
		path = app.DefaultConfigPath()
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if env := os.Getenv("AGENTOS_SERVER_URL"); env != "" && flagServer == "" {
		cfg.ServerURL = env
	}

	root := dataRoot(cfg)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	var logOut io.Writer = io.Discard
	logFile, err := os.OpenFile(filepath.Join(root, "agentos.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err == nil {
		logOut = logFile
	}
	logger := app.NewLogger(logOut)

	storage := app.NewFileStorage(filepath.Join(root, "storage"))
	sessions := app.NewSessionManager(storage, logger)
	client := app.NewClient(cfg, logger)
	store := app.NewStore(client, sessions, storage, logger)

	return &runtime{
		cfg:     cfg,
		store:   store,
		client:  client,
		basket:  app.NewBasket(storage, logger),
		logFile: logFile,
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:     "agentos",
		Short:   "Terminal client for the AgentOS multi-agent platform",
		Long:    "agentos is a terminal chat client for an AgentOS server: single-agent chat,\nstreamed group orchestration, workflow plans and locally cached sessions.\n\nRun without arguments to start the interactive chat.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			p := tea.NewProgram(tui.New(rt.store, rt.client), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+app.DefaultConfigPath()+")")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "AgentOS API base URL (overrides config)")

	root.AddCommand(loginCmd(), probeCmd(), sessionsCmd(), basketCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [phone]",
		Short: "Sign in and cache the auth token locally",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			reader := bufio.NewReader(os.Stdin)
			phone := ""
			if len(args) > 0 {
				phone = args[0]
			} else {
				fmt.Print("Phone: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				phone = strings.TrimSpace(line)
			}
			fmt.Print("Password: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			password := strings.TrimRight(line, "\r\n")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			resp, err := rt.client.Login(ctx, phone, password)
			if err != nil {
				return err
			}
			rt.store.SetAuth(resp.Token, resp.User)
			fmt.Printf("Signed in as %s\n", resp.User.Username)
			return nil
		},
	}
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the AgentOS server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if !rt.client.TestConnectivity(ctx) {
				return fmt.Errorf("server unreachable: %s", rt.cfg.ServerURL)
			}
			fmt.Printf("OK: %s\n", rt.cfg.ServerURL)
			return nil
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect locally cached chat sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <context-id>",
		Short: "List saved sessions for an agent or group",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			metas := rt.store.Sessions().ListSessions(args[0])
			if len(metas) == 0 {
				fmt.Println("No saved sessions.")
				return nil
			}
			now := time.Now()
			for _, meta := range metas {
				fmt.Printf("%s  %-32s %3d messages  %s\n", meta.ID, meta.Title, meta.MessageCount, app.FormatRelativeTime(meta.UpdatedAt, now))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <context-id> <session-id>",
		Short: "Delete one saved session",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.store.Sessions().DeleteSession(args[0], args[1])
			return nil
		},
	})

	return cmd
}

func basketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "basket",
		Short: "Manage the local text basket",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <text>",
		Short: "Drop a text fragment into the basket",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			item := rt.basket.Add(args[0])
			fmt.Println(item.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List basket fragments",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			for _, item := range rt.basket.Items() {
				fmt.Printf("%s  %s\n", item.ID, item.Text)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the basket",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.basket.Clear()
			return nil
		},
	})

	return cmd
}
