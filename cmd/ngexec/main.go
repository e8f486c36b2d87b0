package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/buildgrid/ngexec/internal/api"
	"github.com/buildgrid/ngexec/internal/config"
)

var cfg config.Config

func main() {
	cfg, _ = config.Load()

	root := &cobra.Command{
		Use:   "ngexec",
		Short: "Run build processes through the nailgun execution daemon",
	}

	root.AddCommand(
		runCmd(),
		serversCmd(),
		eventsCmd(),
		configCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --- run ---

func runCmd() *cobra.Command {
	var correlationID string
	cmd := &cobra.Command{
		Use:   "run <request.yaml>",
		Short: "Execute a process request via the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(args[0])
			if err != nil {
				return err
			}
			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			client := api.NewClient(cfg.API.Port)
			result, err := client.Run(req, correlationID)
			if err != nil {
				return err
			}

			os.Stdout.Write(result.Stdout)
			os.Stderr.Write(result.Stderr)
			if result.ExitCode != 0 {
				os.Exit(result.ExitCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id for telemetry (default: random)")
	return cmd
}

// --- servers ---

func serversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List resident nailgun servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(cfg.API.Port)
			servers, err := client.Servers()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPORT\tPID\tALIVE\tUPTIME\tFINGERPRINT")
			for _, s := range servers {
				fp := s.Fingerprint
				if len(fp) > 12 {
					fp = fp[:12]
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%s\t%s\n",
					s.Name, s.Port, s.Pid, s.Alive,
					time.Since(s.StartedAt).Round(time.Second), fp)
			}
			return w.Flush()
		},
	}
}

// --- events ---

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Stream pool lifecycle events from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("ws://127.0.0.1:%d/ws", cfg.API.Port)
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return fmt.Errorf("connecting to %s: %w", url, err)
			}
			defer conn.Close()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return err
				}
				fmt.Println(string(msg))
			}
		},
	}
}

// --- config ---

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage daemon configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write the default config file",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.Save(config.Default()); err != nil {
					return err
				}
				fmt.Println("Wrote", config.ConfigPath())
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				os.Stdout.Write(data)
				return nil
			},
		},
	)
	return cmd
}
