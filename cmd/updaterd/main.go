package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitools/updaterd/internal/config"
	"github.com/pitools/updaterd/internal/control"
)

var (
	version    = "1.0.0"
	cfgFile    string
	socketPath string
)

var rootCmd = &cobra.Command{
	Use:   "updaterd",
	Short: "Update notification daemon",
	Long:  `updaterd watches the package repositories for pending updates and notifies the desktop when some are available.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask the running daemon to check for updates now",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Check()
		if err != nil {
			return err
		}
		if !resp.Started {
			fmt.Printf("Check not started: %s\n", resp.Reason)
			return nil
		}
		fmt.Println("Update check started")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's current update state",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Status()
		if err != nil {
			return err
		}
		printStatus(resp)
		return nil
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Launch the privileged installer for pending updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Install()
		if err != nil {
			return err
		}
		if !resp.Launched {
			return fmt.Errorf("%s", resp.Reason)
		}
		fmt.Println("Installer launched")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("updaterd v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/updaterd/updaterd.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "control socket path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dialDaemon() (*control.Client, error) {
	path := socketPath
	if path == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			cfg = config.Default()
		}
		path = cfg.SocketPath
	}
	return control.Dial(path)
}

func printStatus(resp control.StatusResponse) {
	if resp.Updates.UpToDate {
		fmt.Println("System is up to date")
	} else {
		fmt.Printf("%d updates are ready to install\n", resp.Updates.Count())
		for _, p := range resp.Updates.Packages {
			fmt.Printf("  %s %s (%s)\n", p.Name, p.Version, p.Arch)
		}
	}
	if !resp.Updates.CheckedAt.IsZero() {
		fmt.Printf("Last checked: %s\n", resp.Updates.CheckedAt.Format(time.RFC1123))
	}
	fmt.Printf("Scheduler: %s\n", resp.SchedulerState)
	if !resp.NextCheck.IsZero() {
		fmt.Printf("Next check: %s\n", resp.NextCheck.Format(time.RFC1123))
	}
	if resp.CheckRunning {
		fmt.Println("A check is running now")
	}
	fmt.Printf("Backend: %s\n", resp.Backend)
	fmt.Printf("Health: %s\n", resp.Health)
}
