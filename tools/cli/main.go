// Command monitor is the operator CLI for the supervised pipeline process:
// list/status/start/stop/restart/logs against the running server's
// /admin/tasks surface (§6), the Go analog of the original's
// screen-session monitor script.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var services = []string{"core", "updater", "webhooks", "lootboards", "api", "hof", "heartbeat"}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "monitor:", err)
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Inspect and control the pipeline supervisor's tasks",
}

func init() {
	rootCmd.PersistentFlags().String("base-url", envOr("MONITOR_BASE_URL", "http://localhost:8080"), "ingress base URL")
	rootCmd.PersistentFlags().Bool("json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(listCmd, statusCmd, startCmd, stopCmd, restartCmd, logsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every supervised service and its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := clientFrom(cmd)
		tasks, err := c.list()
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(tasks)
		}
		printTable(tasks)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [service]",
	Short: "Show one service's status, or every service if omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := clientFrom(cmd)
		if len(args) == 0 {
			tasks, err := c.list()
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(tasks)
			}
			printTable(tasks)
			return nil
		}
		name, err := resolveService(args[0])
		if err != nil {
			return err
		}
		st, err := c.status(name)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(st)
		}
		fmt.Printf("%-12s running=%-5t healthy=%-5t failures=%d\n", st.Name, st.Running, st.Healthy, st.Failures)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start SERVICE",
	Short: "Start a stopped service",
	Args:  cobra.ExactArgs(1),
	RunE:  opRunner((*client).start),
}

var stopCmd = &cobra.Command{
	Use:   "stop SERVICE",
	Short: "Stop a running service",
	Args:  cobra.ExactArgs(1),
	RunE:  opRunner((*client).stop),
}

var restartCmd = &cobra.Command{
	Use:   "restart SERVICE",
	Short: "Restart a service",
	Args:  cobra.ExactArgs(1),
	RunE:  opRunner((*client).restart),
}

func opRunner(op func(*client, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		name, err := resolveService(args[0])
		if err != nil {
			return err
		}
		c := clientFrom(cmd)
		if err := op(c, name); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", name)
		return nil
	}
}

var logsCmd = &cobra.Command{
	Use:   "logs SERVICE",
	Short: "Tail a service's recent log lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := resolveService(args[0])
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("lines")
		c := clientFrom(cmd)
		lines, err := c.logs(name, n)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(lines)
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntP("lines", "n", 100, "number of trailing lines to show")
}

func resolveService(name string) (string, error) {
	for _, s := range services {
		if s == name {
			return name, nil
		}
	}
	return "", &unknownServiceError{name: name}
}

type unknownServiceError struct{ name string }

func (e *unknownServiceError) Error() string {
	return fmt.Sprintf("unknown service %q (expected one of %v)", e.name, services)
}

// exitCodeFor implements §6's exit code contract: 2 for an unknown service,
// 1 for any other operation failure.
func exitCodeFor(err error) int {
	var unknown *unknownServiceError
	var httpErr *httpStatusError
	switch {
	case asUnknownService(err, &unknown):
		return 2
	case asHTTPNotFound(err, &httpErr):
		return 2
	default:
		return 1
	}
}

func asUnknownService(err error, target **unknownServiceError) bool {
	e, ok := err.(*unknownServiceError)
	if ok {
		*target = e
	}
	return ok
}

func asHTTPNotFound(err error, target **httpStatusError) bool {
	e, ok := err.(*httpStatusError)
	if ok && e.status == 404 {
		*target = e
	}
	return ok && e.status == 404
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func clientFrom(cmd *cobra.Command) *client {
	base, _ := cmd.Flags().GetString("base-url")
	return newClient(base)
}
