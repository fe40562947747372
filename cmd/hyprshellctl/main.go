package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyprshell/hyprshell/internal/ipc"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "hyprshellctl",
		Short:   "Send commands to the running hyprshell daemon",
		Version: Version,
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "toggle <name>",
			Short: "Toggle a scratchpad",
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				send(ipc.Message{Type: ipc.MessageToggle, Name: args[0]})
			},
		},
		&cobra.Command{
			Use:   "expose [action]",
			Short: "Window overview (toggle, show, hide, next, prev, status)",
			Args:  cobra.MaximumNArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				action := "toggle"
				if len(args) > 0 {
					action = args[0]
				}
				send(ipc.Message{Type: ipc.MessageExposeAction, Action: action})
			},
		},
		&cobra.Command{
			Use:   "reload",
			Short: "Reload the daemon configuration",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				send(ipc.Message{Type: ipc.MessageReload})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show daemon status",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				send(ipc.Message{Type: ipc.MessageStatus})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List available scratchpads",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				send(ipc.Message{Type: ipc.MessageList})
			},
		},
		&cobra.Command{
			Use:   "workspace <action> [arg]",
			Short: "Workspace management (switch, change, list, status)",
			Args:  cobra.RangeArgs(1, 2),
			Run: func(cmd *cobra.Command, args []string) {
				message := ipc.Message{Type: ipc.MessageWorkspaceAction, Action: args[0]}
				if len(args) > 1 {
					message.Arg = args[1]
				}
				send(message)
			},
		},
		&cobra.Command{
			Use:   "magnify <action> [arg]",
			Short: "Zoom controls (toggle, set, change, reset, status)",
			Args:  cobra.RangeArgs(1, 2),
			Run: func(cmd *cobra.Command, args []string) {
				message := ipc.Message{Type: ipc.MessageMagnifyAction, Action: args[0]}
				if len(args) > 1 {
					message.Arg = args[1]
				}
				send(message)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func send(message ipc.Message) {
	client := ipc.NewClient()
	response, err := client.Send(message)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to communicate with daemon: %v\n", err)
		fmt.Fprintln(os.Stderr, "Make sure the hyprshell daemon is running")
		os.Exit(1)
	}

	switch response.Type {
	case ipc.ResponseSuccess:
		fmt.Println(response.Message)
	case ipc.ResponseError:
		fmt.Fprintf(os.Stderr, "Error: %s\n", response.Message)
		os.Exit(1)
	case ipc.ResponseStatus:
		fmt.Println("hyprshell status")
		fmt.Printf("  Version: %s\n", response.Version)
		fmt.Printf("  Uptime: %d seconds\n", response.UptimeSeconds)
		fmt.Printf("  Plugins loaded: %d\n", response.PluginsLoaded)
	case ipc.ResponseList:
		for _, item := range response.Items {
			fmt.Println(item)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unexpected response type %q\n", response.Type)
		os.Exit(1)
	}
}
