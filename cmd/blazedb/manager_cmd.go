package main

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/Mikedan37/BlazeDB/database"
	"github.com/Mikedan37/BlazeDB/manager"
)

func newManagerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manager",
		Short: "Start a multi-database mount-manager shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManagerShell()
		},
	}
}

// runManagerShell drives the "list / mount <name> <path> <password> / use
// <name> / current / exit" shell spec §6 specifies for the mount manager.
func runManagerShell() error {
	m := manager.New()
	defer m.UnmountAll()

	rl, err := readline.New("manager> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmdName, rest := fields[0], fields[1:]

		switch cmdName {
		case "exit", "quit":
			return nil
		case "list":
			for _, name := range m.List() {
				marker := "  "
				if name == m.CurrentName() {
					marker = "* "
				}
				fmt.Println(marker + name)
			}
		case "mount":
			if len(rest) != 3 {
				fmt.Println("usage: mount <name> <path> <password>")
				continue
			}
			if err := m.Mount(rest[0], rest[1], rest[2], database.Options{}); err != nil {
				fmt.Println("error:", err)
			}
		case "use":
			if len(rest) != 1 {
				fmt.Println("usage: use <name>")
				continue
			}
			if err := m.Use(rest[0]); err != nil {
				fmt.Println("error:", err)
			}
		case "current":
			if name := m.CurrentName(); name != "" {
				fmt.Println(name)
			} else {
				fmt.Println("<none>")
			}
		default:
			fmt.Println("unknown command:", cmdName)
		}
	}
}
