package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/flexprice/billing-engine/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "import-plans",
		Description: "Create billing plans from a JSON file",
		Run:         internal.ImportBillingPlans,
	},
	{
		Name:        "run-billing",
		Description: "Generate due occurrences once, for one tenant or all",
		Run:         internal.RunBilling,
	},
}

func main() {
	var (
		listCommands bool
		cmdName      string
		plansFile    string
		tenantID     string
		userID       string
		upTo         string
		activate     bool
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&plansFile, "plans-file", "", "Path to billing plans JSON file")
	flag.StringVar(&tenantID, "tenant-id", "", "Tenant ID for operations")
	flag.StringVar(&userID, "user-id", "", "User ID for operations")
	flag.StringVar(&upTo, "up-to", "", "Generation horizon, RFC 3339 or YYYY-MM-DD")
	flag.BoolVar(&activate, "activate", false, "Activate imported plans")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	// Set command-specific environment variables
	if plansFile != "" {
		os.Setenv("PLANS_FILE", plansFile)
	}
	if tenantID != "" {
		os.Setenv("TENANT_ID", tenantID)
	}
	if userID != "" {
		os.Setenv("USER_ID", userID)
	}
	if upTo != "" {
		os.Setenv("UP_TO", upTo)
	}
	if activate {
		os.Setenv("ACTIVATE", "true")
	}

	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
