package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mission-control",
	Short: "Coordination service for a team of autonomous agents",
	Long:  "Mission Control tracks tasks, messages and mentions for a team of agents, and fans out notifications and an audit trail for every state change.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfig()

		db, err := InitDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		defer db.Close()

		mux := SetupRoutes(db, cfg)

		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Printf("Mission Control listening on %s", addr)
		return http.ListenAndServe(addr, mux)
	},
}

var (
	addAgentRole        string
	addAgentLevel       string
	addAgentSpecialRole string
	addAgentGroup       string
)

var addAgentCmd = &cobra.Command{
	Use:   "add-agent <name>",
	Short: "Register an agent and print its session key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfig()

		db, err := InitDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		defer db.Close()

		sessionKey, err := generateSessionKey(args[0])
		if err != nil {
			return err
		}

		agent, err := RegisterAgent(context.Background(), db, RegisterAgentParams{
			Name:        args[0],
			Role:        addAgentRole,
			Status:      "idle",
			Level:       addAgentLevel,
			SpecialRole: addAgentSpecialRole,
			SessionKey:  sessionKey,
			Group:       addAgentGroup,
		})
		if err != nil {
			return fmt.Errorf("register agent: %w", err)
		}

		fmt.Printf("registered %s (%s)\n", agent.Name, agent.ID)
		fmt.Printf("session key: %s\n", sessionKey)
		return nil
	},
}

func init() {
	addAgentCmd.Flags().StringVar(&addAgentRole, "role", "specialist", "Agent role text (overseer/coordinator and qa are recognized for triage)")
	addAgentCmd.Flags().StringVar(&addAgentLevel, "level", "specialist", "Agent level: intern, specialist or lead")
	addAgentCmd.Flags().StringVar(&addAgentSpecialRole, "special-role", "", "Explicit special role: overseer or nagger")
	addAgentCmd.Flags().StringVar(&addAgentGroup, "group", "", "Optional agent group")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addAgentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
