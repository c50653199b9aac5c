package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"ballot/contexts/elections/election-service/application/commands"
	"ballot/contexts/elections/election-service/domain/entities"
	"ballot/internal/app/bootstrap"
	"ballot/internal/platform/config"
	"ballot/internal/platform/messaging"

	"github.com/urfave/cli/v3"
)

// Operator CLI. Every command reads the same environment as the API and
// worker processes.
func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "ballotctl",
		Usage: "Operator commands for the ballot service",
		Commands: []*cli.Command{
			migrateCommand(),
			adminCommand(),
			sweepCommand(),
			integrityCommand(),
		},
	}
	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(ctx context.Context, _ *cli.Command) error {
			_, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Manage operator accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an admin or auditor account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Sources: cli.EnvVars("BALLOT_ADMIN_PASSWORD"), Required: true, Usage: "at least 10 characters"},
					&cli.StringFlag{Name: "role", Value: string(entities.AdminRoleAdmin), Usage: "admin or auditor"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					module := bootstrap.NewModule(cfg, store, cliLogger(cfg))
					admin, err := module.AdminAuth.CreateAdmin(ctx, commands.CreateAdminCommand{
						Username: c.String("username"),
						Password: c.String("password"),
						Role:     entities.AdminRole(c.String("role")),
					})
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(map[string]string{
							"admin_id": admin.AdminID,
							"username": admin.Username,
							"role":     string(admin.Role),
						})
					}
					fmt.Printf("created %s %s (%s)\n", admin.Role, admin.Username, admin.AdminID)
					return nil
				},
			},
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Close elections whose schedule has ended and purge expired sessions",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			logger := cliLogger(cfg)
			workers := bootstrap.NewWorkers(cfg, store, messaging.NewBus(logger), logger)
			report, err := workers.Closer.RunOnce(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(report)
			}
			fmt.Printf("closed elections: %d\nexpired voter sessions: %d\nexpired admin sessions: %d\n",
				report.ClosedElections, report.ExpiredVoterSessions, report.ExpiredAdminSessions)
			return nil
		},
	}
}

func integrityCommand() *cli.Command {
	return &cli.Command{
		Name:  "integrity",
		Usage: "Compare vote counts with used tokens for every started election",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			logger := cliLogger(cfg)
			workers := bootstrap.NewWorkers(cfg, store, messaging.NewBus(logger), logger)
			mismatches, err := workers.Integrity.RunOnce(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				if err := printJSON(mismatches); err != nil {
					return err
				}
			} else {
				for _, report := range mismatches {
					fmt.Printf("%s: %d votes, %d used tokens\n", report.ElectionID, report.Votes, report.UsedTokens)
				}
			}
			if len(mismatches) > 0 {
				return cli.Exit(fmt.Sprintf("%d election(s) out of balance", len(mismatches)), 2)
			}
			if !c.Bool("json") {
				fmt.Println("all elections balanced")
			}
			return nil
		},
	}
}

func openStore(ctx context.Context) (config.Config, *bootstrap.Store, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	store, err := bootstrap.OpenStore(ctx, cfg, cliLogger(cfg))
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, store, nil
}

// cliLogger keeps structured logs on stderr so stdout stays parseable.
func cliLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})).
		With("service", cfg.ServiceName, "process", "ballotctl")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
