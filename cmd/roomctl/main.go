package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/db"
	"roomcheck-backend/internal/logger"
	"roomcheck-backend/internal/model"
	"roomcheck-backend/internal/store"
)

var (
	configPath string
	jsonOutput bool
)

func newRootCmd() *cobra.Command {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "./config/config.yaml"
	}

	root := &cobra.Command{
		Use:           "roomctl",
		Short:         "Operator tools for the room checkout service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "path to the service config")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	root.AddCommand(migrateCmd(), unlockCmd(), staleCmd(), roomsCmd(), eventsCmd(), tokenCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	return cfg, nil
}

// withStore opens the configured database for the duration of fn.
func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Log.Output = "stderr"
	log := logger.New(cfg.Log)
	defer log.Sync()

	gormDB, err := db.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return fn(ctx, store.NewGormStore(gormDB))
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Log.Output = "stderr"
			log := logger.New(cfg.Log)
			defer log.Sync()

			gormDB, err := db.Init(&cfg.Database, log)
			if err != nil {
				return err
			}
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <room-id>",
		Short: "Release a room's occupancy lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				released, err := s.Unlock(ctx, args[0])
				if err != nil {
					return err
				}
				if released {
					fmt.Fprintf(cmd.OutOrStdout(), "room %s unlocked\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "room %s was not locked\n", args[0])
				}
				return nil
			})
		},
	}
}

func staleCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List checkouts waiting on the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				checkouts, err := s.StaleCheckouts(ctx, time.Now().UTC().Add(-olderThan))
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), checkouts)
				}
				renderCheckouts(cmd.OutOrStdout(), checkouts)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "minimum time since the comparison was requested")
	return cmd
}

func roomsCmd() *cobra.Command {
	var hostID string
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List a host's rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				rooms, err := s.ListRoomsByHost(ctx, hostID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), rooms)
				}
				renderRooms(cmd.OutOrStdout(), rooms)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hostID, "host", "", "host id")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func eventsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List agent events not yet published",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				events, err := s.PendingEvents(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), events)
				}
				renderEvents(cmd.OutOrStdout(), events)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		p   auth.Principal
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !p.Role.Valid() {
				return fmt.Errorf("role must be guest, host or agent, got %q", p.Role)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := auth.NewService(cfg.Auth).Issue(p, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.ID, "sub", "", "user id")
	cmd.Flags().StringVar(&p.Name, "name", "", "display name")
	cmd.Flags().StringVar((*string)(&p.Role), "role", string(auth.RoleGuest), "guest, host or agent")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderRooms(w io.Writer, rooms []model.Room) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Status", "Deposit", "Locked By", "Photos", "Objects"})
	for _, r := range rooms {
		lockedBy := ""
		if r.LockedByGuestName != nil {
			lockedBy = *r.LockedByGuestName
		} else if r.LockedByGuestID != nil {
			lockedBy = *r.LockedByGuestID
		}
		tw.AppendRow(table.Row{r.ID, r.Name, r.Status, r.DepositAmount.StringFixed(2), lockedBy, r.PhotosCount, r.ObjectsCount})
	}
	tw.Render()
}

func renderCheckouts(w io.Writer, checkouts []model.Checkout) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Room", "Guest", "Status", "Attempts", "Waiting Since"})
	for _, c := range checkouts {
		since := c.UpdatedAt
		if c.ProcessingStartedAt != nil {
			since = *c.ProcessingStartedAt
		}
		tw.AppendRow(table.Row{c.ID, c.RoomID, c.GuestID, c.Status, c.AgentAttempts, since.Format(time.RFC3339)})
	}
	tw.Render()
}

func renderEvents(w io.Writer, events []model.AgentEvent) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Kind", "Room", "Checkout", "Attempts", "Last Error"})
	for _, ev := range events {
		tw.AppendRow(table.Row{ev.ID, ev.Kind, ev.RoomID, ev.CheckoutID, ev.Attempts, ev.LastError})
	}
	tw.Render()
}
