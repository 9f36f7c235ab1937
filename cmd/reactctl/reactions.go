package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/HammerMeetNail/socialreact/internal/database"
	"github.com/HammerMeetNail/socialreact/internal/models"
	"github.com/HammerMeetNail/socialreact/internal/services"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rebuild a target's cached counters from its active reactions",
	Long: `Recount the active reactions of one post or comment and overwrite the
cached counters when they have drifted.

Examples:
  reactctl reconcile --target post --id 42
  reactctl reconcile --target comment --id 7 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		id, _ := cmd.Flags().GetInt64("id")
		return withReactionService(target, func(svc services.ReactionServiceInterface) error {
			return reconcileTarget(cmd.Context(), cmd.OutOrStdout(), svc, id)
		})
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the most used reactions on a target",
	Long: `Print up to n reaction kinds with a non-zero count, highest first.

Examples:
  reactctl top --target post --id 42
  reactctl top --target comment --id 7 -n 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		id, _ := cmd.Flags().GetInt64("id")
		n, _ := cmd.Flags().GetInt("n")
		return withReactionService(target, func(svc services.ReactionServiceInterface) error {
			return showTop(cmd.Context(), cmd.OutOrStdout(), svc, id, n)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{reconcileCmd, topCmd} {
		c.Flags().String("target", string(models.TargetPost), "Target kind: post or comment")
		c.Flags().Int64("id", 0, "Target id")
		_ = c.MarkFlagRequired("id")
	}
	topCmd.Flags().IntP("n", "n", 3, "Number of kinds to show")
}

// openReactionServices is swapped out in tests.
var openReactionServices = func() (services.ReactionServices, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	svcs := services.NewReactionServices(services.NewPoolAdapter(db.Pool), services.ReactionServicesConfig{
		LockTimeout: cfg.Reactions.LockTimeout,
	})
	return svcs, db.Close, nil
}

func withReactionService(target string, fn func(svc services.ReactionServiceInterface) error) error {
	kind := models.TargetKind(target)
	if !kind.Valid() {
		return fmt.Errorf("unknown target %q (want post or comment)", target)
	}
	svcs, closeFn, err := openReactionServices()
	if err != nil {
		return err
	}
	defer closeFn()

	svc, err := svcs.For(kind)
	if err != nil {
		return err
	}
	return fn(svc)
}

func reconcileTarget(ctx context.Context, w io.Writer, svc services.ReactionServiceInterface, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	before, after, err := svc.Reconcile(ctx, id)
	if err != nil {
		return fmt.Errorf("reconciling %s %d: %w", svc.Target(), id, err)
	}

	if output == "json" {
		return writeJSON(w, map[string]interface{}{
			"target":  svc.Target(),
			"id":      id,
			"before":  before,
			"after":   after,
			"changed": before != after,
		})
	}

	if before == after {
		_, err = fmt.Fprintf(w, "%s %d: counters already consistent (total %d)\n", svc.Target(), id, after.Total)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s %d: counters rebuilt\n", svc.Target(), id); err != nil {
		return err
	}
	for _, k := range models.ReactionKinds {
		if before.Count(k) == after.Count(k) {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %-6s %d -> %d\n", k, before.Count(k), after.Count(k)); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "  %-6s %d -> %d\n", "total", before.Total, after.Total)
	return err
}

func showTop(ctx context.Context, w io.Writer, svc services.ReactionServiceInterface, id int64, n int) error {
	top, err := svc.TopReactions(ctx, id, n)
	if err != nil {
		return fmt.Errorf("loading top reactions for %s %d: %w", svc.Target(), id, err)
	}

	if output == "json" {
		return writeJSON(w, map[string]interface{}{"reactions": top})
	}
	if len(top) == 0 {
		_, err = fmt.Fprintf(w, "%s %d has no reactions\n", svc.Target(), id)
		return err
	}
	for i, rc := range top {
		if _, err := fmt.Fprintf(w, "%d. %-6s %d\n", i+1, rc.Kind, rc.Count); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
