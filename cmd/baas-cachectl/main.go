package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	logpkg "baas-cache/common/logger"
	"baas-cache/internal/config"
	"baas-cache/internal/keys"
	"baas-cache/internal/service"
	"baas-cache/internal/store"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp 读取配置并连接 Redis；调用方负责 Stop
func newApp() (*service.CacheService, error) {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if policy, _ := rootCmd.PersistentFlags().GetString("policy"); policy != "" {
		cfg.Capacity.Policy = policy
	}

	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	log, err := logpkg.NewLogger(level, "console", "baas-cachectl")
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	cs, err := service.NewCacheService(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing service: %w", err)
	}
	return cs, nil
}

// kindsFromArgs 未指定时检查所有租户级类型
func kindsFromArgs(args []string) ([]keys.Kind, error) {
	if len(args) == 0 {
		return []keys.Kind{keys.User, keys.Audio, keys.Video, keys.Image, keys.Storage}, nil
	}
	out := make([]keys.Kind, 0, len(args))
	for _, a := range args {
		k, err := keys.ParseKind(a)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func printReport(r *store.Report) {
	if r.Clean() {
		fmt.Printf("%-8s ok\n", r.Kind)
		return
	}
	fmt.Printf("%-8s dangling_recency=%d dangling_members=%d missing_recency=%d\n",
		r.Kind, len(r.DanglingRecency), len(r.DanglingMembers), len(r.MissingRecency))
	for _, m := range r.DanglingRecency {
		fmt.Printf("  recency without record: %s\n", m)
	}
	for _, ref := range r.DanglingMembers {
		fmt.Printf("  member without record:  %s:%s\n", ref.TenantID, ref.ID)
	}
	for _, ref := range r.MissingRecency {
		fmt.Printf("  record without recency: %s:%s\n", ref.TenantID, ref.ID)
	}
}

var rootCmd = &cobra.Command{
	Use:          "baas-cachectl",
	Short:        "Operate the baas cache store",
	SilenceUsage: true,
}

var checkCmd = &cobra.Command{
	Use:   "check [KIND...]",
	Short: "Report index inconsistencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := kindsFromArgs(args)
		if err != nil {
			return err
		}
		cs, err := newApp()
		if err != nil {
			return err
		}
		defer cs.Stop(context.Background())

		for _, k := range kinds {
			r, err := cs.Store().Check(cmd.Context(), k)
			if err != nil {
				return err
			}
			printReport(r)
		}
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair [KIND...]",
	Short: "Remove dangling index entries and restore missing recency entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := kindsFromArgs(args)
		if err != nil {
			return err
		}
		cs, err := newApp()
		if err != nil {
			return err
		}
		defer cs.Stop(context.Background())

		for _, k := range kinds {
			r, err := cs.Store().Check(cmd.Context(), k)
			if err != nil {
				return err
			}
			fixed, err := cs.Store().Repair(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Printf("%-8s fixed=%d\n", k, fixed)
		}
		return nil
	},
}

var victimCmd = &cobra.Command{
	Use:   "victim",
	Short: "Show the record that would be evicted next",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := newApp()
		if err != nil {
			return err
		}
		defer cs.Stop(context.Background())

		v, err := cs.Store().SelectVictim(cmd.Context())
		if errors.Is(err, store.ErrNoEvictableContent) {
			fmt.Println("nothing to evict")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("policy: %s\nkind:   %s\nmember: %s\nscore:  %d\n", cs.Store().Policy(), v.Kind, v.Member, v.Score)
		if v.Asset != nil {
			fmt.Printf("dir:    %s\nsize:   %d\n", v.Asset.Dir, v.Asset.Size)
		} else {
			fmt.Println("record: missing")
		}
		return nil
	},
}

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Run one capacity shedding pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := newApp()
		if err != nil {
			return err
		}
		defer cs.Stop(context.Background())

		n, err := cs.Capacity().ShedOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("evicted %d\n", n)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent eviction events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt64("limit")
		stream, _ := cmd.Flags().GetString("stream")
		cs, err := newApp()
		if err != nil {
			return err
		}
		defer cs.Stop(context.Background())

		msgs, err := cs.Store().RecentEvents(cmd.Context(), stream, limit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fields := make([]string, 0, len(m.Values))
			for k := range m.Values {
				fields = append(fields, k)
			}
			sort.Strings(fields)
			fmt.Print(m.ID)
			for _, k := range fields {
				fmt.Printf(" %s=%v", k, m.Values[k])
			}
			fmt.Println()
		}
		return nil
	},
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show used memory reported by redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		cs, err := newApp()
		if err != nil {
			return err
		}
		defer cs.Stop(context.Background())

		used, err := cs.Store().UsedMemory(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("used_memory %d\n", used)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("policy", "", "Eviction policy override (balanced|oldest)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(victimCmd)
	rootCmd.AddCommand(evictCmd)
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().Int64P("limit", "n", 20, "Maximum number of events to show")
	eventsCmd.Flags().String("stream", "cache:evictions", "Event stream name")
	rootCmd.AddCommand(memoryCmd)
}
