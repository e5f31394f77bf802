package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
	Long: `Inspect or clean the response cache at ~/.burrow/cache.

Identical prompts against the same model are served from disk instead
of the API. Entries expire by age and the cache is pruned back under
its size ceiling; both bounds come from the cache section of the
config.

Examples:
  burrow cache stats
  burrow cache prune
  burrow cache clear`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry count, size, and age",
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired and excess entries",
	RunE:  runCachePrune,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// cacheStore opens the cache for management commands. Unlike the agent
// path this ignores the disabled flag: an operator inspecting or
// clearing the cache wants it opened either way.
func cacheStore() (*cache.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.New(cfg.CacheDir(),
		cache.WithMaxAge(cfg.CacheMaxAge()),
		cache.WithMaxSize(cfg.CacheMaxSize()),
	)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	st, err := cacheStore()
	if err != nil {
		return err
	}

	stats, err := st.GetStats()
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}

	fmt.Printf("Cache: %s\n", st.Dir())
	fmt.Printf("  Entries: %d\n", stats.Entries)
	fmt.Printf("  Size:    %.2f MB\n", float64(stats.TotalSize)/(1<<20))
	if stats.Entries > 0 {
		fmt.Printf("  Oldest:  %.1f days\n", stats.OldestAge.Hours()/24)
	}
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	st, err := cacheStore()
	if err != nil {
		return err
	}

	n, err := st.Prune()
	if err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	fmt.Printf("Pruned %d entries\n", n)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	st, err := cacheStore()
	if err != nil {
		return err
	}

	n, err := st.Clear()
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	fmt.Printf("Removed %d entries\n", n)
	return nil
}
