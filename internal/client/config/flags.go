package config

import (
	"flag"
	"os"
	"time"

	"github.com/fieldops/techsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the sync backend (default from Config)
//	-d string   path to the local database file (default from Config)
//	-i int      connectivity probe interval in seconds (default from Config)
//	-s int      periodic sync interval in seconds (default from Config)
//	-b int      mutations per push batch (default from Config)
//	-m int      transient failures before a mutation is parked (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-i", "-s", "-b", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the sync backend")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local database file")
	probeInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "connectivity probe interval (in seconds)")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "periodic sync interval (in seconds)")
	fs.IntVar(&cfg.BatchSize, "b", cfg.BatchSize, "mutations per push batch")
	fs.IntVar(&cfg.MaxAttempts, "m", cfg.MaxAttempts, "transient failures before a mutation is parked")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*probeInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
