// Command chesscore is a UCI chess engine. Protocol output goes to stdout;
// logs go to stderr.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
	"github.com/hailam/chesscore/internal/uci"
)

var (
	hashMB     = flag.Int("hash", 0, "transposition table size in MB (env CHESSCORE_HASH)")
	bookFile   = flag.String("book", "", "opening book file (env CHESSCORE_BOOK)")
	tbMode     = flag.String("tablebase", "", "tablebase mode: none or lichess (env CHESSCORE_TABLEBASE)")
	dataDir    = flag.String("datadir", "", "directory for preferences and statistics (env CHESSCORE_DATADIR)")
	noStore    = flag.Bool("nostore", false, "do not load or save preferences and statistics")
	logLevel   = flag.String("loglevel", "", "log level: trace, debug, info, warn, error (env CHESSCORE_LOG_LEVEL)")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file (env CPUPROFILE)")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	level, err := zerolog.ParseLevel(setting("loglevel", "CHESSCORE_LOG_LEVEL", *logLevel, "info"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "chesscore:", err)
		return 2
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	// Start CPU profiling if requested (via flag or environment variable)
	if path := setting("cpuprofile", "CPUPROFILE", *cpuprofile, ""); path != "" {
		f, err := os.Create(path)
		if err != nil {
			logger.Error().Err(err).Msg("could not create CPU profile")
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Error().Err(err).Msg("could not start CPU profile")
			return 1
		}
		defer pprof.StopCPUProfile()
		logger.Info().Str("path", path).Msg("CPU profiling enabled")
	}

	store := openStore(logger)
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing storage")
			}
		}()
	}

	prefs := storage.DefaultPreferences()
	if store != nil {
		if prefs, err = store.LoadPreferences(); err != nil {
			logger.Warn().Err(err).Msg("using default preferences")
		}
	}
	if err := applyOverrides(prefs); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return 2
	}

	eng := engine.NewEngine(engine.Config{HashMB: prefs.HashMB, Logger: &logger})
	protocol := uci.New(uci.Config{
		Engine:      eng,
		Store:       store,
		Preferences: prefs,
		Logger:      logger,
	})
	logger.Debug().
		Int("hash_mb", prefs.HashMB).
		Bool("own_book", prefs.OwnBook).
		Str("book", prefs.BookFile).
		Str("tablebase", prefs.Tablebase).
		Msg("engine ready")

	if err := protocol.Run(os.Stdin, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("protocol loop failed")
		return 1
	}
	return 0
}

// openStore opens the preferences database, or returns nil when storage is
// disabled or unavailable.
func openStore(logger zerolog.Logger) *storage.Storage {
	if *noStore {
		return nil
	}
	dir := setting("datadir", "CHESSCORE_DATADIR", *dataDir, "")
	if dir == "" {
		var err error
		if dir, err = storage.GetDataDir(); err != nil {
			logger.Warn().Err(err).Msg("storage disabled")
			return nil
		}
	}
	dbDir, err := storage.DatabaseDir(dir)
	if err != nil {
		logger.Warn().Err(err).Msg("storage disabled")
		return nil
	}
	store, err := storage.Open(dbDir, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("storage disabled")
		return nil
	}
	return store
}

// applyOverrides lets explicit flags and environment variables win over
// saved preferences.
func applyOverrides(prefs *storage.Preferences) error {
	if v := setting("hash", "CHESSCORE_HASH", strconv.Itoa(*hashMB), ""); v != "" {
		mb, err := strconv.Atoi(v)
		if err != nil || mb < 1 {
			return fmt.Errorf("hash: want a positive size in MB, got %q", v)
		}
		prefs.HashMB = mb
	}
	if v := setting("book", "CHESSCORE_BOOK", *bookFile, ""); v != "" {
		prefs.BookFile = v
		prefs.OwnBook = true
	}
	if v := setting("tablebase", "CHESSCORE_TABLEBASE", *tbMode, ""); v != "" {
		switch v {
		case storage.TablebaseNone, storage.TablebaseLichess:
			prefs.Tablebase = v
		default:
			return fmt.Errorf("tablebase: want %s or %s, got %q", storage.TablebaseNone, storage.TablebaseLichess, v)
		}
	}
	return nil
}

// setting returns the flag value when the flag was given, else the
// environment variable, else def.
func setting(name, env, flagValue, def string) string {
	if explicit(name) {
		return flagValue
	}
	if v, ok := os.LookupEnv(env); ok {
		return v
	}
	return def
}

// explicit reports whether the named flag was given on the command line.
var explicit = flagSet

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
