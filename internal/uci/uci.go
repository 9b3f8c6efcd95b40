// Package uci implements the Universal Chess Interface protocol on top of
// the engine.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/book"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
	"github.com/hailam/chesscore/internal/tablebase"
)

const (
	engineName   = "chesscore"
	engineAuthor = "the chesscore authors"

	minHashMB = 1
	maxHashMB = 4096
)

// ErrUnknownTablebase is returned for a tablebase mode other than none or
// lichess.
var ErrUnknownTablebase = errors.New("uci: unknown tablebase mode")

// ProberFactory builds the prober for a tablebase mode. A nil prober
// disables probing.
type ProberFactory func(mode string) (tablebase.Prober, error)

// Config holds the handler's collaborators. Only Engine is required.
type Config struct {
	Engine      *engine.Engine
	Store       *storage.Storage     // nil disables persistence
	Preferences *storage.Preferences // Current option values, default storage.DefaultPreferences
	NewProber   ProberFactory        // Default DefaultProberFactory
	Logger      zerolog.Logger
}

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine    *engine.Engine
	position  *board.Position
	store     *storage.Storage
	prefs     *storage.Preferences
	newProber ProberFactory
	prober    tablebase.Prober
	log       zerolog.Logger
	baseLevel zerolog.Level

	outMu sync.Mutex
	out   io.Writer

	// Search state, owned by the command loop.
	searching  bool
	infinite   bool
	cancel     context.CancelFunc
	searchDone chan struct{}
}

// DefaultProberFactory serves the "none" and "lichess" modes.
func DefaultProberFactory(logger zerolog.Logger) ProberFactory {
	return func(mode string) (tablebase.Prober, error) {
		switch strings.ToLower(mode) {
		case "", storage.TablebaseNone:
			return nil, nil
		case storage.TablebaseLichess:
			p, err := tablebase.NewCachedLichessProber(logger)
			if err != nil {
				return nil, err
			}
			return p, nil
		}
		return nil, fmt.Errorf("%w %q", ErrUnknownTablebase, mode)
	}
}

// New creates a protocol handler and applies the book and tablebase
// preferences to the engine. The hash size is expected to be applied when
// the engine is built.
func New(cfg Config) *UCI {
	prefs := cfg.Preferences
	if prefs == nil {
		prefs = storage.DefaultPreferences()
	}
	log := cfg.Logger.With().Str("component", "uci").Logger()
	newProber := cfg.NewProber
	if newProber == nil {
		newProber = DefaultProberFactory(cfg.Logger)
	}
	u := &UCI{
		engine:    cfg.Engine,
		position:  board.NewPosition(),
		store:     cfg.Store,
		prefs:     prefs,
		newProber: newProber,
		log:       log,
		baseLevel: zerolog.GlobalLevel(),
		out:       io.Discard,
	}
	if err := u.configureBook(); err != nil {
		u.log.Warn().Err(err).Msg("opening book disabled")
	}
	if err := u.configureTablebase(prefs.Tablebase); err != nil {
		u.log.Warn().Err(err).Msg("tablebase disabled")
	}
	return u
}

// Run reads commands from in until "quit" or end of input, writing protocol
// output to out. Any running search is finished before Run returns: "quit"
// stops it, end of input waits for it unless it is infinite.
func (u *UCI) Run(in io.Reader, out io.Writer) error {
	u.out = out
	defer func() {
		u.closeProber()
		u.engine.SetTablebase(nil)
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		u.log.Trace().Str("cmd", cmd).Strs("args", args).Msg("command")

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.send("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleStop()
			return nil
		case "setoption":
			u.handleSetOption(args)
		// Debug commands
		case "d":
			u.send(strings.TrimRight(u.position.String(), "\n"))
		case "perft":
			u.handlePerft(args)
		default:
			u.send("info string unknown command " + cmd)
		}
	}

	u.waitSearch()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("uci: read: %w", err)
	}
	return nil
}

func (u *UCI) send(line string) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintln(u.out, line)
}

func (u *UCI) sendf(format string, args ...any) {
	u.send(fmt.Sprintf(format, args...))
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	u.send("id name " + engineName)
	u.send("id author " + engineAuthor)
	u.send("")
	u.sendf("option name Hash type spin default %d min %d max %d", u.prefs.HashMB, minHashMB, maxHashMB)
	u.sendf("option name OwnBook type check default %t", u.prefs.OwnBook)
	u.sendf("option name BookFile type string default %s", orEmpty(u.prefs.BookFile))
	u.sendf("option name Tablebase type combo default %s var %s var %s",
		orDefault(u.prefs.Tablebase, storage.TablebaseNone), storage.TablebaseNone, storage.TablebaseLichess)
	u.send("option name Debug type check default false")
	u.send("uciok")
}

func orEmpty(s string) string {
	return orDefault(s, "<empty>")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() {
	u.handleStop()
	u.engine.Clear()
	u.position = board.NewPosition()
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
//
// A rejected command leaves the current position as it was.
func (u *UCI) handlePosition(args []string) {
	pos, err := parsePosition(args)
	if err != nil {
		u.log.Debug().Err(err).Strs("args", args).Msg("position rejected")
		u.send("info string " + err.Error())
		return
	}
	u.handleStop()
	u.position = pos
}

func parsePosition(args []string) (*board.Position, error) {
	if len(args) == 0 {
		return nil, errors.New("uci: position: missing startpos or fen")
	}
	movesAt := len(args)
	for i, arg := range args {
		if arg == "moves" {
			movesAt = i
			break
		}
	}

	var pos *board.Position
	switch args[0] {
	case "startpos":
		if movesAt != 1 {
			return nil, fmt.Errorf("uci: position: unexpected %q after startpos", args[1])
		}
		pos = board.NewPosition()
	case "fen":
		var err error
		pos, err = board.ParseFEN(strings.Join(args[1:movesAt], " "))
		if err != nil {
			return nil, fmt.Errorf("uci: position: %w", err)
		}
	default:
		return nil, fmt.Errorf("uci: position: unknown keyword %q", args[0])
	}

	if movesAt < len(args) {
		if err := pos.ApplyMoves(args[movesAt+1:]...); err != nil {
			return nil, fmt.Errorf("uci: position: %w", err)
		}
	}
	return pos, nil
}

// parseGo converts "go" arguments to search limits. Clock values are in
// milliseconds; unknown tokens are ignored.
func parseGo(args []string) (engine.SearchLimits, error) {
	var limits engine.SearchLimits
	for i := 0; i < len(args); i++ {
		key := args[i]
		if key == "infinite" {
			limits.Infinite = true
			continue
		}
		switch key {
		case "depth", "nodes", "movetime", "wtime", "btime", "winc", "binc", "movestogo":
		default:
			continue
		}
		if i+1 >= len(args) {
			return limits, fmt.Errorf("uci: go: %s needs a value", key)
		}
		i++
		n, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil {
			return limits, fmt.Errorf("uci: go: %s: %w", key, err)
		}
		ms := time.Duration(n) * time.Millisecond
		switch key {
		case "depth":
			limits.Depth = int(max(n, 1))
		case "nodes":
			limits.Nodes = uint64(max(n, 1))
		case "movetime":
			limits.MoveTime = max(ms, time.Millisecond)
		case "wtime":
			limits.Time[board.White] = max(ms, time.Millisecond)
		case "btime":
			limits.Time[board.Black] = max(ms, time.Millisecond)
		case "winc":
			limits.Inc[board.White] = max(ms, 0)
		case "binc":
			limits.Inc[board.Black] = max(ms, 0)
		case "movestogo":
			limits.MovesToGo = int(max(n, 0))
		}
	}
	return limits, nil
}

// handleGo starts a search with the given parameters.
func (u *UCI) handleGo(args []string) {
	limits, err := parseGo(args)
	if err != nil {
		u.send("info string " + err.Error())
		return
	}
	u.handleStop()

	root := u.position.Copy()
	u.engine.OnInfo = func(info engine.SearchInfo) {
		u.sendInfo(root, info)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	infinite := limits.Infinite
	u.searching, u.infinite = true, infinite
	u.cancel, u.searchDone = cancel, done

	go func() {
		defer close(done)
		res := u.engine.Search(ctx, root, limits)
		if infinite {
			// bestmove must wait for "stop" even when the search ends early.
			<-ctx.Done()
		}
		u.sendBestMove(root, res)
		u.recordSearch(res)
	}()
}

func (u *UCI) sendBestMove(root *board.Position, res engine.Result) {
	if res.Move == board.NoMove || !root.IsLegal(res.Move) {
		if res.Move != board.NoMove {
			u.log.Error().Str("move", res.Move.String()).Str("fen", root.ToFEN()).Msg("search returned an illegal move")
		}
		u.send("bestmove 0000")
		return
	}
	u.send("bestmove " + res.Move.String())
}

func (u *UCI) recordSearch(res engine.Result) {
	if u.store == nil || res.Move == board.NoMove {
		return
	}
	err := u.store.RecordSearch(storage.SearchRecord{
		Nodes:     res.Nodes,
		Time:      res.Time,
		Book:      res.Source == engine.SourceBook,
		Tablebase: res.Source == engine.SourceTablebase,
	})
	if err != nil {
		u.log.Warn().Err(err).Msg("recording search statistics")
	}
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(root *board.Position, info engine.SearchInfo) {
	parts := []string{fmt.Sprintf("depth %d", info.Depth)}

	if engine.IsMateScore(info.Score) {
		parts = append(parts, fmt.Sprintf("score mate %d", engine.MateIn(info.Score)))
	} else {
		parts = append(parts, fmt.Sprintf("score cp %d", info.Score))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))
	if info.Time > 0 {
		parts = append(parts, fmt.Sprintf("nps %d", uint64(float64(info.Nodes)/info.Time.Seconds())))
	}
	parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))

	// Stop at the first PV move that is not legal in sequence.
	if len(info.PV) > 0 {
		pos := root.Copy()
		pv := make([]string, 0, len(info.PV))
		for _, m := range info.PV {
			if !pos.IsLegal(m) {
				break
			}
			pv = append(pv, m.String())
			pos.MakeMove(m)
		}
		if len(pv) > 0 {
			parts = append(parts, "pv "+strings.Join(pv, " "))
		}
	}

	u.send("info " + strings.Join(parts, " "))
}

// handleStop stops the current search and waits for its bestmove.
func (u *UCI) handleStop() {
	if !u.searching {
		return
	}
	u.cancel()
	<-u.searchDone
	u.searching = false
}

// waitSearch lets a finite search run to completion; an infinite one is
// stopped.
func (u *UCI) waitSearch() {
	if !u.searching {
		return
	}
	if u.infinite {
		u.handleStop()
		return
	}
	<-u.searchDone
	u.cancel()
	u.searching = false
}

// handleSetOption processes "setoption name <name> [value <value>]".
func (u *UCI) handleSetOption(args []string) {
	name, value := parseSetOption(args)
	var err error
	persist := true

	switch strings.ToLower(name) {
	case "hash":
		var mb int
		mb, err = strconv.Atoi(value)
		if err == nil {
			mb = min(max(mb, minHashMB), maxHashMB)
			u.handleStop()
			u.engine.SetHashSize(mb)
			u.prefs.HashMB = mb
		}
	case "ownbook":
		u.handleStop()
		u.prefs.OwnBook = strings.EqualFold(value, "true")
		err = u.configureBook()
	case "bookfile":
		if value == "<empty>" {
			value = ""
		}
		u.handleStop()
		u.prefs.BookFile = value
		err = u.configureBook()
	case "tablebase":
		u.handleStop()
		if err = u.configureTablebase(value); err == nil {
			u.prefs.Tablebase = orDefault(strings.ToLower(value), storage.TablebaseNone)
		}
	case "debug":
		persist = false
		if strings.EqualFold(value, "true") {
			zerolog.SetGlobalLevel(min(u.baseLevel, zerolog.DebugLevel))
		} else {
			zerolog.SetGlobalLevel(u.baseLevel)
		}
	default:
		u.send("info string unknown option " + name)
		return
	}

	if err != nil {
		u.log.Warn().Err(err).Str("option", name).Str("value", value).Msg("setoption failed")
		u.send("info string " + err.Error())
		return
	}
	if persist {
		u.savePreferences()
	}
}

func parseSetOption(args []string) (name, value string) {
	var nameParts, valueParts []string
	target := &nameParts
	for _, arg := range args {
		switch arg {
		case "name":
			target = &nameParts
		case "value":
			target = &valueParts
		default:
			*target = append(*target, arg)
		}
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " ")
}

func (u *UCI) savePreferences() {
	if u.store == nil {
		return
	}
	if err := u.store.SavePreferences(u.prefs); err != nil {
		u.log.Warn().Err(err).Msg("saving preferences")
	}
}

// configureBook loads the book named by the preferences, or disables it.
func (u *UCI) configureBook() error {
	if !u.prefs.OwnBook || u.prefs.BookFile == "" {
		u.engine.SetBook(nil)
		return nil
	}
	b, err := book.Load(u.prefs.BookFile, book.WithLogger(u.log))
	if err != nil {
		u.engine.SetBook(nil)
		return err
	}
	u.engine.SetBook(b)
	return nil
}

func (u *UCI) configureTablebase(mode string) error {
	p, err := u.newProber(mode)
	if err != nil {
		return err
	}
	u.closeProber()
	u.prober = p
	if p == nil {
		u.engine.SetTablebase(nil)
		return nil
	}
	u.engine.SetTablebase(p)
	u.log.Debug().Str("mode", mode).Int("pieces", p.MaxPieces()).Msg("tablebase enabled")
	return nil
}

func (u *UCI) closeProber() {
	if c, ok := u.prober.(interface{ Close() }); ok {
		c.Close()
	}
	u.prober = nil
}

// handlePerft prints the node count below each root move and the total.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			u.send("info string perft: depth must be a positive integer")
			return
		}
		depth = n
	}

	start := time.Now()
	var total uint64
	for _, e := range u.position.Copy().Divide(depth) {
		u.sendf("%s: %d", e.Move, e.Nodes)
		total += e.Nodes
	}
	elapsed := time.Since(start)

	u.send("")
	u.sendf("Nodes searched: %d", total)
	u.sendf("Time: %dms", elapsed.Milliseconds())
	if elapsed > 0 {
		u.sendf("NPS: %.0f", float64(total)/elapsed.Seconds())
	}
}
