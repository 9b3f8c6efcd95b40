package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/board"
)

// LichessURL is the public endpoint of the Lichess tablebase service.
const LichessURL = "https://tablebase.lichess.ovh"

// HTTPProber queries a tablebase server speaking the Lichess JSON API.
// Network failures are reported as "not found" and logged.
type HTTPProber struct {
	BaseURL   string
	Client    *http.Client
	Timeout   time.Duration // Per request
	Pieces    int
	Logger    zerolog.Logger
	userAgent string
}

// NewHTTPProber creates a prober for the server at baseURL.
func NewHTTPProber(baseURL string, logger zerolog.Logger) *HTTPProber {
	return &HTTPProber{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Client:    &http.Client{},
		Timeout:   2 * time.Second,
		Pieces:    7, // Lichess serves up to 7-piece tables
		Logger:    logger.With().Str("component", "tablebase").Logger(),
		userAgent: "chesscore",
	}
}

// NewLichessProber creates a prober for the public Lichess service.
func NewLichessProber(logger zerolog.Logger) *HTTPProber {
	return NewHTTPProber(LichessURL, logger)
}

// Response is the decoded server answer. Move categories are from the
// point of view of the side to move after the move.
type Response struct {
	Category string `json:"category"`
	DTZ      *int   `json:"dtz"`
	Moves    []struct {
		UCI      string `json:"uci"`
		Category string `json:"category"`
		DTZ      *int   `json:"dtz"`
	} `json:"moves"`
}

// Fetch queries the server for pos.
func (p *HTTPProber) Fetch(ctx context.Context, pos *board.Position) (*Response, error) {
	u := p.BaseURL + "/standard?fen=" + url.QueryEscape(pos.ToFEN())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("tablebase: build request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tablebase: query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tablebase: query: status %s", resp.Status)
	}
	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("tablebase: decode response: %w", err)
	}
	return &r, nil
}

func (p *HTTPProber) fetch(pos *board.Position) (*Response, WDL, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()
	r, err := p.Fetch(ctx, pos)
	if err != nil {
		p.Logger.Warn().Err(err).Str("fen", pos.ToFEN()).Msg("probe failed")
		return nil, WDLDraw, false
	}
	wdl, ok := categoryToWDL(r.Category)
	if !ok {
		p.Logger.Debug().Str("category", r.Category).Msg("position not in tablebase")
	}
	return r, wdl, ok
}

func (p *HTTPProber) Probeable(pos *board.Position) bool {
	return Probeable(pos, p.Pieces)
}

func (p *HTTPProber) Probe(pos *board.Position) ProbeResult {
	if !p.Probeable(pos) {
		return ProbeResult{}
	}
	r, wdl, ok := p.fetch(pos)
	if !ok {
		return ProbeResult{}
	}
	return ProbeResult{Found: true, WDL: wdl, DTZ: deref(r.DTZ)}
}

// ProbeRoot returns the first move of the server's list, which is ordered
// best first for the side to move.
func (p *HTTPProber) ProbeRoot(pos *board.Position) RootResult {
	if !p.Probeable(pos) {
		return RootResult{}
	}
	r, wdl, ok := p.fetch(pos)
	if !ok || len(r.Moves) == 0 {
		return RootResult{}
	}
	m, err := pos.ParseMove(r.Moves[0].UCI)
	if err != nil {
		p.Logger.Warn().Err(err).Str("fen", pos.ToFEN()).Msg("tablebase returned an unusable move")
		return RootResult{}
	}
	return RootResult{Found: true, Move: m, WDL: wdl, DTZ: deref(r.DTZ)}
}

func (p *HTTPProber) MaxPieces() int {
	return p.Pieces
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// categoryToWDL maps a Lichess category for the side to move. Unknown
// categories, including "unknown", are not results.
func categoryToWDL(category string) (WDL, bool) {
	switch category {
	case "win":
		return WDLWin, true
	case "cursed-win", "maybe-win":
		return WDLCursedWin, true
	case "draw":
		return WDLDraw, true
	case "blessed-loss", "maybe-loss":
		return WDLBlessedLoss, true
	case "loss":
		return WDLLoss, true
	}
	return WDLDraw, false
}
