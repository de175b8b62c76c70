// Package extract converts PGN game archives into packed training records.
// Games are replayed from the standard starting position; every quiet
// position (side to move not in check, upcoming move not a capture) becomes
// one record labeled with the game result.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/chessdata/internal/chess"
	"github.com/freeeve/chessdata/internal/sample"
)

// Config configures an extraction run.
type Config struct {
	Inputs []string // PGN files, plain or zstd-compressed
	Output string   // packed record file
	Append bool     // append to an existing output instead of truncating
	Logger zerolog.Logger
}

// Extractor runs one extraction pass over a set of PGN files.
type Extractor struct {
	cfg Config
	log zerolog.Logger

	games   atomic.Int64
	skipped atomic.Int64
	written atomic.Int64
}

func New(cfg Config) (*Extractor, error) {
	if len(cfg.Inputs) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	if cfg.Output == "" {
		return nil, fmt.Errorf("no output file")
	}
	return &Extractor{cfg: cfg, log: cfg.Logger}, nil
}

// Run reads all inputs in parallel and writes records through a single
// writer goroutine. An existing output survives a failed run only in
// append mode; a truncating run that fails leaves the truncated file.
func (e *Extractor) Run(ctx context.Context) error {
	flags := os.O_WRONLY | os.O_CREATE
	if e.cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(e.cfg.Output, flags, 0644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer out.Close()

	start := time.Now()
	e.log.Info().
		Int("inputs", len(e.cfg.Inputs)).
		Str("output", e.cfg.Output).
		Bool("append", e.cfg.Append).
		Msg("extract started")

	g, ctx := errgroup.WithContext(ctx)
	records := make(chan sample.PackedSample, 1<<12)

	readers, rctx := errgroup.WithContext(ctx)
	for _, path := range e.cfg.Inputs {
		readers.Go(func() error {
			return e.extractFile(rctx, path, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})

	g.Go(func() error {
		w := sample.NewWriter(out)
		lastLog := time.Now()
		for rec := range records {
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			e.written.Store(w.Written())
			if time.Since(lastLog) > 10*time.Second {
				e.logProgress(start)
				lastLog = time.Now()
			}
		}
		return w.Flush()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	e.log.Info().
		Int64("games", e.games.Load()).
		Int64("skipped", e.skipped.Load()).
		Int64("records", e.written.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("extract complete")
	return out.Sync()
}

func (e *Extractor) logProgress(start time.Time) {
	elapsed := time.Since(start)
	e.log.Info().
		Int64("games", e.games.Load()).
		Int64("skipped", e.skipped.Load()).
		Int64("records", e.written.Load()).
		Float64("games_per_sec", float64(e.games.Load())/elapsed.Seconds()).
		Msg("extract progress")
}

// extractFile streams one PGN file into the record channel.
func (e *Extractor) extractFile(ctx context.Context, path string, records chan<- sample.PackedSample) error {
	e.log.Info().Str("file", filepath.Base(path)).Msg("reading")

	parser := pgn.Games(path)
	stopped := false
gameLoop:
	for game := range parser.Games {
		select {
		case <-ctx.Done():
			if !stopped {
				parser.Stop()
				stopped = true
			}
			break gameLoop
		default:
		}

		outcome, ok := gameOutcome(game)
		if !ok {
			e.skipped.Add(1)
			continue
		}
		if err := e.extractGame(ctx, game, outcome, records); err != nil {
			return err
		}
		e.games.Add(1)
	}
	if err := parser.Err(); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if stopped {
		return ctx.Err()
	}
	return nil
}

// gameOutcome maps the PGN headers to a record outcome. Unfinished games,
// abnormal terminations (time forfeit, abandonment), and games from a
// custom starting position are all rejected.
func gameOutcome(game *pgn.Game) (sample.Outcome, bool) {
	if game.Tags["FEN"] != "" {
		return 0, false
	}
	if term := game.Tags["Termination"]; term != "" && !strings.EqualFold(term, "normal") {
		return 0, false
	}
	switch game.Tags["Result"] {
	case "1-0":
		return sample.OutcomeWhiteWins, true
	case "0-1":
		return sample.OutcomeBlackWins, true
	case "1/2-1/2":
		return sample.OutcomeDraw, true
	}
	return 0, false
}

// extractGame replays the game, emitting one record per quiet position.
func (e *Extractor) extractGame(ctx context.Context, game *pgn.Game, outcome sample.Outcome, records chan<- sample.PackedSample) error {
	pos := pgn.NewStartingPosition()
	for _, mv := range game.Moves {
		p, err := chess.ParseFEN(pos.ToFEN())
		if err != nil {
			// A replay that produced an invalid board means the game score
			// is broken; drop the rest of the game.
			e.log.Warn().Err(err).Msg("dropping game mid-replay")
			return nil
		}

		if !p.InCheck() && !isCapture(&p, mv) {
			s := sample.Sample{Pos: p, Outcome: outcome}
			rec, err := s.Pack()
			if err != nil {
				return err
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := pgn.ApplyMove(pos, mv); err != nil {
			// Unparseable or illegal move in the score; keep what we have.
			return nil
		}
	}
	return nil
}

// isCapture checks the move against the pre-move board: either the
// destination is occupied or a pawn takes en passant on the empty target
// square.
func isCapture(p *chess.Position, mv pgn.Mv) bool {
	to := chess.Square(mv.To)
	if p.Occupied()&to.Bit() != 0 {
		return true
	}
	if to == p.EnPassant {
		if piece, _, ok := p.PieceAt(chess.Square(mv.From)); ok && piece == chess.Pawn {
			return true
		}
	}
	return false
}
