// Command show prints a random selection of records from a packed file in
// human-readable form, for spot-checking extraction and shuffle output.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/freeeve/chessdata/internal/logx"
	"github.com/freeeve/chessdata/internal/sample"
)

func main() {
	var (
		count = flag.Int("n", 16, "Number of records to show")
		seed  = flag.Uint64("seed", 0, "Random seed (0 = from the clock)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: show [-n <count>] [-seed <n>] <in.bin>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger()

	path := flag.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open input")
	}
	defer f.Close()

	total, err := sample.FileRecordCount(path)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad record file")
	}
	if total == 0 {
		logger.Fatal().Str("path", path).Msg("file is empty")
	}

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9E3779B97F4A7C15))

	for i := 0; i < *count; i++ {
		idx := rng.Int64N(total)
		var rec sample.PackedSample
		if _, err := f.ReadAt(rec[:], idx*sample.RecordSize); err != nil {
			logger.Fatal().Err(err).Int64("record", idx).Msg("read record")
		}
		s, err := rec.Unpack()
		if err != nil {
			logger.Error().Err(err).Int64("record", idx).Msg("corrupt record")
			continue
		}

		fmt.Printf("record %d of %d\n%v\n", idx, total, &s.Pos)
		fmt.Printf("fen:     %s\n", s.Pos.FEN())
		fmt.Printf("to move: %v\n", s.Pos.SideToMove)
		fmt.Printf("outcome: %v\n", s.Outcome)
		if s.HasEval {
			fmt.Printf("eval:    %+d cp\n", s.Eval)
		} else {
			fmt.Printf("eval:    none\n")
		}
		fmt.Println()
	}
}
