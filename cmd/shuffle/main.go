package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/freeeve/chessdata/internal/logx"
	"github.com/freeeve/chessdata/internal/shuffle"
)

func main() {
	var (
		output  = flag.String("o", "", "Output file (default: shuffle in place)")
		tempDir = flag.String("tmp", os.TempDir(), "Directory for bucket files")
		seed    = flag.Uint64("seed", 0, "Random seed (0 = from the clock)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: shuffle [-o <out.bin>] [-tmp <dir>] [-seed <n>] <in.bin>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger()

	eng := shuffle.New(shuffle.Config{
		TempDir: *tempDir,
		Seed:    *seed,
		Logger:  logger,
	})
	if err := eng.Shuffle(flag.Arg(0), *output); err != nil {
		logger.Fatal().Err(err).Msg("shuffle failed")
	}
}
