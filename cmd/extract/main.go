package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/freeeve/chessdata/internal/extract"
	"github.com/freeeve/chessdata/internal/logx"
)

func main() {
	var (
		output   = flag.String("o", "", "Output record file")
		appendTo = flag.Bool("append", false, "Append to the output instead of truncating")
	)
	flag.Parse()

	if *output == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: extract -o <out.bin> [-append] <file.pgn[.zst]> ...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ex, err := extract.New(extract.Config{
		Inputs: flag.Args(),
		Output: *output,
		Append: *appendTo,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("configure extract")
	}
	if err := ex.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("extract failed")
	}
}
