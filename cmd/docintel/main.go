// Command docintel runs the intake pipeline over a local file and prints the
// summary JSON. It needs no database, queue or object storage.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kirillkom/procurement-intake/internal/bootstrap"
	"github.com/kirillkom/procurement-intake/internal/config"
	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/infrastructure/extractor"
)

func main() {
	hint := flag.String("hint", "", "document type hint, e.g. rfq, invoice, po")
	full := flag.Bool("full", false, "print the full pipeline result instead of the summary")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: docintel [-hint TYPE] [-full] FILE\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(os.Stdout, cfg, logger, flag.Arg(0), *hint, *full); err != nil {
		fmt.Fprintf(os.Stderr, "docintel: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, cfg config.Config, logger *slog.Logger, path, hint string, full bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	src, err := extractor.Decode(raw, filepath.Base(path), "")
	if err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	src.UserHint = hint

	pipeline, err := bootstrap.NewPipeline(cfg, logger, nil)
	if err != nil {
		return err
	}
	result := pipeline.Process(src)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	var payload any = result.Summary()
	if full {
		payload = result
	}
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if !result.Success {
		return domain.WrapError(domain.ErrStageFailed, string(result.FailedStage), fmt.Errorf("%s", result.Error))
	}
	return nil
}
