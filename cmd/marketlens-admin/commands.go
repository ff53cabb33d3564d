package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/bootstrap"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/domain/sizing"
	"github.com/urfave/cli/v3"
)

// sizingFile is the document read by the size command; it matches the sizing endpoint body.
type sizingFile struct {
	Sources           []model.RawObservation         `json:"sources"`
	Segmentation      *model.Segmentation            `json:"segmentation,omitempty"`
	ProblemValidation *model.ProblemValidationResult `json:"problem_validation,omitempty"`
	Competition       *model.CompetitionAnalysis     `json:"competition,omitempty"`
	Options           model.SizingOptions            `json:"options"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadServices builds the same container the server runs, from the environment.
func loadServices(ctx context.Context) (bootstrap.ServiceContainer, config.AppConfig, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return bootstrap.ServiceContainer{}, cfg, err
	}
	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{Config: &cfg, Logger: slog.Default()})
	if err != nil {
		return bootstrap.ServiceContainer{}, cfg, err
	}
	return services, cfg, nil
}

func analyzeAction(ctx context.Context, cmd *cli.Command) error {
	services, _, err := loadServices(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	job, err := services.Analyses.RunSync(ctx, model.AnalysisInput{
		BusinessIdea:     cmd.String("idea"),
		ProblemStatement: cmd.String("problem"),
	})
	if err != nil {
		return err
	}
	if err := writeJSON(cmd.Root().Writer, job); err != nil {
		return err
	}
	if job.Status == model.JobStatusFailed {
		msg := "unknown error"
		if job.Error != nil {
			msg = *job.Error
		}
		return fmt.Errorf("analysis %s failed: %s", job.ID, msg)
	}
	return nil
}

func readSizingFile(path string, stdin io.Reader) (sizingFile, error) {
	var r io.Reader
	switch path {
	case "":
		return sizingFile{}, errors.New("a sources file is required (use - for stdin)")
	case "-":
		r = stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return sizingFile{}, fmt.Errorf("open sources file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var doc sizingFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return sizingFile{}, fmt.Errorf("decode sources file: %w", err)
	}
	if len(doc.Sources) == 0 {
		return sizingFile{}, errors.New("sources file has no sources")
	}
	return doc, nil
}

func sizeAction(_ context.Context, cmd *cli.Command) error {
	doc, err := readSizingFile(cmd.Args().First(), os.Stdin)
	if err != nil {
		return err
	}
	if cmd.IsSet("geo") {
		geo := cmd.Float("geo")
		if geo <= 0 || geo > 1 {
			return fmt.Errorf("geo must be in (0,1], got %v", geo)
		}
		doc.Options.GeographicFocus = &geo
	}

	engine := sizing.NewEngine(sizing.EngineOptions{Logger: slog.Default()})
	result := engine.ComputeSizing(sizing.Input{
		Sources:           doc.Sources,
		Segmentation:      doc.Segmentation,
		ProblemValidation: doc.ProblemValidation,
		Competition:       doc.Competition,
		Options:           doc.Options,
	})
	if err := writeJSON(cmd.Root().Writer, result); err != nil {
		return err
	}
	if result.Error != "" {
		return errors.New(result.Error)
	}
	return nil
}

func sweepAction(ctx context.Context, cmd *cli.Command) error {
	services, cfg, err := loadServices(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	runner, err := bootstrap.NewReaperRunner(bootstrap.ReaperConfig{
		Store:   services.Store,
		Logger:  slog.Default(),
		Config:  cfg.Reaper,
		Metrics: services.Observability.MetricsSink,
	})
	if err != nil {
		return err
	}
	report, err := runner.SweepOnce(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.Root().Writer, report)
}
