package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/sympcheck/internal/artifact"
	"github.com/crimson-sun/sympcheck/internal/config"
	"github.com/crimson-sun/sympcheck/internal/engine/predictor"
	"github.com/crimson-sun/sympcheck/internal/engine/schema"
	"github.com/crimson-sun/sympcheck/internal/output"
	"github.com/crimson-sun/sympcheck/internal/output/stdout"
	"github.com/crimson-sun/sympcheck/internal/pipeline"
	"github.com/crimson-sun/sympcheck/internal/runlog"
)

type trainSummary struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Source     string    `json:"source"`
	Synthetic  bool      `json:"synthetic"`
	Accuracy   float64   `json:"accuracy"`
	TrainRows  int       `json:"train_rows"`
	TestRows   int       `json:"test_rows"`
	Symptoms   int       `json:"symptoms"`
	Conditions int       `json:"conditions"`
	CreatedAt  time.Time `json:"created_at"`
}

func trainCmd(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and store the model, or load the stored one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, closeFn, err := newTrainer(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			var a *artifact.Artifact
			if force {
				a, err = tr.Train(cmd.Context())
			} else {
				a, err = tr.TrainOrLoad(cmd.Context())
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd, trainSummary{
				ID:         a.Meta.ID,
				Path:       cfg.Model.ArtifactPath,
				Source:     a.Meta.Source,
				Synthetic:  a.Meta.Synthetic,
				Accuracy:   a.Meta.Accuracy,
				TrainRows:  a.Meta.TrainRows,
				TestRows:   a.Meta.TestRows,
				Symptoms:   len(a.Schema.Symptoms),
				Conditions: len(a.Schema.Conditions),
				CreatedAt:  a.Meta.CreatedAt,
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "retrain even if a stored model exists")
	return cmd
}

func predictCmd(cfg *config.Config) *cobra.Command {
	var fromStdin, pretty bool
	var verbosity string

	cmd := &cobra.Command{
		Use:   "predict [symptom...]",
		Short: "Rank conditions for a set of symptoms",
		Long: "Rank conditions for a set of symptoms. Symptoms may be given as separate\n" +
			"arguments or comma-separated. With --stdin, each input line is one query.",
		Example: "  sympcheck predict fever cough\n" +
			"  sympcheck predict 'skin rash,itching'\n" +
			"  printf 'fever,cough\\nheadache\\n' | sympcheck predict --stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromStdin && len(args) > 0 {
				return errors.New("symptom arguments cannot be combined with --stdin")
			}
			tr, closeFn, err := newTrainer(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			pred, err := newPredictor(*cfg, tr)
			if err != nil {
				return err
			}
			if err := pred.Warmup(cmd.Context()); err != nil {
				return err
			}

			out := stdout.NewWriter(cmd.OutOrStdout(), output.ParseVerbosity(verbosity), pretty)
			p := pipeline.New(pred, out)
			defer p.Close()

			if fromStdin {
				_, err := p.Stream(cmd.Context(), cmd.InOrStdin())
				return err
			}
			return p.Query(cmd.Context(), pipeline.ParseSymptoms(strings.Join(args, ",")))
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read one comma-separated query per line from stdin")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	cmd.Flags().StringVar(&verbosity, "verbosity", "standard", "output fields: standard or minimal")
	return cmd
}

func symptomsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "symptoms",
		Short: "List the symptoms the model recognizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, closeFn, err := newTrainer(*cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			pred, err := newPredictor(*cfg, tr)
			if err != nil {
				return err
			}
			if err := pred.Warmup(cmd.Context()); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME")
			for _, code := range pred.Symptoms() {
				fmt.Fprintf(w, "%s\t%s\n", code, schema.DisplayName(code))
			}
			return w.Flush()
		},
	}
}

// statusReport is the stored model's status plus the last successful
// training run from the run log, when one is recorded.
type statusReport struct {
	predictor.Status
	LastRun *lastRun `json:"last_run,omitempty"`
}

type lastRun struct {
	ID         string    `json:"id"`
	ArtifactID string    `json:"artifact_id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Accuracy   float64   `json:"accuracy"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
}

func statusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored model without training one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report statusReport
			if cfg.Model.RunLogPath != "" {
				last, err := latestRun(cmd, cfg.Model.RunLogPath)
				if err != nil {
					return err
				}
				report.LastRun = last
			}

			store := artifact.NewStore(cfg.Model.ArtifactPath)
			ok, err := store.Exists()
			if err != nil {
				return err
			}
			if !ok {
				return writeJSON(cmd, report)
			}
			a, err := store.Load()
			if err != nil {
				return err
			}
			pred, err := newPredictor(*cfg, nil, predictor.WithArtifact(a))
			if err != nil {
				return err
			}
			report.Status = pred.Status()
			return writeJSON(cmd, report)
		},
	}
}

func latestRun(cmd *cobra.Command, path string) (*lastRun, error) {
	store, err := runlog.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	r, ok, err := store.Latest(cmd.Context())
	if err != nil || !ok {
		return nil, err
	}
	return &lastRun{
		ID:         r.ID,
		ArtifactID: r.ArtifactID,
		Source:     r.Source,
		Rows:       r.Rows,
		Accuracy:   r.Accuracy,
		StartedAt:  r.StartedAt,
		Duration:   r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	}, nil
}

func runsCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded training runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Model.RunLogPath == "" {
				return errors.New("run log disabled: set SYMPCHECK_RUNLOG_PATH")
			}
			store, err := runlog.Open(cfg.Model.RunLogPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSTATUS\tSOURCE\tROWS\tACCURACY\tARTIFACT\tERROR")
			for _, r := range runs {
				source := r.Source
				if r.Synthetic {
					source += " (synthetic)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Status, source, r.Rows,
					r.Accuracy, shortID(r.ArtifactID), r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of runs to show")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
