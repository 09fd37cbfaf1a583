package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	appdataset "github.com/qsarlab/adscan/internal/application/dataset"
	appscan "github.com/qsarlab/adscan/internal/application/scan"
	"github.com/qsarlab/adscan/internal/domain/appdomain"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
)

// runFlags holds the inputs of one local scan invocation.
type runFlags struct {
	trainingPath    string
	queryPath       string
	correctnessPath string
	agreementPath   string
	dispersionPath  string
	steps           int
	compressEnd     int
	decompressStart int
	output          string
}

func newRunCmd(opts *RootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a domain scan over local CSV files",
		Long: "Run a full applicability-domain scan without any platform\n" +
			"infrastructure: matrices and signals are read from headerless CSV\n" +
			"files and the profile is printed to stdout.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLocalScan(cmd, opts, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.trainingPath, "training", "", "training feature matrix CSV (required)")
	f.StringVar(&flags.queryPath, "query", "", "query feature matrix CSV (required)")
	f.StringVar(&flags.correctnessPath, "correctness", "", "per-query correctness signal CSV (required)")
	f.StringVar(&flags.agreementPath, "agreement", "", "per-training agreement signal CSV (required)")
	f.StringVar(&flags.dispersionPath, "dispersion", "", "per-training dispersion signal CSV (required)")
	f.IntVar(&flags.steps, "steps", appdomain.DefaultSteps, "number of scan steps")
	f.IntVar(&flags.compressEnd, "compress-end", appdomain.DefaultCompressEnd, "last step of the compressed phase")
	f.IntVar(&flags.decompressStart, "decompress-start", appdomain.DefaultDecompressStart, "first step of the full-radius phase")
	f.StringVarP(&flags.output, "output", "o", "table", "output format (table, json)")

	for _, name := range []string{"training", "query", "correctness", "agreement", "dispersion"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runLocalScan(cmd *cobra.Command, opts *RootOptions, flags *runFlags) error {
	level := opts.LogLevel
	if level == "" {
		level = "warn"
	}
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	in := appscan.RunInput{
		Config: &appdomain.ScanConfig{
			Steps:           flags.steps,
			CompressEnd:     flags.compressEnd,
			DecompressStart: flags.decompressStart,
		},
	}
	if in.Training, err = readMatrix(flags.trainingPath); err != nil {
		return err
	}
	if in.Query, err = readMatrix(flags.queryPath); err != nil {
		return err
	}
	if in.Correctness, err = readSignal(flags.correctnessPath); err != nil {
		return err
	}
	if in.Agreement, err = readSignal(flags.agreementPath); err != nil {
		return err
	}
	if in.Dispersion, err = readSignal(flags.dispersionPath); err != nil {
		return err
	}

	calc := appscan.NewCalculator(appdomain.DefaultScanConfig(), nil, logger)
	profile, err := calc.Run(cmd.Context(), in)
	if err != nil {
		return err
	}

	if flags.output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	}
	printProfileTable(cmd, profile)
	return nil
}

func readMatrix(path string) ([][]float64, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return appdataset.ParseMatrix(payload)
}

func readSignal(path string) ([]float64, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return appdataset.ParseSignal(payload)
}

func printProfileTable(cmd *cobra.Command, profile []appscan.ProfileStep) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-5s %-12s %-9s %-8s %s\n", "K", "PHASE", "OUTLIERS", "COVERED", "ACCURACY")
	for _, step := range profile {
		accuracy := "n/a"
		if step.Accuracy != nil {
			accuracy = strconv.FormatFloat(*step.Accuracy, 'f', 4, 64)
		}
		fmt.Fprintf(out, "%-5d %-12s %-9d %-8d %s\n",
			step.K, step.Phase, step.OutlierCount, step.Covered, accuracy)
	}
}
