// Command cnalign aligns allele-specific copy numbers across multiple
// tumor samples, inferring each sample's ploidy and purity jointly with
// integer copy-number states.
//
// Input is a tab-separated table with columns sample, segment, logR, BAF,
// GC and mb, covering the full sample x segment cross product. Output is a
// long-form table with one column per pooled solution.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agorelick/CNalign/pkg/cnalign"
	"github.com/agorelick/CNalign/pkg/mip/bnb"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		inputPath   string
		outputPath  string
		configPath  string
		licensePath string
		verbose     bool

		cfg = cnalign.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "cnalign",
		Short: "Multi-sample allele-specific copy-number alignment",
		Long: "cnalign jointly infers total and minor copy numbers, ploidy and purity\n" +
			"for a set of tumor samples from the same patient, maximizing the number\n" +
			"of clonal segments and then minimizing the deviation of copy numbers\n" +
			"from integers.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
			if configPath != "" {
				fileCfg, err := cnalign.LoadConfig(configPath)
				if err != nil {
					return err
				}
				// Explicit flags win over the config file; everything
				// else takes the file's value.
				mergeUnsetFlags(cmd, &cfg, fileCfg)
			}
			if licensePath != "" {
				cfg.LicenseFile = licensePath
			}

			table, err := readInput(inputPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := cnalign.Align(ctx, table, cfg, bnb.New())
			if res == nil {
				return err
			}
			if err != nil {
				log.WithError(err).Warn("search ended early; reporting best solutions found")
			}
			return writeOutput(outputPath, res.Table)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&inputPath, "input", "i", "", "input TSV path, or - for stdin (required)")
	flags.StringVarP(&outputPath, "output", "o", "-", "output TSV path, or - for stdout")
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&licensePath, "license", "", "WLS license file for remote engines")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	flags.Float64Var(&cfg.MinPloidy, "min-ploidy", cfg.MinPloidy, "minimum sample ploidy")
	flags.Float64Var(&cfg.MaxPloidy, "max-ploidy", cfg.MaxPloidy, "maximum sample ploidy")
	flags.Float64Var(&cfg.MinPurity, "min-purity", cfg.MinPurity, "minimum sample purity")
	flags.Float64Var(&cfg.MaxPurity, "max-purity", cfg.MaxPurity, "maximum sample purity")
	flags.Float64Var(&cfg.MinAlignedSegMb, "min-aligned-seg-mb", cfg.MinAlignedSegMb, "minimum segment length (Mb) to count toward clonality")
	flags.Float64Var(&cfg.MaxHomdelMb, "max-homdel-mb", cfg.MaxHomdelMb, "cap on homozygously deleted Mb per sample")
	flags.Float64Var(&cfg.DeltaTCNToInt, "delta-tcn-to-int", cfg.DeltaTCNToInt, "max TCN deviation from integer")
	flags.Float64Var(&cfg.DeltaTCNToAvg, "delta-tcn-to-avg", cfg.DeltaTCNToAvg, "max TCN deviation from cross-sample average")
	flags.Float64Var(&cfg.DeltaTCNAvgToInt, "delta-tcnavg-to-int", cfg.DeltaTCNAvgToInt, "max TCN average deviation from integer")
	flags.Float64Var(&cfg.DeltaMCNToInt, "delta-mcn-to-int", cfg.DeltaMCNToInt, "max MCN deviation from integer")
	flags.Float64Var(&cfg.DeltaMCNToAvg, "delta-mcn-to-avg", cfg.DeltaMCNToAvg, "max MCN deviation from cross-sample average")
	flags.Float64Var(&cfg.DeltaMCNAvgToInt, "delta-mcnavg-to-int", cfg.DeltaMCNAvgToInt, "max MCN average deviation from integer")
	flags.Float64Var(&cfg.MCNWeight, "mcn-weight", cfg.MCNWeight, "weight of MCN error in the blended objective [0,1]")
	flags.Float64Var(&cfg.Rho, "rho", cfg.Rho, "fraction of samples that must match for a clonal segment (0,1]")
	flags.DurationVar((*time.Duration)(&cfg.StagnationTimeout), "stagnation-timeout", time.Duration(cfg.StagnationTimeout), "stop a level after this long without improvement")
	flags.IntVar(&cfg.MinCNASegmentsPerSample, "min-cna-segments", cfg.MinCNASegmentsPerSample, "minimum CNA-bearing segments per sample")
	flags.BoolVar(&cfg.Obj2ClonalOnly, "obj2-clonalonly", cfg.Obj2ClonalOnly, "restrict the error objective to clonal segments")
	flags.IntVar(&cfg.SolCount, "sol-count", cfg.SolCount, "number of pooled solutions to report")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel LP evaluations in the bundled engine")

	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// mergeUnsetFlags copies file values into cfg for every option whose flag
// was not given on the command line.
func mergeUnsetFlags(cmd *cobra.Command, cfg *cnalign.Config, file cnalign.Config) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if !changed("min-ploidy") {
		cfg.MinPloidy = file.MinPloidy
	}
	if !changed("max-ploidy") {
		cfg.MaxPloidy = file.MaxPloidy
	}
	if !changed("min-purity") {
		cfg.MinPurity = file.MinPurity
	}
	if !changed("max-purity") {
		cfg.MaxPurity = file.MaxPurity
	}
	if !changed("min-aligned-seg-mb") {
		cfg.MinAlignedSegMb = file.MinAlignedSegMb
	}
	if !changed("max-homdel-mb") {
		cfg.MaxHomdelMb = file.MaxHomdelMb
	}
	if !changed("delta-tcn-to-int") {
		cfg.DeltaTCNToInt = file.DeltaTCNToInt
	}
	if !changed("delta-tcn-to-avg") {
		cfg.DeltaTCNToAvg = file.DeltaTCNToAvg
	}
	if !changed("delta-tcnavg-to-int") {
		cfg.DeltaTCNAvgToInt = file.DeltaTCNAvgToInt
	}
	if !changed("delta-mcn-to-int") {
		cfg.DeltaMCNToInt = file.DeltaMCNToInt
	}
	if !changed("delta-mcn-to-avg") {
		cfg.DeltaMCNToAvg = file.DeltaMCNToAvg
	}
	if !changed("delta-mcnavg-to-int") {
		cfg.DeltaMCNAvgToInt = file.DeltaMCNAvgToInt
	}
	if !changed("mcn-weight") {
		cfg.MCNWeight = file.MCNWeight
	}
	if !changed("rho") {
		cfg.Rho = file.Rho
	}
	if !changed("stagnation-timeout") {
		cfg.StagnationTimeout = file.StagnationTimeout
	}
	if !changed("min-cna-segments") {
		cfg.MinCNASegmentsPerSample = file.MinCNASegmentsPerSample
	}
	if !changed("obj2-clonalonly") {
		cfg.Obj2ClonalOnly = file.Obj2ClonalOnly
	}
	if !changed("sol-count") {
		cfg.SolCount = file.SolCount
	}
	if !changed("workers") {
		cfg.Workers = file.Workers
	}
	if file.MaxCopies != 0 {
		cfg.MaxCopies = file.MaxCopies
	}
	if file.LicenseFile != "" {
		cfg.LicenseFile = file.LicenseFile
	}
}

func readInput(path string) (*cnalign.ObservationTable, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return cnalign.ReadObservationTable(r)
}

func writeOutput(path string, table *cnalign.SolutionTable) error {
	if path == "-" || path == "" {
		return table.WriteTSV(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := table.WriteTSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
