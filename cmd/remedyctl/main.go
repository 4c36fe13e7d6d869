package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/temcen/remedy/internal/config"
	"github.com/temcen/remedy/internal/ml"
	"github.com/temcen/remedy/internal/services"
)

var (
	datasetPath string
	components  int
	centered    bool
	topN        int
)

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVarP(&datasetPath, "data", "d", "", "interaction CSV (defaults to recommender.dataset_path)")
	flags.IntVarP(&components, "components", "k", 0, "number of latent components (defaults to recommender.components)")
	flags.BoolVar(&centered, "center", false, "subtract the global mean before factorizing")

	recommendCommand.Flags().IntVarP(&topN, "top", "n", 0, "actions per machine (defaults to recommender.default_top_n)")

	rootCommand.AddCommand(summaryCommand, recommendCommand, scoreCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCommand = &cobra.Command{
	Use:          "remedyctl",
	Short:        "Fit the remediation model offline and query it",
	SilenceUsage: true,
}

var summaryCommand = &cobra.Command{
	Use:   "summary",
	Short: "Fit the model and print its diagnostics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _, err := fitModel(cmd)
		if err != nil {
			return err
		}

		s := model.Summary()
		fmt.Printf("machines:           %d\n", s.Machines)
		fmt.Printf("actions:            %d\n", s.Actions)
		fmt.Printf("observed cells:     %d (density %.2f)\n", s.ObservedCells, s.Density)
		fmt.Printf("global mean:        %.3f\n", s.GlobalMean)
		fmt.Printf("components:         %d\n", s.Components)
		fmt.Printf("mean centered:      %t\n", s.MeanCentered)
		fmt.Printf("explained variance: %.3f\n", s.ExplainedVarianceRatio)
		fmt.Printf("singular values:    %s\n", formatFloats(s.SingularValues))
		return nil
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend [machine...]",
	Short: "Rank the top actions for the given machines, or for every machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, rc, err := fitModel(cmd)
		if err != nil {
			return err
		}

		n := topN
		if n <= 0 {
			n = rc.DefaultTopN
		}

		machines := args
		if len(machines) == 0 {
			machines = model.MachineIDs()
		}
		for _, machineID := range machines {
			recs, err := model.RecommendTopN(services.NormalizeMachineID(machineID), n)
			if err != nil {
				return err
			}
			fmt.Println(machineID)
			for i, rec := range recs {
				fmt.Printf("  %d. [%d] %-42s %.3f\n", i+1, rec.ActionID, rec.Description, rec.Score)
			}
		}
		return nil
	},
}

var scoreCommand = &cobra.Command{
	Use:   "score <machine> <action>",
	Short: "Predict the score of one action on one machine",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		actionID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid action id %q", args[1])
		}

		model, _, err := fitModel(cmd)
		if err != nil {
			return err
		}

		machineID := services.NormalizeMachineID(args[0])
		score := model.PredictScore(machineID, actionID)
		if !model.KnowsMachine(machineID) || !model.KnowsAction(actionID) {
			fmt.Printf("%.3f (cold start)\n", score)
			return nil
		}
		fmt.Printf("%.3f\n", score)
		return nil
	},
}

// fitModel merges command-line flags over the loaded configuration and fits
// a model from the CSV dataset.
func fitModel(cmd *cobra.Command) (*ml.LatentFactorModel, config.RecommenderConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.RecommenderConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	rc := cfg.Recommender

	flags := cmd.Flags()
	if flags.Changed("data") {
		rc.DatasetPath = datasetPath
	}
	if flags.Changed("components") {
		rc.Components = components
	}
	if flags.Changed("center") {
		rc.MeanCentering = centered
	}
	if rc.DatasetPath == "" {
		return nil, rc, fmt.Errorf("no dataset given: pass --data or set recommender.dataset_path")
	}

	catalog, err := rc.ParseCatalog()
	if err != nil {
		return nil, rc, err
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	file, err := os.Open(rc.DatasetPath)
	if err != nil {
		return nil, rc, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	records, err := services.NewInteractionPreprocessor(logger).ParseCSV(file)
	if err != nil {
		return nil, rc, fmt.Errorf("failed to parse dataset: %w", err)
	}

	opts := []ml.FitOption{ml.WithMeanCentering(rc.MeanCentering)}
	if len(catalog) > 0 {
		opts = append(opts, ml.WithCatalog(catalog))
	}
	model, err := ml.FitFromInteractions(records, rc.Components, opts...)
	return model, rc, err
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
