package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/optionprisma/src/config"
	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
	"github.com/jiaming2012/optionprisma/src/ratefetcher"
	"github.com/jiaming2012/optionprisma/src/service"
	"github.com/jiaming2012/optionprisma/src/store"
	"github.com/jiaming2012/optionprisma/src/utils"
)

var rootCmd = &cobra.Command{
	Use:   "prisma",
	Short: "Price European options and manage stored simulations",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		goEnv, _ := cmd.Flags().GetString("go-env")
		envDir, _ := cmd.Flags().GetString("env-dir")
		if err := utils.InitEnvironmentVariables(envDir, goEnv); err != nil {
			log.Debugf("skipping .env file: %v", err)
		}
	},
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price an option with Monte Carlo and Black-Scholes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		req, err := pricingRequestFromFlags(cmd, cfg.Simulation)
		if err != nil {
			log.Fatalf("invalid flags: %v", err)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")

		if dryRun {
			mc, err := pricing.PriceMonteCarlo(req)
			if err != nil {
				log.Fatalf("Monte Carlo pricing failed: %v", err)
			}

			analytical, err := pricing.PriceAnalytical(req)
			if err != nil {
				log.Fatalf("analytical pricing failed: %v", err)
			}

			if asJSON {
				printJSON(map[string]interface{}{"monte_carlo": mc, "analytical": analytical, "inputs": req})
				return
			}

			fmt.Print(renderPricing(req, mc, analytical))
			return
		}

		svc, closeFn := newService(cfg)
		defer closeFn()

		result, err := svc.RunSimulation(context.Background(), req)
		if err != nil {
			closeFn()
			log.Fatalf("simulation failed: %v", err)
		}

		if asJSON {
			printJSON(result)
			return
		}

		fmt.Print(renderSimulation(result))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored simulations",
	Run: func(cmd *cobra.Command, args []string) {
		skip, _ := cmd.Flags().GetInt("skip")
		limit, _ := cmd.Flags().GetInt("limit")

		svc, closeFn := newService(loadConfig(cmd))
		defer closeFn()

		results, err := svc.ListSimulations(context.Background(), skip, limit)
		if err != nil {
			closeFn()
			log.Fatalf("failed to list simulations: %v", err)
		}

		fmt.Print(renderSimulationList(results))
	},
}

var getCmd = &cobra.Command{
	Use:   "get <simulation_id>",
	Short: "Show a stored simulation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, closeFn := newService(loadConfig(cmd))
		defer closeFn()

		result, err := svc.GetSimulation(context.Background(), args[0])
		if err != nil {
			closeFn()
			log.Fatalf("failed to get simulation: %v", err)
		}

		printJSON(result)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <simulation_id>",
	Short: "Delete a stored simulation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			ok, err := utils.Confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete %s?", args[0]))
			if err != nil {
				log.Fatalf("failed to read confirmation: %v", err)
			}

			if !ok {
				fmt.Println("aborted")
				return
			}
		}

		svc, closeFn := newService(loadConfig(cmd))
		defer closeFn()

		if err := svc.DeleteSimulation(context.Background(), args[0]); err != nil {
			closeFn()
			log.Fatalf("failed to delete simulation: %v", err)
		}

		fmt.Printf("deleted %s\n", args[0])
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored simulations to CSV",
	Run: func(cmd *cobra.Command, args []string) {
		outDir, _ := cmd.Flags().GetString("outDir")

		svc, closeFn := newService(loadConfig(cmd))
		defer closeFn()

		results, err := svc.ListSimulations(context.Background(), 0, 0)
		if err != nil {
			closeFn()
			log.Fatalf("failed to list simulations: %v", err)
		}

		csvPath, err := ExportToCsv(outDir, results, "simulations")
		if err != nil {
			closeFn()
			log.Fatalf("failed to export to CSV: %v", err)
		}

		fmt.Println("CSV file written to: ", csvPath)
	},
}

func loadConfig(cmd *cobra.Command) config.Config {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if resultsFile, _ := cmd.Flags().GetString("results-file"); resultsFile != "" {
		cfg.Storage.ResultsFile = resultsFile
	}

	return cfg
}

// newService wires a SimulationService on the configured results file. The CLI
// skips the rate-fetch delay.
func newService(cfg config.Config) (*service.SimulationService, func()) {
	s, err := store.NewJSONFileStore(cfg.Storage.ResultsFile, cfg.Storage.QueueSize)
	if err != nil {
		log.Fatalf("failed to open results file: %v", err)
	}

	svc, err := service.NewSimulationService(s, ratefetcher.NewStubFetcher(0, cfg.Simulation.DefaultRiskFreeRate))
	if err != nil {
		s.Close()
		log.Fatalf("failed to create service: %v", err)
	}

	return svc, func() { s.Close() }
}

// pricingRequestFromFlags applies the same schema and simulation bounds as the
// HTTP API. Unset --rate and --sims fall back to the configured defaults.
func pricingRequestFromFlags(cmd *cobra.Command, sim config.SimulationConfig) (pricing.PricingRequest, error) {
	flags := cmd.Flags()

	optionType, err := flags.GetString("type")
	if err != nil {
		return pricing.PricingRequest{}, err
	}

	req := models.OptionPricingRequest{OptionType: &optionType}
	for name, dst := range map[string]**float64{
		"spot":     &req.SpotPrice,
		"strike":   &req.StrikePrice,
		"maturity": &req.TimeToMaturity,
		"vol":      &req.Volatility,
	} {
		v, err := flags.GetFloat64(name)
		if err != nil {
			return pricing.PricingRequest{}, err
		}
		*dst = &v
	}

	rate := sim.DefaultRiskFreeRate
	if flags.Changed("rate") {
		if rate, err = flags.GetFloat64("rate"); err != nil {
			return pricing.PricingRequest{}, err
		}
	}
	req.RiskFreeRate = &rate

	if flags.Changed("sims") {
		sims, err := flags.GetInt("sims")
		if err != nil {
			return pricing.PricingRequest{}, err
		}
		req.NumSimulations = &sims
	}

	if flags.Changed("seed") {
		seed, err := flags.GetUint64("seed")
		if err != nil {
			return pricing.PricingRequest{}, err
		}
		req.RandomSeed = &seed
	}

	return req.ToPricingRequest(sim.Limits())
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal output: %v", err)
	}

	fmt.Println(string(out))
}

func addPriceFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("spot", 100, "Spot price of the underlying.")
	cmd.Flags().Float64("strike", 100, "Strike price.")
	cmd.Flags().Float64("maturity", 1, "Time to maturity in years.")
	cmd.Flags().Float64("vol", 0.2, "Annualized volatility.")
	cmd.Flags().Float64("rate", 0, "Annualized risk-free rate. Defaults to simulation.default_risk_free_rate.")
	cmd.Flags().String("type", string(pricing.Call), "Option type: call or put.")
	cmd.Flags().Int("sims", 0, "Number of Monte Carlo paths. Defaults to simulation.default_simulations.")
	cmd.Flags().Uint64("seed", 0, "Random seed for reproducible runs.")
	cmd.Flags().Bool("dry-run", false, "Price without storing the result.")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table.")
}

func init() {
	rootCmd.PersistentFlags().String("go-env", "development", "The go environment to run the command in.")
	rootCmd.PersistentFlags().String("env-dir", ".", "The directory holding the .env files.")
	rootCmd.PersistentFlags().String("config", os.Getenv("OPTIONPRISMA_CONFIG"), "Path to the YAML config file.")
	rootCmd.PersistentFlags().String("results-file", "", "Overrides the configured results file.")

	addPriceFlags(priceCmd)

	listCmd.Flags().Int("skip", 0, "Number of simulations to skip.")
	listCmd.Flags().Int("limit", 0, "Maximum number of simulations to list, 0 for all.")

	deleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking for confirmation.")

	exportCmd.Flags().String("outDir", ".", "The directory to write the CSV file to.")

	rootCmd.AddCommand(priceCmd, listCmd, getCmd, deleteCmd, exportCmd)
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
