package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
)

func renderPricing(req pricing.PricingRequest, mc pricing.MonteCarloResult, analytical pricing.AnalyticalResult) string {
	display := &strings.Builder{}
	p := message.NewPrinter(language.English)

	display.WriteString(p.Sprintf("%s S=%.2f K=%.2f T=%.4f sigma=%.4f r=%.4f paths=%d\n",
		strings.ToUpper(string(req.OptionType)), req.SpotPrice, req.StrikePrice, req.TimeToMaturity, req.Volatility, req.RiskFreeRate, req.NumSimulations))

	table := tablewriter.NewWriter(display)
	table.SetHeader([]string{"Measure", "Value"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	rows := [][]string{
		{"Monte Carlo price", p.Sprintf("%.6f", mc.Price)},
		{"Std error", p.Sprintf("%.6f", mc.StdError)},
		{"95% CI half-width", p.Sprintf("%.6f", mc.ConfidenceInterval95)},
		{"Black-Scholes price", p.Sprintf("%.6f", analytical.BlackScholesPrice)},
		{"Delta", p.Sprintf("%.6f", analytical.Greeks.Delta)},
		{"Gamma", p.Sprintf("%.6f", analytical.Greeks.Gamma)},
		{"Vega", p.Sprintf("%.6f", analytical.Greeks.Vega)},
		{"Theta", p.Sprintf("%.6f", analytical.Greeks.Theta)},
		{"Rho", p.Sprintf("%.6f", analytical.Greeks.Rho)},
	}
	table.AppendBulk(rows)
	table.Render()

	return display.String()
}

func renderSimulation(result models.SimulationResult) string {
	mc := pricing.MonteCarloResult{
		Price:                result.OptionPrice,
		StdError:             result.StdError,
		ConfidenceInterval95: result.ConfidenceInterval95,
	}

	analytical := pricing.AnalyticalResult{
		BlackScholesPrice: result.BlackScholesPrice,
		Greeks:            result.Greeks,
	}

	return fmt.Sprintf("Simulation %s\n%s", result.SimulationID, renderPricing(result.Inputs, mc, analytical))
}

func renderSimulationList(results []models.SimulationResult) string {
	display := &strings.Builder{}
	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(display)
	table.SetHeader([]string{"ID", "Timestamp", "Type", "Spot", "Strike", "MC price", "BS price", "Paths"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range results {
		table.Append([]string{
			r.SimulationID,
			r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			string(r.Inputs.OptionType),
			fmt.Sprintf("$%s", p.Sprintf("%.2f", r.Inputs.SpotPrice)),
			fmt.Sprintf("$%s", p.Sprintf("%.2f", r.Inputs.StrikePrice)),
			p.Sprintf("%.4f", r.OptionPrice),
			p.Sprintf("%.4f", r.BlackScholesPrice),
			p.Sprintf("%d", r.Inputs.NumSimulations),
		})
	}

	table.Render()
	fmt.Fprintf(display, "%d simulation(s)\n", len(results))
	return display.String()
}
