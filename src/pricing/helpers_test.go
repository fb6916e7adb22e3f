package pricing

import "strings"

func lower(s string) string {
	return strings.ToLower(s)
}

func seed(v uint64) *uint64 {
	return &v
}

func atTheMoney(optionType OptionType) PricingRequest {
	return PricingRequest{
		SpotPrice:      100,
		StrikePrice:    100,
		TimeToMaturity: 1,
		Volatility:     0.2,
		RiskFreeRate:   0.05,
		OptionType:     optionType,
	}
}
