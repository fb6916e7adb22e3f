package pricing

import "fmt"

type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

func (o OptionType) Validate() error {
	switch o {
	case Call, Put:
		return nil
	default:
		return fmt.Errorf("OptionType: Validate: invalid option type: %q", string(o))
	}
}

func ParseOptionType(s string) (OptionType, error) {
	o := OptionType(s)
	if err := o.Validate(); err != nil {
		return "", err
	}

	return o, nil
}

// payoffFunc selects the terminal payoff once per pricing call. The switch is
// the only place the two option types diverge for the simulation.
func payoffFunc(o OptionType, strike float64) (func(terminal float64) float64, error) {
	switch o {
	case Call:
		return func(terminal float64) float64 {
			return max(terminal-strike, 0)
		}, nil
	case Put:
		return func(terminal float64) float64 {
			return max(strike-terminal, 0)
		}, nil
	default:
		return nil, newValidationError(fmt.Sprintf("Option type must be one of %q or %q", Call, Put))
	}
}
