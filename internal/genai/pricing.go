package genai

import "strings"

// tierRates are USD per 1M tokens, split by context-length tier.
type tierRates struct {
	standard float64
	long     float64
}

type modelPricing struct {
	input  tierRates
	output tierRates
}

// longContextThreshold is the prompt-token count above which the long-context
// tier applies. The output tier follows the prompt tier.
const longContextThreshold = 200_000

var pricingTable = map[string]modelPricing{
	"gemini-3-pro-preview": {
		input:  tierRates{standard: 2.00, long: 4.00},
		output: tierRates{standard: 12.00, long: 18.00},
	},
	"gemini-3-flash-preview": {
		input:  tierRates{standard: 0.50, long: 0.50},
		output: tierRates{standard: 3.00, long: 3.00},
	},
	"gemini-2.5-pro": {
		input:  tierRates{standard: 1.25, long: 2.50},
		output: tierRates{standard: 10.00, long: 15.00},
	},
	"gemini-2.5-flash": {
		input:  tierRates{standard: 0.30, long: 0.30},
		output: tierRates{standard: 2.50, long: 2.50},
	},
}

// EstimateCost returns the estimated USD cost of one generation call.
// Unknown models cost 0. Model ids that embed a known id as a substring
// (e.g. versioned variants) match that entry.
func EstimateCost(model string, usage Usage) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		for key, p := range pricingTable {
			if strings.Contains(model, key) {
				pricing, ok = p, true
				break
			}
		}
	}
	if !ok {
		return 0
	}

	input := pricing.input.standard
	output := pricing.output.standard
	if usage.PromptTokens > longContextThreshold {
		input = pricing.input.long
		output = pricing.output.long
	}

	return float64(usage.PromptTokens)/1_000_000*input +
		float64(usage.OutputTokens)/1_000_000*output
}
