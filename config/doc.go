// Package config loads the pipeline configuration from a YAML file.
//
// Values of the form ${VAR} are replaced by environment variables before
// parsing, which keeps API keys out of the file:
//
//	llm:
//	  provider: anthropic
//	  quick_model: claude-3-5-haiku-latest
//	  deep_model: claude-3-5-sonnet-latest
//	  api_key: ${ANTHROPIC_API_KEY}
//	  timeout: 90s
//	memory:
//	  enabled: true
//	  path: ./data/memory
//	pipeline:
//	  analysts: [market_analyst, fundamentals_analyst]
//	  max_debate_rounds: 1
//
// Unset fields keep the values of Default. Load validates the result and
// reports the first problem as a *ValidationError.
package config
