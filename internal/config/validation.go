package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateLLM()...)
	errors = append(errors, c.validateReasoning()...)
	errors = append(errors, c.validateAPI()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("Invalid environment %q (must be development, staging, or production)", c.App.Environment),
		})
	}

	switch c.App.LogFormat {
	case "json", "console":
	default:
		errors = append(errors, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format %q (must be json or console)", c.App.LogFormat),
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Invalid database port %d", c.Database.Port),
		})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	if c.Database.PoolSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: "Pool size must be positive",
		})
	}

	return errors
}

func (c *Config) validateLLM() ValidationErrors {
	var errors ValidationErrors

	if c.LLM.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.endpoint",
			Message: "LLM endpoint is required",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("Temperature %.2f out of range [0, 2]", c.LLM.Temperature),
		})
	}

	if c.LLM.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "Max tokens must be positive",
		})
	}

	if c.LLM.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.timeout",
			Message: "Timeout must be positive (milliseconds)",
		})
	}

	return errors
}

func (c *Config) validateReasoning() ValidationErrors {
	var errors ValidationErrors

	switch c.Reasoning.Strategy {
	case "pattern", "directed":
	default:
		errors = append(errors, ValidationError{
			Field:   "reasoning.strategy",
			Message: fmt.Sprintf("Unknown strategy %q (must be pattern or directed)", c.Reasoning.Strategy),
		})
	}

	if c.Reasoning.MaxToolSteps <= 0 {
		errors = append(errors, ValidationError{
			Field:   "reasoning.max_tool_steps",
			Message: "Max tool steps must be positive",
		})
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: fmt.Sprintf("Invalid API port %d", c.API.Port),
		})
	}

	if c.API.RateLimitPerSec <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.rate_limit_per_sec",
			Message: "Rate limit must be positive",
		})
	}

	if c.API.RateLimitBurst <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.rate_limit_burst",
			Message: "Rate limit burst must be positive",
		})
	}

	return errors
}
