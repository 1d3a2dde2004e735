package secrets

import "errors"

var (
	// ErrInvalidConfig indicates a rule, allowlist entry or engine name is unusable.
	ErrInvalidConfig = errors.New("secrets: invalid config")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("secrets: invalid TOML allowlist")
)
