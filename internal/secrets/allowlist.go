package secrets

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// LoadAllowlist reads content regexes from a gitleaks-format TOML file. Both
// the single [allowlist] table and the [[allowlists]] array are accepted.
func LoadAllowlist(path string) ([]string, error) {
	var doc struct {
		Allowlist struct {
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
		Allowlists []struct {
			Regexes []string `toml:"regexes"`
		} `toml:"allowlists"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	out := append([]string(nil), doc.Allowlist.Regexes...)
	for _, al := range doc.Allowlists {
		out = append(out, al.Regexes...)
	}
	for _, p := range out {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("%w: %s: pattern %q: %v", ErrInvalidConfig, path, p, err)
		}
	}
	return out, nil
}
