package secrets

// DefaultRules returns the regex engine's built-in rules. Rules whose prefix
// identifies the credential run unconditionally; the generic ones are gated on
// keywords to keep prose from matching.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "aws-access-key-id", Pattern: `\b(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}\b`},
		{
			ID:       "aws-secret-access-key",
			Pattern:  `(?i)(?:aws_secret_access_key|aws_secret_key|secret_access_key)\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords: []string{"aws", "secret"},
		},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`},
		{ID: "github-token", Pattern: `\b(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}\b`},
		{ID: "github-fine-grained", Pattern: `\bgithub_pat_[A-Za-z0-9_]{22,}`},
		{ID: "gitlab-token", Pattern: `\bglpat-[A-Za-z0-9\-]{20,}`},
		{ID: "slack-token", Pattern: `\bxox[baprs]-[A-Za-z0-9\-]{10,}`},
		{ID: "stripe-key", Pattern: `\b(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{24,}`},
		{ID: "jwt", Pattern: `\beyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`},
		{ID: "google-api-key", Pattern: `\bAIza[A-Za-z0-9_\-]{35}`},
		{ID: "npm-token", Pattern: `\bnpm_[A-Za-z0-9]{36}\b`},
		{ID: "database-url", Pattern: `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^\s:/@]+:[^\s@]+@[^\s]+`},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)\b(?:api[_-]?key|apikey|access[_-]?token|auth[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords: []string{"key", "token"},
		},
		{
			ID:       "generic-password",
			Pattern:  `(?i)\b(?:password|passwd|pwd|secret)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords: []string{"password", "passwd", "pwd", "secret"},
		},
	}
}
