// Package secrets redacts credentials from documents before they are chunked
// and embedded.
//
// Two engines are available. The regex engine runs a small rule table with
// optional keyword gating and is cheap enough to run on every document. The
// gitleaks engine runs the full gitleaks default rule set and honours a TOML
// allowlist in the gitleaks format.
//
// Redaction never changes the text outside a finding, so chunk boundaries of a
// clean document are unaffected by enabling the scrubber.
package secrets
