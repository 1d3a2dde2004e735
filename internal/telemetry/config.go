package telemetry

import (
	"errors"
	"net"
	"strings"

	"github.com/fyrsmithlabs/contextpack/internal/config"
)

// validate rejects plaintext export to anything but a loopback collector.
func validate(cfg config.TelemetryConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Endpoint == "" {
		return errors.New("endpoint is required when telemetry is enabled")
	}
	if cfg.ServiceName == "" {
		return errors.New("service_name is required when telemetry is enabled")
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return errors.New("sample_rate must be between 0 and 1")
	}
	if cfg.Insecure && !isLocalEndpoint(cfg.Endpoint) {
		return errors.New("insecure export is only allowed to a local endpoint; set insecure=false for TLS")
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https://; OTLP HTTP exporters take host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
