package deps

import (
	"context"
	"strings"

	"github.com/canonical/hydra-operator/api/v1alpha1"
)

// TracingConfig is the data source snapshot of the tracing integration.
type TracingConfig struct {
	Ready bool
	// HTTPEndpoint is the OTLP HTTP collector address without a scheme.
	HTTPEndpoint string
}

// IsReady reports whether a collector endpoint was configured.
func (c TracingConfig) IsReady() bool {
	return c.Ready
}

// EnvVars contributes the OTLP exporter settings. Not-ready tracing
// contributes nothing, leaving the default TRACING_ENABLED=false in place.
func (c TracingConfig) EnvVars() EnvVars {
	if !c.Ready {
		return EnvVars{}
	}
	return EnvVars{
		"TRACING_ENABLED":                                "true",
		"TRACING_PROVIDER":                               "otel",
		"TRACING_PROVIDERS_OTLP_SERVER_URL":              c.HTTPEndpoint,
		"TRACING_PROVIDERS_OTLP_INSECURE":                "true",
		"TRACING_PROVIDERS_OTLP_SAMPLING_SAMPLING_RATIO": "1.0",
	}
}

// LoadTracing reads the tracing endpoint from the spec, stripping any scheme
// prefix since the workload expects host:port.
func (l *Loader) LoadTracing(_ context.Context, cr *v1alpha1.HydraService) TracingConfig {
	spec := cr.Spec.Tracing
	if spec == nil || spec.Endpoint == "" {
		return TracingConfig{}
	}

	endpoint := spec.Endpoint
	for _, scheme := range []string{"http://", "https://"} {
		endpoint = strings.TrimPrefix(endpoint, scheme)
	}
	return TracingConfig{Ready: true, HTTPEndpoint: endpoint}
}
