package deps

import (
	"context"
	"fmt"
	"net/url"

	"k8s.io/apimachinery/pkg/types"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/constants"
)

// IngressConfig is the data source snapshot of one ingress integration.
// Without a route the URL falls back to the local default and the snapshot
// is not ready.
type IngressConfig struct {
	// Exists reports whether the ingress integration is declared.
	Exists bool
	// Ready reports whether the route is accepted and carries a hostname.
	Ready bool
	// URL is the external base URL, or the local default when not ready.
	URL string
	// Internal marks the admin-side ingress.
	Internal bool
}

// IsReady reports whether the ingress published a usable external URL.
func (c IngressConfig) IsReady() bool {
	return c.Ready
}

// Secured reports whether the external URL uses HTTPS.
func (c IngressConfig) Secured() bool {
	u, err := url.Parse(c.URL)
	if err != nil {
		return false
	}
	return u.Scheme == "https"
}

// ServiceConfigs contributes the advertised base URL.
func (c IngressConfig) ServiceConfigs() ServiceConfigs {
	if c.Internal {
		return ServiceConfigs{"admin_url": c.URL}
	}
	return ServiceConfigs{"public_url": c.URL}
}

// LoadIngress reads the HTTPRoute an ingress spec points at and derives the
// external URL from its first hostname and the parent Gateway's listener
// protocol.
func (l *Loader) LoadIngress(ctx context.Context, cr *v1alpha1.HydraService, spec *v1alpha1.IngressSpec, internal bool) IngressConfig {
	cfg := IngressConfig{Internal: internal, URL: constants.DefaultBaseURL}
	if internal {
		cfg.URL = constants.DefaultAdminURL
	}
	if spec == nil {
		return cfg
	}
	cfg.Exists = true

	var route gatewayv1.HTTPRoute
	key := types.NamespacedName{Namespace: cr.Namespace, Name: spec.RouteRef}
	if err := l.client.Get(ctx, key, &route); err != nil {
		l.log.V(1).Info("ingress route unavailable", "route", key.Name, "error", err.Error())
		return cfg
	}

	if len(route.Spec.Hostnames) == 0 || !routeAccepted(&route) {
		return cfg
	}

	scheme := "http"
	if l.routeSecured(ctx, &route) {
		scheme = "https"
	}
	cfg.Ready = true
	cfg.URL = fmt.Sprintf("%s://%s/", scheme, route.Spec.Hostnames[0])
	return cfg
}

func routeAccepted(route *gatewayv1.HTTPRoute) bool {
	for _, parent := range route.Status.Parents {
		for _, cond := range parent.Conditions {
			if cond.Type == string(gatewayv1.RouteConditionAccepted) && cond.Status == "True" {
				return true
			}
		}
	}
	return false
}

// routeSecured checks whether any parent Gateway listener the route attaches
// to terminates TLS.
func (l *Loader) routeSecured(ctx context.Context, route *gatewayv1.HTTPRoute) bool {
	for _, parentRef := range route.Spec.ParentRefs {
		ns := route.Namespace
		if parentRef.Namespace != nil {
			ns = string(*parentRef.Namespace)
		}

		var gw gatewayv1.Gateway
		key := types.NamespacedName{Namespace: ns, Name: string(parentRef.Name)}
		if err := l.client.Get(ctx, key, &gw); err != nil {
			continue
		}

		for _, listener := range gw.Spec.Listeners {
			if parentRef.SectionName != nil && listener.Name != *parentRef.SectionName {
				continue
			}
			if listener.Protocol == gatewayv1.HTTPSProtocolType {
				return true
			}
		}
	}
	return false
}
