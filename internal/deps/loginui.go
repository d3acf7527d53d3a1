package deps

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/canonical/hydra-operator/api/v1alpha1"
)

// LoginUIEndpoints is the data source snapshot of the login UI integration.
type LoginUIEndpoints struct {
	LoginURL              string
	ConsentURL            string
	OIDCErrorURL          string
	DeviceVerificationURL string
	PostDeviceDoneURL     string
}

// IsReady reports whether all five endpoints were published.
func (e LoginUIEndpoints) IsReady() bool {
	return e.LoginURL != "" &&
		e.ConsentURL != "" &&
		e.OIDCErrorURL != "" &&
		e.DeviceVerificationURL != "" &&
		e.PostDeviceDoneURL != ""
}

// ServiceConfigs contributes the UI endpoints to the rendered configuration.
func (e LoginUIEndpoints) ServiceConfigs() ServiceConfigs {
	return ServiceConfigs{
		"login_url":               e.LoginURL,
		"consent_url":             e.ConsentURL,
		"oidc_error_url":          e.OIDCErrorURL,
		"device_verification_url": e.DeviceVerificationURL,
		"post_device_done_url":    e.PostDeviceDoneURL,
	}
}

// LoadLoginUI reads the endpoints ConfigMap the login UI application
// publishes.
func (l *Loader) LoadLoginUI(ctx context.Context, cr *v1alpha1.HydraService) LoginUIEndpoints {
	spec := cr.Spec.LoginUI
	if spec == nil {
		return LoginUIEndpoints{}
	}

	var cm corev1.ConfigMap
	key := types.NamespacedName{Namespace: cr.Namespace, Name: spec.EndpointsConfigMapRef.Name}
	if err := l.client.Get(ctx, key, &cm); err != nil {
		l.log.V(1).Info("login UI endpoints unavailable", "configmap", key.Name, "error", err.Error())
		return LoginUIEndpoints{}
	}

	return LoginUIEndpoints{
		LoginURL:              cm.Data["login_url"],
		ConsentURL:            cm.Data["consent_url"],
		OIDCErrorURL:          cm.Data["oidc_error_url"],
		DeviceVerificationURL: cm.Data["device_verification_url"],
		PostDeviceDoneURL:     cm.Data["post_device_done_url"],
	}
}
