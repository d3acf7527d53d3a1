package infra

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/constants"
)

const (
	publicServiceSuffix = "-public"
	adminServiceSuffix  = "-admin"

	configVolumeName      = "config"
	configVolumeMountPath = "/etc/config"
	configFileName        = "hydra.yaml"

	readinessPath = "/health/ready"
)

// Manager reconciles the workload infrastructure for a HydraService: the
// ConfigMap holding the rendered configuration, the Deployment running the
// hydra server, and the Services exposing its public and admin ports. The
// configuration is projected into the pod so the container has it from the
// moment it starts; the reconciliation engine only decides when a restart is
// needed to pick up a changed rendering.
type Manager struct {
	client client.Client
	scheme *runtime.Scheme
}

// NewManager constructs a Manager that uses the provided Kubernetes client.
// The scheme is used to set OwnerReferences on created resources for garbage collection.
func NewManager(c client.Client, scheme *runtime.Scheme) *Manager {
	return &Manager{
		client: c,
		scheme: scheme,
	}
}

// Reconcile ensures the Deployment and Services are aligned with the desired
// state for the given HydraService.
//
// image is the container image to run; when digest pinning is enabled the
// caller passes the resolved digest reference instead of the tag from the
// spec. env is the merged container environment contributed by the dependency
// snapshots. rendered is the configuration file content mounted into the pod.
func (m *Manager) Reconcile(ctx context.Context, logger logr.Logger, service *hydrav1alpha1.HydraService, image string, env map[string]string, rendered string) error {
	if err := m.ensureConfigMap(ctx, logger, service, rendered); err != nil {
		return err
	}

	if err := m.ensurePublicService(ctx, logger, service); err != nil {
		return err
	}

	if err := m.ensureAdminService(ctx, logger, service); err != nil {
		return err
	}

	return m.ensureDeployment(ctx, logger, service, image, env)
}

func (m *Manager) ensureConfigMap(ctx context.Context, logger logr.Logger, service *hydrav1alpha1.HydraService, rendered string) error {
	cm := &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(service),
			Namespace: service.Namespace,
			Labels:    workloadLabels(service),
		},
		Data: map[string]string{
			configFileName: rendered,
		},
	}

	logger.V(1).Info("Applying config ConfigMap", "configmap", cm.Name)
	return m.applyResource(ctx, cm, service)
}

func (m *Manager) ensurePublicService(ctx context.Context, logger logr.Logger, service *hydrav1alpha1.HydraService) error {
	svc := &corev1.Service{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Service",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      PublicServiceName(service),
			Namespace: service.Namespace,
			Labels:    workloadLabels(service),
		},
		Spec: corev1.ServiceSpec{
			Selector: SelectorLabels(service),
			Ports: []corev1.ServicePort{
				{
					Name:       "public",
					Port:       constants.PublicPort,
					TargetPort: intstr.FromInt32(constants.PublicPort),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}

	logger.V(1).Info("Applying public Service", "service", svc.Name)
	return m.applyResource(ctx, svc, service)
}

func (m *Manager) ensureAdminService(ctx context.Context, logger logr.Logger, service *hydrav1alpha1.HydraService) error {
	svc := &corev1.Service{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Service",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      AdminServiceName(service),
			Namespace: service.Namespace,
			Labels:    workloadLabels(service),
		},
		Spec: corev1.ServiceSpec{
			Selector: SelectorLabels(service),
			Ports: []corev1.ServicePort{
				{
					Name:       "admin",
					Port:       constants.AdminPort,
					TargetPort: intstr.FromInt32(constants.AdminPort),
					Protocol:   corev1.ProtocolTCP,
				},
			},
		},
	}

	logger.V(1).Info("Applying admin Service", "service", svc.Name)
	return m.applyResource(ctx, svc, service)
}

func (m *Manager) ensureDeployment(ctx context.Context, logger logr.Logger, service *hydrav1alpha1.HydraService, image string, env map[string]string) error {
	deployment := BuildDeployment(service, image, env)

	logger.V(1).Info("Applying workload Deployment", "deployment", deployment.Name, "image", image)
	return m.applyResource(ctx, deployment, service)
}

// BuildDeployment renders the desired workload Deployment for a HydraService.
// Exposed so tests can assert on the rendered spec without a live client.
func BuildDeployment(service *hydrav1alpha1.HydraService, image string, env map[string]string) *appsv1.Deployment {
	replicas := service.Spec.Replicas
	if replicas < 1 {
		replicas = 1
	}

	command := []string{constants.BinaryNameHydra, "serve", "all", "--config", constants.ConfigFilePath}
	if service.Spec.Dev {
		command = append(command, "--dev")
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "apps/v1",
			Kind:       "Deployment",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      DeploymentName(service),
			Namespace: service.Namespace,
			Labels:    workloadLabels(service),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(replicas),
			Selector: &metav1.LabelSelector{
				MatchLabels: SelectorLabels(service),
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: workloadLabels(service),
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:    constants.ContainerNameHydra,
							Image:   image,
							Command: command,
							Env:     envVars(env),
							Ports: []corev1.ContainerPort{
								{Name: "public", ContainerPort: constants.PublicPort},
								{Name: "admin", ContainerPort: constants.AdminPort},
							},
							ReadinessProbe: &corev1.Probe{
								ProbeHandler: corev1.ProbeHandler{
									HTTPGet: &corev1.HTTPGetAction{
										Path: readinessPath,
										Port: intstr.FromInt32(constants.AdminPort),
									},
								},
								InitialDelaySeconds: 5,
								PeriodSeconds:       10,
							},
							VolumeMounts: []corev1.VolumeMount{
								{
									Name:      configVolumeName,
									MountPath: configVolumeMountPath,
								},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: configVolumeName,
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{
										Name: ConfigMapName(service),
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// applyResource uses Server-Side Apply to create or update a Kubernetes resource.
// This eliminates the need for Get-then-Create-or-Update logic and manual diffing.
func (m *Manager) applyResource(ctx context.Context, obj client.Object, service *hydrav1alpha1.HydraService) error {
	if err := controllerutil.SetControllerReference(service, obj, m.scheme); err != nil {
		return fmt.Errorf("failed to set owner reference: %w", err)
	}

	patchOpts := []client.PatchOption{
		client.ForceOwnership,
		client.FieldOwner("hydra-operator"),
	}

	if err := m.client.Patch(ctx, obj, client.Apply, patchOpts...); err != nil {
		return fmt.Errorf("failed to apply resource %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
	}

	return nil
}

// Cleanup removes the workload infrastructure for a deleted HydraService.
// Owner references already garbage-collect these resources; explicit deletion
// keeps finalization deterministic. Missing resources are treated as
// successfully deleted.
func (m *Manager) Cleanup(ctx context.Context, logger logr.Logger, service *hydrav1alpha1.HydraService) error {
	logger.Info("Cleaning up infrastructure for deleted HydraService")

	objects := []client.Object{
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: service.Namespace, Name: DeploymentName(service)}},
		&corev1.Service{ObjectMeta: metav1.ObjectMeta{Namespace: service.Namespace, Name: PublicServiceName(service)}},
		&corev1.Service{ObjectMeta: metav1.ObjectMeta{Namespace: service.Namespace, Name: AdminServiceName(service)}},
		&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Namespace: service.Namespace, Name: ConfigMapName(service)}},
		&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Namespace: service.Namespace, Name: service.Name + constants.SuffixPeerData}},
	}

	for _, obj := range objects {
		if err := m.client.Delete(ctx, obj); err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to delete %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
		}
	}

	return nil
}

func envVars(env map[string]string) []corev1.EnvVar {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]corev1.EnvVar, 0, len(names))
	for _, name := range names {
		vars = append(vars, corev1.EnvVar{Name: name, Value: env[name]})
	}
	return vars
}

func workloadLabels(service *hydrav1alpha1.HydraService) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":       "hydra",
		"app.kubernetes.io/instance":   service.Name,
		"app.kubernetes.io/managed-by": "hydra-operator",
	}
}

// SelectorLabels returns the immutable pod selector for the workload. Kept
// separate from workloadLabels so additional labels can be introduced without
// breaking existing Deployments.
func SelectorLabels(service *hydrav1alpha1.HydraService) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":     "hydra",
		"app.kubernetes.io/instance": service.Name,
	}
}

// ConfigMapName returns the name of the ConfigMap carrying the rendered
// workload configuration.
func ConfigMapName(service *hydrav1alpha1.HydraService) string {
	return service.Name + constants.SuffixConfig
}

// DeploymentName returns the workload Deployment name.
func DeploymentName(service *hydrav1alpha1.HydraService) string {
	return service.Name
}

// PublicServiceName returns the name of the Service exposing the OAuth2 endpoints.
func PublicServiceName(service *hydrav1alpha1.HydraService) string {
	return service.Name + publicServiceSuffix
}

// AdminServiceName returns the name of the Service exposing the admin API.
func AdminServiceName(service *hydrav1alpha1.HydraService) string {
	return service.Name + adminServiceSuffix
}
