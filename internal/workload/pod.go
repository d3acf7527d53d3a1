package workload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"github.com/canonical/hydra-operator/internal/constants"
	operrors "github.com/canonical/hydra-operator/internal/errors"
)

const restartedAtAnnotation = "hydra.identity.canonical.com/restartedAt"

// PodSupervisor drives the hydra container of a Deployment-managed pod via
// the Kubernetes exec subresource.
type PodSupervisor struct {
	Clientset  kubernetes.Interface
	RESTConfig *rest.Config
	Namespace  string
	// DeploymentName is the workload Deployment; Restart patches it.
	DeploymentName string
	// Selector matches the workload pods.
	Selector map[string]string
	// Container defaults to constants.ContainerNameHydra.
	Container string
}

var _ Supervisor = (*PodSupervisor)(nil)

func (s *PodSupervisor) container() string {
	if s.Container != "" {
		return s.Container
	}
	return constants.ContainerNameHydra
}

// pod returns a running workload pod, preferring ready ones.
func (s *PodSupervisor) pod(ctx context.Context) (*corev1.Pod, error) {
	sel := make([]string, 0, len(s.Selector))
	for k, v := range s.Selector {
		sel = append(sel, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(sel)

	list, err := s.Clientset.CoreV1().Pods(s.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: strings.Join(sel, ","),
	})
	if err != nil {
		return nil, operrors.WrapWorkloadUnavailable(err)
	}

	var fallback *corev1.Pod
	for i := range list.Items {
		p := &list.Items[i]
		if p.Status.Phase != corev1.PodRunning || p.DeletionTimestamp != nil {
			continue
		}
		if podReady(p) {
			return p, nil
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("no running workload pod: %w", operrors.ErrWorkloadUnavailable)
}

func podReady(p *corev1.Pod) bool {
	for _, c := range p.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// Connected reports whether the hydra container is up and exec-able.
func (s *PodSupervisor) Connected(ctx context.Context) bool {
	p, err := s.pod(ctx)
	if err != nil {
		return false
	}
	for _, cs := range p.Status.ContainerStatuses {
		if cs.Name == s.container() {
			return cs.State.Running != nil
		}
	}
	return false
}

// Running reports whether the hydra service passes its readiness probe.
func (s *PodSupervisor) Running(ctx context.Context) bool {
	p, err := s.pod(ctx)
	if err != nil {
		return false
	}
	for _, cs := range p.Status.ContainerStatuses {
		if cs.Name == s.container() {
			return cs.State.Running != nil && cs.Ready
		}
	}
	return false
}

// Restart triggers a rolling restart of the workload Deployment by bumping a
// pod template annotation, the same mechanism kubectl rollout restart uses.
func (s *PodSupervisor) Restart(ctx context.Context) error {
	patch := fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartedAtAnnotation, time.Now().UTC().Format(time.RFC3339),
	)
	_, err := s.Clientset.AppsV1().Deployments(s.Namespace).Patch(
		ctx, s.DeploymentName, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("restarting deployment %s/%s: %w", s.Namespace, s.DeploymentName, err)
	}
	return nil
}

// Exec runs cmd in the hydra container over SPDY and captures its output.
// Environment variables are applied with env(1) since the exec subresource
// has no env field of its own.
func (s *PodSupervisor) Exec(ctx context.Context, cmd Command) (string, string, error) {
	p, err := s.pod(ctx)
	if err != nil {
		return "", "", err
	}

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = constants.ExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := cmd.Args
	if len(cmd.Env) > 0 {
		pairs := make([]string, 0, len(cmd.Env))
		for k, v := range cmd.Env {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
		}
		sort.Strings(pairs)
		argv = append(append([]string{"env"}, pairs...), argv...)
	}

	req := s.Clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(p.Namespace).
		Name(p.Name).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: s.container(),
			Command:   argv,
			Stdin:     cmd.Stdin != "",
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(s.RESTConfig, "POST", req.URL())
	if err != nil {
		return "", "", operrors.WrapWorkloadUnavailable(err)
	}

	var stdout, stderr bytes.Buffer
	opts := remotecommand.StreamOptions{Stdout: &stdout, Stderr: &stderr}
	if cmd.Stdin != "" {
		opts.Stdin = strings.NewReader(cmd.Stdin)
	}

	err = executor.StreamWithContext(ctx, opts)
	if err != nil {
		var code utilexec.CodeExitError
		if errors.As(err, &code) {
			return stdout.String(), stderr.String(), &operrors.ExecError{
				ExitCode: code.Code,
				Stderr:   stderr.String(),
			}
		}
		return stdout.String(), stderr.String(), operrors.WrapWorkloadUnavailable(err)
	}
	return stdout.String(), stderr.String(), nil
}
