/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package hydractl is the administrative CLI for managed hydra instances.
// It drives the same action layer the operator uses, talking to the
// workload through the pod exec supervisor.
package hydractl

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
	"github.com/canonical/hydra-operator/internal/actions"
	"github.com/canonical/hydra-operator/internal/constants"
	"github.com/canonical/hydra-operator/internal/deps"
	"github.com/canonical/hydra-operator/internal/events"
	"github.com/canonical/hydra-operator/internal/hydra"
	"github.com/canonical/hydra-operator/internal/infra"
	"github.com/canonical/hydra-operator/internal/kv"
	"github.com/canonical/hydra-operator/internal/leadership"
	"github.com/canonical/hydra-operator/internal/lifecycle"
	"github.com/canonical/hydra-operator/internal/logging"
	"github.com/canonical/hydra-operator/internal/secrets"
	"github.com/canonical/hydra-operator/internal/workload"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

const usage = `usage: hydractl -service NAME [-namespace NS] <action> [action flags]

actions:
  run-migration                      apply pending database migrations
  create-oauth-client                register a new OAuth 2.0 client
  get-oauth-client-info              show one client
  update-oauth-client                replace a client's properties
  delete-oauth-client                remove a client
  list-oauth-clients                 show every client known to the instance
  revoke-oauth-client-access-tokens  invalidate a client's issued tokens
  rotate-key                         mint a new JSON Web Key
  reconcile-oauth-clients            delete clients whose requester is gone
  add-secret-key                     append a generation to a secret family
  get-secret-keys                    show the generations of a secret family
`

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(hydrav1alpha1.AddToScheme(scheme))
	utilruntime.Must(gatewayv1.Install(scheme))
}

// Run executes one administrative action against a managed hydra instance.
// args are the command-line arguments (typically os.Args[2:] after the command name).
func Run(args []string) {
	var namespace, service string
	var timeout time.Duration
	var execRate float64
	var execBurst int

	fs := flag.NewFlagSet("hydractl", flag.ExitOnError)
	fs.Usage = func() {
		_, _ = fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&namespace, "namespace", "default", "Namespace of the HydraService.")
	fs.StringVar(&service, "service", "", "Name of the HydraService to act on.")
	fs.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline for the action.")
	fs.Float64Var(&execRate, "exec-rate", 5, "Maximum workload command invocations per second.")
	fs.IntVar(&execBurst, "exec-burst", 5, "Burst allowance for workload command invocations.")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(fs)
	_ = fs.Parse(args)

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if service == "" {
		_, _ = fmt.Fprintln(os.Stderr, "missing -service")
		fs.Usage()
		os.Exit(2)
	}
	if fs.NArg() < 1 {
		_, _ = fmt.Fprintln(os.Stderr, "missing action")
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	env, err := connect(ctx, namespace, service, rate.Limit(execRate), execBurst)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "hydractl: %v\n", err)
		os.Exit(1)
	}

	if err := env.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "hydractl: %v\n", err)
		os.Exit(1)
	}
}

// environment holds everything an action needs for one service instance.
type environment struct {
	client  client.Client
	service *hydrav1alpha1.HydraService
	runner  *actions.Runner

	// auditFields is extra context an action wants in its audit record.
	auditFields map[string]string
}

func connect(ctx context.Context, namespace, name string, execRate rate.Limit, execBurst int) (*environment, error) {
	cfg := ctrl.GetConfigOrDie()

	c, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("creating Kubernetes client: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Kubernetes clientset: %w", err)
	}

	svc := &hydrav1alpha1.HydraService{}
	if err := c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, svc); err != nil {
		return nil, fmt.Errorf("loading HydraService %s/%s: %w", namespace, name, err)
	}

	log := ctrl.Log.WithName("hydractl")
	supervisor := &workload.PodSupervisor{
		Clientset:      clientset,
		RESTConfig:     cfg,
		Namespace:      svc.Namespace,
		DeploymentName: infra.DeploymentName(svc),
		Selector:       infra.SelectorLabels(svc),
		Container:      constants.ContainerNameHydra,
	}
	cli := hydra.NewCLI(supervisor, log, hydra.WithRateLimit(execRate, execBurst))

	// A kubeconfig grants the same write authority the operator's lease
	// does, so the store accepts this process as leader.
	store := kv.NewConfigMapStore(c, leadership.Static(true), svc.Namespace, svc.Name+constants.SuffixPeerData, map[string]string{
		"app.kubernetes.io/instance":   svc.Name,
		"app.kubernetes.io/managed-by": "hydra-operator",
	})
	registry := lifecycle.NewRegistry(store)
	machine := lifecycle.NewMachine(registry, cli, supervisor, events.NewQueue(), nil, log)
	secretMgr := secrets.NewManager(c, leadership.Static(true), svc.Namespace, svc.Name, log)
	runner := actions.NewRunner(cli, supervisor, machine, registry, secretMgr, store, log)

	return &environment{client: c, service: svc, runner: runner}, nil
}

func (e *environment) dispatch(ctx context.Context, action string, args []string) error {
	if err := e.run(ctx, action, args); err != nil {
		return err
	}
	logging.Audit(ctrl.Log.WithName("hydractl"), action, e.service.Namespace, e.service.Name, e.auditFields)
	return nil
}

func (e *environment) run(ctx context.Context, action string, args []string) error {
	switch action {
	case "run-migration":
		return e.runMigration(ctx, args)
	case "create-oauth-client":
		return e.createOAuthClient(ctx, args)
	case "get-oauth-client-info":
		return e.getOAuthClientInfo(ctx, args)
	case "update-oauth-client":
		return e.updateOAuthClient(ctx, args)
	case "delete-oauth-client":
		return e.deleteOAuthClient(ctx, args)
	case "list-oauth-clients":
		return e.listOAuthClients(ctx, args)
	case "revoke-oauth-client-access-tokens":
		return e.revokeOAuthClientAccessTokens(ctx, args)
	case "rotate-key":
		return e.rotateKey(ctx, args)
	case "reconcile-oauth-clients":
		return e.reconcileOAuthClients(ctx, args)
	case "add-secret-key":
		return e.addSecretKey(ctx, args)
	case "get-secret-keys":
		return e.getSecretKeys(ctx, args)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (e *environment) runMigration(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run-migration", flag.ExitOnError)
	_ = fs.Parse(args)

	snapshot := deps.NewLoader(e.client, ctrl.Log.WithName("hydractl")).Load(ctx, e.service)
	version, err := e.runner.RunMigration(ctx, snapshot.Database)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"migrated-version": version})
}

func (e *environment) createOAuthClient(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-oauth-client", flag.ExitOnError)
	spec := boundClientFlags(fs)
	_ = fs.Parse(args)

	c, err := spec.build()
	if err != nil {
		return err
	}
	e.auditFields = spec.auditFields()
	created, err := e.runner.CreateOAuthClient(ctx, c)
	if err != nil {
		return err
	}
	return printJSON(created)
}

func (e *environment) getOAuthClientInfo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get-oauth-client-info", flag.ExitOnError)
	clientID := fs.String("client-id", "", "OAuth 2.0 client identifier.")
	_ = fs.Parse(args)
	if *clientID == "" {
		return fmt.Errorf("missing -client-id")
	}

	info, err := e.runner.GetOAuthClientInfo(ctx, *clientID)
	if err != nil {
		return err
	}
	return printJSON(info)
}

func (e *environment) updateOAuthClient(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-oauth-client", flag.ExitOnError)
	clientID := fs.String("client-id", "", "OAuth 2.0 client identifier.")
	spec := boundClientFlags(fs)
	_ = fs.Parse(args)
	if *clientID == "" {
		return fmt.Errorf("missing -client-id")
	}

	c, err := spec.build()
	if err != nil {
		return err
	}
	e.auditFields = spec.auditFields()
	c.ClientID = *clientID
	updated, err := e.runner.UpdateOAuthClient(ctx, c)
	if err != nil {
		return err
	}
	return printJSON(updated)
}

func (e *environment) deleteOAuthClient(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-oauth-client", flag.ExitOnError)
	clientID := fs.String("client-id", "", "OAuth 2.0 client identifier.")
	_ = fs.Parse(args)
	if *clientID == "" {
		return fmt.Errorf("missing -client-id")
	}

	deleted, err := e.runner.DeleteOAuthClient(ctx, *clientID)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"client-id": deleted})
}

func (e *environment) listOAuthClients(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-oauth-clients", flag.ExitOnError)
	_ = fs.Parse(args)

	clients, err := e.runner.ListOAuthClients(ctx)
	if err != nil {
		return err
	}
	return printJSON(clients)
}

func (e *environment) revokeOAuthClientAccessTokens(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("revoke-oauth-client-access-tokens", flag.ExitOnError)
	clientID := fs.String("client-id", "", "OAuth 2.0 client identifier.")
	_ = fs.Parse(args)
	if *clientID == "" {
		return fmt.Errorf("missing -client-id")
	}

	revoked, err := e.runner.RevokeOAuthClientAccessTokens(ctx, *clientID)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"client-id": revoked})
}

func (e *environment) rotateKey(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rotate-key", flag.ExitOnError)
	keySet := fs.String("keyset", "hydra.openid.id-token", "JSON Web Key set to rotate.")
	algorithm := fs.String("algorithm", "RS256", "Signing algorithm for the new key.")
	_ = fs.Parse(args)

	keyID, err := e.runner.RotateKey(ctx, *keySet, *algorithm)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"key-id": keyID})
}

func (e *environment) reconcileOAuthClients(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reconcile-oauth-clients", flag.ExitOnError)
	_ = fs.Parse(args)

	live, err := e.liveRelations(ctx)
	if err != nil {
		return err
	}
	result, err := e.runner.ReconcileOAuthClients(ctx, live)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"deleted": result.Deleted, "failed": result.Failed})
}

// liveRelations collects the relation IDs of every OAuthClient resource
// still bound to this service. Registry entries outside this set are stale.
func (e *environment) liveRelations(ctx context.Context) (map[int64]bool, error) {
	list := &hydrav1alpha1.OAuthClientList{}
	if err := e.client.List(ctx, list, client.InNamespace(e.service.Namespace)); err != nil {
		return nil, fmt.Errorf("listing OAuthClient resources: %w", err)
	}

	live := make(map[int64]bool)
	for _, item := range list.Items {
		if item.Spec.ServiceRef != e.service.Name || item.Status.RelationID == nil {
			continue
		}
		live[*item.Status.RelationID] = true
	}
	return live, nil
}

func (e *environment) addSecretKey(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-secret-key", flag.ExitOnError)
	family := fs.String("family", "", `Secret family, "system" or "cookie".`)
	key := fs.String("key", "", "Key material to append (at least 16 characters).")
	_ = fs.Parse(args)

	f, err := parseFamily(*family)
	if err != nil {
		return err
	}
	if err := e.runner.AddSecretKey(ctx, f, *key); err != nil {
		return err
	}
	return printJSON(map[string]string{"family": string(f)})
}

func (e *environment) getSecretKeys(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get-secret-keys", flag.ExitOnError)
	family := fs.String("family", "", `Secret family, "system" or "cookie".`)
	_ = fs.Parse(args)

	f, err := parseFamily(*family)
	if err != nil {
		return err
	}
	keys, err := e.runner.GetSecretKeys(ctx, f)
	if err != nil {
		return err
	}
	return printJSON(keys)
}

func parseFamily(s string) (secrets.Family, error) {
	for _, f := range secrets.Families {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown secret family %q (expected %q or %q)", s, secrets.FamilySystem, secrets.FamilyCookie)
}

// clientSpec carries raw flag values until parsing is done.
type clientSpec struct {
	client        hydra.Client
	redirectURIs  string
	grantTypes    string
	responseTypes string
	audience      string
	contacts      string
	metadata      string

	// parsedMetadata holds the decoded -metadata pairs after build.
	parsedMetadata map[string]string
}

func boundClientFlags(fs *flag.FlagSet) *clientSpec {
	s := &clientSpec{}
	fs.StringVar(&s.redirectURIs, "redirect-uris", "", "Comma-separated allowed redirect URIs.")
	fs.StringVar(&s.grantTypes, "grant-types", "", "Comma-separated OAuth 2.0 grant types.")
	fs.StringVar(&s.responseTypes, "response-types", "", "Comma-separated OAuth 2.0 response types.")
	fs.StringVar(&s.audience, "audience", "", "Comma-separated token audiences.")
	fs.StringVar(&s.contacts, "contacts", "", "Comma-separated administrative contacts.")
	fs.StringVar(&s.metadata, "metadata", "", `Space-separated key=value client metadata, values may be quoted (e.g. 'team=identity note="internal use"').`)
	fs.StringVar(&s.client.Name, "name", "", "Human-readable client name.")
	fs.StringVar(&s.client.Scope, "scope", "", "Space-separated OAuth 2.0 scope.")
	fs.StringVar(&s.client.TokenEndpointAuthMethod, "token-endpoint-auth-method", "", "Client authentication method for the token endpoint.")
	fs.StringVar(&s.client.ClientURI, "client-uri", "", "Homepage of the client.")
	return s
}

func (s *clientSpec) build() (hydra.Client, error) {
	c := s.client
	c.RedirectURIs = splitList(s.redirectURIs)
	c.GrantTypes = splitList(s.grantTypes)
	c.ResponseTypes = splitList(s.responseTypes)
	c.Audience = splitList(s.audience)
	c.Contacts = splitList(s.contacts)

	if s.metadata != "" {
		kv, err := hydra.ParseKVString(s.metadata)
		if err != nil {
			return hydra.Client{}, fmt.Errorf("invalid -metadata: %w", err)
		}
		s.parsedMetadata = kv
		c.Metadata = make(map[string]any, len(kv))
		for k, v := range kv {
			c.Metadata[k] = v
		}
	}
	return c, nil
}

// auditFields renders the parsed metadata back into its canonical key=value
// form so the audit record shows what the action asked for.
func (s *clientSpec) auditFields() map[string]string {
	if len(s.parsedMetadata) == 0 {
		return nil
	}
	return map[string]string{"metadata": hydra.EncodeKVString(s.parsedMetadata)}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
