package hydra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/canonical/hydra-operator/internal/constants"
	operrors "github.com/canonical/hydra-operator/internal/errors"
	"github.com/canonical/hydra-operator/internal/workload"
)

// versionRegex extracts the semantic version from `hydra version` output:
//
//	Version:    {version}
//	Git Hash:   {hash}
//	Build Time: {time}
var versionRegex = regexp.MustCompile(`Version:\s+(v\d+\.\d+\.\d+)`)

// DefaultKeySetID is the JSON Web Key set hydra signs ID tokens with.
const DefaultKeySetID = "hydra.openid.id-token"

// DefaultKeyAlgorithm is the signing algorithm for newly created keys.
const DefaultKeyAlgorithm = "RS256"

// CLI invokes the hydra binary inside the workload container and maps its
// JSON output onto model types.
type CLI struct {
	supervisor workload.Supervisor
	endpoint   string
	limiter    *rate.Limiter
	log        logr.Logger
}

// Option configures a CLI.
type Option func(*CLI)

// WithEndpoint overrides the admin API endpoint passed to every command.
func WithEndpoint(endpoint string) Option {
	return func(c *CLI) { c.endpoint = endpoint }
}

// WithRateLimit caps command invocations at r per second with the given
// burst, shielding the admin API from reconcile storms.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *CLI) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewCLI returns a CLI talking to the workload through supervisor.
func NewCLI(supervisor workload.Supervisor, log logr.Logger, opts ...Option) *CLI {
	c := &CLI{
		supervisor: supervisor,
		endpoint:   fmt.Sprintf("http://localhost:%d", constants.AdminPort),
		log:        log.WithName("hydra-cli"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CLI) adminFlags() []string {
	return []string{"--endpoint", c.endpoint, "--format", "json"}
}

func (c *CLI) run(ctx context.Context, cmd workload.Command) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	c.log.V(1).Info("running command", "args", cmd.Args)
	stdout, _, err := c.supervisor.Exec(ctx, cmd)
	if err != nil {
		var execErr *operrors.ExecError
		if errors.As(err, &execErr) {
			c.log.Error(err, "command failed", "exitCode", execErr.ExitCode, "stderr", execErr.Stderr)
		}
		return stdout, err
	}
	return stdout, nil
}

// Version returns the hydra binary version, e.g. "v2.2.0".
func (c *CLI) Version(ctx context.Context) (string, error) {
	stdout, err := c.run(ctx, workload.Command{
		Args: []string{constants.BinaryNameHydra, "version"},
	})
	if err != nil {
		return "", fmt.Errorf("fetching hydra version: %w", err)
	}

	m := versionRegex.FindStringSubmatch(stdout)
	if m == nil {
		return "", fmt.Errorf("no version in output %q", stdout)
	}
	return m[1], nil
}

// Migrate applies the hydra SQL migration plan. With a DSN the connection
// string is passed through the environment; without one the rendered config
// file supplies it.
func (c *CLI) Migrate(ctx context.Context, dsn string) error {
	cmd := workload.Command{
		Args:    []string{constants.BinaryNameHydra, "migrate", "sql", "-e", "--yes"},
		Timeout: constants.MigrationTimeout,
	}
	if dsn != "" {
		cmd.Env = map[string]string{"DSN": dsn}
	} else {
		cmd.Args = append(cmd.Args, "--config", constants.ConfigFilePath)
	}

	if _, err := c.run(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %w", operrors.ErrMigrationFailed, err)
	}
	return nil
}

// CreateKey mints a new JSON Web Key in the given set and returns its key id.
// Empty arguments fall back to the ID token set and RS256.
func (c *CLI) CreateKey(ctx context.Context, keySetID, algorithm string) (string, error) {
	if keySetID == "" {
		keySetID = DefaultKeySetID
	}
	if algorithm == "" {
		algorithm = DefaultKeyAlgorithm
	}

	args := append([]string{constants.BinaryNameHydra, "create", "jwk", keySetID}, c.adminFlags()...)
	args = append(args, "--alg", algorithm)

	stdout, err := c.run(ctx, workload.Command{Args: args})
	if err != nil {
		return "", fmt.Errorf("creating key in set %s: %w", keySetID, err)
	}

	var out struct {
		Keys []struct {
			KID string `json:"kid"`
		} `json:"keys"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return "", fmt.Errorf("parsing key creation output: %w", err)
	}
	if len(out.Keys) == 0 {
		return "", fmt.Errorf("key set %s: no keys in output", keySetID)
	}
	return out.Keys[0].KID, nil
}

// CreateClient registers client and returns the record the server minted,
// including the generated client id and secret.
func (c *CLI) CreateClient(ctx context.Context, client Client) (*Client, error) {
	flags, err := client.Flags()
	if err != nil {
		return nil, err
	}

	args := append([]string{constants.BinaryNameHydra, "create", "client"}, c.adminFlags()...)
	args = append(args, flags...)

	stdout, err := c.run(ctx, workload.Command{Args: args})
	if err != nil {
		return nil, fmt.Errorf("creating oauth client: %w", err)
	}
	return parseClient(stdout)
}

// GetClient fetches a client by id. A missing client surfaces as
// errors.ErrClientNotFound.
func (c *CLI) GetClient(ctx context.Context, clientID string) (*Client, error) {
	args := append([]string{constants.BinaryNameHydra, "get", "client", clientID}, c.adminFlags()...)

	stdout, err := c.run(ctx, workload.Command{Args: args})
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return nil, fmt.Errorf("client %s: %w", clientID, operrors.ErrClientNotFound)
		}
		return nil, fmt.Errorf("getting oauth client %s: %w", clientID, err)
	}
	return parseClient(stdout)
}

// UpdateClient replaces the server-side record of client.ClientID with the
// given spec and returns the updated record.
func (c *CLI) UpdateClient(ctx context.Context, client Client) (*Client, error) {
	if client.ClientID == "" {
		return nil, fmt.Errorf("updating oauth client: empty client id")
	}

	flags, err := client.Flags()
	if err != nil {
		return nil, err
	}

	args := append([]string{constants.BinaryNameHydra, "update", "client", client.ClientID}, c.adminFlags()...)
	args = append(args, flags...)

	stdout, err := c.run(ctx, workload.Command{Args: args})
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return nil, fmt.Errorf("client %s: %w", client.ClientID, operrors.ErrClientNotFound)
		}
		return nil, fmt.Errorf("updating oauth client %s: %w", client.ClientID, err)
	}
	return parseClient(stdout)
}

// DeleteClient removes a client by id and returns the deleted id.
func (c *CLI) DeleteClient(ctx context.Context, clientID string) (string, error) {
	args := append([]string{constants.BinaryNameHydra, "delete", "client", clientID}, c.adminFlags()...)

	stdout, err := c.run(ctx, workload.Command{Args: args})
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return "", fmt.Errorf("client %s: %w", clientID, operrors.ErrClientNotFound)
		}
		return "", fmt.Errorf("deleting oauth client %s: %w", clientID, err)
	}

	var deleted string
	if err := json.Unmarshal([]byte(stdout), &deleted); err != nil {
		return "", fmt.Errorf("parsing delete output: %w", err)
	}
	return deleted, nil
}

// DeleteAccessTokens revokes every access token issued to a client and
// returns the client id.
func (c *CLI) DeleteAccessTokens(ctx context.Context, clientID string) (string, error) {
	args := append([]string{constants.BinaryNameHydra, "delete", "access-tokens", clientID}, c.adminFlags()...)

	stdout, err := c.run(ctx, workload.Command{Args: args})
	if err != nil {
		if operrors.IsClientNotFound(err) {
			return "", fmt.Errorf("client %s: %w", clientID, operrors.ErrClientNotFound)
		}
		return "", fmt.Errorf("revoking access tokens for %s: %w", clientID, err)
	}

	var revoked string
	if err := json.Unmarshal([]byte(stdout), &revoked); err != nil {
		return "", fmt.Errorf("parsing revoke output: %w", err)
	}
	return revoked, nil
}

// ListClients returns all registered clients.
func (c *CLI) ListClients(ctx context.Context) ([]Client, error) {
	args := append([]string{constants.BinaryNameHydra, "list", "clients"}, c.adminFlags()...)

	stdout, err := c.run(ctx, workload.Command{Args: args})
	if err != nil {
		return nil, fmt.Errorf("listing oauth clients: %w", err)
	}

	var out struct {
		Items []Client `json:"items"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return nil, fmt.Errorf("parsing client list: %w", err)
	}
	return out.Items, nil
}

func parseClient(stdout string) (*Client, error) {
	var client Client
	if err := json.Unmarshal([]byte(stdout), &client); err != nil {
		return nil, fmt.Errorf("parsing client record: %w", err)
	}
	return &client, nil
}
