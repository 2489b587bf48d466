package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/glestaris/ice/pkg/client"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/types"
	"github.com/rs/zerolog"
)

// ErrMissingArgument is returned when the registry endpoint or the session
// id is neither given nor set in the environment
var ErrMissingArgument = errors.New("missing required argument")

// Registry is the part of the registry client the agent uses
type Registry interface {
	GetMyIP() (string, error)
	SubmitInstance(instance *types.Instance) (string, error)
	GetInstance(id string) (*types.Instance, error)
}

// Config holds the arguments of one registration
type Config struct {
	Endpoint         string
	SessionID        string
	Tags             map[string]string
	BreadcrumbPath   string
	SkipIfRegistered bool
}

// Result describes the outcome of Register
type Result struct {
	Instance *types.Instance
	// Skipped is set when a previous registration of this VM was found
	// and no new instance was submitted
	Skipped bool
}

// Agent discovers the identity of the host and registers it
type Agent struct {
	config     Config
	runner     Runner
	resolver   Resolver
	getenv     func(string) string
	uid        int
	passwdPath string
	userAgent  string
	registry   Registry
	logger     zerolog.Logger
}

// Option configures an Agent
type Option func(*Agent)

// WithRunner sets the command runner
func WithRunner(r Runner) Option {
	return func(a *Agent) { a.runner = r }
}

// WithResolver sets the reverse DNS resolver
func WithResolver(r Resolver) Option {
	return func(a *Agent) { a.resolver = r }
}

// WithEnv sets the environment lookup function
func WithEnv(getenv func(string) string) Option {
	return func(a *Agent) { a.getenv = getenv }
}

// WithUID overrides the effective user id
func WithUID(uid int) Option {
	return func(a *Agent) { a.uid = uid }
}

// WithPasswdPath sets the account database scanned for SSH users
func WithPasswdPath(path string) Option {
	return func(a *Agent) { a.passwdPath = path }
}

// WithUserAgent sets the User-Agent of registry requests
func WithUserAgent(ua string) Option {
	return func(a *Agent) { a.userAgent = ua }
}

// WithRegistry replaces the registry client built from the endpoint
func WithRegistry(r Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// New creates an agent for cfg
func New(cfg Config, opts ...Option) *Agent {
	a := &Agent{
		config:     cfg,
		runner:     ExecRunner{},
		resolver:   net.DefaultResolver,
		getenv:     os.Getenv,
		uid:        os.Geteuid(),
		passwdPath: DefaultPasswdPath,
		userAgent:  "ice-agent/dev",
		logger:     log.WithComponent("agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.config.BreadcrumbPath == "" {
		a.config.BreadcrumbPath = DefaultBreadcrumbPath
	}
	return a
}

func (a *Agent) resolveArguments() error {
	if a.config.Endpoint == "" {
		a.config.Endpoint = a.getenv(EnvAPIEndpoint)
	}
	if a.config.SessionID == "" {
		a.config.SessionID = a.getenv(EnvSessionID)
	}
	if a.config.Endpoint == "" && a.registry == nil {
		return fmt.Errorf("%w: --api-endpoint or %s", ErrMissingArgument, EnvAPIEndpoint)
	}
	if a.config.SessionID == "" {
		return fmt.Errorf("%w: --session-id or %s", ErrMissingArgument, EnvSessionID)
	}
	if a.registry == nil {
		c, err := client.NewFromEndpoint(a.config.Endpoint, client.Config{UserAgent: a.userAgent})
		if err != nil {
			return err
		}
		a.registry = c
	}
	return nil
}

// Register runs the self-registration sequence once. It never retries;
// re-invocation is left to whatever runs the agent.
func (a *Agent) Register(ctx context.Context) (*Result, error) {
	if err := CheckPrivileges(ctx, a.runner, a.uid); err != nil {
		return nil, err
	}
	if err := a.resolveArguments(); err != nil {
		return nil, err
	}
	logger := a.logger.With().Str("session_id", a.config.SessionID).Logger()

	if a.config.SkipIfRegistered {
		existing, err := a.previousRegistration()
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logger.Info().Str("instance_id", existing.ID).Msg("Instance already registered, skipping")
			return &Result{Instance: existing, Skipped: true}, nil
		}
	}

	instance := &types.Instance{
		SessionID: a.config.SessionID,
		Tags:      a.config.Tags,
	}

	networks, err := DiscoverNetworks(ctx, a.runner, a.uid)
	if err != nil {
		return nil, err
	}
	instance.Networks = networks
	logger.Debug().Int("count", len(networks)).Msg("Discovered networks")

	info, err := DiscoverSSH(ctx, a.runner, a.uid, a.passwdPath)
	if err != nil {
		logger.Warn().Err(err).Msg("SSH discovery failed, registering without SSH identity")
	} else if info != nil {
		instance.SSHUsername = info.Username
		instance.SSHAuthorizedFingerprint = info.Fingerprint
	}

	ip, err := a.registry.GetMyIP()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to learn public address, leaving it to the registry")
	} else {
		instance.PublicIPAddr = ip
		instance.PublicReverseDNS = ReverseDNS(ctx, a.resolver, ip)
	}

	instance.CloudID, instance.VPCID = CloudHints(a.getenv, instance.PublicReverseDNS)

	id, err := a.registry.SubmitInstance(instance)
	if err != nil {
		return nil, fmt.Errorf("registration rejected: %w", err)
	}
	instance.ID = id
	logger.Info().Str("instance_id", id).Msg("Instance registered")

	if err := WriteBreadcrumb(a.config.BreadcrumbPath, id); err != nil {
		logger.Warn().Err(err).Msg("Failed to record instance id")
	}
	return &Result{Instance: instance}, nil
}

// previousRegistration returns the instance named by the breadcrumb when it
// still exists in the same session
func (a *Agent) previousRegistration() (*types.Instance, error) {
	id, err := ReadBreadcrumb(a.config.BreadcrumbPath)
	if err != nil || id == "" {
		return nil, err
	}
	instance, err := a.registry.GetInstance(id)
	if client.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if instance.SessionID != a.config.SessionID {
		return nil, nil
	}
	return instance, nil
}
