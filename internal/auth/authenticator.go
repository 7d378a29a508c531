package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/faultline-systems/faultline/internal/models"
	"github.com/faultline-systems/faultline/internal/repository"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidProject     = errors.New("invalid project")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator validates ingest requests against per-project credentials.
// Project lookups go through a TTL cache; the credential itself is never
// cached as a comparison result.
type Authenticator struct {
	projects repository.ProjectStore
	cache    *projectCache
}

// Option configures an Authenticator.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock injects a clock for the project cache. Tests use this to expire
// entries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewAuthenticator creates an Authenticator backed by the given project
// store. cacheTTL bounds how long a tenant lookup may be reused.
func NewAuthenticator(store repository.ProjectStore, cacheTTL time.Duration, opts ...Option) *Authenticator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Authenticator{
		projects: store,
		cache:    newProjectCache(cacheTTL, o.now),
	}
}

// Authenticate resolves the request's bearer credential and validates it
// against the tenant's stored key. The credential is read from the original,
// unstripped request, independent of payload decoding.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request, tenant string) (*models.Project, error) {
	credential := ExtractCredential(r)
	if credential == "" {
		return nil, ErrMissingCredentials
	}

	project, err := a.resolveProject(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(project.PublicKey), []byte(credential)) != 1 {
		return nil, ErrInvalidCredentials
	}

	return project, nil
}

// ResolveTenant looks up the project for a tenant identifier without
// checking credentials. Handlers use it to distinguish "unknown tenant"
// (404) from "bad credentials" (401).
func (a *Authenticator) ResolveTenant(ctx context.Context, tenant string) (*models.Project, error) {
	return a.resolveProject(ctx, tenant)
}

func (a *Authenticator) resolveProject(ctx context.Context, tenant string) (*models.Project, error) {
	if p := a.cache.get(tenant); p != nil {
		return p, nil
	}

	project, err := a.projects.GetProjectBySlug(ctx, tenant)
	if errors.Is(err, repository.ErrProjectNotFound) {
		if id, convErr := strconv.ParseInt(tenant, 10, 64); convErr == nil {
			project, err = a.projects.GetProjectByID(ctx, id)
		}
	}
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrInvalidProject
		}
		return nil, fmt.Errorf("resolve tenant %q: %w", tenant, err)
	}

	a.cache.set(tenant, project)
	return project, nil
}
