package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"ytarchive/internal/logging"
	"ytarchive/internal/quota"
	"ytarchive/internal/services"
	"ytarchive/internal/store"
)

// DefaultWaitInterval is how long SelectUploader sleeps when no account has capacity.
const DefaultWaitInterval = 15 * time.Minute

// Credential locates the secrets for one upload account.
type Credential struct {
	Name             string
	ClientSecretFile string
	TokenFile        string
}

// Authenticator exchanges a credential for an authorized HTTP client.
type Authenticator interface {
	Authenticate(ctx context.Context, cred Credential) (*http.Client, error)
}

// Ledger is the quota surface the pool reserves against.
type Ledger interface {
	Reserve(ctx context.Context, account string, units int) error
	Candidates(ctx context.Context, role store.Role, units int) ([]*store.QuotaAccount, error)
	Meter(account string) quota.Meter
}

// Lease is a reserved slot on one upload account.
type Lease struct {
	Account string
	Units   int
	Client  *http.Client
}

// Option customizes a Pool.
type Option func(*Pool)

// WithWaitInterval overrides the capacity wait interval.
func WithWaitInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.wait = d
		}
	}
}

// WithSleep replaces the interruptible sleep used while waiting for capacity.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pool) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logging.NewComponentLogger(logger, "credentials")
	}
}

// Pool holds the reading account and the upload credentials. Upload handles are
// authenticated on first use and cached for the life of the process.
type Pool struct {
	ledger    Ledger
	auth      Authenticator
	reader    string
	uploaders map[string]Credential
	wait      time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger

	mu       sync.Mutex
	handles  map[string]*http.Client
	disabled map[string]error
}

// NewPool builds a pool for reader and the given upload credentials.
func NewPool(ledger Ledger, auth Authenticator, reader string, uploaders []Credential, opts ...Option) *Pool {
	p := &Pool{
		ledger:    ledger,
		auth:      auth,
		reader:    reader,
		uploaders: make(map[string]Credential, len(uploaders)),
		wait:      DefaultWaitInterval,
		sleep:     sleepContext,
		logger:    logging.NewComponentLogger(nil, "credentials"),
		handles:   make(map[string]*http.Client),
		disabled:  make(map[string]error),
	}
	for _, cred := range uploaders {
		p.uploaders[cred.Name] = cred
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReaderAccount names the account billed for catalog reads.
func (p *Pool) ReaderAccount() string {
	return p.reader
}

// ReaderMeter bills catalog calls against the reading account.
func (p *Pool) ReaderMeter() quota.Meter {
	return p.ledger.Meter(p.reader)
}

// Accounts describes every configured account for provisioning.
func (p *Pool) Accounts(dailyCap int) []store.QuotaAccount {
	accounts := []store.QuotaAccount{{Name: p.reader, Role: store.RoleReader, DailyCap: dailyCap}}
	names := make([]string, 0, len(p.uploaders))
	for name := range p.uploaders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		accounts = append(accounts, store.QuotaAccount{
			Name:          name,
			Role:          store.RoleUpload,
			CredentialRef: p.uploaders[name].TokenFile,
			DailyCap:      dailyCap,
		})
	}
	return accounts
}

// SelectUploader reserves cost units on the first upload account, by name, with room
// for them and returns its authorized handle. When no account has room it sleeps for
// the wait interval and tries again until ctx is cancelled.
func (p *Pool) SelectUploader(ctx context.Context, cost int) (*Lease, error) {
	if len(p.uploaders) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "credentials", "select uploader",
			"no upload credentials configured", nil)
	}
	for {
		if p.allDisabled() {
			return nil, services.Wrap(services.ErrConfiguration, "credentials", "select uploader",
				"every upload account failed authentication", nil)
		}
		candidates, err := p.ledger.Candidates(ctx, store.RoleUpload, cost)
		if err != nil {
			return nil, fmt.Errorf("list upload candidates: %w", err)
		}

		for _, acct := range candidates {
			cred, ok := p.uploaders[acct.Name]
			if !ok {
				p.logger.Debug("skipping account without configured credential",
					logging.String(logging.FieldAccount, acct.Name))
				continue
			}
			if p.isDisabled(acct.Name) {
				continue
			}

			if err := p.ledger.Reserve(ctx, acct.Name, cost); err != nil {
				if errors.Is(err, store.ErrQuotaExceeded) || errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}

			client, err := p.handle(ctx, cred)
			if err != nil {
				p.disable(acct.Name, err)
				logging.WarnWithContext(p.logger, "uploader authentication failed", "uploader_auth_failed",
					logging.String(logging.FieldAccount, acct.Name),
					logging.Error(err),
					logging.String(logging.FieldImpact, "account skipped for the rest of this run; reserved units are spent"),
					logging.String(logging.FieldErrorHint, "run 'ytarchive auth "+acct.Name+"' to refresh the token"),
				)
				continue
			}
			p.logger.Info("uploader selected",
				logging.String(logging.FieldAccount, acct.Name),
				logging.Int("units", cost),
				logging.Int("remaining_before", acct.Remaining()),
			)
			return &Lease{Account: acct.Name, Units: cost, Client: client}, nil
		}

		if p.allDisabled() {
			continue
		}
		p.logger.Info("no upload account has capacity; waiting",
			logging.Int("units", cost),
			logging.Duration("wait", p.wait),
			logging.String(logging.FieldEventType, "quota_wait"),
		)
		if err := p.sleep(ctx, p.wait); err != nil {
			return nil, err
		}
	}
}

func (p *Pool) handle(ctx context.Context, cred Credential) (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.handles[cred.Name]; ok {
		return client, nil
	}
	if p.auth == nil {
		return nil, services.Wrap(services.ErrConfiguration, "credentials", "authenticate", "no authenticator configured", nil)
	}
	client, err := p.auth.Authenticate(ctx, cred)
	if err != nil {
		return nil, err
	}
	p.handles[cred.Name] = client
	return client, nil
}

func (p *Pool) isDisabled(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.disabled[name]
	return ok
}

func (p *Pool) disable(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled[name] = err
}

func (p *Pool) allDisabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name := range p.uploaders {
		if _, ok := p.disabled[name]; !ok {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
