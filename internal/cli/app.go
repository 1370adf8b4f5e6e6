// Package cli is the brewpulse terminal client. Every command loads the local
// profile, connects to the store with the saved session and, where it needs
// the queue, waits for the sync controller to go live before acting.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"

	"brewpulse/config"
	"brewpulse/internal/auth"
	"brewpulse/internal/order"
	"brewpulse/internal/profile"
	"brewpulse/internal/remote"
	"brewpulse/internal/store"
	"brewpulse/internal/suggest"
	"brewpulse/internal/syncctl"
)

// Backend is the store plus the session and menu calls a client needs.
// remote.Client is the hosted implementation.
type Backend interface {
	store.Store
	store.Pinger
	suggest.Suggester
	SignInAnon(ctx context.Context) (auth.Session, error)
	SignInAdmin(ctx context.Context, password string) (auth.Session, error)
	SignOut(ctx context.Context) error
	SetToken(token string)
	Menu(ctx context.Context) (order.Menu, error)
}

var _ Backend = (*remote.Client)(nil)

// App holds what the commands share. Fields left nil are resolved from
// configuration on first use.
type App struct {
	v      *viper.Viper
	out    io.Writer
	logger *log.Logger

	profiles profile.Store
	backend  Backend
}

// Option configures an App.
type Option func(*App)

// WithOutput sends command output to w.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithProfileStore replaces the profile file.
func WithProfileStore(s profile.Store) Option {
	return func(a *App) { a.profiles = s }
}

// WithBackend replaces the configured backend.
func WithBackend(b Backend) Option {
	return func(a *App) { a.backend = b }
}

// NewApp creates an App reading settings from v.
func NewApp(v *viper.Viper, opts ...Option) *App {
	a := &App{v: v, out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard, "brewpulse ", log.LstdFlags)
	}
	return a
}

func (a *App) profileStore() (profile.Store, error) {
	if a.profiles != nil {
		return a.profiles, nil
	}
	path := a.v.GetString("profile")
	if path == "" {
		p, err := profile.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	a.profiles = profile.NewFileStore(path)
	return a.profiles, nil
}

// connect returns the backend, carrying token when one is saved.
func (a *App) connect(token string) (Backend, error) {
	if a.backend == nil {
		if a.v.GetBool("local") {
			path := a.v.GetString("local-db")
			if path == "" {
				p, err := DefaultLocalDBPath()
				if err != nil {
					return nil, err
				}
				path = p
			}
			b, err := newLocalBackend(path, config.AuthConfig{AdminPassword: a.v.GetString("admin-password")},
				config.SuggestionConfig{APIKey: a.v.GetString("api-key")})
			if err != nil {
				return nil, err
			}
			a.backend = b
		} else {
			a.backend = remote.New(a.v.GetString("server"))
		}
	}
	a.backend.SetToken(token)
	return a.backend, nil
}

// session loads the profile and checks it holds the wanted role.
func (a *App) session(want profile.Role) (profile.Store, profile.Profile, Backend, error) {
	profiles, err := a.profileStore()
	if err != nil {
		return nil, profile.Profile{}, nil, err
	}
	p, err := profiles.Load()
	if err != nil {
		return nil, profile.Profile{}, nil, err
	}
	if want != profile.RoleNone && p.Role != want {
		return nil, p, nil, fmt.Errorf("sign in first: brewpulse login %s", want)
	}
	b, err := a.connect(p.Session)
	if err != nil {
		return nil, p, nil, err
	}
	return profiles, p, b, nil
}

func (a *App) timeout() time.Duration {
	if d := a.v.GetDuration("timeout"); d > 0 {
		return d
	}
	return 10 * time.Second
}

// live starts a controller and waits until it is live, with both the orders
// and the service flag loaded.
// A permission error fails at once; other errors are retried by the
// controller until ctx ends.
func (a *App) live(ctx context.Context, b Backend) (*syncctl.Controller, error) {
	ctl := syncctl.New(b, syncctl.WithLogger(a.logger))
	changed := make(chan struct{}, 1)
	remove := ctl.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	ctl.Start()
	for {
		switch ctl.State() {
		case syncctl.Live:
			return ctl, nil
		case syncctl.Errored:
			if errors.Is(ctl.Err(), store.ErrPermissionDenied) {
				ctl.Stop()
				return nil, fmt.Errorf("%s: %w", ctl.Advisory(), ctl.Err())
			}
		}
		select {
		case <-changed:
		case <-ctx.Done():
			advisory := ctl.Advisory()
			ctl.Stop()
			if advisory == "" {
				advisory = "could not load the order queue"
			}
			return nil, fmt.Errorf("%s: %w", advisory, ctx.Err())
		}
	}
}
