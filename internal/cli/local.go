package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"brewpulse/config"
	"brewpulse/internal/auth"
	"brewpulse/internal/db"
	"brewpulse/internal/order"
	"brewpulse/internal/store"
	"brewpulse/internal/suggest"
)

// localPollInterval is how often a local subscription looks for writes made
// by other brewpulse processes.
const localPollInterval = time.Second

// localBackend runs the store in process over a SQLite file, so every
// brewpulse command on this machine sees the same queue.
type localBackend struct {
	*store.GormStore
	auth      *auth.Service
	menu      order.Menu
	suggester suggest.Suggester
	poll      time.Duration
	token     string
}

// DefaultLocalDBPath is the local queue location under the user config directory.
func DefaultLocalDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "brewpulse", "local.db"), nil
}

func newLocalBackend(path string, authCfg config.AuthConfig, suggestCfg config.SuggestionConfig) (*localBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}
	gormDB, err := gorm.Open(sqlite.Open("file:"+path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", path, err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}

	menu := order.DefaultMenu()
	return &localBackend{
		GormStore: store.NewGormStore(gormDB),
		auth:      auth.NewService(authCfg),
		menu:      menu,
		suggester: suggest.NewClient(suggestCfg, menu),
		poll:      localPollInterval,
	}, nil
}

// Subscribe also polls the file while subscribed, since other processes
// write to it without notifying this one.
func (l *localBackend) Subscribe(onSnapshot func([]order.Order), onError func(error)) func() {
	cancel := l.GormStore.Subscribe(onSnapshot, onError)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(l.poll)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := l.Refresh(context.Background()); err != nil {
					log.Printf("local: %v", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		cancel()
	}
}

func (l *localBackend) Close() error {
	sqlDB, err := l.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (l *localBackend) SignInAnon(ctx context.Context) (auth.Session, error) {
	return l.auth.SignInAnon()
}

func (l *localBackend) SignInAdmin(ctx context.Context, password string) (auth.Session, error) {
	return l.auth.SignInAdmin(password)
}

func (l *localBackend) SignOut(ctx context.Context) error {
	l.auth.SignOut(l.token)
	l.token = ""
	return nil
}

func (l *localBackend) SetToken(token string) { l.token = token }

func (l *localBackend) Menu(ctx context.Context) (order.Menu, error) {
	return l.menu, nil
}

func (l *localBackend) Suggest(ctx context.Context, mood string) (string, error) {
	return l.suggester.Suggest(ctx, mood)
}
