package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/api"
	"github.com/dynatos/pos-terminal/internal/catalog"
	"github.com/dynatos/pos-terminal/internal/checkout"
	"github.com/dynatos/pos-terminal/internal/config"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/drawer"
	"github.com/dynatos/pos-terminal/internal/events"
	"github.com/dynatos/pos-terminal/internal/guard"
	"github.com/dynatos/pos-terminal/internal/receipt"
	"github.com/dynatos/pos-terminal/internal/session"
)

var ErrUnsupportedRole = errors.New("user role cannot operate this terminal")

// Terminal is the application context: every component of one POS terminal,
// created at startup and passed explicitly to the HTTP surface and the CLI.
type Terminal struct {
	Config    config.Config
	Sessions  *session.Store
	Client    *api.Client
	Catalog   *catalog.Service
	Lifecycle *drawer.Lifecycle
	Close     *drawer.CloseFlow
	Engine    *checkout.Engine
	Guard     *guard.Guard
	// Events is nil when no brokers are configured.
	Events *events.Consumer

	closers []io.Closer
}

type options struct {
	transport http.RoundTripper
	printer   receipt.Printer
	publisher events.Publisher
	cache     catalog.Cache
}

type Option func(*options)

func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

func WithPrinter(p receipt.Printer) Option {
	return func(o *options) { o.printer = p }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithCatalogCache(c catalog.Cache) Option {
	return func(o *options) { o.cache = c }
}

// New wires the terminal from configuration. The persisted session is loaded
// but the drawer state is not queried until Refresh.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Terminal, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Terminal{Config: cfg}

	store, err := session.Open(cfg.SessionDBPath)
	if err != nil {
		return nil, err
	}
	t.Sessions = store
	t.closers = append(t.closers, store)
	if sess, ok := store.Load(ctx); ok {
		log.Printf("restored session for %s (%s)", sess.DisplayName, sess.Role)
	}

	t.Client = api.NewClient(api.Options{
		BaseURL:        cfg.BackendURL,
		Timeout:        cfg.RequestTimeout,
		BreakerTimeout: cfg.BreakerTimeout,
		Transport:      o.transport,
		Tokens:         store,
	})

	cache := o.cache
	if cache == nil {
		cache = t.catalogCache()
	}
	t.Catalog = catalog.NewService(t.Client, cache)

	publisher := o.publisher
	if publisher == nil {
		publisher = t.eventPublisher()
	}

	printer := o.printer
	if printer == nil {
		if cfg.ReceiptDir != "" {
			printer = receipt.NewDirPrinter(cfg.ReceiptDir)
		} else {
			printer = receipt.NewWriterPrinter(os.Stdout)
		}
	}

	admin := drawer.NewAuthorizer(t.Client)
	t.Lifecycle = drawer.NewLifecycle(t.Client, admin, publisher)
	t.Close = drawer.NewCloseFlow(t.Lifecycle)
	t.Engine = checkout.NewEngine(t.Client, t.Catalog, printer, publisher, checkout.Options{
		StoreName:      cfg.StoreName,
		StoreTaxID:     cfg.StoreTaxID,
		QRProvider:     cfg.QRProvider,
		PreviewTimeout: cfg.RequestTimeout,
	})
	t.Guard = guard.New(store)
	return t, nil
}

func (t *Terminal) catalogCache() catalog.Cache {
	if t.Config.RedisAddr == "" {
		return catalog.NewMemoryCache(t.Config.CatalogTTL)
	}
	client := redis.NewClient(&redis.Options{Addr: t.Config.RedisAddr})
	t.closers = append(t.closers, client)
	return catalog.NewRedisCache(client, t.Config.CatalogTTL, t.Config.StoreName)
}

func (t *Terminal) eventPublisher() events.Publisher {
	if len(t.Config.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	p := events.NewKafkaPublisher(t.Config.EventsTopic, t.Config.TerminalID, t.Config.KafkaBrokers...)
	t.closers = append(t.closers, p)

	c := events.NewConsumer(t.Config.EventsTopic, t.Config.TerminalID, t.Config.KafkaBrokers...)
	c.Handle(events.TypeSaleCompleted, t.reloadCatalog)
	t.Events = c
	t.closers = append(t.closers, c)
	return p
}

// reloadCatalog refreshes stock after another terminal of the store sold.
func (t *Terminal) reloadCatalog(ctx context.Context, e events.Event) error {
	if _, err := t.Catalog.Reload(ctx); err != nil {
		return err
	}
	log.Printf("catalog reloaded after sale %s on %s", e.AggregateID, e.Terminal)
	return nil
}

// Watch follows events from the other terminals until ctx is cancelled.
func (t *Terminal) Watch(ctx context.Context) {
	if t.Events == nil {
		return
	}
	t.Events.Run(ctx)
}

// Login signs the operator in against the backend and persists the session.
func (t *Terminal) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	res, err := t.Client.Login(ctx, creds)
	if err != nil {
		return domain.Session{}, fmt.Errorf("login failed: %w", err)
	}
	if !res.Session.Role.Valid() {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrUnsupportedRole, res.Session.Role)
	}
	if err := t.Sessions.Save(ctx, res.Session, res.Token); err != nil {
		return domain.Session{}, err
	}
	log.Printf("user %s signed in as %s", res.Session.DisplayName, res.Session.Role)
	return res.Session, nil
}

// Logout clears the persisted session and every piece of in-memory state.
// An open drawer stays open on the backend.
func (t *Terminal) Logout(ctx context.Context) error {
	t.Close.Cancel()
	t.Engine.Bind(0, "")
	t.Engine.Reset()
	if err := t.Sessions.Clear(ctx); err != nil {
		return err
	}
	log.Printf("session cleared")
	return nil
}

// RefreshDrawer re-queries the drawer and binds the engine to it.
func (t *Terminal) RefreshDrawer(ctx context.Context) (domain.DrawerState, error) {
	state, err := t.Lifecycle.Refresh(ctx)
	t.bindEngine()
	return state, err
}

func (t *Terminal) OpenDrawer(ctx context.Context, creds domain.Credentials, openingAmount decimal.Decimal) (*domain.CashDrawer, error) {
	d, err := t.Lifecycle.Open(ctx, creds, openingAmount)
	t.bindEngine()
	return d, err
}

func (t *Terminal) ConfirmClose(ctx context.Context) (domain.DrawerSummary, error) {
	summary, err := t.Close.Confirm(ctx)
	t.bindEngine()
	return summary, err
}

func (t *Terminal) bindEngine() {
	d := t.Lifecycle.Drawer()
	if d == nil {
		t.Engine.Bind(0, "")
		return
	}
	sess, _ := t.Sessions.Current()
	t.Engine.Bind(d.ID, sess.DisplayName)
}

// Shutdown releases the session database, Redis and Kafka connections.
func (t *Terminal) Shutdown() error {
	t.Engine.WaitPreviews()
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
