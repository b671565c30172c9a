package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3rd/molniya/pkg/com"
	"github.com/a3rd/molniya/pkg/config"
	"github.com/a3rd/molniya/pkg/logging"
	"github.com/a3rd/molniya/pkg/nagios"
	"github.com/a3rd/molniya/pkg/periodic"
)

// refresh cadence: tight while check futures are outstanding, relaxed
// otherwise.
const (
	tightInterval   = 2 * time.Second
	relaxedEveryNth = 5
)

// Orchestrator owns the stores, the contact registry, the router, the
// command engine and the transports, and runs the gateway's worker loops.
// It is the only component talking to the outside world.
type Orchestrator struct {
	instance  *nagios.Instance
	registry  *Registry
	router    *Router
	engine    *Engine
	chat      ChatTransport
	mailer    *Mailer
	formatter Formatter
	logger    *zap.SugaredLogger

	// inbox decouples the transport receive path from command execution;
	// the dispatch worker drains it strictly in arrival order.
	inbox *com.Mailbox[Message]

	// dispatchDone is closed when the dispatch worker exits; the refresh
	// loop treats that as fatal while the gateway is supposed to be up.
	dispatchDone chan struct{}
}

// New assembles a gateway from configuration. The chat transport is the
// bundled line-oriented one; swap it via the chat parameter in tests.
func New(cfg *config.Config, logs *logging.Logging, chat ChatTransport) (*Orchestrator, error) {
	instance := nagios.NewInstance(&cfg.Nagios, logs.GetChildLogger("store"))
	registry := NewRegistry()
	formatter := NewTextFormatter(cfg.Nagios.BaseURI)
	mailer := NewMailer(cfg.SMTP.Relay, cfg.SMTP.From, logs.GetChildLogger("mail"))

	if chat == nil {
		chat = NewLineChat(cfg.Chat.Listen, logs.GetChildLogger("chat"))
	}

	router := NewRouter(
		registry, instance, chat, mailer, formatter, cfg.Chat.ContactField, logs.GetChildLogger("router"))

	engine, err := NewEngine(
		registry, instance, chat, formatter, cfg.Chat.ContactField, cfg.Chat.CheckTimeout,
		logs.GetChildLogger("command-engine"))
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		instance:     instance,
		registry:     registry,
		router:       router,
		engine:       engine,
		chat:         chat,
		mailer:       mailer,
		formatter:    formatter,
		logger:       logs.GetChildLogger("dispatch"),
		inbox:        com.NewMailbox[Message](),
		dispatchDone: make(chan struct{}),
	}

	// The receive path only enqueues and returns; presence bookkeeping and
	// catch-up run on the transport's callback goroutine, concurrently with
	// the dispatch worker.
	chat.OnMessage(o.inbox.Put)
	chat.OnPresence(o.handlePresence)

	return o, nil
}

// Router exposes the notification router for the HTTP trigger endpoint.
func (o *Orchestrator) Router() *Router { return o.router }

// Transport exposes the chat transport for the HTTP send endpoint.
func (o *Orchestrator) Transport() ChatTransport { return o.chat }

func (o *Orchestrator) handlePresence(ev PresenceEvent) {
	if !o.registry.SetPresence(ev.From, ev.New) {
		return
	}

	if err := o.router.CatchUp(ev.From); err != nil {
		o.logger.Errorw("Catch-up failed", zap.String("addr", ev.From), zap.Error(err))
	}
}

// Run primes the stores and serves the worker loops until ctx is canceled
// or one of them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.instance.Prime(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.chat.Run(ctx)
	})

	g.Go(func() error {
		defer close(o.dispatchDone)
		return o.dispatchWorker(ctx)
	})

	g.Go(func() error {
		return o.refreshLoop(ctx)
	})

	return g.Wait()
}

// dispatchWorker is the single consumer of the inbox: all chat command
// execution is serialized here, in arrival order.
func (o *Orchestrator) dispatchWorker(ctx context.Context) error {
	for {
		msg, err := o.inbox.Get(ctx)
		if err != nil {
			return err
		}

		reply := o.engine.Dispatch(msg.From, msg.Body)
		if reply == "" {
			continue
		}

		if err := o.chat.Send(msg.From, reply); err != nil {
			o.logger.Errorw("Can't send reply", zap.String("addr", msg.From), zap.Error(err))
		}
	}
}

// refreshLoop keeps the snapshots current and pushes the status summary
// as presence. It ticks tightly, acting on every tick while check futures
// are outstanding and on every nth otherwise, and turns two conditions
// into process-fatal errors: a dead dispatch worker and a status source
// that cannot catch up with a reloaded configuration.
func (o *Orchestrator) refreshLoop(ctx context.Context) error {
	fatal := make(chan error, 1)
	tick := 0

	stop := periodic.Start(ctx, tightInterval, func(periodic.Tick) {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-o.dispatchDone:
			select {
			case fatal <- errors.New("dispatch worker died"):
			default:
			}
			return
		default:
		}

		tick++
		// The first tick always acts so the gateway announces right away.
		if tick > 1 && o.instance.Status.Waiters() == 0 && (tick-1)%relaxedEveryNth != 0 {
			return
		}

		if err := o.instance.RefreshConfig(ctx); err != nil {
			select {
			case fatal <- err:
			default:
			}
			return
		}

		o.instance.RefreshStatus()

		if report := o.instance.Report(); report != nil {
			if err := o.chat.Announce(o.formatter.StatusMessage(report)); err != nil {
				o.logger.Errorw("Can't announce status", zap.Error(err))
			}
		}
	}, periodic.Immediate())
	defer stop.Stop()

	select {
	case err := <-fatal:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
