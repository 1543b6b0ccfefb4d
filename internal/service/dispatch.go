package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DevRickLin/feishu-meet-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-meet-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-meet-bot/internal/conf"
)

// Dispatcher runs invocations on the pool and delivers their replies
type Dispatcher struct {
	router   *CommandRouter
	pool     *Pool
	replies  repo.ReplyRepo // nil when the caller collects replies itself
	messages *conf.Messages
	log      *slog.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(router *CommandRouter, pool *Pool, replies repo.ReplyRepo, messages *conf.Messages, log *slog.Logger) *Dispatcher {
	if messages == nil {
		messages = conf.DefaultMessages()
	}
	return &Dispatcher{
		router:   router,
		pool:     pool,
		replies:  replies,
		messages: messages,
		log:      log.With("component", "dispatcher"),
	}
}

// Dispatch queues the invocation and returns immediately
// The reply is delivered when the task finishes, unless ctx is done by then.
func (d *Dispatcher) Dispatch(ctx context.Context, inv domain.Invocation) error {
	err := d.pool.TrySubmit(func(poolCtx context.Context) {
		taskCtx, cancel := taskContext(ctx, poolCtx)
		defer cancel()
		reply := d.router.Handle(taskCtx, inv)
		d.deliver(ctx, inv, reply)
	})
	if err == nil {
		return nil
	}

	d.log.Warn("invocation not queued", "invocation_id", inv.ID, "error", err)
	if errors.Is(err, ErrPoolFull) {
		go d.deliver(ctx, inv, d.busyReply())
	}
	return err
}

// Execute runs the invocation on the pool and waits for its reply
func (d *Dispatcher) Execute(ctx context.Context, inv domain.Invocation) (domain.Reply, error) {
	result := make(chan domain.Reply, 1)
	err := d.pool.TrySubmit(func(poolCtx context.Context) {
		taskCtx, cancel := taskContext(ctx, poolCtx)
		defer cancel()
		result <- d.router.Handle(taskCtx, inv)
	})
	if err != nil {
		if errors.Is(err, ErrPoolFull) {
			return d.busyReply(), err
		}
		return domain.Reply{}, err
	}

	select {
	case reply := <-result:
		return reply, nil
	case <-ctx.Done():
		return domain.Reply{}, ctx.Err()
	}
}

// taskContext keeps the caller's values and takes cancellation from the pool only
func taskContext(caller, pool context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(caller))
	stop := context.AfterFunc(pool, func() {
		cancel(context.Cause(pool))
	})
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, inv domain.Invocation, reply domain.Reply) {
	if d.replies == nil {
		return
	}
	if err := ctx.Err(); err != nil {
		d.log.Info("caller gone, reply dropped", "invocation_id", inv.ID, "status", reply.Status)
		return
	}
	if err := d.replies.SendReply(ctx, inv, reply); err != nil {
		d.log.Error("failed to deliver reply", "invocation_id", inv.ID, "error", err)
	}
}

func (d *Dispatcher) busyReply() domain.Reply {
	return domain.Reply{
		Text:       d.messages.System.Busy,
		Visibility: domain.VisibilityEphemeral,
		Status:     domain.StateFailed,
	}
}
