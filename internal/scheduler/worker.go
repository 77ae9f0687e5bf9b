package scheduler

import (
	"context"
	"fmt"

	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// WelcomeEmailHandler delivers a queued welcome email.
type WelcomeEmailHandler interface {
	DeliverWelcome(ctx context.Context, payload WelcomeEmailPayload) error
}

// AnalyticsEventHandler persists a queued analytics event.
type AnalyticsEventHandler interface {
	RecordEvent(ctx context.Context, payload AnalyticsEventPayload) error
}

type Handlers struct {
	Welcome   WelcomeEmailHandler
	Analytics AnalyticsEventHandler
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	handlers Handlers
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handlers Handlers, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Warn("background task failed", "task", task.Type(), "error", err)
		}),
	})

	w := newWorker(handlers, log)
	w.server = server
	return w, nil
}

func newWorker(handlers Handlers, log *logger.Logger) *Worker {
	w := &Worker{mux: asynq.NewServeMux(), handlers: handlers, log: log}
	w.mux.HandleFunc(TaskWelcomeEmail, w.handleWelcomeEmail)
	w.mux.HandleFunc(TaskAnalyticsEvent, w.handleAnalyticsEvent)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleWelcomeEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWelcomeEmailPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if w.handlers.Welcome == nil {
		return nil
	}
	return w.handlers.Welcome.DeliverWelcome(ctx, payload)
}

func (w *Worker) handleAnalyticsEvent(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAnalyticsEventPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if w.handlers.Analytics == nil {
		return nil
	}
	return w.handlers.Analytics.RecordEvent(ctx, payload)
}
