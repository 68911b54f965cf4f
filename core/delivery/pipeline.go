package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"animedrive/core/logger"
)

// Transport performs the outbound operations the pipeline needs. Send
// methods return the id of the message they produced.
type Transport interface {
	SendItem(ctx context.Context, dest int64, item Item) (int, error)
	SendNotice(ctx context.Context, dest int64, text string) (int, error)
	DeleteMessage(ctx context.Context, dest int64, messageID int) error
}

// Notices holds the closing bookend texts and the cleanup text for a batch.
type Notices struct {
	Separator string
	Retention string
	Removed   string
}

// Options configures a Pipeline.
type Options struct {
	Pacing    time.Duration
	Retention time.Duration
	Notices   Notices
}

// Pipeline delivers item batches to chats in strict sequence order and
// removes everything it sent once the retention window elapses.
type Pipeline struct {
	transport Transport
	clock     Clock
	opts      Options
}

func New(transport Transport, clock Clock, opts Options) *Pipeline {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Pipeline{transport: transport, clock: clock, opts: opts}
}

// Deliver sends items to dest in ascending Seq order with the configured
// pacing between sends, then closes the batch with the separator and
// retention notices. A failed item is logged and skipped; it never aborts
// the batch. The returned job has cleanup scheduled and will reach
// StateCleaned after the retention window.
func (p *Pipeline) Deliver(ctx context.Context, dest int64, items []Item) (*Job, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("delivery: empty batch for chat %d", dest)
	}
	for i, it := range items {
		if it.Seq != i+1 {
			return nil, fmt.Errorf("delivery: non-contiguous batch for chat %d: item %d has seq %d", dest, i, it.Seq)
		}
	}

	job := newJob(dest, p.opts.Retention, p.clock.Now())
	job.setState(StateSending)
	logger.LogEvent(ctx, logger.Delivery, slog.LevelInfo, "delivery.start",
		slog.String("job_id", job.ID),
		slog.Int64("chat_id", dest),
		slog.Int("items", len(items)),
	)

	sent := 0
	for i, it := range items {
		if i > 0 {
			if err := p.clock.Sleep(ctx, p.opts.Pacing); err != nil {
				logger.LogEvent(ctx, logger.Delivery, slog.LevelWarn, "delivery.abort",
					slog.String("job_id", job.ID),
					slog.Int64("chat_id", dest),
					slog.Int("sent", sent),
					slog.String("err", err.Error()),
				)
				break
			}
		}
		id, err := p.transport.SendItem(ctx, dest, it)
		if err != nil {
			logger.LogEvent(ctx, logger.Delivery, slog.LevelWarn, "delivery.item.fail",
				slog.String("job_id", job.ID),
				slog.Int64("chat_id", dest),
				slog.Int("seq", it.Seq),
				slog.String("err", logger.Sanitize(err.Error())),
			)
			continue
		}
		job.recordSent(id)
		sent++
	}

	job.setState(StateFinalizing)
	for _, text := range []string{p.opts.Notices.Separator, p.opts.Notices.Retention} {
		if id, err := p.transport.SendNotice(ctx, dest, text); err != nil {
			logger.LogEvent(ctx, logger.Delivery, slog.LevelWarn, "delivery.notice.fail",
				slog.String("job_id", job.ID),
				slog.Int64("chat_id", dest),
				slog.String("err", logger.Sanitize(err.Error())),
			)
		} else {
			job.recordSent(id)
		}
	}

	job.setState(StateAwaitingCleanup)
	logger.LogEvent(ctx, logger.Delivery, slog.LevelInfo, "delivery.sent",
		slog.String("job_id", job.ID),
		slog.Int64("chat_id", dest),
		slog.Int("items", len(items)),
		slog.Int("sent", sent),
	)
	p.clock.AfterFunc(p.opts.Retention, func() { p.cleanup(job) })
	return job, nil
}

// cleanup deletes everything the job sent and posts the removed notice.
// It runs exactly once per job, on its own context so that canceling the
// originating flow cannot skip retention.
func (p *Pipeline) cleanup(job *Job) {
	job.cleanupOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		deleted := 0
		for _, id := range job.SentMessageIDs() {
			if err := p.transport.DeleteMessage(ctx, job.Destination, id); err != nil {
				logger.LogEvent(ctx, logger.Delivery, slog.LevelWarn, "cleanup.delete.fail",
					slog.String("job_id", job.ID),
					slog.Int64("chat_id", job.Destination),
					slog.String("err", logger.Sanitize(err.Error())),
				)
				continue
			}
			deleted++
		}
		if _, err := p.transport.SendNotice(ctx, job.Destination, p.opts.Notices.Removed); err != nil {
			logger.LogEvent(ctx, logger.Delivery, slog.LevelWarn, "cleanup.notice.fail",
				slog.String("job_id", job.ID),
				slog.Int64("chat_id", job.Destination),
				slog.String("err", logger.Sanitize(err.Error())),
			)
		}
		job.setState(StateCleaned)
		close(job.cleaned)
		logger.LogEvent(ctx, logger.Delivery, slog.LevelInfo, "cleanup.done",
			slog.String("job_id", job.ID),
			slog.Int64("chat_id", job.Destination),
			slog.Int("deleted", deleted),
		)
	})
}
