package pipeline

import (
	"context"
	"sync"
	"time"

	"guardpost/internal/engine"
	inputredis "guardpost/internal/input/redis"
	"guardpost/internal/logger"
	"guardpost/internal/metrics"
	"guardpost/internal/transform/chatevent"
	"guardpost/pkg/models"
)

// Pipeline consumes gateway events from Redis and dispatches them into the
// detection engine.
type Pipeline struct {
	consumer *inputredis.Consumer
	engine   *engine.Engine
	workers  int
}

// NewPipeline creates a pipeline.
func NewPipeline(consumer *inputredis.Consumer, eng *engine.Engine, workers int) *Pipeline {
	return &Pipeline{
		consumer: consumer,
		engine:   eng,
		workers:  workers,
	}
}

// Run starts the pipeline loop and blocks until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	logger.Infof("Event pipeline started")

	if p.workers <= 0 {
		p.workers = 4
	}

	msgCh := make(chan []byte, p.workers*4)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(msgCh)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *Pipeline) Close() error {
	if p.consumer != nil {
		return p.consumer.Close()
	}
	return nil
}

func (p *Pipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop redis message: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) workerLoop(in <-chan []byte) {
	for payload := range in {
		ev, err := chatevent.Parse(payload, time.Now())
		if err != nil {
			metrics.ParseFailures.Inc()
			logger.Warnf("Failed to parse gateway event: %v", err)
			continue
		}
		metrics.EventsConsumed.WithLabelValues(ev.Type).Inc()

		switch ev.Type {
		case models.EventMemberJoin:
			p.engine.HandleMemberJoined(ev.MemberJoined)
		case models.EventMessage:
			p.engine.HandleMessage(ev.Message)
		case models.EventVerifyAnswer:
			p.engine.HandleVerificationAnswer(ev.VerifyAnswer)
		case models.EventActionResult:
			p.engine.HandleActionResult(ev.ActionResult)
		case models.EventRestrictionCleared:
			p.engine.HandleRestrictionCleared(ev.RestrictionCleared)
		}
	}
}
