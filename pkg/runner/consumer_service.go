package runner

import "context"

// FetchLoop is implemented by long-running consume loops (a pull-consumer
// drain, a poller) that want Runner-managed lifecycle without writing
// their own Service boilerplate. Run must block until ctx is cancelled.
type FetchLoop interface {
	Run(ctx context.Context) error
}

// ConsumerService adapts a FetchLoop into a Service: Start launches Run in
// a goroutine and returns immediately (the loop itself blocks, not Start),
// Stop cancels it and waits for the goroutine to exit or ctx to expire.
type ConsumerService struct {
	name string
	loop FetchLoop

	cancel context.CancelFunc
	done   chan error
}

// NewConsumerService names and wraps loop for use with Runner.
func NewConsumerService(name string, loop FetchLoop) *ConsumerService {
	return &ConsumerService{name: name, loop: loop}
}

func (c *ConsumerService) Name() string { return c.name }

func (c *ConsumerService) Start(context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan error, 1)
	go func() { c.done <- c.loop.Run(loopCtx) }()
	return nil
}

func (c *ConsumerService) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Service = (*ConsumerService)(nil)
