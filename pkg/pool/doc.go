// Package pool provides a fixed-size worker pool with a bounded job queue.
//
// Jobs carry the submitter's context. A job whose context is already done
// when a worker dequeues it is dropped and counted as abandoned, so a
// caller that gave up does not leave work running behind it.
//
//	p := pool.New(runtime.NumCPU(), 1024)
//	defer p.Close()
//
//	result := make(chan int, 1)
//	if err := p.Submit(ctx, func(ctx context.Context) { result <- work(ctx) }); err != nil {
//		return err
//	}
package pool
