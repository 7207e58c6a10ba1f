// Package async provides safe background execution for fire-and-forget work.
//
// # Overview
//
// SafeGo runs a function in its own goroutine with a timeout and panic
// recovery, logging failures instead of returning them. Tasks does the same
// but lets the owner wait for in-flight work during shutdown.
//
// # Usage Example
//
//	var tasks async.Tasks
//	tasks.Go(context.WithoutCancel(ctx), logger, 5*time.Second, "webhook delivery", func(ctx context.Context) error {
//		return post(ctx, body)
//	})
//	...
//	_ = tasks.Wait(shutdownCtx)
//
// # Related Packages
//
//   - pkg/clients/webhook: Sends messages in the background
package async
