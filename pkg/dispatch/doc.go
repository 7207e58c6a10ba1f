// Package dispatch routes semantic application events to pluggable clients.
//
// # Overview
//
// Application code emits identify, page view, custom event, and error report
// calls once. The Dispatcher fans each call out to the registered clients
// whose capability matches: identify goes to every client, page views and
// events to AnalyticsClient implementations, error reports to ErrorClient
// implementations. Every call can narrow its targets with To.
//
// Clients are addressed by ClientName. Registering a name that is already
// present replaces the old client, whichever kind it was.
//
// # Usage Example
//
//	d, err := dispatch.New(dispatch.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if err := d.RegisterClients(segment, warehouse, tracker); err != nil {
//		return err
//	}
//
//	_ = d.IdentifyUser(ctx, "u-42", dispatch.Properties{"plan": "pro"})
//	_ = d.SendEvent(ctx, "signup", nil, dispatch.To("segment"))
//	_ = d.TrackError(ctx, "checkout failed", err, dispatch.WithLevel(dispatch.LevelCritical))
//
// # Failures
//
// Calls are synchronous and invoke targets in registration order. The first
// failing client stops the call and is returned as a *ClientError. With
// WithContinueOnError every target is invoked and failures are joined.
//
// # Tracked Links
//
//	click := d.LinkClickHandler("outbound", nil, nav, dispatch.WithRedirectDelay(300*time.Millisecond))
//	navigation, err := click(ctx, c)
//
// # Related Packages
//
//   - pkg/clients/...: Client implementations
//   - pkg/manifest: Builds and reconciles clients from YAML
//   - pkg/api: HTTP surface over the dispatcher
package dispatch
