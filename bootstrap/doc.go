// Package bootstrap runs the lifecycle of a service that embeds the
// identity SDK: typed configuration, component start and stop in
// registration order, startup hooks and graceful shutdown on signals.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	_ = app.RegisterComponent(cache)
//	_ = app.RegisterComponent(srv)
//	app.OnStart(func(ctx context.Context) error {
//	    _, err := oidc.SyncOnStartup(ctx, client, manifest, cfg.Sync.SyncOptions)
//	    return err
//	})
//	return app.Run(ctx)
//
// Health aggregates every registered component and plugs straight into
// the server's /health and /ready endpoints.
package bootstrap
