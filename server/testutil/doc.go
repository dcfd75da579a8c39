// Package testutil runs a server.Server on an httptest listener so tests
// can exercise the full middleware stack, including the probe endpoints,
// through real HTTP requests. The listener address is only known after
// Start, so callbacks that must point back at the app are built from
// BaseURL:
//
//	srv := testutil.NewComponent(nil)
//	_ = srv.Start(ctx)
//	defer srv.Stop(ctx)
//	redirectURI := srv.BaseURL() + "/auth/callback"
package testutil
