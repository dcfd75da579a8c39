// Package spa is the browser-side half of the login flow: a public client
// that runs the authorization code flow with PKCE, keeps its tokens in
// session storage and exposes a reactive authentication state.
//
// The browser is abstracted behind Storage and Navigator. MemoryStorage and
// SystemNavigator serve tests and native clients that receive the callback
// on a loopback listener.
//
//	p, err := spa.New(spa.Config{
//	    Issuer:      "https://id.example.com",
//	    ClientID:    "dashboard",
//	    RedirectURI: "http://127.0.0.1:8400/callback",
//	    OnError:     func(err error) { log.Println(err) },
//	})
//	unsubscribe := p.Subscribe(render)
//	defer unsubscribe()
//	_ = p.Mount(ctx)
//	if !p.IsAuthenticated() {
//	    _ = p.Login(ctx)
//	}
//
// Stored tokens are decoded without signature verification to restore UI
// state. Permission hooks reflect what the token claims; only a server
// that verifies the token may act on them.
package spa
