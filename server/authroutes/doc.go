// Package authroutes mounts the server-side login flow on a gin router.
//
// GET /login stores the state, nonce and PKCE verifier in short-lived
// httpOnly cookies and redirects to the provider. GET /callback consumes
// those cookies, exchanges the code and stores the tokens in httpOnly
// session cookies. GET /me, POST /logout and POST /refresh operate on that
// cookie session.
//
//	authroutes.Mount(router.Group("/auth"), authenticator, authroutes.Options{
//		RedirectURI:     "https://app.example.com/auth/callback",
//		FailureRedirect: "/login-failed",
//		Secure:          true,
//	})
package authroutes
