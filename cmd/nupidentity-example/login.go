package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/nupidentity/bootstrap"
	"github.com/kbukum/nupidentity/httpclient"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/spa"
)

const loginTimeout = 5 * time.Minute

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the system browser and print the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags.configFile, flags.envFile)
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return err
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				return browserLogin(ctx, cmd, cfg, app.Logger, port)
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 8400, "loopback port for the login callback")
	return cmd
}

// browserLogin runs the public-client flow: the system browser is sent to
// the provider and the callback lands on a loopback listener.
func browserLogin(ctx context.Context, cmd *cobra.Command, cfg *AppConfig, log *logger.Logger, port int) error {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("listen for callback: %w", err)
	}
	redirectURI := "http://" + listener.Addr().String() + "/callback"

	nav, err := spa.NewSystemNavigator(redirectURI)
	if err != nil {
		return err
	}
	hc, err := httpclient.New(httpclient.Config{Timeout: cfg.Identity.HTTPTimeout, TLS: &cfg.Identity.TLS})
	if err != nil {
		return err
	}
	provider, err := spa.New(spa.Config{
		Issuer:      cfg.Identity.Issuer,
		ClientID:    cfg.Identity.ClientID,
		RedirectURI: redirectURI,
		Scopes:      cfg.Identity.Scopes,
		Audience:    cfg.Identity.Audience,
		HTTPTimeout: cfg.Identity.HTTPTimeout,
	}, spa.WithNavigator(nav), spa.WithLogger(log), spa.WithHTTPClient(hc.Unwrap()))
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		landed, _ := url.Parse(redirectURI)
		landed.RawQuery = r.URL.RawQuery
		nav.SetLocation(landed)

		err := provider.Mount(r.Context())
		if err != nil {
			http.Error(w, "Login failed: "+err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Login complete. You can close this window.")
		}
		select {
		case done <- err:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(listener) }()
	defer srv.Close()

	if err := provider.Login(ctx); err != nil {
		return err
	}
	cmd.Printf("Waiting for the browser to complete login on %s\n", redirectURI)

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return errors.New("login timed out")
	}

	user := provider.User()
	cmd.Printf("Signed in as %s (%s)\n", user.Subject, user.Email)
	cmd.Printf("Permissions: %v\n", provider.Permissions())
	if !provider.HasAnyPermission(permReportsRead, permReportsWrite) {
		cmd.Println("This account cannot use the reports API.")
	}
	return nil
}
