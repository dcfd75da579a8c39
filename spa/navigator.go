package spa

import (
	"net/url"
	"sync"

	"github.com/pkg/browser"
)

// Navigator abstracts the browser window the provider runs in.
type Navigator interface {
	// Location returns the current URL.
	Location() *url.URL
	// Assign performs a full navigation to rawURL.
	Assign(rawURL string) error
	// ReplaceState rewrites the current URL without navigating.
	ReplaceState(u *url.URL)
}

// SystemNavigator opens URLs in the system browser. It suits native
// clients that receive the callback on a loopback listener and report it
// through SetLocation before calling Mount.
type SystemNavigator struct {
	mu       sync.Mutex
	location *url.URL
	open     func(string) error
}

var _ Navigator = (*SystemNavigator)(nil)

// NewSystemNavigator creates a navigator whose current location is rawURL.
func NewSystemNavigator(rawURL string) (*SystemNavigator, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &SystemNavigator{location: u, open: browser.OpenURL}, nil
}

func (n *SystemNavigator) Location() *url.URL {
	n.mu.Lock()
	defer n.mu.Unlock()
	u := *n.location
	return &u
}

func (n *SystemNavigator) Assign(rawURL string) error {
	return n.open(rawURL)
}

func (n *SystemNavigator) ReplaceState(u *url.URL) {
	n.SetLocation(u)
}

// SetLocation records the URL the browser landed on, typically the
// callback request received by a loopback server.
func (n *SystemNavigator) SetLocation(u *url.URL) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := *u
	n.location = &cp
}
