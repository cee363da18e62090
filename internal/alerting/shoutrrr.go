package alerting

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nicholas-fedor/shoutrrr"
)

// ShoutrrrProvider delivers through any service shoutrrr understands
// (slack://, discord://, ntfy://, telegram://, ...).
type ShoutrrrProvider struct {
	URL string `json:"url"`
}

func (p *ShoutrrrProvider) Name() string {
	return "shoutrrr"
}

func (p *ShoutrrrProvider) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("url must include a service scheme")
	}
	return nil
}

func (p *ShoutrrrProvider) Send(ctx context.Context, n *Notice) error {
	msg := n.Summary()

	done := make(chan error, 1)
	go func() { done <- shoutrrr.Send(p.URL, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send shoutrrr: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
