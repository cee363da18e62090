package alerting

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/coresight/coresight/internal/models"
)

const pushoverAPI = "https://api.pushover.net/1/messages.json"

// PushoverProvider pushes the full notice body to a Pushover user or group.
type PushoverProvider struct {
	AppToken string `json:"app_token"`
	UserKey  string `json:"user_key"`
	// Device restricts delivery to one of the user's devices.
	Device string `json:"device,omitempty"`
}

func (p *PushoverProvider) Name() string { return "pushover" }

func (p *PushoverProvider) Validate() error {
	var errs []error
	if p.AppToken == "" {
		errs = append(errs, errors.New("app_token is required"))
	}
	if p.UserKey == "" {
		errs = append(errs, errors.New("user_key is required"))
	}
	return errors.Join(errs...)
}

// pushoverPriority maps a notice onto Pushover's -2..2 scale: critical
// alerts bypass quiet hours, recoveries arrive silently.
func pushoverPriority(n *Notice) int {
	switch {
	case n.Resolved:
		return -1
	case n.Alert.Severity == models.SeverityCritical:
		return 1
	default:
		return 0
	}
}

func (p *PushoverProvider) Send(ctx context.Context, n *Notice) error {
	form := url.Values{
		"token":    {p.AppToken},
		"user":     {p.UserKey},
		"title":    {n.Title()},
		"message":  {n.Body()},
		"priority": {strconv.Itoa(pushoverPriority(n))},
	}
	if !n.Alert.CreatedAt.IsZero() {
		form.Set("timestamp", strconv.FormatInt(n.Alert.CreatedAt.Unix(), 10))
	}
	if p.Device != "" {
		form.Set("device", p.Device)
	}
	return postForm(ctx, "pushover", pushoverAPI, form, nil)
}
