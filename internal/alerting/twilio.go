package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	twilioAPI = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"
	// Twilio rejects message bodies longer than this.
	maxSMSLength = 1600
)

// TwilioProvider texts a one-line summary to a phone number.
type TwilioProvider struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number"`
}

func (t *TwilioProvider) Name() string { return "twilio" }

func (t *TwilioProvider) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"account_sid", t.AccountSID},
		{"auth_token", t.AuthToken},
		{"from_number", t.FromNumber},
		{"to_number", t.ToNumber},
	} {
		if f.value == "" {
			errs = append(errs, errors.New(f.name+" is required"))
		}
	}
	return errors.Join(errs...)
}

func (t *TwilioProvider) endpoint() string {
	return fmt.Sprintf(twilioAPI, url.PathEscape(t.AccountSID))
}

func (t *TwilioProvider) Send(ctx context.Context, n *Notice) error {
	body := n.Summary()
	if r := []rune(body); len(r) > maxSMSLength {
		body = string(r[:maxSMSLength-1]) + "…"
	}
	form := url.Values{
		"To":   {t.ToNumber},
		"From": {t.FromNumber},
		"Body": {body},
	}
	return postForm(ctx, "twilio", t.endpoint(), form, func(req *http.Request) {
		req.SetBasicAuth(t.AccountSID, t.AuthToken)
	})
}
