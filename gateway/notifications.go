/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
)

// Surfaces a notification may target
const (
	SurfaceCLI       = "cli"
	SurfaceExtension = "extension"
	SurfaceWeb       = "web"
)

// NotificationAction is an optional call to action
type NotificationAction struct {
	ActionText string `json:"actionText"`
	ActionURL  string `json:"actionURL"`
}

// Notification is a message published by the gateway
type Notification struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	Action  *NotificationAction `json:"action,omitempty"`
	ShowIn  []string            `json:"showIn,omitempty"`
}

// IsCLIEligible reports whether n may be shown in the CLI. A notification
// without ShowIn is shown everywhere.
func (n Notification) IsCLIEligible() bool {
	if n.ShowIn == nil {
		return true
	}
	return slices.Contains(n.ShowIn, SurfaceCLI) || slices.Contains(n.ShowIn, SurfaceExtension)
}

// validate checks the fields every notification must carry
func (n Notification) validate() error {
	if n.ID == "" || n.Title == "" || n.Message == "" {
		return fmt.Errorf("notification %q is missing id, title or message", n.ID)
	}
	if n.Action != nil && (n.Action.ActionText == "" || n.Action.ActionURL == "") {
		return fmt.Errorf("notification %q has an incomplete action", n.ID)
	}
	return nil
}

// FilterForCLI returns the notifications eligible for CLI display
func FilterForCLI(notifications []Notification) []Notification {
	eligible := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		if n.IsCLIEligible() {
			eligible = append(eligible, n)
		}
	}
	return eligible
}

type notificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

// NotificationsClient fetches notifications from the gateway
type NotificationsClient struct {
	apiClient
	config *Config
}

// NewNotificationsClient creates a notifications client
func NewNotificationsClient(config *Config, opts ...ClientOption) *NotificationsClient {
	return &NotificationsClient{
		apiClient: newAPIClient(config, opts),
		config:    config,
	}
}

// Fetch returns the notifications visible to token. Any failure, including
// a timeout or an invalid document, yields an empty list.
func (c *NotificationsClient) Fetch(ctx context.Context, token string) Advisory[[]Notification] {
	if token == "" {
		return Advisory[[]Notification]{Value: []Notification{}, Status: AdvisoryNotAttempted}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.NotificationsTimeout)
	defer cancel()

	notificationsURL := c.config.NotificationsURL(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, notificationsURL, nil)
	if err != nil {
		return c.suppress(err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req, token)

	status, body, err := doRequest(c.httpClient, req, "notifications", c.metrics)
	if err != nil {
		return c.suppress(err)
	}
	if status < 200 || status >= 300 {
		return c.suppress(NewAPIError(notificationsURL, status, "", "notifications request failed"))
	}

	var doc notificationsResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return c.suppress(fmt.Errorf("invalid notifications document: %w", err))
	}
	for _, n := range doc.Notifications {
		if err := n.validate(); err != nil {
			return c.suppress(err)
		}
	}
	if doc.Notifications == nil {
		doc.Notifications = []Notification{}
	}

	if c.logger != nil {
		c.logger.Debugf("Fetched %d gateway notifications", len(doc.Notifications))
	}

	return Fetched(doc.Notifications)
}

// FetchForCLI fetches notifications and keeps those eligible for the CLI
func (c *NotificationsClient) FetchForCLI(ctx context.Context, token string) Advisory[[]Notification] {
	result := c.Fetch(ctx, token)
	result.Value = FilterForCLI(result.Value)
	return result
}

func (c *NotificationsClient) suppress(err error) Advisory[[]Notification] {
	if c.logger != nil {
		c.logger.Debugf("Notifications lookup suppressed: %v", err)
	}
	return Advisory[[]Notification]{Value: []Notification{}, Status: AdvisorySuppressed, Err: err}
}
