/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PivotLLM/GatewayAuth/db"
	"github.com/PivotLLM/GatewayAuth/global"
)

// Tool actions exposed under the provider name
const (
	ActionWhoAmI        = "whoami"
	ActionNotifications = "notifications"
	ActionStatus        = "status"
)

const statusHistoryLimit = 10

// Service reports on the stored credential and the gateway. It backs the
// MCP tools and the CLI commands.
type Service struct {
	provider      *Provider
	store         *DatabaseAuthStore
	identity      *Identity
	notifications *NotificationsClient
	metrics       *MetricsCollector
	database      db.Database
	logger        global.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceNotifications sets the notifications client
func WithServiceNotifications(client *NotificationsClient) ServiceOption {
	return func(s *Service) {
		s.notifications = client
	}
}

// WithServiceMetrics sets the metrics collector reported by Status
func WithServiceMetrics(metrics *MetricsCollector) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithServiceDatabase sets the database whose statistics Status reports
func WithServiceDatabase(database db.Database) ServiceOption {
	return func(s *Service) {
		s.database = database
	}
}

// WithServiceLogger sets the logger
func WithServiceLogger(logger global.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service over a provider and its credential store
func NewService(provider *Provider, store *DatabaseAuthStore, identity *Identity, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		store:    store,
		identity: identity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WhoAmIReport describes the current credential and identity
type WhoAmIReport struct {
	Authenticated  bool             `json:"authenticated"`
	Type           AuthKind         `json:"type,omitempty"`
	Token          string           `json:"token,omitempty"`
	BaseURL        string           `json:"base_url,omitempty"`
	OrganizationID string           `json:"organization_id,omitempty"`
	Expires        string           `json:"expires,omitempty"`
	Expired        bool             `json:"expired"`
	Details        *TokenDetails    `json:"details,omitempty"`
	Identity       IdentitySnapshot `json:"identity"`
}

// StatusReport summarises metrics and the credential store
type StatusReport struct {
	Metrics *MetricsSnapshot `json:"metrics,omitempty"`
	Store   *db.AuthStats    `json:"store,omitempty"`
	History []db.AuthEvent   `json:"history,omitempty"`
}

// NotificationsReport is the result of a notifications lookup
type NotificationsReport struct {
	Status        AdvisoryStatus `json:"status"`
	Notifications []Notification `json:"notifications"`
	Error         string         `json:"error,omitempty"`
}

// load reads the stored record and resolves credentials through the provider
func (s *Service) load(ctx context.Context) (*StoredAuth, map[string]string) {
	var auth *StoredAuth
	loader := func(ctx context.Context) (*StoredAuth, error) {
		if s.store == nil {
			return nil, nil
		}
		stored, err := s.store.Get(ctx)
		auth = stored
		return stored, err
	}
	credentials := s.provider.Load(ctx, loader)
	return auth, credentials
}

// WhoAmI resolves the stored credential and refreshes the identity
func (s *Service) WhoAmI(ctx context.Context) WhoAmIReport {
	auth, credentials := s.load(ctx)

	report := WhoAmIReport{}
	token := credentials[KeyGatewayToken]
	if token != "" {
		report.Authenticated = true
		report.Type = auth.Type
		report.Token = SanitizeTokenForLogging(token)
		report.BaseURL = ExtractBaseURL(s.provider.flow.config.BaseURL, token)
		report.OrganizationID = credentials[KeyOrganizationID]
		report.Expires = FormatExpiryForLogging(auth.ExpiresAt())
		if expiresAt := auth.ExpiresAt(); expiresAt != nil {
			report.Expired = time.Now().After(*expiresAt)
		}
		if details := Inspect(token); details.IsJWT {
			report.Details = &details
		}
	}
	if s.identity != nil {
		report.Identity = s.identity.Snapshot()
	}

	return report
}

// Notifications fetches gateway notifications for the stored credential.
// Only CLI notifications are returned unless all is set.
func (s *Service) Notifications(ctx context.Context, all bool) NotificationsReport {
	_, credentials := s.load(ctx)

	var result Advisory[[]Notification]
	switch {
	case s.notifications == nil:
		result = NotAttempted[[]Notification]()
	case all:
		result = s.notifications.Fetch(ctx, credentials[KeyGatewayToken])
	default:
		result = s.notifications.FetchForCLI(ctx, credentials[KeyGatewayToken])
	}

	report := NotificationsReport{
		Status:        result.Status,
		Notifications: result.Value,
	}
	if report.Notifications == nil {
		report.Notifications = []Notification{}
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}
	return report
}

// Status returns metrics, store statistics and recent credential history
func (s *Service) Status() (StatusReport, error) {
	report := StatusReport{}

	if s.metrics != nil {
		snapshot := s.metrics.Snapshot()
		report.Metrics = &snapshot
	}

	if s.database != nil {
		stats, err := s.database.GetStats()
		if err != nil {
			return report, fmt.Errorf("failed to read store statistics: %w", err)
		}
		report.Store = stats
	}

	if s.store != nil {
		history, err := s.store.History(statusHistoryLimit)
		if err != nil {
			return report, fmt.Errorf("failed to read credential history: %w", err)
		}
		report.History = history
	}

	return report, nil
}

// RegisterTools implements global.ToolProvider
func (s *Service) RegisterTools() []global.ToolDefinition {
	return []global.ToolDefinition{
		{
			Name:        global.BuildToolName(ProviderName, ActionWhoAmI),
			Description: "Show the gateway credential in use and the identity it resolves to",
			Hints:       global.ReadOnlyHints(true),
			Handler: func(ctx context.Context, _ map[string]any) (string, error) {
				return toJSON(s.WhoAmI(ctx))
			},
		},
		{
			Name:        global.BuildToolName(ProviderName, ActionNotifications),
			Description: "List notifications published by the gateway",
			Parameters: []global.Parameter{
				{
					Name:        "all",
					Description: "Include notifications not intended for the CLI",
					Type:        "boolean",
					Default:     false,
				},
			},
			Hints: global.ReadOnlyHints(true),
			Handler: func(ctx context.Context, options map[string]any) (string, error) {
				all, _ := options["all"].(bool)
				return toJSON(s.Notifications(ctx, all))
			},
		},
		{
			Name:        global.BuildToolName(ProviderName, ActionStatus),
			Description: "Report request metrics, credential store statistics and recent credential history",
			Hints:       global.ReadOnlyHints(false),
			Handler: func(_ context.Context, _ map[string]any) (string, error) {
				report, err := s.Status()
				if err != nil {
					return "", err
				}
				return toJSON(report)
			},
		},
	}
}

func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}
