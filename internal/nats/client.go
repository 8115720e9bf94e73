package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"tenancy-service/internal/models"
)

// Subjects published by the tenancy service
const (
	SubjectTenantCreated       = "tenant.created"
	SubjectTenantTierChanged   = "tenant.tier_changed"
	SubjectTenantStatusChanged = "tenant.status_changed"
	SubjectTenantDeleted       = "tenant.deleted"
)

// TenantEvent is the payload for all tenant lifecycle subjects
type TenantEvent struct {
	TenantID   string    `json:"tenant_id"`
	Slug       string    `json:"slug"`
	SchemaName string    `json:"schema_name,omitempty"`
	TierName   string    `json:"tier_name,omitempty"`
	Status     string    `json:"status,omitempty"`
	PrevStatus string    `json:"prev_status,omitempty"`
	PrevTier   string    `json:"prev_tier,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Client wraps the NATS connection with typed publish helpers.
// A nil *Client is safe to use; publishes become no-ops so the service
// can run without a broker in development.
type Client struct {
	conn *nats.Conn
}

// NewClient connects to NATS
func NewClient(url string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close drains and closes the connection
func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.conn.Close()
}

func (c *Client) publish(subject string, event TenantEvent) {
	if c == nil || c.conn == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[NATS] Failed to marshal %s event: %v", subject, err)
		return
	}
	if err := c.conn.Publish(subject, data); err != nil {
		log.Printf("[NATS] Failed to publish %s event: %v", subject, err)
	}
}

// PublishTenantCreated announces a newly provisioned tenant
func (c *Client) PublishTenantCreated(tenant *models.Tenant) {
	c.publish(SubjectTenantCreated, TenantEvent{
		TenantID:   tenant.ID.String(),
		Slug:       tenant.Slug,
		SchemaName: tenant.SchemaName,
		TierName:   tenant.TierName,
		Status:     tenant.Status,
	})
}

// PublishTierChanged announces a subscription tier change
func (c *Client) PublishTierChanged(tenant *models.Tenant, prevTier string) {
	c.publish(SubjectTenantTierChanged, TenantEvent{
		TenantID: tenant.ID.String(),
		Slug:     tenant.Slug,
		TierName: tenant.TierName,
		PrevTier: prevTier,
		Status:   tenant.Status,
	})
}

// PublishStatusChanged announces a billing state transition
func (c *Client) PublishStatusChanged(tenant *models.Tenant, prevStatus string) {
	c.publish(SubjectTenantStatusChanged, TenantEvent{
		TenantID:   tenant.ID.String(),
		Slug:       tenant.Slug,
		Status:     tenant.Status,
		PrevStatus: prevStatus,
		TierName:   tenant.TierName,
	})
}

// PublishTenantDeleted announces an offboarded tenant
func (c *Client) PublishTenantDeleted(tenantID, slug, schemaName string) {
	c.publish(SubjectTenantDeleted, TenantEvent{
		TenantID:   tenantID,
		Slug:       slug,
		SchemaName: schemaName,
	})
}
