package middleware

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	tenantIDRegex  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)
	ticketIDRegex  = regexp.MustCompile(`^[0-9]{1,20}$`)
	projectKeyRgx  = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)
)

// ValidateTenantID checks a tenant identifier (also used as the helpdesk
// subdomain, so it follows DNS-label rules).
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant id is required")
	}
	if !tenantIDRegex.MatchString(tenant) {
		return fmt.Errorf("invalid tenant id: %s", tenant)
	}
	return nil
}

// ValidateTicketID checks a helpdesk ticket identifier.
func ValidateTicketID(id string) error {
	if id == "" {
		return fmt.Errorf("ticket id is required")
	}
	if !ticketIDRegex.MatchString(id) {
		return fmt.Errorf("invalid ticket id: %s", id)
	}
	return nil
}

// ValidateProjectKey checks a tracker project key.
func ValidateProjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("project key is required")
	}
	if !projectKeyRgx.MatchString(key) {
		return fmt.Errorf("invalid project key: %s", key)
	}
	return nil
}

// ValidateWebhookURL only accepts HTTPS webhook endpoints.
func ValidateWebhookURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("webhook url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("webhook url must use https")
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url missing host")
	}
	return nil
}
