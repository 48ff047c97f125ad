// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventLoginSuccess is logged when credentials are accepted.
	EventLoginSuccess SecurityEventType = "login_success"
	// EventLoginFailure is logged when credentials are rejected or the account is banned.
	EventLoginFailure SecurityEventType = "login_failure"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details,omitempty"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor under the
// "security_audit" logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogLogin records a login attempt. Failures are logged at WARN with the
// rejection reason; the password never reaches the log.
func (a *SecurityAuditor) LogLogin(email, userID, clientIP string, loginErr error) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventLoginSuccess,
		UserID:    userID,
		Email:     email,
		ClientIP:  clientIP,
		Severity:  "info",
	}
	if loginErr != nil {
		event.EventType = EventLoginFailure
		event.Severity = "warning"
		event.Details = map[string]string{"reason": loginErr.Error()}
	}

	fields := a.fields(event)
	if loginErr != nil {
		a.logger.Warn("Login failed", fields...)
		return
	}
	a.logger.Info("Login succeeded", fields...)
}

func (a *SecurityAuditor) fields(event SecurityEvent) []zap.Field {
	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)
	return []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("user_id", event.UserID),
		zap.String("email", event.Email),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	}
}
