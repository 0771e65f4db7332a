package domain

import (
	"context"
	"time"
)

// Event categories
const (
	EventCategoryAuthentication = "Authentication"
	EventCategoryToken          = "Token"
	EventCategoryGrants         = "Grants"
	EventCategoryDeviceFlow     = "Device"
	EventCategoryError          = "Error"
)

// Event types
const (
	EventTypeSuccess     = "Success"
	EventTypeFailure     = "Failure"
	EventTypeInformation = "Information"
	EventTypeError       = "Error"
)

// Event ids
const (
	EventIDTokenIssuedSuccess                = 2000
	EventIDTokenIssuedFailure                = 2001
	EventIDTokenRevokedSuccess               = 2003
	EventIDTokenIntrospectionSuccess         = 2004
	EventIDTokenIntrospectionFailure         = 2005
	EventIDClientAuthenticationSuccess       = 1010
	EventIDClientAuthenticationFailure       = 1011
	EventIDApiAuthenticationSuccess          = 1020
	EventIDApiAuthenticationFailure          = 1021
	EventIDUserLoginSuccess                  = 1000
	EventIDUserLoginFailure                  = 1001
	EventIDUserLogoutSuccess                 = 1002
	EventIDConsentGranted                    = 4000
	EventIDConsentDenied                     = 4001
	EventIDDeviceAuthorizationSuccess        = 3000
	EventIDDeviceAuthorizationFailure        = 3001
	EventIDUnhandledException                = 3010
	EventIDInvalidClientConfiguration        = 3020
	EventIDBackChannelLogoutNotificationFail = 3030
)

// Event is a structured audit record raised by the protocol layer.
type Event struct {
	ID         string            `json:"id"`
	EventID    int               `json:"event_id"`
	Category   string            `json:"category"`
	Name       string            `json:"name"`
	EventType  string            `json:"event_type"`
	Message    string            `json:"message,omitempty"`
	ClientID   string            `json:"client_id,omitempty"`
	SubjectID  string            `json:"subject_id,omitempty"`
	Endpoint   string            `json:"endpoint,omitempty"`
	Error      string            `json:"error,omitempty"`
	Scopes     []string          `json:"scopes,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	TimeStamp  time.Time         `json:"timestamp"`
	ActivityID string            `json:"activity_id,omitempty"`
	RemoteIP   string            `json:"remote_ip,omitempty"`
}

// EventSink receives raised events.
type EventSink interface {
	Persist(ctx context.Context, event *Event) error
}
