package events

import (
	"strings"

	"github.com/manorfm/identityserver/internal/domain"
)

func newEvent(category, name, eventType string, id int) *domain.Event {
	return &domain.Event{Category: category, Name: name, EventType: eventType, EventID: id}
}

// TokenIssuedSuccess is raised for every token response
func TokenIssuedSuccess(clientID, subjectID, grantType, endpoint string, scopes []string) *domain.Event {
	e := newEvent(domain.EventCategoryToken, "Token Issued Success", domain.EventTypeSuccess, domain.EventIDTokenIssuedSuccess)
	e.ClientID = clientID
	e.SubjectID = subjectID
	e.Endpoint = endpoint
	e.Scopes = scopes
	e.Details = map[string]string{"grant_type": grantType}
	return e
}

// TokenIssuedFailure is raised when a token or authorize request is rejected
func TokenIssuedFailure(clientID, endpoint, grantType, errorCode, description string) *domain.Event {
	e := newEvent(domain.EventCategoryToken, "Token Issued Failure", domain.EventTypeFailure, domain.EventIDTokenIssuedFailure)
	e.ClientID = clientID
	e.Endpoint = endpoint
	e.Error = errorCode
	e.Message = description
	if grantType != "" {
		e.Details = map[string]string{"grant_type": grantType}
	}
	return e
}

func TokenRevokedSuccess(clientID, tokenType string) *domain.Event {
	e := newEvent(domain.EventCategoryToken, "Token Revoked Success", domain.EventTypeSuccess, domain.EventIDTokenRevokedSuccess)
	e.ClientID = clientID
	e.Details = map[string]string{"token_type": tokenType}
	return e
}

func TokenIntrospectionSuccess(apiName string, active bool) *domain.Event {
	e := newEvent(domain.EventCategoryToken, "Token Introspection Success", domain.EventTypeSuccess, domain.EventIDTokenIntrospectionSuccess)
	e.Details = map[string]string{"api": apiName}
	if active {
		e.Details["token_status"] = "active"
	} else {
		e.Details["token_status"] = "inactive"
	}
	return e
}

func TokenIntrospectionFailure(apiName, description string) *domain.Event {
	e := newEvent(domain.EventCategoryToken, "Token Introspection Failure", domain.EventTypeFailure, domain.EventIDTokenIntrospectionFailure)
	e.Message = description
	e.Details = map[string]string{"api": apiName}
	return e
}

func ClientAuthenticationSuccess(clientID, authMethod string) *domain.Event {
	e := newEvent(domain.EventCategoryAuthentication, "Client Authentication Success", domain.EventTypeSuccess, domain.EventIDClientAuthenticationSuccess)
	e.ClientID = clientID
	e.Details = map[string]string{"auth_method": authMethod}
	return e
}

func ClientAuthenticationFailure(clientID, description string) *domain.Event {
	e := newEvent(domain.EventCategoryAuthentication, "Client Authentication Failure", domain.EventTypeFailure, domain.EventIDClientAuthenticationFailure)
	e.ClientID = clientID
	e.Message = description
	return e
}

func ApiAuthenticationSuccess(apiName, authMethod string) *domain.Event {
	e := newEvent(domain.EventCategoryAuthentication, "API Authentication Success", domain.EventTypeSuccess, domain.EventIDApiAuthenticationSuccess)
	e.Details = map[string]string{"api": apiName, "auth_method": authMethod}
	return e
}

func ApiAuthenticationFailure(apiName, description string) *domain.Event {
	e := newEvent(domain.EventCategoryAuthentication, "API Authentication Failure", domain.EventTypeFailure, domain.EventIDApiAuthenticationFailure)
	e.Message = description
	e.Details = map[string]string{"api": apiName}
	return e
}

func UserLoginSuccess(username, subjectID, clientID string) *domain.Event {
	e := newEvent(domain.EventCategoryAuthentication, "User Login Success", domain.EventTypeSuccess, domain.EventIDUserLoginSuccess)
	e.SubjectID = subjectID
	e.ClientID = clientID
	e.Details = map[string]string{"username": username}
	return e
}

func UserLoginFailure(username, description, clientID string) *domain.Event {
	e := newEvent(domain.EventCategoryAuthentication, "User Login Failure", domain.EventTypeFailure, domain.EventIDUserLoginFailure)
	e.ClientID = clientID
	e.Message = description
	e.Details = map[string]string{"username": username}
	return e
}

func UserLogoutSuccess(subjectID string) *domain.Event {
	e := newEvent(domain.EventCategoryAuthentication, "User Logout Success", domain.EventTypeSuccess, domain.EventIDUserLogoutSuccess)
	e.SubjectID = subjectID
	return e
}

// ConsentGranted records which of the requested scopes the user accepted
func ConsentGranted(subjectID, clientID string, requested, granted []string, remember bool) *domain.Event {
	e := newEvent(domain.EventCategoryGrants, "Consent granted", domain.EventTypeInformation, domain.EventIDConsentGranted)
	e.SubjectID = subjectID
	e.ClientID = clientID
	e.Scopes = granted
	e.Details = map[string]string{"requested": strings.Join(requested, " ")}
	if remember {
		e.Details["remember"] = "true"
	}
	return e
}

func ConsentDenied(subjectID, clientID string, requested []string) *domain.Event {
	e := newEvent(domain.EventCategoryGrants, "Consent denied", domain.EventTypeInformation, domain.EventIDConsentDenied)
	e.SubjectID = subjectID
	e.ClientID = clientID
	e.Scopes = requested
	return e
}

func DeviceAuthorizationSuccess(clientID string, scopes []string) *domain.Event {
	e := newEvent(domain.EventCategoryDeviceFlow, "Device Authorization Success", domain.EventTypeSuccess, domain.EventIDDeviceAuthorizationSuccess)
	e.ClientID = clientID
	e.Scopes = scopes
	e.Endpoint = "DeviceAuthorization"
	return e
}

func DeviceAuthorizationFailure(clientID, errorCode, description string) *domain.Event {
	e := newEvent(domain.EventCategoryDeviceFlow, "Device Authorization Failure", domain.EventTypeFailure, domain.EventIDDeviceAuthorizationFailure)
	e.ClientID = clientID
	e.Error = errorCode
	e.Message = description
	e.Endpoint = "DeviceAuthorization"
	return e
}

// UnhandledException records an operational failure behind a 500
func UnhandledException(err error) *domain.Event {
	e := newEvent(domain.EventCategoryError, "Unhandled Exception", domain.EventTypeError, domain.EventIDUnhandledException)
	e.Message = err.Error()
	return e
}

func InvalidClientConfiguration(clientID, description string) *domain.Event {
	e := newEvent(domain.EventCategoryError, "Invalid Client Configuration", domain.EventTypeError, domain.EventIDInvalidClientConfiguration)
	e.ClientID = clientID
	e.Message = description
	return e
}

func BackChannelLogoutFailure(clientID, endpoint, description string) *domain.Event {
	e := newEvent(domain.EventCategoryError, "Back-Channel Logout Notification Failure", domain.EventTypeError, domain.EventIDBackChannelLogoutNotificationFail)
	e.ClientID = clientID
	e.Endpoint = endpoint
	e.Message = description
	return e
}
