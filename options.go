// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"time"

	"github.com/nexus-edge/opcua-client/transport"
	"github.com/nexus-edge/opcua-client/ua"
)

// Config holds the secure-channel-level settings a Session dials with.
type Config struct {
	Certificate       []byte
	PrivateKey        []byte
	SecurityPolicyURI string
	SecurityMode      ua.MessageSecurityMode
	RequestTimeout    time.Duration
	AutoReconnect     bool
	ReconnectInterval time.Duration
	DispatchPoolSize  int
	WaitForRecovery   bool
}

// SessionConfig holds the session-level settings used by
// CreateSession/ActivateSession.
type SessionConfig struct {
	SessionName        string
	SessionTimeout     time.Duration
	ClientDescription  ua.ApplicationDescription
	LocaleIDs          []string
	UserIdentityToken  interface{}
	AuthPolicyURI      string
	AuthPassword       string
	UserTokenSignature *ua.SignatureData
}

// Option configures a Config and SessionConfig together.
type Option func(*Config, *SessionConfig)

// ApplyConfig builds default Config/SessionConfig values and applies
// opts in order.
func ApplyConfig(opts ...Option) (*Config, *SessionConfig) {
	cfg := &Config{
		SecurityPolicyURI: ua.SecurityPolicyURINone,
		SecurityMode:      ua.MessageSecurityModeNone,
		RequestTimeout:    10 * time.Second,
		AutoReconnect:     true,
		ReconnectInterval: 2 * time.Second,
		DispatchPoolSize:  DefaultDispatchPoolSize,
	}
	sessionCfg := &SessionConfig{
		SessionTimeout: 3600000 * time.Millisecond,
		ClientDescription: ua.ApplicationDescription{
			ApplicationURI: "urn:nexus-edge:opcua-client",
			ProductURI:     "urn:nexus-edge:opcua-client",
			ApplicationName: ua.LocalizedText{
				Locale: "en",
				Text:   "nexus-edge opcua client",
			},
		},
		LocaleIDs: []string{"en-US"},
	}
	for _, opt := range opts {
		opt(cfg, sessionCfg)
	}
	if sessionCfg.UserIdentityToken == nil {
		AuthAnonymous()(cfg, sessionCfg)
	}
	return cfg, sessionCfg
}

// SecurityMode sets the secure channel's security mode.
func SecurityMode(mode ua.MessageSecurityMode) Option {
	return func(c *Config, _ *SessionConfig) { c.SecurityMode = mode }
}

// SecurityPolicy sets the secure channel's security policy, accepting
// either a short name ("Basic256Sha256") or a full URI.
func SecurityPolicy(policy string) Option {
	return func(c *Config, _ *SessionConfig) { c.SecurityPolicyURI = ua.FormatSecurityPolicyURI(policy) }
}

// Certificate sets the client certificate/key pair used for Sign and
// SignAndEncrypt channels.
func Certificate(cert, key []byte) Option {
	return func(c *Config, _ *SessionConfig) {
		c.Certificate = cert
		c.PrivateKey = key
	}
}

// AutoReconnect toggles whether Recovery.monitor attempts Recovery on
// channel/session loss. Disabled by GetEndpoints' short-lived channel.
func AutoReconnect(enabled bool) Option {
	return func(c *Config, _ *SessionConfig) { c.AutoReconnect = enabled }
}

// ReconnectInterval sets Config.ReconnectInterval. Recovery does not
// read it: the delay between Dial attempts while recreating a secure
// channel comes from reopenChannel's own backoff (500ms, growing to 10s).
func ReconnectInterval(d time.Duration) Option {
	return func(c *Config, _ *SessionConfig) { c.ReconnectInterval = d }
}

// RequestTimeout sets the default per-request deadline (10s when unset).
func RequestTimeout(d time.Duration) Option {
	return func(c *Config, _ *SessionConfig) { c.RequestTimeout = d }
}

// DispatchPoolSize sets how many worker goroutines the Session's
// notification dispatch pool runs. Defaults to DefaultDispatchPoolSize.
func DispatchPoolSize(n int) Option {
	return func(c *Config, _ *SessionConfig) { c.DispatchPoolSize = n }
}

// WaitForRecovery makes service calls issued while Recovery is in
// progress block until the session is activated again (or the request
// deadline expires) instead of failing fast with ErrSessionNotReady.
func WaitForRecovery(enabled bool) Option {
	return func(c *Config, _ *SessionConfig) { c.WaitForRecovery = enabled }
}

// SessionTimeout sets the RequestedSessionTimeout sent to the server.
func SessionTimeout(d time.Duration) Option {
	return func(_ *Config, s *SessionConfig) { s.SessionTimeout = d }
}

// SessionName overrides the generated session name.
func SessionName(name string) Option {
	return func(_ *Config, s *SessionConfig) { s.SessionName = name }
}

// AuthAnonymous configures anonymous authentication (the default).
func AuthAnonymous() Option {
	return func(_ *Config, s *SessionConfig) {
		s.UserIdentityToken = &ua.AnonymousIdentityToken{PolicyID: defaultAnonymousPolicyID}
	}
}

// AuthUsername configures username/password authentication.
func AuthUsername(user, password string) Option {
	return func(_ *Config, s *SessionConfig) {
		s.UserIdentityToken = &ua.UserNameIdentityToken{UserName: user}
		s.AuthPassword = password
	}
}

// AuthCertificate configures X.509 certificate authentication.
func AuthCertificate(cert []byte) Option {
	return func(_ *Config, s *SessionConfig) {
		s.UserIdentityToken = &ua.X509IdentityToken{CertificateData: cert}
	}
}

// AuthPolicyID overrides the PolicyID advertised on the configured
// identity token, used when the server's endpoint description carries
// its own policy id for the chosen token type.
func AuthPolicyID(id string) Option {
	return func(_ *Config, s *SessionConfig) {
		switch tok := s.UserIdentityToken.(type) {
		case *ua.AnonymousIdentityToken:
			tok.PolicyID = id
		case *ua.UserNameIdentityToken:
			tok.PolicyID = id
		case *ua.X509IdentityToken:
			tok.PolicyID = id
		case *ua.IssuedIdentityToken:
			tok.PolicyID = id
		}
	}
}

func (c *Config) securityOptions() transport.SecurityOptions {
	return transport.SecurityOptions{
		PolicyURI:   c.SecurityPolicyURI,
		Mode:        c.SecurityMode,
		Certificate: c.Certificate,
		PrivateKey:  c.PrivateKey,
	}
}
