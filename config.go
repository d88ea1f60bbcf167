// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"os"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nexus-edge/opcua-client/ua"
)

// ConnectionSpec declaratively describes one named Session for
// SessionManager.LoadConnections to create.
type ConnectionSpec struct {
	Name           string
	EndpointURL    string
	SecurityPolicy string
	SecurityMode   string
	Username       string
	Password       string
	SessionTimeout time.Duration
	RequestTimeout time.Duration
	AutoReconnect  bool
}

// UnmarshalYAML decodes durations from Go duration strings ("30s",
// "10m"), which yaml.v3 does not do for time.Duration on its own.
func (c *ConnectionSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name           string `yaml:"name"`
		EndpointURL    string `yaml:"endpoint_url"`
		SecurityPolicy string `yaml:"security_policy"`
		SecurityMode   string `yaml:"security_mode"`
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		SessionTimeout string `yaml:"session_timeout"`
		RequestTimeout string `yaml:"request_timeout"`
		AutoReconnect  bool   `yaml:"auto_reconnect"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Name = raw.Name
	c.EndpointURL = raw.EndpointURL
	c.SecurityPolicy = raw.SecurityPolicy
	c.SecurityMode = raw.SecurityMode
	c.Username = raw.Username
	c.Password = raw.Password
	c.AutoReconnect = raw.AutoReconnect
	if raw.SessionTimeout != "" {
		d, err := time.ParseDuration(raw.SessionTimeout)
		if err != nil {
			return errors.Wrapf(err, "connection %q: session_timeout", raw.Name)
		}
		c.SessionTimeout = d
	}
	if raw.RequestTimeout != "" {
		d, err := time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return errors.Wrapf(err, "connection %q: request_timeout", raw.Name)
		}
		c.RequestTimeout = d
	}
	return nil
}

type connectionsFile struct {
	Connections []ConnectionSpec `yaml:"connections"`
}

var envBraceRE = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:[^}]*)?\}`)

// expandEnvBraces replaces ${VAR} and ${VAR:default} with the
// environment value of VAR, falling back to default when VAR is unset.
func expandEnvBraces(s string) string {
	return envBraceRE.ReplaceAllStringFunc(s, func(match string) string {
		groups := envBraceRE.FindStringSubmatch(match)
		name, def := groups[1], ""
		if len(groups[2]) > 1 {
			def = groups[2][1:]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}

// LoadConnectionSpecs reads a YAML file listing named endpoint
// connections, expanding ${VAR}/${VAR:default} references against the
// process environment before decoding.
func LoadConnectionSpecs(path string) ([]ConnectionSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read connections file %q", path)
	}

	expanded := expandEnvBraces(string(raw))

	var doc connectionsFile
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, errors.Wrapf(err, "parse connections file %q", path)
	}

	for i := range doc.Connections {
		c := &doc.Connections[i]
		if c.Name == "" {
			return nil, errors.Errorf("connections file %q: entry %d missing name", path, i)
		}
		if c.EndpointURL == "" {
			return nil, errors.Errorf("connections file %q: connection %q missing endpoint_url", path, c.Name)
		}
		if c.SessionTimeout == 0 {
			c.SessionTimeout = time.Hour
		}
		if c.RequestTimeout == 0 {
			c.RequestTimeout = 10 * time.Second
		}
	}
	return doc.Connections, nil
}

// Options translates the connection entry into Session Options.
func (c ConnectionSpec) Options() []Option {
	opts := []Option{
		RequestTimeout(c.RequestTimeout),
		SessionTimeout(c.SessionTimeout),
		AutoReconnect(c.AutoReconnect),
	}
	if c.SecurityPolicy != "" {
		opts = append(opts, SecurityPolicy(c.SecurityPolicy))
	}
	if mode, ok := securityModeByName[c.SecurityMode]; ok {
		opts = append(opts, SecurityMode(mode))
	}
	if c.Username != "" {
		opts = append(opts, AuthUsername(c.Username, c.Password))
	}
	return opts
}

var securityModeByName = map[string]ua.MessageSecurityMode{
	"None":           ua.MessageSecurityModeNone,
	"Sign":           ua.MessageSecurityModeSign,
	"SignAndEncrypt": ua.MessageSecurityModeSignAndEncrypt,
}
