// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConnectionsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connections.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write connections file: %v", err)
	}
	return path
}

func TestLoadConnectionSpecs(t *testing.T) {
	path := writeConnectionsFile(t, `
connections:
  - name: plant-a
    endpoint_url: opc.tcp://plant-a:4840/ua
    security_policy: Basic256Sha256
    security_mode: SignAndEncrypt
    username: operator
    password: secret
    session_timeout: 30m
    request_timeout: 5s
    auto_reconnect: true
  - name: plant-b
    endpoint_url: opc.tcp://plant-b:4840
`)

	specs, err := LoadConnectionSpecs(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}

	a := specs[0]
	if a.Name != "plant-a" || a.EndpointURL != "opc.tcp://plant-a:4840/ua" {
		t.Fatalf("unexpected first spec: %+v", a)
	}
	if a.SessionTimeout != 30*time.Minute || a.RequestTimeout != 5*time.Second {
		t.Fatalf("timeouts not decoded: %+v", a)
	}

	// defaults applied to the sparse entry
	b := specs[1]
	if b.SessionTimeout != time.Hour || b.RequestTimeout != 10*time.Second {
		t.Fatalf("defaults not applied: %+v", b)
	}
}

func TestLoadConnectionSpecsExpandsEnv(t *testing.T) {
	t.Setenv("PLANT_HOST", "10.0.0.7")

	path := writeConnectionsFile(t, `
connections:
  - name: plant
    endpoint_url: opc.tcp://${PLANT_HOST}:${PLANT_PORT:4840}
`)

	specs, err := LoadConnectionSpecs(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, want := specs[0].EndpointURL, "opc.tcp://10.0.0.7:4840"; got != want {
		t.Fatalf("got endpoint %q want %q", got, want)
	}
}

func TestLoadConnectionSpecsRejectsIncompleteEntries(t *testing.T) {
	missingName := writeConnectionsFile(t, `
connections:
  - endpoint_url: opc.tcp://x:4840
`)
	if _, err := LoadConnectionSpecs(missingName); err == nil {
		t.Fatal("expected error for entry without a name")
	}

	missingURL := writeConnectionsFile(t, `
connections:
  - name: x
`)
	if _, err := LoadConnectionSpecs(missingURL); err == nil {
		t.Fatal("expected error for entry without an endpoint_url")
	}
}
