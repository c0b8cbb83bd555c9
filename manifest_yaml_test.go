package orchd_test

import (
	"testing"

	"github.com/orchestrator-core/orchd"
)

func TestDecodeManifestYAML(t *testing.T) {
	data := []byte(`
agent_id: billing-assistant
version: "1.0"
name: Billing Assistant
description: Handles billing questions.
inputs_schema:
  type: object
  properties:
    locale:
      type: string
  required: [locale]
subscribed_events: ["invoice.created"]
emitted_events: ["billing.reply_sent"]
permissions:
  read_shared_context: true
  write_shared_context: false
tools: ["send_email"]
`)

	m, err := orchd.DecodeManifestYAML(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.AgentID != "billing-assistant" || m.Version != "1.0" {
		t.Fatalf("unexpected identity: %+v", m)
	}
	if m.Status != orchd.ManifestActive {
		t.Fatalf("status = %s, want active default", m.Status)
	}
	if !m.Permissions.ReadSharedContext || m.Permissions.WriteSharedContext {
		t.Fatalf("unexpected permissions: %+v", m.Permissions)
	}
	if len(m.Tools) != 1 || m.Tools[0] != "send_email" {
		t.Fatalf("unexpected tools: %v", m.Tools)
	}
}

func TestDecodeManifestYAML_ExplicitStatus(t *testing.T) {
	m, err := orchd.DecodeManifestYAML([]byte("agent_id: x\nversion: \"1\"\nstatus: deprecated\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Status != orchd.ManifestDeprecated {
		t.Fatalf("status = %s, want deprecated", m.Status)
	}
}
