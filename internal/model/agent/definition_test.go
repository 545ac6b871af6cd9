package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSeedContainsHostedAgents(t *testing.T) {
	set := Seed()

	echo, ok := set.FindByName(EchoAgent)
	if !ok {
		t.Fatal("echo agent definition missing")
	}
	if echo.Description == "" {
		t.Fatal("echo agent should have a description")
	}

	sched, ok := set.FindByName(SchedulerAgent)
	if !ok {
		t.Fatal("scheduler agent definition missing")
	}
	if !strings.Contains(sched.Instructions, "Get_all_documents_V3") {
		t.Fatalf("scheduler instructions missing tool call: %q", sched.Instructions)
	}

	repair, ok := set.FindByName(PlannerAgent)
	if !ok {
		t.Fatal("planner agent definition missing")
	}
	if !strings.Contains(repair.Instructions, "workOrderNumber") {
		t.Fatalf("planner instructions missing work order schema: %q", repair.Instructions)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	for name, body := range map[string]string{
		"missing name": "agents:\n  - description: x\n",
		"duplicate":    "agents:\n  - name: a\n  - name: a\n",
		"not yaml":     "agents: [",
	} {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFileOverlaysSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	body := "agents:\n  - name: GoldEchoAgent\n    description: Canary B\n  - name: Extra\n    description: extra agent\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	set, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile err: %v", err)
	}

	echo, _ := set.FindByName(EchoAgent)
	if echo.Description != "Canary B" {
		t.Fatalf("override not applied: %q", echo.Description)
	}
	sched, _ := set.FindByName(SchedulerAgent)
	if sched.Instructions == "" {
		t.Fatal("untouched definitions should keep their instructions")
	}
	if len(set.List()) != 4 {
		t.Fatalf("expected 4 definitions, got %d", len(set.List()))
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	set, err := LoadFile("")
	if err != nil || len(set.List()) != 3 {
		t.Fatalf("empty path should return seed, got %v / %v", set, err)
	}
}
