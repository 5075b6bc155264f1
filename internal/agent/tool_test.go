package agent

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	tool := &fakeTool{spec: ToolSpec{Name: "current_time"}}
	reg.Register(tool)

	got, ok := reg.Get("current_time")
	if !ok {
		t.Fatalf("Get() did not find registered tool")
	}
	if got != Tool(tool) {
		t.Fatalf("Get() returned a different tool")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Fatalf("Get() found an unregistered tool")
	}
}

func TestRegistrySpecsKeepRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	names := []string{"web_fetch", "current_time", "web_search"}
	for _, name := range names {
		reg.Register(&fakeTool{spec: ToolSpec{Name: name}})
	}

	specs := reg.Specs()
	if len(specs) != len(names) {
		t.Fatalf("Specs() len = %d, want %d", len(specs), len(names))
	}
	for i, name := range names {
		if specs[i].Name != name {
			t.Fatalf("specs[%d] = %q, want %q", i, specs[i].Name, name)
		}
	}
}

func TestRegistryReplaceKeepsCount(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{spec: ToolSpec{Name: "current_time"}})
	reg.Register(&fakeTool{spec: ToolSpec{Name: "current_time", Description: "newer"}})

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	tool, _ := reg.Get("current_time")
	if tool.Spec().Description != "newer" {
		t.Fatalf("expected replacement to win")
	}
}

func TestOutcomeResponseShape(t *testing.T) {
	out := Outcome{OK: true, Message: "payload"}
	resp := out.Response()
	if resp["result"] != true {
		t.Fatalf("result = %v, want true", resp["result"])
	}
	if resp["message"] != "payload" {
		t.Fatalf("message = %v", resp["message"])
	}
}
