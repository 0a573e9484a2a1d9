package models

import "testing"

func TestDocument_SetKeepsOrder(t *testing.T) {
	doc := NewDocument(KindWork,
		Field{Name: "uid", Value: "w1"},
		Field{Name: "status", Value: "UNAVAILABLE"},
	)

	doc.Set("status", "PENDING")
	doc.Set("cmdline", "ls")

	if len(doc.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(doc.Fields))
	}
	if doc.Fields[1].Name != "status" || doc.Fields[1].Value != "PENDING" {
		t.Errorf("expected status replaced in place, got %+v", doc.Fields[1])
	}
	if doc.Fields[2].Name != "cmdline" {
		t.Errorf("expected cmdline appended, got %+v", doc.Fields[2])
	}
}

func TestDocument_Clone(t *testing.T) {
	doc := NewDocument(KindData, Field{Name: "uid", Value: "d1"})
	clone := doc.Clone()
	clone.Set("uid", "d2")

	if doc.UID() != "d1" {
		t.Errorf("clone mutated original: %q", doc.UID())
	}
}

func TestWorkFromDocument(t *testing.T) {
	doc := NewWorkDocument("w1", "a1", "tag")
	doc.Set("maxretry", "3")

	w := WorkFromDocument(doc)
	if w.UID != "w1" || w.AppUID != "a1" || w.SGID != "tag" {
		t.Errorf("unexpected work view: %+v", w)
	}
	if w.Status != WorkUnavailable {
		t.Errorf("expected UNAVAILABLE, got %s", w.Status)
	}
	if w.Extra["maxretry"] != "3" || w.Extra["accessrights"] != DefaultAccessRights {
		t.Errorf("expected extra fields preserved, got %v", w.Extra)
	}
}

func TestApplicationFromDocument(t *testing.T) {
	doc := NewApplicationDocument("a1", "echoApp")
	doc.Set("linux_amd64uri", "xw://host/d1")
	doc.Set("javauri", "")
	doc.Set("webpage", "http://example.org")

	app := ApplicationFromDocument(doc)
	if app.Name != "echoApp" || app.Type != AppTypeDeployable {
		t.Errorf("unexpected app view: %+v", app)
	}
	if app.Binaries["linux_amd64uri"] != "xw://host/d1" {
		t.Errorf("expected binary field, got %v", app.Binaries)
	}
	if _, ok := app.Binaries["javauri"]; ok {
		t.Error("expected empty binary field to be skipped")
	}
	if app.Extra["webpage"] != "http://example.org" {
		t.Errorf("expected webpage in extra, got %v", app.Extra)
	}
}

func TestWorkStatus_IsTerminal(t *testing.T) {
	terminal := map[WorkStatus]bool{
		WorkUnavailable: false,
		WorkPending:     false,
		WorkRunning:     false,
		WorkCompleted:   true,
		WorkError:       true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}
