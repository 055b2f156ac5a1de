package core

import (
	"context"
	"testing"
)

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		name  string
		entry AuditEntry
		want  AuditSeverity
	}{
		{"open", AuditEntry{Action: ActionControlOpen}, SeverityInfo},
		{"save", AuditEntry{Action: ActionSave, Records: 4}, SeverityInfo},
		{"partial failure", AuditEntry{Action: ActionSaveFailed, Records: 4, Failed: 1}, SeverityWarning},
		{"total failure", AuditEntry{Action: ActionSaveFailed, Records: 2, Failed: 2}, SeverityCritical},
		{"clean close", AuditEntry{Action: ActionControlClose}, SeverityInfo},
		{"close abandons edits", AuditEntry{Action: ActionControlClose, Records: 3}, SeverityWarning},
		{"discard", AuditEntry{Action: ActionDiscard, Records: 1}, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineSeverity(tt.entry); got != tt.want {
				t.Errorf("determineSeverity() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAuditLog_Record(t *testing.T) {
	log := NewAuditLog(0)
	ctx := ContextWithRequestMetadata(context.Background(), RequestMetadata{
		IPAddress: "10.0.0.7",
		UserAgent: "curl/8",
	})

	e := log.Record(ctx, AuditEntry{Action: ActionSave, ControlID: "c1", Entity: "account", Records: 2})
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("Record() did not fill id/time: %+v", e)
	}
	if e.Severity != SeverityInfo {
		t.Errorf("Severity = %s, want info", e.Severity)
	}
	if e.IPAddress != "10.0.0.7" || e.UserAgent != "curl/8" {
		t.Errorf("client = %q %q", e.IPAddress, e.UserAgent)
	}

	got, ok := log.Get(e.ID)
	if !ok || got.ControlID != "c1" {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
	if _, ok := log.Get("nope"); ok {
		t.Error("Get() found unknown id")
	}
}

func TestAuditLog_ListFilters(t *testing.T) {
	log := NewAuditLog(10)
	ctx := context.Background()
	log.Record(ctx, AuditEntry{Action: ActionControlOpen, ControlID: "a", Entity: "account"})
	log.Record(ctx, AuditEntry{Action: ActionControlOpen, ControlID: "b", Entity: "opportunity"})
	log.Record(ctx, AuditEntry{Action: ActionSave, ControlID: "a", Entity: "account", Records: 1})
	log.Record(ctx, AuditEntry{Action: ActionControlClose, ControlID: "a", Entity: "account"})

	tests := []struct {
		name   string
		filter AuditFilter
		want   []AuditAction
	}{
		{"all newest first", AuditFilter{}, []AuditAction{ActionControlClose, ActionSave, ActionControlOpen, ActionControlOpen}},
		{"by control", AuditFilter{ControlID: "b"}, []AuditAction{ActionControlOpen}},
		{"by entity", AuditFilter{Entity: "account"}, []AuditAction{ActionControlClose, ActionSave, ActionControlOpen}},
		{"by action", AuditFilter{Action: ActionSave}, []AuditAction{ActionSave}},
		{"limit", AuditFilter{Limit: 2}, []AuditAction{ActionControlClose, ActionSave}},
		{"no match", AuditFilter{ControlID: "z"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := log.List(tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Action != tt.want[i] {
					t.Errorf("entry %d = %s, want %s", i, got[i].Action, tt.want[i])
				}
			}
		})
	}
}

func TestAuditLog_DropsOldest(t *testing.T) {
	log := NewAuditLog(2)
	ctx := context.Background()
	first := log.Record(ctx, AuditEntry{Action: ActionControlOpen, ControlID: "1"})
	log.Record(ctx, AuditEntry{Action: ActionControlOpen, ControlID: "2"})
	log.Record(ctx, AuditEntry{Action: ActionControlOpen, ControlID: "3"})

	if log.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", log.Len())
	}
	if _, ok := log.Get(first.ID); ok {
		t.Error("oldest entry should have been dropped")
	}
	if got := log.List(AuditFilter{}); got[0].ControlID != "3" || got[1].ControlID != "2" {
		t.Errorf("List() = %+v", got)
	}
}
