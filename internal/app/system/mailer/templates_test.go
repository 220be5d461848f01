package mailer

import (
	"strings"
	"testing"
)

func TestBuildAssignmentEmail(t *testing.T) {
	e := BuildAssignmentEmail(AssignmentEmailData{
		WorkerName: "長田",
		Date:       "2026-10-14",
		Header:     "Tomorrow's schedule",
		Footer:     "Reply to this address with questions.",
		Lines: []AssignmentLine{
			{Time: "08:30", Name: "North Yard", CounterpartyName: "Kato Construction", Address: "1-2-3 Minato"},
		},
	})

	if e.Subject != "Work assignment for 2026-10-14" {
		t.Errorf("Subject: got %q", e.Subject)
	}
	for _, want := range []string{"長田", "Tomorrow's schedule", "08:30  North Yard", "Kato Construction", "Reply to this address"} {
		if !strings.Contains(e.TextBody, want) {
			t.Errorf("text body missing %q:\n%s", want, e.TextBody)
		}
	}
	if !strings.Contains(e.HTMLBody, "North Yard") {
		t.Error("html body missing site name")
	}
}

func TestBuildAssignmentEmail_NoLines(t *testing.T) {
	e := BuildAssignmentEmail(AssignmentEmailData{Subject: "Custom", WorkerName: "Sato", Date: "2026-10-14"})
	if e.Subject != "Custom" {
		t.Errorf("Subject: got %q, want %q", e.Subject, "Custom")
	}
	if !strings.Contains(e.TextBody, "no site assignments") {
		t.Errorf("expected empty-day message, got:\n%s", e.TextBody)
	}
}

func TestBuildAssignmentEmail_EscapesHTML(t *testing.T) {
	e := BuildAssignmentEmail(AssignmentEmailData{
		WorkerName: "<b>x</b>",
		Date:       "2026-10-14",
	})
	if strings.Contains(e.HTMLBody, "<b>x</b>") {
		t.Error("worker name should be escaped in HTML body")
	}
}

func TestCompose(t *testing.T) {
	m := New(Config{From: "dispatch@example.com", FromName: "Dispatch"}, nil)
	body, err := m.compose(Email{To: "w@example.com", Subject: "Hi", TextBody: "plain", HTMLBody: "<p>html</p>"}, "w@example.com")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	raw := string(body)

	for _, want := range []string{"To: w@example.com", "multipart/alternative", "plain", "<p>html</p>", "dispatch@example.com"} {
		if !strings.Contains(raw, want) {
			t.Errorf("composed message missing %q", want)
		}
	}
}
