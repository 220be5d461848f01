package csvutil

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRosterCSV_ValidRows(t *testing.T) {
	csv := "Name,Contact\n長田,nagata@example.com\nSato,sato@example.com\n"
	res, err := ParseRosterCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseRosterCSV: %v", err)
	}
	if res.HasErrors() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if res.Rows[0].Name != "長田" || res.Rows[0].Contact != "nagata@example.com" || res.Rows[0].Line != 2 {
		t.Errorf("row 0 = %+v", res.Rows[0])
	}
}

func TestParseRosterCSV_NoHeaderAndBOM(t *testing.T) {
	res, err := ParseRosterCSV(strings.NewReader("\ufeffSato,sato@example.com\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || res.Rows[0].Name != "Sato" {
		t.Errorf("rows = %+v", res.Rows)
	}

	res, err = ParseRosterCSV(strings.NewReader("\ufeffname,email\nIto,ito@example.com\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || res.Rows[0].Name != "Ito" {
		t.Errorf("BOM header not skipped: %+v", res.Rows)
	}
}

func TestParseRosterCSV_Rejections(t *testing.T) {
	csv := strings.Join([]string{
		"name,contact",
		",orphan@example.com",
		"NoContact",
		"",
		"Sato,sato@example.com",
		"SATO,other@example.com",
	}, "\n")
	res, err := ParseRosterCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Errorf("rows = %+v, want only Sato", res.Rows)
	}
	want := []string{"missing name", "missing contact", "duplicate of line 5"}
	if len(res.Errors) != len(want) {
		t.Fatalf("errors = %v", res.Errors)
	}
	for i, reason := range want {
		if res.Errors[i].Reason != reason {
			t.Errorf("error %d = %q, want %q", i, res.Errors[i].Reason, reason)
		}
	}

	sum := res.Summary(2)
	if !strings.Contains(sum, "line 2") || !strings.Contains(sum, "and 1 more") {
		t.Errorf("Summary = %q", sum)
	}
}

func TestParseRosterCSV_MaxRows(t *testing.T) {
	var b strings.Builder
	for i := 0; i <= MaxRows; i++ {
		b.WriteString("w")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(",c@example.com\n")
	}
	if _, err := ParseRosterCSV(strings.NewReader(b.String())); !errors.Is(err, ErrTooManyRows) {
		t.Errorf("error = %v, want ErrTooManyRows", err)
	}
}

func TestParseRosterCSV_Empty(t *testing.T) {
	res, err := ParseRosterCSV(strings.NewReader(""))
	if err != nil || len(res.Rows) != 0 || res.HasErrors() {
		t.Errorf("empty file = %+v, %v", res, err)
	}
	if res.Summary(5) != "" {
		t.Error("Summary of clean result should be empty")
	}
}
