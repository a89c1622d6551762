package main

import (
	"regexp"
	"strings"
	"testing"
)

var numberRe = regexp.MustCompile(`BCR-\d{4}-\d{4}`)

// submitCLI submits a valid request and returns its number.
func submitCLI(t *testing.T, cfgPath string) string {
	t.Helper()
	out, err := run(t, "", "bcr", "submit", "-c", cfgPath,
		"--name", "Dana Whitfield",
		"--email", "dana@example.org",
		"--title", "Change settlement run timing",
		"--description", "Move the settlement run",
		"--urgency", "medium",
		"--impact", "Settlement, Billing",
	)
	if err != nil {
		t.Fatalf("bcr submit: %v\n%s", err, out)
	}
	number := numberRe.FindString(out)
	if number == "" {
		t.Fatalf("no BCR number in output: %s", out)
	}
	return number
}

func TestBcrSubmit_Validation(t *testing.T) {
	cfgPath := initDB(t)
	_, err := run(t, "", "bcr", "submit", "-c", cfgPath, "--name", "Dana")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Email is required", "Title is required", "Urgency is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want to contain %q", err, want)
		}
	}
}

func TestBcrSubmit_BadTargetDate(t *testing.T) {
	cfgPath := initDB(t)
	_, err := run(t, "", "bcr", "submit", "-c", cfgPath, "--target-date", "soon")
	if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Errorf("error = %v", err)
	}
}

func TestBcrListAndShow(t *testing.T) {
	cfgPath := initDB(t)
	number := submitCLI(t, cfgPath)

	out, err := run(t, "", "bcr", "list", "-c", cfgPath)
	if err != nil {
		t.Fatalf("bcr list: %v", err)
	}
	for _, want := range []string{"NUMBER", number, "submitted", "Submission", "Medium"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q: %s", want, out)
		}
	}

	out, err = run(t, "", "bcr", "list", "-c", cfgPath, "--status", "closed")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No change requests found.") {
		t.Errorf("filtered list = %s", out)
	}

	out, err = run(t, "", "bcr", "show", number, "-c", cfgPath)
	if err != nil {
		t.Fatalf("bcr show: %v", err)
	}
	for _, want := range []string{number, "Submission Received", "Settlement, Billing", "assignment", "History:"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q: %s", want, out)
		}
	}
}

func TestBcrShow_NotFound(t *testing.T) {
	cfgPath := initDB(t)
	_, err := run(t, "", "bcr", "show", "BCR-2001-0001", "-c", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestBcrApply(t *testing.T) {
	cfgPath := initDB(t)
	number := submitCLI(t, cfgPath)

	out, err := run(t, "", "bcr", "apply", number, "-c", cfgPath, "--action", "complete_phase", "--actor", "ops@example.org")
	if err != nil {
		t.Fatalf("apply complete_phase: %v\n%s", err, out)
	}
	if !strings.Contains(out, "phase_completed") {
		t.Errorf("output = %s", out)
	}

	out, err = run(t, "", "bcr", "apply", number, "-c", cfgPath, "-a", "assign", "--assignee", "rev@example.org")
	if err != nil {
		t.Fatalf("apply assign: %v\n%s", err, out)
	}

	_, err = run(t, "", "bcr", "apply", number, "-c", cfgPath, "-a", "implement")
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Errorf("implement before approval error = %v", err)
	}

	out, _ = run(t, "", "bcr", "show", number, "-c", cfgPath)
	if !strings.Contains(out, "rev@example.org") || !strings.Contains(out, "ops@example.org") {
		t.Errorf("show after apply = %s", out)
	}
}

func TestBcrApply_RequiresAction(t *testing.T) {
	cfgPath := initDB(t)
	_, err := run(t, "", "bcr", "apply", "BCR-2026-0001", "-c", cfgPath)
	if err == nil {
		t.Fatal("expected error when --action is missing")
	}
}

func TestPhaseList(t *testing.T) {
	cfgPath := initDB(t)
	out, err := run(t, "", "phase", "list", "-c", cfgPath)
	if err != nil {
		t.Fatalf("phase list: %v", err)
	}
	for _, want := range []string{"ORDER", "Submission", "Governance", "Closed", "yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("phase list missing %q", want)
		}
	}
}
