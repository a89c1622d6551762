package main

import (
	"strings"
	"testing"

	"github.com/zulandar/changeboard/internal/config"
)

func TestSLAReport(t *testing.T) {
	cfgPath := initDB(t)
	number := submitCLI(t, cfgPath)

	out, err := run(t, "", "sla", "report", "-c", cfgPath)
	if err != nil {
		t.Fatalf("sla report: %v", err)
	}
	if !strings.Contains(out, number) || !strings.Contains(out, "green") {
		t.Errorf("report = %s", out)
	}

	out, err = run(t, "", "sla", "report", "-c", cfgPath, "--breached")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, number) || !strings.Contains(out, "No open change requests match.") {
		t.Errorf("breached report = %s", out)
	}
}

func TestSLASweep_NothingBreached(t *testing.T) {
	cfgPath := initDB(t)
	submitCLI(t, cfgPath)

	out, err := run(t, "", "sla", "sweep", "-c", cfgPath)
	if err != nil {
		t.Fatalf("sla sweep: %v", err)
	}
	if !strings.Contains(out, "0 new SLA breach(es) recorded") {
		t.Errorf("output = %s", out)
	}
}

func TestBuildNotifier_Disabled(t *testing.T) {
	m, err := buildNotifier(testNotifyConfig("", ""))
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestBuildNotifier_Slack(t *testing.T) {
	m, err := buildNotifier(testNotifyConfig("xoxb-test", "C123"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func testNotifyConfig(token, channel string) config.NotifyConfig {
	return config.NotifyConfig{Slack: config.ChatConfig{BotToken: token, ChannelID: channel}}
}

func TestSLADigest(t *testing.T) {
	cfgPath := initDB(t)
	submitCLI(t, cfgPath)

	out, err := run(t, "", "sla", "digest", "-c", cfgPath)
	if err != nil {
		t.Fatalf("sla digest: %v", err)
	}
	if !strings.Contains(out, "Daily Digest") || !strings.Contains(out, "1 submitted") {
		t.Errorf("output = %s", out)
	}

	_, err = run(t, "", "sla", "digest", "-c", cfgPath, "--send")
	if err == nil || !strings.Contains(err.Error(), "no chat targets") {
		t.Errorf("send without targets error = %v", err)
	}
}
