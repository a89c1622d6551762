package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/zulandar/changeboard/internal/notify"
)

type mockSession struct {
	channel string
	embed   *discordgo.MessageEmbed
	err     error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.channel = channelID
	m.embed = embed
	if m.err != nil {
		return nil, m.err
	}
	return &discordgo.Message{ID: "1", ChannelID: channelID}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "123"}); err == nil {
		t.Error("expected error without token")
	}
	if _, err := New(Opts{Session: &mockSession{}}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestNotify_SendsEmbed(t *testing.T) {
	mock := &mockSession{}
	n, err := New(Opts{ChannelID: "987", Session: mock})
	if err != nil {
		t.Fatal(err)
	}
	ev := notify.Event{
		Title:    "BCR-2026-0003 implemented",
		Summary:  "Meter read cadence",
		Severity: notify.SeveritySuccess,
		Fields:   []notify.Field{{Name: "Status", Value: "implemented", Short: true}},
	}
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if mock.channel != "987" {
		t.Errorf("channel = %q", mock.channel)
	}
	if mock.embed.Title != ev.Title || mock.embed.Description != ev.Summary {
		t.Errorf("embed = %+v", mock.embed)
	}
	if mock.embed.Color != 0x36a64f {
		t.Errorf("Color = %#x, want 0x36a64f", mock.embed.Color)
	}
	if len(mock.embed.Fields) != 1 || !mock.embed.Fields[0].Inline {
		t.Errorf("Fields = %+v", mock.embed.Fields)
	}
}

func TestNotify_ErrorClassification(t *testing.T) {
	restErr := func(code int) error {
		return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
	}
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"forbidden", restErr(http.StatusForbidden), true},
		{"rate limited", restErr(http.StatusTooManyRequests), false},
		{"server error", restErr(http.StatusBadGateway), false},
		{"network", errors.New("dial tcp: timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _ := New(Opts{ChannelID: "1", Session: &mockSession{err: tt.err}})
			err := n.Notify(context.Background(), notify.Event{})
			var perm *backoff.PermanentError
			if got := errors.As(err, &perm); got != tt.permanent {
				t.Errorf("permanent = %v, want %v", got, tt.permanent)
			}
		})
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{
		"#36a64f": 0x36a64f,
		"E53935":  0xe53935,
		"":        0,
		"#zz":     0,
	}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", in, got, want)
		}
	}
}
