// Package notify tells operators about claim activity.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/claimd/src/audit"
)

// MessageSender is the part of a discordgo session we use.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts claim events to a channel. It is an audit sink.
type Discord struct {
	sender    MessageSender
	channelID string
	hostname  string
}

// NewDiscordSession opens a bot session for token.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: %w", err)
	}
	return s, nil
}

func NewDiscord(sender MessageSender, channelID, hostname string) *Discord {
	return &Discord{sender: sender, channelID: channelID, hostname: hostname}
}

func (*Discord) Name() string { return "discord" }

func (d *Discord) Write(ctx context.Context, ev audit.Event) error {
	_, err := d.sender.ChannelMessageSend(d.channelID, d.format(ev), discordgo.WithContext(ctx))
	return err
}

func (d *Discord) format(ev audit.Event) string {
	var b strings.Builder
	switch ev.Kind {
	case "claimed":
		fmt.Fprintf(&b, "✅ **%s** was claimed", d.hostname)
		if ev.URL != "" {
			fmt.Fprintf(&b, " to %s", ev.URL)
		}
	case "failed":
		fmt.Fprintf(&b, "⚠️ Claiming **%s** failed: %s", d.hostname, ev.Message)
	case "forbidden":
		fmt.Fprintf(&b, "🚫 Claim of **%s** rejected: wrong key (fp `%s`)", d.hostname, ev.KeyFingerprint)
	case "invalid":
		fmt.Fprintf(&b, "🚫 Claim of **%s** rejected: invalid parameters", d.hostname)
	default:
		fmt.Fprintf(&b, "Claim event %s on **%s**", ev.Kind, d.hostname)
	}
	if ev.Origin != "" {
		fmt.Fprintf(&b, " from %s", ev.Origin)
	}
	fmt.Fprintf(&b, " (status %s, event %s)", ev.Status, ev.ID)
	return b.String()
}
