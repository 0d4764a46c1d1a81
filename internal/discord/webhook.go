// Package discord delivers trigger side effects and relay requests to
// Discord webhooks. Delivery is best-effort: failures are logged, never
// surfaced to the session.
package discord

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/mudlink/mudlink/internal/ansi"
)

// maxMessageLen is Discord's 2000-char limit minus room for the ellipsis.
const maxMessageLen = 1997

// webhookRe accepts only Discord-hosted webhook URLs and extracts id/token.
var webhookRe = regexp.MustCompile(`^https://(?:discord\.com|discordapp\.com)/api/webhooks/(\d+)/([\w-]+)`)

// ValidURL reports whether u points at a Discord webhook origin.
func ValidURL(u string) bool {
	return webhookRe.MatchString(u)
}

var mentionRe = regexp.MustCompile(`<@[!&]?\d+>`)

// Sanitize prepares MUD text for Discord: SGR sequences are stripped, mass
// pings are neutralized with a zero-width space, explicit user mentions are
// redacted, and the result is truncated to the Discord message limit.
func Sanitize(message string) string {
	s := ansi.Strip(message)
	s = strings.ReplaceAll(s, "@everyone", "@\u200beveryone")
	s = strings.ReplaceAll(s, "@here", "@\u200bhere")
	s = mentionRe.ReplaceAllString(s, "[mention]")
	if len(s) > maxMessageLen {
		cut := maxMessageLen
		// Back off to a rune boundary so the cut never ships a split
		// UTF-8 sequence.
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}

// Sender posts webhook messages through discordgo with a process-wide rate
// limit so a runaway trigger cannot spam Discord.
type Sender struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

func NewSender() *Sender {
	// Webhook execution needs no bot token; the empty-token session only
	// carries the HTTP client.
	session, _ := discordgo.New("")
	return &Sender{
		session: session,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
}

// Send validates, sanitizes and posts one message. The username overrides
// the webhook's display name when non-empty.
func (s *Sender) Send(webhookURL, message, username string) error {
	m := webhookRe.FindStringSubmatch(webhookURL)
	if m == nil {
		return fmt.Errorf("not a discord webhook URL")
	}
	if !s.limiter.Allow() {
		return fmt.Errorf("discord rate limit exceeded")
	}

	_, err := s.session.WebhookExecute(m[1], m[2], false, &discordgo.WebhookParams{
		Content:  Sanitize(message),
		Username: username,
	})
	if err != nil {
		return fmt.Errorf("webhook execute: %w", err)
	}
	return nil
}

// SendAsync fires a webhook without blocking the session's line pipeline.
func (s *Sender) SendAsync(webhookURL, message, username string) {
	go func() {
		if err := s.Send(webhookURL, message, username); err != nil {
			slog.Warn("discord.send_failed", "error", err)
		}
	}()
}
