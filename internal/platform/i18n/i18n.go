// Package i18n holds the user-facing copy for encore and the printers that
// render it.
package i18n

import (
	"fmt"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyCountdownLive  = "countdown.live"
	KeyCountdownDays  = "countdown.days"
	KeyCountdownHours = "countdown.hours"

	KeyChatWelcome  = "chat.welcome"
	KeyChatApology  = "chat.apology"
	KeyChatEmpty    = "chat.empty"
	KeyLoginInvalid = "login.invalid_email"
	KeyLoginFailed  = "login.failed"
	KeyLoginNeeded  = "login.required"

	KeyBadgeName        = "badge.name"
	KeyBadgeDescription = "badge.description"

	KeyTransactionFailed = "transaction.failed"
	KeyTransactionBusy   = "transaction.in_flight"
)

// DefaultTag is the locale used when none is requested.
var DefaultTag = language.AmericanEnglish

var builder = mustBuild()

func mustBuild() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(DefaultTag))
	entries := []struct {
		key string
		msg catalog.Message
	}{
		{KeyCountdownLive, catalog.String("Live now!")},
		{KeyCountdownDays, plural.Selectf(1, "%d",
			"=1", "Starts in %d day",
			plural.Other, "Starts in %d days",
		)},
		{KeyCountdownHours, catalog.String("Starts in %dh %dm")},
		{KeyChatWelcome, catalog.String("Welcome to the %[1]s concert! I'm your AI companion. Ask me anything about %[1]s or the concert!")},
		{KeyChatApology, catalog.String("Sorry, I encountered an error. Please try again.")},
		{KeyChatEmpty, catalog.String("Message cannot be empty")},
		{KeyLoginInvalid, catalog.String("Please enter a valid email address")},
		{KeyLoginFailed, catalog.String("Failed to create wallet. Please try again.")},
		{KeyLoginNeeded, catalog.String("Please connect your wallet first")},
		{KeyBadgeName, catalog.String("%s Fan")},
		{KeyBadgeDescription, catalog.String("Attended the %s concert")},
		{KeyTransactionFailed, catalog.String("Failed to send %s transaction. Please try again.")},
		{KeyTransactionBusy, catalog.String("A %s is already in progress")},
	}
	for _, entry := range entries {
		if err := b.Set(DefaultTag, entry.key, entry.msg); err != nil {
			panic(fmt.Sprintf("i18n: register %s: %v", entry.key, err))
		}
	}
	return b
}

var matcher = language.NewMatcher(builder.Languages())

// Printer returns a printer for tag backed by the encore catalog. Tags
// without copy resolve to the closest supported locale, DefaultTag when
// nothing is close.
func Printer(tag language.Tag) *message.Printer {
	supported := builder.Languages()
	_, index, confidence := matcher.Match(tag)
	resolved := DefaultTag
	if confidence != language.No && index < len(supported) {
		resolved = supported[index]
	}
	return message.NewPrinter(resolved, message.Catalog(builder))
}

// Sprintf renders key in the default locale.
func Sprintf(key string, args ...any) string {
	return Printer(DefaultTag).Sprintf(key, args...)
}
