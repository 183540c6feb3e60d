package services

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"
)

// Slugify lowercases title and collapses every run of characters outside [a-z0-9]
// into a single "-", trimming separators at both ends.
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

const (
	ticketCodePrefix       = "PV"
	ticketCodeFallbackTag  = "EVT"
	ticketCodeEventTagLen  = 3
	ticketCodeRandomLength = 6
)

var ticketCodeAlphabet = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ")

// TicketCodeGenerator returns a new ticket code for the event with the given slug.
type TicketCodeGenerator func(eventSlug string) (string, error)

// GenerateTicketCode returns PV-<TAG>-<6 random base-36 chars>. TAG is the first three
// letters or digits of eventSlug uppercased, padded from EVT when the slug has fewer.
func GenerateTicketCode(eventSlug string) (string, error) {
	return generateTicketCode(rand.Reader, eventSlug)
}

func ticketTag(eventSlug string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(eventSlug) {
		if b.Len() == ticketCodeEventTagLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	b.WriteString(ticketCodeFallbackTag[b.Len():])
	return strings.ToUpper(b.String())
}

func generateTicketCode(random io.Reader, eventSlug string) (string, error) {
	tag := ticketTag(eventSlug)
	b := make([]byte, ticketCodeRandomLength)
	max := big.NewInt(int64(len(ticketCodeAlphabet)))
	for i := range b {
		n, err := rand.Int(random, max)
		if err != nil {
			return "", err
		}
		b[i] = ticketCodeAlphabet[n.Int64()]
	}
	return ticketCodePrefix + "-" + tag + "-" + string(b), nil
}
