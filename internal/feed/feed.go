// Package feed turns activity records into display items.
package feed

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

const previewLen = 60

// Item is one rendered feed line.
type Item struct {
	Icon    string `json:"icon"`
	Color   string `json:"color"`
	Message string `json:"message"`
	Ago     string `json:"ago"`
}

// Render derives the display item of a from its type and payload alone.
// now anchors the relative time.
func Render(a data.Activity, now time.Time) Item {
	item := Item{Icon: "activity", Color: "gray", Message: string(a.Type)}
	if !a.CreatedAt.IsZero() {
		item.Ago = humanize.RelTime(a.CreatedAt, now, "ago", "from now")
	}

	p, err := a.Payload()
	if err != nil {
		return item
	}
	switch v := p.(type) {
	case data.JobPosted:
		item.Icon, item.Color = "briefcase", "blue"
		item.Message = fmt.Sprintf("Posted a new job: %q", v.JobTitle)
	case data.ProposalSubmitted:
		item.Icon, item.Color = "file-text", "purple"
		item.Message = fmt.Sprintf("Submitted a proposal of %s for %q", money(v.BidAmount), v.JobTitle)
	case data.MessageSent:
		item.Icon, item.Color = "message-circle", "green"
		item.Message = fmt.Sprintf("Sent a message: %q", preview(v.Preview))
	case data.ContractCreated:
		item.Icon, item.Color = "handshake", "orange"
		item.Message = fmt.Sprintf("Started a contract for %q", v.JobTitle)
	case data.PaymentReleased:
		item.Icon, item.Color = "dollar-sign", "emerald"
		item.Message = fmt.Sprintf("Released a payment of %s for %q", money(v.Amount), v.JobTitle)
	case data.ReviewSubmitted:
		item.Icon, item.Color = "star", "yellow"
		item.Message = fmt.Sprintf("Left a %d-star review for %q", v.Rating, v.JobTitle)
	}
	return item
}

// RenderAll renders a feed in order.
func RenderAll(as []data.Activity, now time.Time) []Item {
	out := make([]Item, 0, len(as))
	for _, a := range as {
		out = append(out, Render(a, now))
	}
	return out
}

func money(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLen {
		return s
	}
	r := []rune(s)
	return string(r[:previewLen-1]) + "…"
}
