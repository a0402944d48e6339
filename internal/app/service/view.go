package service

import "github.com/stlmattjohnson/gameshare-bot/internal/domain"

// View is a platform-neutral message: the discord adapter turns it into
// message sends, interaction updates or a modal.
type View struct {
	Content string
	Embeds  []Embed
	Rows    []Row
	// Modal, when set, is shown instead of updating the message.
	Modal *Modal
	// MentionRoles restricts allowed mentions to these roles. Nil means no
	// mentions are pinged.
	MentionRoles []string
	// Followups are extra private messages sent after the main response.
	Followups []string
}

type Embed struct {
	Title       string
	Description string
	Footer      string
	Fields      []EmbedField
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type ButtonStyle int

const (
	StylePrimary ButtonStyle = iota + 1
	StyleSecondary
	StyleSuccess
	StyleDanger
)

type Button struct {
	Label    string
	CustomID string
	Style    ButtonStyle
	Disabled bool
}

type SelectOption struct {
	Label string
	Value string
}

type Select struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// Row is one action row: either buttons or a single select.
type Row struct {
	Buttons []Button
	Select  *Select
}

type Modal struct {
	CustomID    string
	Title       string
	Label       string
	Placeholder string
	Value       string
	MaxLength   int
}

// platform limit for buttons per row
const buttonsPerRow = 5

// max characters of a game name in a button label
const labelNameMax = 70

func text(s string) View { return View{Content: s} }

func button(label string, cb domain.Callback, style ButtonStyle) Button {
	return Button{Label: label, CustomID: domain.EncodeCallback(cb), Style: style}
}

func buttonRows(bs []Button) []Row {
	var rows []Row
	for i := 0; i < len(bs); i += buttonsPerRow {
		end := i + buttonsPerRow
		if end > len(bs) {
			end = len(bs)
		}
		rows = append(rows, Row{Buttons: bs[i:end]})
	}
	return rows
}

func truncRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// page bounds for a list of total items
func pageBounds(page, size, total int) (p, start, end int) {
	maxPage := 0
	if total > 0 {
		maxPage = (total - 1) / size
	}
	p = page
	if p < 0 {
		p = 0
	}
	if p > maxPage {
		p = maxPage
	}
	start = p * size
	end = start + size
	if end > total {
		end = total
	}
	return p, start, end
}
