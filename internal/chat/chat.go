// Package chat renders server descriptions, legacy § text or JSON chat
// components, into HTML markup with inline styles.
package chat

import (
	"strings"

	"github.com/woozymasta/mcping/internal/models"
)

// LegacyEscape introduces a legacy formatting code.
const LegacyEscape = '§'

// Style is the formatting in effect for a run of text. Children of a
// component receive a copy; nothing is shared between branches.
type Style struct {
	Color         string
	Bold          bool
	Italic        bool
	Underlined    bool
	Strikethrough bool
	Obfuscated    bool
}

// IsZero reports whether the style carries no formatting.
func (s Style) IsZero() bool {
	return s == Style{}
}

// NamedColors maps chat component color names to hex values.
var NamedColors = map[string]string{
	"black":        "#000000",
	"dark_blue":    "#0000AA",
	"dark_green":   "#00AA00",
	"dark_aqua":    "#00AAAA",
	"dark_red":     "#AA0000",
	"dark_purple":  "#AA00AA",
	"gold":         "#FFAA00",
	"gray":         "#AAAAAA",
	"dark_gray":    "#555555",
	"blue":         "#5555FF",
	"green":        "#55FF55",
	"aqua":         "#55FFFF",
	"red":          "#FF5555",
	"light_purple": "#FF55FF",
	"yellow":       "#FFFF55",
	"white":        "#FFFFFF",
	"reset":        "",
}

// LegacyColors maps legacy color code characters to hex values.
var LegacyColors = map[rune]string{
	'0': "#000000",
	'1': "#0000AA",
	'2': "#00AA00",
	'3': "#00AAAA",
	'4': "#AA0000",
	'5': "#AA00AA",
	'6': "#FFAA00",
	'7': "#AAAAAA",
	'8': "#555555",
	'9': "#5555FF",
	'a': "#55FF55",
	'b': "#55FFFF",
	'c': "#FF5555",
	'd': "#FF55FF",
	'e': "#FFFF55",
	'f': "#FFFFFF",
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Render renders a whole description and turns newlines into <br>.
func Render(d *models.Description) string {
	var out string
	switch {
	case d.IsEmpty():
		return ""
	case d.Legacy != nil:
		out = RenderLegacy(*d.Legacy, Style{})
	default:
		out = RenderComponent(d.Component, Style{})
	}

	return strings.ReplaceAll(out, "\n", "<br>")
}

// RenderLegacy renders text containing § codes, starting from style.
//
// A color code replaces only the color; formatting flags set before it stay
// on, unlike vanilla clients which reset them. Unknown codes are kept as text.
func RenderLegacy(text string, style Style) string {
	var (
		out strings.Builder
		buf strings.Builder
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out.WriteString(Wrap(buf.String(), style))
		buf.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch != LegacyEscape || i+1 >= len(runes) {
			buf.WriteRune(ch)
			continue
		}

		i++
		code := runes[i]
		next, ok := applyCode(style, code)
		if !ok {
			buf.WriteRune(ch)
			buf.WriteRune(code)
			continue
		}

		flush()
		style = next
	}
	flush()

	return out.String()
}

// applyCode returns the style after a legacy code, or false when the code
// is not recognized.
func applyCode(style Style, code rune) (Style, bool) {
	lower := code
	if lower >= 'A' && lower <= 'Z' {
		lower += 'a' - 'A'
	}

	if color, ok := LegacyColors[lower]; ok {
		style.Color = color
		return style, true
	}

	switch lower {
	case 'r':
		return Style{}, true
	case 'l':
		style.Bold = true
	case 'o':
		style.Italic = true
	case 'n':
		style.Underlined = true
	case 'm':
		style.Strikethrough = true
	case 'k':
		style.Obfuscated = true
	default:
		return style, false
	}

	return style, true
}

// RenderComponent renders a component tree node with the inherited style.
// Output order is the node's own text, then its with entries, then extra.
func RenderComponent(c *models.Component, inherited Style) string {
	if c == nil {
		return ""
	}

	style := Effective(c, inherited)

	var out strings.Builder
	if base := baseText(c); base != "" {
		if strings.ContainsRune(base, LegacyEscape) {
			out.WriteString(RenderLegacy(base, style))
		} else {
			out.WriteString(Wrap(base, style))
		}
	}

	for i := range c.With {
		out.WriteString(renderDescription(&c.With[i], style))
	}
	for i := range c.Extra {
		out.WriteString(renderDescription(&c.Extra[i], style))
	}

	return out.String()
}

// Effective returns the style of c: each field c sets overrides inherited.
func Effective(c *models.Component, inherited Style) Style {
	style := inherited

	if c.Color != nil && *c.Color != "" {
		style.Color = ResolveColor(*c.Color)
	}
	if c.Bold != nil {
		style.Bold = *c.Bold
	}
	if c.Italic != nil {
		style.Italic = *c.Italic
	}
	if c.Underlined != nil {
		style.Underlined = *c.Underlined
	}
	if c.Strikethrough != nil {
		style.Strikethrough = *c.Strikethrough
	}
	if c.Obfuscated != nil {
		style.Obfuscated = *c.Obfuscated
	}

	return style
}

// ResolveColor maps a named color to hex; other values pass through.
func ResolveColor(name string) string {
	if hex, ok := NamedColors[name]; ok {
		return hex
	}
	return name
}

func baseText(c *models.Component) string {
	if c.Text != nil {
		return *c.Text
	}
	if c.Translate != nil {
		return *c.Translate
	}
	return ""
}

func renderDescription(d *models.Description, inherited Style) string {
	switch {
	case d.IsEmpty():
		return ""
	case d.Legacy != nil:
		return RenderLegacy(*d.Legacy, inherited)
	default:
		return RenderComponent(d.Component, inherited)
	}
}

// Wrap escapes text and, unless style is empty, wraps it in a styled span.
// Obfuscated text has no static HTML form; a blur filter stands in for it.
func Wrap(text string, style Style) string {
	safe := escaper.Replace(text)
	if style.IsZero() {
		return safe
	}

	var decls []string
	if style.Color != "" {
		decls = append(decls, "color: "+style.Color)
	}
	if style.Bold {
		decls = append(decls, "font-weight: 700")
	}
	if style.Italic {
		decls = append(decls, "font-style: italic")
	}

	var decorations []string
	if style.Underlined {
		decorations = append(decorations, "underline")
	}
	if style.Strikethrough {
		decorations = append(decorations, "line-through")
	}
	if len(decorations) > 0 {
		decls = append(decls, "text-decoration: "+strings.Join(decorations, " "))
	}

	if style.Obfuscated {
		decls = append(decls, "filter: blur(1px)")
	}

	if len(decls) == 0 {
		return safe
	}

	return `<span style="` + escaper.Replace(strings.Join(decls, "; ")) + `">` + safe + `</span>`
}
