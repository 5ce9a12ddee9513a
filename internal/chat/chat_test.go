package chat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/woozymasta/mcping/internal/models"
)

func parse(t *testing.T, raw string) *models.Description {
	t.Helper()

	var d models.Description
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return &d
}

func TestRenderLegacyColors(t *testing.T) {
	got := Render(models.LegacyText("§aHello §cWorld"))
	want := `<span style="color: #55FF55">Hello </span><span style="color: #FF5555">World</span>`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
	if strings.ContainsRune(got, LegacyEscape) {
		t.Fatal("escape character leaked into output")
	}
}

func TestRenderLegacy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain",
			input: "just text",
			want:  "just text",
		},
		{
			name:  "escaping",
			input: `§e<b>"Tom" & 'Jerry'</b>`,
			want:  `<span style="color: #FFFF55">&lt;b&gt;&quot;Tom&quot; &amp; &#39;Jerry&#39;&lt;/b&gt;</span>`,
		},
		{
			name:  "bold then color keeps bold",
			input: "§lA§cB",
			want:  `<span style="font-weight: 700">A</span><span style="color: #FF5555; font-weight: 700">B</span>`,
		},
		{
			name:  "reset",
			input: "§c§lA§rB",
			want:  `<span style="color: #FF5555; font-weight: 700">A</span>B`,
		},
		{
			name:  "decorations combine",
			input: "§n§mX",
			want:  `<span style="text-decoration: underline line-through">X</span>`,
		},
		{
			name:  "italic and obfuscated",
			input: "§o§kX",
			want:  `<span style="font-style: italic; filter: blur(1px)">X</span>`,
		},
		{
			name:  "uppercase code",
			input: "§AHi",
			want:  `<span style="color: #55FF55">Hi</span>`,
		},
		{
			name:  "unknown code kept literally",
			input: "a§zb",
			want:  "a§zb",
		},
		{
			name:  "trailing escape",
			input: "end§",
			want:  "end§",
		},
		{
			name:  "codes without text",
			input: "§a§b",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderLegacy(tt.input, Style{}); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestComponentInheritance(t *testing.T) {
	d := parse(t, `{"text":"P","color":"red","extra":[{"text":"inherit"},{"text":"own","color":"blue"}]}`)

	got := Render(d)
	want := `<span style="color: #FF5555">P</span>` +
		`<span style="color: #FF5555">inherit</span>` +
		`<span style="color: #5555FF">own</span>`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestComponentFlagOverride(t *testing.T) {
	d := parse(t, `{"text":"a","bold":true,"extra":[{"text":"b","bold":false,"italic":true}]}`)

	want := `<span style="font-weight: 700">a</span><span style="font-style: italic">b</span>`
	if got := Render(d); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestComponentWithThenExtra(t *testing.T) {
	d := parse(t, `{"translate":"T ","with":["w1",{"text":"w2"}],"extra":["e"]}`)

	if got := Render(d); got != "T w1w2e" {
		t.Fatalf("got %q", got)
	}
}

func TestComponentTextBeforeTranslate(t *testing.T) {
	d := parse(t, `{"text":"text","translate":"key"}`)
	if got := Render(d); got != "text" {
		t.Fatalf("got %q", got)
	}
}

func TestComponentLegacyInsideText(t *testing.T) {
	d := parse(t, `{"text":"A§cB","bold":true}`)

	want := `<span style="font-weight: 700">A</span><span style="color: #FF5555; font-weight: 700">B</span>`
	if got := Render(d); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestComponentColors(t *testing.T) {
	tests := []struct {
		color string
		want  string
	}{
		{"gold", `<span style="color: #FFAA00">x</span>`},
		{"#123456", `<span style="color: #123456">x</span>`},
		{"reset", `x`},
	}

	for _, tt := range tests {
		d := models.ComponentDescription(models.Component{Text: ptr("x"), Color: ptr(tt.color)})
		if got := Render(d); got != tt.want {
			t.Errorf("color %q: got %s, want %s", tt.color, got, tt.want)
		}
	}
}

func TestColorValueEscaped(t *testing.T) {
	d := models.ComponentDescription(models.Component{Text: ptr("x"), Color: ptr(`red"><script>`)})
	got := Render(d)
	if strings.Contains(got, "<script>") {
		t.Fatalf("unescaped color value: %s", got)
	}
}

func TestNewlinesTopLevel(t *testing.T) {
	d := parse(t, `{"text":"line1\n","extra":[{"text":"line2","color":"green"}]}`)

	want := `line1<br><span style="color: #55FF55">line2</span>`
	if got := Render(d); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}

	if got := RenderComponent(d.Component, Style{}); !strings.Contains(got, "\n") {
		t.Fatal("RenderComponent must leave newlines for the caller")
	}

	if got := Render(models.LegacyText("a\nb")); got != "a<br>b" {
		t.Fatalf("legacy newline: got %q", got)
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(nil); got != "" {
		t.Errorf("nil: %q", got)
	}
	if got := Render(&models.Description{}); got != "" {
		t.Errorf("empty: %q", got)
	}
	if got := Render(parse(t, `{"extra":[null,{}]}`)); got != "" {
		t.Errorf("empty children: %q", got)
	}
}

func ptr[T any](v T) *T {
	return &v
}
