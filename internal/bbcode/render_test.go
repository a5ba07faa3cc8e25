package bbcode

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/steam-news/internal/models"
)

func TestToHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "[b]hi[/b]", "<b>hi</b>"},
		{"case insensitive", "[B]hi[/b]", "<b>hi</b>"},
		{"nested", "[b][i]x[/i][/b]", "<b><i>x</i></b>"},
		{"heading swallows newline", "[h1]Title[/h1]\nbody", "<h1>Title</h1>body"},
		{"table family", "[table][tr][td]a[/td][/tr][/table]", "<table><tr><td>a</td></tr></table>"},
		{"strike", "[strike]old[/strike]", "<strike>old</strike>"},
		{"escaping", "a < b & c", "a &lt; b &amp; c"},
		{"newlines", "a\nb", "a<br />b"},
		{"cosmetic", "wait... (c) --", "wait&#8230; &copy; &ndash;"},
		{"em dash first", "a---b", "a&mdash;b"},
		{"unknown tag literal", "[foo]x[/foo]", "[foo]x[/foo]"},
		{"stray bracket", "a [ b", "a [ b"},
		{"unclosed tag", "[b]bold", "<b>bold</b>"},
		{"close closes intervening", "[b][i]x[/b]y", "<b><i>x</i></b>y"},
		{"unmatched close literal", "x[/b]", "x[/b]"},
		{"list", "[list]\n[*]one\n[*]two\n[/list]", "<ul><li>one</li><li>two</li></ul>"},
		{"numbered list", "[list=1][*]a[/list]", "<ol><li>a</li></ol>"},
		{"olist", "[olist][*]a[*]b[/olist]", "<ol><li>a</li><li>b</li></ol>"},
		{"item closes nested tags", "[list][*]a[b]x[*]y[/list]", "<ul><li>a<b>x</b></li><li>y</li></ul>"},
		{"nested lists", "[list][*]a[list][*]b[*]c[/list][*]d[/list]",
			"<ul><li>a<ul><li>b</li><li>c</li></ul></li><li>d</li></ul>"},
		{"hr", "a[hr][/hr]\nb", "a<hr />b"},
		{"code keeps raw", "[code][b]x[/b]\n--[/code]", "<pre><code>[b]x[/b]\n--</code></pre>"},
		{"noparse", "[noparse][b]x[/b][/noparse]", "[b]x[/b]"},
		{"color", "[color=#ff0000]red[/color]", `<span style="color: #ff0000;">red</span>`},
		{"bad color", "[color=red;x]red[/color]", "red"},
		{"url option", "[url=https://example.com]site[/url]", `<a rel="nofollow" href="https://example.com">site</a>`},
		{"url body", "[url]https://example.com/a...[/url]", `<a rel="nofollow" href="https://example.com/a...">https://example.com/a...</a>`},
		{"url bare host", "[url=example.com]x[/url]", `<a rel="nofollow" href="http://example.com">x</a>`},
		{"url unsafe", "[url=javascript:alert(1)]x[/url]", "x"},
		{"bare url", "see https://example.com/a?b=1&c=2.",
			`see <a rel="nofollow" href="https://example.com/a?b=1&amp;c=2">https://example.com/a?b=1&amp;c=2</a>.`},
		{"bare www", "(www.example.com)", `(<a rel="nofollow" href="http://www.example.com">www.example.com</a>)`},
		{"bare url keeps dots", "go to https://x.test/a...b now",
			`go to <a rel="nofollow" href="https://x.test/a...b">https://x.test/a...b</a> now`},
		{"url inside url tag", "[url=https://a.test]https://b.test[/url]", `<a rel="nofollow" href="https://a.test">https://b.test</a>`},
		{"url inside code", "[code]https://a.test[/code]", "<pre><code>https://a.test</code></pre>"},
		{"url inside noparse", "[noparse]https://a.test[/noparse]", "https://a.test"},
		{"quote", "[quote]hi[/quote]", "<blockquote>hi</blockquote>"},
		{"quote author", "[quote=Gabe]hi[/quote]", "<blockquote><p>Originally posted by <b>Gabe</b>:</p>hi</blockquote>"},
		{"spoiler", "[spoiler]a\nb...[/spoiler]",
			`<span style="color: #000000;background-color: #000000;padding: 0px 8px;">a` + "\n" + `b...</span>`},
		{"youtube", "[previewyoutube=abc123;full][/previewyoutube]",
			`<a rel="nofollow" href="https://www.youtube.com/watch?v=abc123">https://www.youtube.com/watch?v=abc123</a>`},
		{"youtube no semicolon", "[previewyoutube=bad][/previewyoutube]", ""},
		{"youtube no option", "[previewyoutube][/previewyoutube]", ""},
		{"youtube empty id", "x[previewyoutube=;full][/previewyoutube]y", "xy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToHTML(tt.in); got != tt.want {
				t.Errorf("ToHTML(%q)\n got  %q\n want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderDialect(t *testing.T) {
	body := "<p>[b]kept[/b]</p>"
	if got := Render(models.DialectHTML, body); got != body {
		t.Errorf("html body changed: %q", got)
	}
	if got := Render(models.DialectBBCode, "[b]x[/b]"); got != "<b>x</b>" {
		t.Errorf("bbcode body = %q", got)
	}
}

func TestImagePlaceholders(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[img]{STEAM_CLAN_IMAGE}/27357479/a.jpg[/img]",
			"https://clan.akamai.steamstatic.com/images//27357479/a.jpg"},
		{"[img]{STEAM_CLAN_LOC_IMAGE}/27766192/b.gif[/img]",
			"https://cdn.akamai.steamstatic.com/steamcommunity/public/images/clans/27766192/b.gif"},
		{`[img src="{STEAM_CLAN_IMAGE}/1/c.png"][/img]`,
			"https://clan.akamai.steamstatic.com/images//1/c.png"},
	}

	for _, tt := range tests {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(ToHTML(tt.in)))
		if err != nil {
			t.Fatal(err)
		}
		img := doc.Find("img")
		if img.Length() != 1 {
			t.Fatalf("%q: found %d images", tt.in, img.Length())
		}
		if src, _ := img.Attr("src"); src != tt.want {
			t.Errorf("src = %q, want %q", src, tt.want)
		}
		if style, _ := img.Attr("style"); !strings.Contains(style, "max-width: 100%") {
			t.Errorf("style = %q", style)
		}
	}
}

func TestUnsafeImageDropped(t *testing.T) {
	if got := ToHTML("a[img]javascript:alert(1)[/img]b"); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestMixedDocument(t *testing.T) {
	in := "[h2]Patch notes[/h2]\n[list][*][b]Fixed[/b] a crash[*]See [url=https://x.test/]notes[/url][/list]\nThanks!"
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ToHTML(in)))
	if err != nil {
		t.Fatal(err)
	}

	if got := doc.Find("h2").Text(); got != "Patch notes" {
		t.Errorf("h2 = %q", got)
	}
	items := doc.Find("ul > li")
	if items.Length() != 2 {
		t.Fatalf("li count = %d", items.Length())
	}
	if got := items.First().Find("b").Text(); got != "Fixed" {
		t.Errorf("first item bold = %q", got)
	}
	if href, _ := items.Last().Find("a").Attr("href"); href != "https://x.test/" {
		t.Errorf("href = %q", href)
	}
	if rel, _ := items.Last().Find("a").Attr("rel"); rel != "nofollow" {
		t.Errorf("rel = %q", rel)
	}
	if !strings.Contains(doc.Text(), "Thanks!") {
		t.Error("trailing text lost")
	}
}

func TestRenderIsStateless(t *testing.T) {
	first := ToHTML("[b]unclosed")
	second := ToHTML("plain")
	if first != "<b>unclosed</b>" || second != "plain" {
		t.Errorf("state leaked between calls: %q, %q", first, second)
	}
}
