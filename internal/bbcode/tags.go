package bbcode

import "strings"

type tagKind int

const (
	kindSimple    tagKind = iota // wrap in the element named by tagDef.element
	kindList                     // ul, or ol when the option asks for numbering
	kindOList                    // ol
	kindListItem                 // li, implicitly closed by the next [*]
	kindQuote                    // blockquote with optional author
	kindCode                     // pre+code, raw contents
	kindNoParse                  // raw contents
	kindColor                    // span with a validated color
	kindURL                      // anchor, rel=nofollow
	kindHR                       // standalone rule
	kindImg                      // image with CDN placeholder substitution
	kindPreviewYouTube           // plain link to the watch page
	kindSpoiler                  // same foreground and background color
)

type tagDef struct {
	kind    tagKind
	element string

	noNewlines   bool // keep \n as-is inside
	noCosmetic   bool // skip typographic replacements inside
	noLinks      bool // leave bare urls as text inside
	raw          bool // contents are not parsed for tags
	standalone   bool // has no closing tag
	strip        bool // trim whitespace around rendered contents
	swallowAfter bool // eat one newline right after the tag
}

// tags is the closed set of recognized tags. Anything else is literal text.
var tags = map[string]tagDef{
	"b":      {kind: kindSimple, element: "b"},
	"i":      {kind: kindSimple, element: "i"},
	"u":      {kind: kindSimple, element: "u"},
	"s":      {kind: kindSimple, element: "s"},
	"strike": {kind: kindSimple, element: "strike"},
	"sub":    {kind: kindSimple, element: "sub"},
	"sup":    {kind: kindSimple, element: "sup"},
	"center": {kind: kindSimple, element: "center"},

	"h1": {kind: kindSimple, element: "h1", swallowAfter: true},
	"h2": {kind: kindSimple, element: "h2", swallowAfter: true},
	"h3": {kind: kindSimple, element: "h3", swallowAfter: true},
	"h4": {kind: kindSimple, element: "h4", swallowAfter: true},
	"h5": {kind: kindSimple, element: "h5", swallowAfter: true},
	"h6": {kind: kindSimple, element: "h6", swallowAfter: true},

	"table": {kind: kindSimple, element: "table", noNewlines: true, strip: true, swallowAfter: true},
	"tr":    {kind: kindSimple, element: "tr", noNewlines: true, strip: true},
	"th":    {kind: kindSimple, element: "th", noNewlines: true, strip: true},
	"td":    {kind: kindSimple, element: "td", noNewlines: true, strip: true},

	"list":  {kind: kindList, noNewlines: true, strip: true, swallowAfter: true},
	"olist": {kind: kindOList, noNewlines: true, strip: true, swallowAfter: true},
	"*":     {kind: kindListItem, noNewlines: true, strip: true},

	"quote":   {kind: kindQuote, strip: true, swallowAfter: true},
	"code":    {kind: kindCode, noNewlines: true, noCosmetic: true, noLinks: true, raw: true, swallowAfter: true},
	"noparse": {kind: kindNoParse, noNewlines: true, noCosmetic: true, noLinks: true, raw: true},

	"color": {kind: kindColor},
	"url":   {kind: kindURL, noCosmetic: true, noLinks: true},
	"hr":    {kind: kindHR, standalone: true, swallowAfter: true},

	"img":            {kind: kindImg, noCosmetic: true, raw: true},
	"previewyoutube": {kind: kindPreviewYouTube, raw: true},
	"spoiler":        {kind: kindSpoiler, noNewlines: true, noCosmetic: true},
}

func lookupTag(name string) (tagDef, bool) {
	def, ok := tags[strings.ToLower(name)]
	return def, ok
}

// CDN placeholders used by community image tags
var imagePlaceholders = []struct{ token, prefix string }{
	{"{STEAM_CLAN_IMAGE}", "https://clan.akamai.steamstatic.com/images/"},
	{"{STEAM_CLAN_LOC_IMAGE}", "https://cdn.akamai.steamstatic.com/steamcommunity/public/images/clans"},
}

const (
	imgStyle     = "display: inline-block; max-width: 100%;"
	spoilerStyle = "color: #000000;background-color: #000000;padding: 0px 8px;"
	youtubeWatch = "https://www.youtube.com/watch?v="
)

var cosmeticReplacer = strings.NewReplacer(
	"---", "&mdash;",
	"--", "&ndash;",
	"...", "&#8230;",
	"(c)", "&copy;",
	"(reg)", "&reg;",
	"(tm)", "&trade;",
)

var newlineReplacer = strings.NewReplacer(
	"\r\n", "<br />",
	"\r", "<br />",
	"\n", "<br />",
)
