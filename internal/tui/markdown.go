package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	fencedCodeRe = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	inlineCodeRe = regexp.MustCompile(`<code>([^<]+)</code>`)
	headingRe    = regexp.MustCompile(`<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	boldRe       = regexp.MustCompile(`<strong>(.*?)</strong>`)
	italicRe     = regexp.MustCompile(`<em>(.*?)</em>`)
	linkRe       = regexp.MustCompile(`<a href="([^"]*)"[^>]*>(.*?)</a>`)
	listItemRe   = regexp.MustCompile(`<li>(.*?)</li>`)
	anyTagRe     = regexp.MustCompile(`<[^>]+>`)
	blankRunsRe  = regexp.MustCompile(`\n{3,}`)
)

// Renderer converts assistant markdown into styled terminal text. Markdown is
// first rendered to HTML by goldmark, then the small HTML subset chat replies
// actually use is mapped to ANSI styles; fenced code goes through chroma.
type Renderer struct {
	md        goldmark.Markdown
	formatter chroma.Formatter
	style     *chroma.Style
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("dracula"),
	}
}

// Render returns content styled for a terminal of the given width. On any
// conversion failure the raw text is returned unchanged.
func (r *Renderer) Render(content string, width int) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return content
	}
	return r.htmlToANSI(buf.String(), width)
}

func (r *Renderer) htmlToANSI(in string, width int) string {
	out := in

	// Code blocks are pulled out first so later tag stripping cannot touch
	// their contents.
	var blocks []string
	out = fencedCodeRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := fencedCodeRe.FindStringSubmatch(m)
		code := unescapeEntities(sub[2])
		blocks = append(blocks, codeBlockStyle.Width(max(width-4, 20)).Render(r.Highlight(code, sub[1])))
		return fmt.Sprintf("\n\x00block%d\x00\n", len(blocks)-1)
	})

	out = inlineCodeRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := inlineCodeRe.FindStringSubmatch(m)
		return inlineCodeStyle.Render(unescapeEntities(sub[1]))
	})
	out = headingRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := headingRe.FindStringSubmatch(m)
		return headingStyle.Render(sub[2]) + "\n"
	})
	out = boldRe.ReplaceAllStringFunc(out, func(m string) string {
		return lipgloss.NewStyle().Bold(true).Render(boldRe.FindStringSubmatch(m)[1])
	})
	out = italicRe.ReplaceAllStringFunc(out, func(m string) string {
		return lipgloss.NewStyle().Italic(true).Render(italicRe.FindStringSubmatch(m)[1])
	})
	out = linkRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		return linkStyle.Render(sub[2] + " (" + sub[1] + ")")
	})
	out = listItemRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := listItemRe.FindStringSubmatch(m)
		return bulletStyle.Render("• ") + anyTagRe.ReplaceAllString(sub[1], "") + "\n"
	})

	out = strings.ReplaceAll(out, "</p>", "\n")
	out = strings.ReplaceAll(out, "<br>", "\n")
	out = strings.ReplaceAll(out, "<br />", "\n")
	out = anyTagRe.ReplaceAllString(out, "")
	out = unescapeEntities(out)

	for i, block := range blocks {
		out = strings.ReplaceAll(out, fmt.Sprintf("\x00block%d\x00", i), block)
	}

	out = blankRunsRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Highlight renders one code block with chroma. Unknown languages fall back
// to content analysis, then to plain text.
func (r *Renderer) Highlight(code, lang string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&#x27;", "'",
	"&#x60;", "`",
	"&nbsp;", " ",
)

func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}

var (
	codeBlockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)
	inlineCodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorUser)).
			Background(lipgloss.Color(colorBorder)).
			Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPrimary))
	linkStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color(colorUser))
	bulletStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAssistant))
)
