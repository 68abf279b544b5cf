package pipeline

import (
	"net/url"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newContentConverter builds the shared HTML-to-Markdown converter. The
// base plugin drops script/style/head noise, commonmark renders the rest,
// and the table plugin keeps vehicle spec sheets readable with minimal
// padding so the intelligence calls spend tokens on content, not markup.
func newContentConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// prepareContent converts page HTML to Markdown for the stage prompts,
// resolving relative links against the page URL. Conversion failure falls
// back to the raw HTML; a worse prompt beats a lost item.
func (p *Pipeline) prepareContent(pageURL, html string) string {
	domainOpt := ""
	if u, err := url.Parse(pageURL); err == nil {
		domainOpt = u.Scheme + "://" + u.Host
	}

	md, err := p.converter.ConvertString(html, converter.WithDomain(domainOpt))
	if err != nil || md == "" {
		p.logger.Debug("markdown conversion fell back to raw html",
			"url", pageURL,
			"error", err,
		)
		return html
	}
	return md
}
