package htmlparse

import (
	"regexp"
	"strings"
	"time"

	"github.com/scjn/scjn-pipeline/internal/domain"
	"golang.org/x/net/html"
)

const (
	detailContainerID = "ordenamientoDetalle"
	articleRowClass   = "articulo"
	articleIDPrefix   = "art_"
	reformsTableClass = "reformasTable"
	transitoryMarker  = "TRANSITORIO"
)

// fieldLabels maps the Spanish detail-page labels to the DocumentDetailResult
// field they populate.
var fieldLabels = map[string]string{
	"tipo de ordenamiento": "category",
	"ambito":               "scope",
	"estatus":              "status",
	"fecha de publicacion": "publication_date",
	"fecha de expedicion":  "expedition_date",
}

// ordinalPattern recognizes Spanish ordinal transitory-article numbering:
// PRIMERO, SEGUNDO, ... DÉCIMO. Roman numerals are not matched.
var ordinalPattern = regexp.MustCompile(`(?i)^(primero|segundo|tercero|cuarto|quinto|sexto|septimo|s[eé]ptimo|octavo|noveno|d[eé]cimo)\b`)

// articleNumberPattern recognizes plain/"1°"/"1º"/"N Bis"/"N-A" article
// numbering.
var articleNumberPattern = regexp.MustCompile(`(?i)^(\d+)\s*(°|º)?\s*(bis|-?a)?`)

// ParseDocumentDetail parses a rendered SCJN document detail page. A
// missing main container is a non-recoverable *domain.ParseError. An
// empty title is permitted — not every ordinance carries one on this
// page.
func ParseDocumentDetail(rawHTML string) (domain.DocumentDetailResult, error) {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return domain.DocumentDetailResult{}, domain.NewParseError("malformed html: "+err.Error(), rawHTML)
	}

	container := findByID(doc, detailContainerID)
	if container == nil {
		return domain.DocumentDetailResult{}, domain.NewParseError("detail container not found", rawHTML)
	}

	result := domain.DocumentDetailResult{}
	result.Title = detailTitle(container)
	fields := detailFields(container)
	result.Category = domain.ParseCategory(fields["category"])
	result.Scope = domain.ParseScope(fields["scope"])
	result.Status = domain.ParseStatus(fields["status"])
	result.PublicationDate = ParseDateDDMMYYYY(fields["publication_date"])
	result.ExpeditionDate = ParseDateDDMMYYYY(fields["expedition_date"])
	result.Articles = parseArticles(container)
	result.Reforms = parseReforms(container)
	return result, nil
}

func detailTitle(container *html.Node) string {
	if h := findFirst(container, "h1"); h != nil {
		return text(h)
	}
	return ""
}

// detailFields walks every row-like element looking for a Spanish label
// followed by a value, returning a map keyed by the internal field name.
// A label with no adjacent value is simply absent from the map, which
// ParseCategory/ParseScope/etc. interpret as their documented default,
// matching a missing-field → null contract everywhere else.
func detailFields(container *html.Node) map[string]string {
	out := make(map[string]string)
	rows := append(findAll(container, "tr"), findAll(container, "li")...)
	for _, row := range rows {
		cells := findAll(row, "td")
		var label, value string
		if len(cells) >= 2 {
			label = normalizeFieldLabel(text(cells[0]))
			value = text(cells[1])
		} else {
			raw := text(row)
			parts := strings.SplitN(raw, ":", 2)
			if len(parts) != 2 {
				continue
			}
			label = normalizeFieldLabel(parts[0])
			value = strings.TrimSpace(parts[1])
		}
		if key, ok := fieldLabels[label]; ok && value != "" {
			out[key] = value
		}
	}
	return out
}

func normalizeFieldLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ":")
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")
	return replacer.Replace(s)
}

func parseArticles(container *html.Node) []domain.Article {
	nodes := findAllByClass(container, "div", articleRowClass)
	if len(nodes) == 0 {
		nodes = articlesByIDPrefix(container)
	}
	articles := make([]domain.Article, 0, len(nodes))
	for _, n := range nodes {
		articles = append(articles, parseOneArticle(n))
	}
	return articles
}

// articlesByIDPrefix is the structural fallback when a class hook isn't
// present: every element whose id starts with "art_" is an article.
func articlesByIDPrefix(container *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.HasPrefix(attr(n, "id"), articleIDPrefix) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
	return out
}

func parseOneArticle(n *html.Node) domain.Article {
	heading := ""
	if h := findFirst(n, "h3"); h != nil {
		heading = text(h)
	} else if h := findFirst(n, "b"); h != nil {
		heading = text(h)
	}

	isTransitory := hasClass(n, "transitorio") || strings.Contains(strings.ToUpper(heading), transitoryMarker)

	number := extractArticleNumber(heading, isTransitory)

	content := articleContent(n, heading)

	return domain.Article{
		Number:       number,
		Title:        heading,
		Content:      content,
		IsTransitory: isTransitory,
	}
}

// headingPrefixPattern strips the leading "Artículo"/"Articulo"/
// "Transitorio" word (with optional accent) so the number/ordinal
// patterns can match starting at position zero.
var headingPrefixPattern = regexp.MustCompile(`(?i)^(art[ií]culo|transitorio)\s*`)

func extractArticleNumber(heading string, isTransitory bool) string {
	trimmed := strings.TrimSpace(headingPrefixPattern.ReplaceAllString(strings.TrimSpace(heading), ""))
	if isTransitory {
		if m := ordinalPattern.FindString(trimmed); m != "" {
			return strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
		}
		return trimmed
	}
	if m := articleNumberPattern.FindStringSubmatch(trimmed); m != nil {
		num := m[1]
		if strings.EqualFold(m[3], "bis") {
			return num + " Bis"
		}
		if m[3] != "" {
			return num + "-A"
		}
		return num
	}
	return trimmed
}

// articleContent returns the concatenation of paragraph children, falling
// back to the full element's text with the heading removed.
func articleContent(n *html.Node, heading string) string {
	paras := findAll(n, "p")
	if len(paras) > 0 {
		parts := make([]string, 0, len(paras))
		for _, p := range paras {
			if t := text(p); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n\n")
	}
	full := text(n)
	if heading != "" {
		full = strings.TrimSpace(strings.Replace(full, heading, "", 1))
	}
	return full
}

// parseReforms reads the reforms table: cells[0] holds the detail link
// (its text is the title, its href carries the q_param), cells[1] the
// publication date, cells[2] the gazette reference.
func parseReforms(container *html.Node) []domain.ReformResult {
	tables := findAllByClass(container, "table", reformsTableClass)
	if len(tables) == 0 {
		return nil
	}
	rows := findAllByClass(tables[0], "tr", dataRowClass)
	out := make([]domain.ReformResult, 0, len(rows))
	for _, row := range rows {
		link := linkContaining(row, detailLinkMarker)
		if link == nil {
			continue
		}
		qParam := extractQParam(attr(link, "href"))
		if qParam == "" {
			continue
		}
		cells := findAll(row, "td")
		var pubDate *time.Time
		var gazette string
		if len(cells) > 1 {
			pubDate = ParseDateDDMMYYYY(text(cells[1]))
		}
		if len(cells) > 2 {
			gazette = text(cells[2])
		}
		out = append(out, domain.ReformResult{
			QParam:          qParam,
			Title:           text(link),
			PublicationDate: pubDate,
			GazetteSection:  gazette,
			HasPDF:          hrefContaining(row, pdfLinkMarker) != "",
		})
	}
	return out
}

// spanishStopwords are skipped when deriving a short title from initials.
var spanishStopwords = map[string]bool{
	"de": true, "del": true, "la": true, "las": true, "los": true,
	"el": true, "en": true, "y": true, "a": true, "para": true,
	"por": true, "con": true,
}

// ShortTitle derives a Spanish-initials short title from a full title,
// filtering the common stopword set.
func ShortTitle(title string) string {
	var sb strings.Builder
	for _, word := range strings.Fields(title) {
		lower := strings.ToLower(strings.Trim(word, ".,;:()"))
		if lower == "" || spanishStopwords[lower] {
			continue
		}
		r := []rune(word)
		sb.WriteString(strings.ToUpper(string(r[0])))
	}
	return sb.String()
}
