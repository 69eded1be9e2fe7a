package htmlparse

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/scjn/scjn-pipeline/internal/domain"
	"golang.org/x/net/html"
)

const (
	gridID          = "gridResultados"
	emptyRowClass   = "dxgvEmptyDataRow"
	dataRowClass    = "dxgvDataRow"
	pagerTotalClass = "dxpPagerTotal"
	detailLinkMarker = "wfOrdenamientoDetalle"
	extractLinkMarker = "wfExtracto"
	pdfLinkMarker     = "AbrirDocReforma"
)

var qParamFallback = regexp.MustCompile(`[?&]q=([^&]+)`)

// pageOfPattern matches "Página N de M" case- and accent-insensitively.
// The grid's pager text is normalized (accented vowels replaced by plain
// ones) before matching so "Página"/"Pagina"/"PÁGINA" all match identically.
var pageOfPattern = regexp.MustCompile(`(?i)pagina\s+(\d+)\s+de\s+(\d+)`)

// SearchPage is the parsed result of one search results page.
type SearchPage struct {
	Items       []domain.SearchResultItem
	CurrentPage int
	TotalPages  int
}

// ParseSearchResults parses one rendered SCJN search results page. A
// missing grid is a non-recoverable *domain.ParseError. A present grid
// with an explicit "no results" marker row yields an empty item sequence,
// not an error. Rows missing a title/q_param anchor, or short on cells,
// are skipped rather than failed.
func ParseSearchResults(rawHTML string) (SearchPage, error) {
	doc, err := parseDocument(rawHTML)
	if err != nil {
		return SearchPage{}, domain.NewParseError("malformed html: "+err.Error(), rawHTML)
	}

	grid := findByID(doc, gridID)
	if grid == nil {
		return SearchPage{}, domain.NewParseError("search results grid not found", rawHTML)
	}

	if empty := findAllByClass(grid, "tr", emptyRowClass); len(empty) > 0 {
		return SearchPage{Items: nil, CurrentPage: 1, TotalPages: 1}, nil
	}

	rows := findAllByClass(grid, "tr", dataRowClass)
	items := make([]domain.SearchResultItem, 0, len(rows))
	for _, row := range rows {
		item, ok := parseResultRow(row)
		if ok {
			items = append(items, item)
		}
	}

	page, total := extractPaginationInfo(grid)
	return SearchPage{Items: items, CurrentPage: page, TotalPages: total}, nil
}

func parseResultRow(row *html.Node) (domain.SearchResultItem, bool) {
	cells := findAll(row, "td")
	if len(cells) < 6 {
		return domain.SearchResultItem{}, false
	}

	anchor := findFirst(row, "a")
	href := ""
	if anchor != nil {
		href = attr(anchor, "href")
	}
	if !strings.Contains(href, detailLinkMarker) {
		// search for a detail anchor anywhere among descendants, not
		// necessarily the first <a>
		href = hrefContaining(row, detailLinkMarker)
	}
	if href == "" {
		return domain.SearchResultItem{}, false
	}

	qParam := extractQParam(href)
	if qParam == "" {
		return domain.SearchResultItem{}, false
	}

	title := text(cells[0])
	if title == "" && anchor != nil {
		title = text(anchor)
	}
	if title == "" {
		return domain.SearchResultItem{}, false
	}

	item := domain.SearchResultItem{
		Title:  title,
		QParam: qParam,
	}
	item.PublicationDate = ParseDateDDMMYYYY(text(cells[1]))
	item.ExpeditionDate = ParseDateDDMMYYYY(text(cells[2]))
	item.Status = domain.ParseStatus(text(cells[3]))
	item.Category = domain.ParseCategory(text(cells[4]))
	item.Scope = domain.ParseScope(text(cells[5]))
	item.HasExtract = hrefContaining(row, extractLinkMarker) != ""
	item.HasPDF = hrefContaining(row, pdfLinkMarker) != ""
	return item, true
}

// extractQParam pulls the "q" query parameter out of href, using a full
// URL parse first and falling back to a direct regex for hrefs that are
// not valid URLs (e.g. javascript: pseudo-hrefs wrapping a query string).
func extractQParam(href string) string {
	if u, err := url.Parse(href); err == nil {
		if q := u.Query().Get("q"); q != "" {
			return q
		}
	}
	if m := qParamFallback.FindStringSubmatch(href); m != nil {
		if decoded, err := url.QueryUnescape(m[1]); err == nil {
			return decoded
		}
		return m[1]
	}
	return ""
}

// extractPaginationInfo parses the "Página N de M" pager text. Accents
// are stripped before matching so the case/accent-insensitive pattern
// works without a locale-aware collator.
func extractPaginationInfo(grid *html.Node) (page, total int) {
	pagers := findAllByClass(grid, "td", pagerTotalClass)
	if len(pagers) == 0 {
		return 1, 1
	}
	normalized := stripAccents(text(pagers[0]))
	m := pageOfPattern.FindStringSubmatch(normalized)
	if m == nil {
		return 1, 1
	}
	page, _ = strconv.Atoi(m[1])
	total, _ = strconv.Atoi(m[2])
	if page == 0 {
		page = 1
	}
	if total == 0 {
		total = 1
	}
	return page, total
}

// stripAccents removes the small set of accented vowels the SCJN pager
// text uses, so "Página" and "Pagina" compare equal.
func stripAccents(s string) string {
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
		"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U",
	)
	s = replacer.Replace(s)
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
