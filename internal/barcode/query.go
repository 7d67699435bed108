package barcode

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// searchSites restricts web searches to retailers and catalogs whose page
// titles are product names.
var searchSites = []string{
	"allocine.fr",
	"amazon.fr",
	"auchan.fr",
	"boulanger.fr",
	"carrefour.fr",
	"cdiscount.com",
	"chapitre.com",
	"cultura.com",
	"darty.com",
	"decitre.fr",
	"deezer.com",
	"discogs.com",
	"dvdfr.com",
	"e.leclerc",
	"ebay.fr",
	"espritjeu.com",
	"filmcomplet.fr",
	"fnac.com",
	"furet.com",
	"gibert.com",
	"grosbill.com",
	"jeuxvideo.com",
	"ldlc.com",
	"leboncoin.fr",
	"librairiesindependantes.com",
	"ludifolie.com",
	"micromania.fr",
	"philibert.fr",
	"placedeslibraires.fr",
	"qobuz.com",
	"rakuten.fr",
	"rueducommerce.fr",
	"trictrac.net",
}

// Normalize keeps only the digits of raw.
func Normalize(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// BuildSearchQuery is the barcode followed by a site: disjunction over the
// curated retailer list.
func BuildSearchQuery(barcode string) string {
	sites := make([]string, len(searchSites))
	for i, s := range searchSites {
		sites[i] = "site:" + s
	}
	return Normalize(barcode) + " (" + strings.Join(sites, " OR ") + ")"
}
