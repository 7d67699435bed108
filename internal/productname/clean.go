package productname

import (
	"regexp"
	"strings"
)

var (
	parenRegex = regexp.MustCompile(`\(.*?\)`)
	noiseRegex = regexp.MustCompile(`(?i)\b(au meilleur prix|meilleur prix|neuf|occasion|prix choc|pas cher|offre spéciale|nouveauté|remise|promotion|promo|livraison gratuite|top vente|en stock|expédié rapidement|100% original|nouveau modèle)\b`)
	pipeRegex  = regexp.MustCompile(`\s*\|.*$`)
)

// Clean strips retailer boilerplate from a product name: parenthesized
// notes, promotional phrases and any "| Shop name" suffix.
func Clean(name string) string {
	name = parenRegex.ReplaceAllString(name, "")
	name = noiseRegex.ReplaceAllString(name, "")
	name = pipeRegex.ReplaceAllString(name, "")
	return collapse(strings.TrimSpace(name))
}
