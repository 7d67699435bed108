package productname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want string
	}{
		{
			name: "nil input",
			raw:  nil,
			want: "",
		},
		{
			name: "only empty entries",
			raw:  []string{"", ""},
			want: "",
		},
		{
			name: "single name keeps content",
			raw:  []string{"Foo Bar"},
			want: "Foo Bar",
		},
		{
			name: "single name collapses whitespace",
			raw:  []string{"  Foo   Bar "},
			want: "Foo Bar",
		},
		{
			name: "console listings",
			raw:  []string{"Sony PS5 Console - 825GB", "PS5 Console 825GB Sony", "sony ps5 console 825gb"},
			want: "PS5 Console 825GB",
		},
		{
			name: "book listings with retailer noise",
			raw:  []string{"", "Dune - Frank Herbert - Pocket", "Dune de Frank Herbert | Fnac", "DUNE Frank Herbert Livre Poche"},
			want: "Dune Frank Herbert",
		},
		{
			name: "board game listings",
			raw:  []string{"Catan : Le Jeu de base - Kosmos", "Catan le jeu de base", "CATAN - Le jeu de base (Edition 2015)"},
			want: "Catan Le jeu de base",
		},
		{
			name: "short names fall back to frequent words",
			raw:  []string{"abc", "abd", "abcd"},
			want: "abc abd abcd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.raw))
		})
	}
}

func TestExtractKeepsShortTitle(t *testing.T) {
	raw := []string{"Sony PS5 Console - 825GB", "PS5 Console 825GB Sony", "sony ps5 console 825gb"}
	got := Extract(raw)

	assert.Contains(t, got, "PS5")
	assert.Contains(t, got, "Console")
	assert.NotContains(t, got, "ps5")
	for _, r := range raw {
		assert.Less(t, len(got), len(r))
	}
}

func TestSegments(t *testing.T) {
	got := segments("sony ps5 console - 825gb")

	assert.Equal(t, []string{
		"sony ps5 console",
		"sony ps5",
		"ps5 console",
		"825gb",
		"sony ps5 console - 825gb",
	}, got)
}

func TestCapitalize(t *testing.T) {
	t.Run("uses most frequent casing from raw names", func(t *testing.T) {
		got := capitalize("ps5 console", []string{"PS5 console", "PS5 Console", "ps5 Console"})
		assert.Equal(t, "PS5 Console", got)
	})

	t.Run("title-cases unseen words with minor word and abbreviation rules", func(t *testing.T) {
		got := capitalize("the legend of zelda NES de luxe", nil)
		assert.Equal(t, "The Legend Of Zelda NES de Luxe", got)
	})

	t.Run("first word is capitalized even when minor", func(t *testing.T) {
		assert.Equal(t, "A Tale Of the City", capitalize("a tale of the city", nil))
	})
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Catan (Edition 2015) neuf", "Catan"},
		{"Dune - Frank Herbert | Fnac", "Dune - Frank Herbert"},
		{"Mario Kart 8 au meilleur prix  livraison gratuite", "Mario Kart 8"},
		{"Zelda   Breath of the Wild", "Zelda Breath of the Wild"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), tt.in)
	}
}
