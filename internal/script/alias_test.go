package script

import (
	"reflect"
	"testing"

	"github.com/mudlink/mudlink/pkg/protocol"
)

func alias(pattern, matchType, replacement string) protocol.Alias {
	return protocol.Alias{Pattern: pattern, MatchType: matchType, Replacement: replacement, Enabled: true}
}

func TestSplitCommands(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a;b", []string{"a", "b"}},
		{"a ; b ;", []string{"a", "b"}},
		{"one\ntwo", []string{"one", "two"}},
		{"say {one;two};n", []string{"say {one;two}", "n"}},
		{`say hi\;bye`, []string{"say hi;bye"}},
		{"", nil},
		{";;;", nil},
	}
	for _, tt := range tests {
		got := SplitCommands(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCommands(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExpandAliasesRecursion(t *testing.T) {
	aliases := []protocol.Alias{
		alias("kk", protocol.MatchExact, "kill $1; loot"),
		alias("loot", protocol.MatchExact, "get all from corpse"),
	}

	got := ExpandAliases("kk kobold", aliases)
	want := []string{"kill kobold", "get all from corpse"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandAliasesDepthBound(t *testing.T) {
	aliases := []protocol.Alias{
		alias("a", protocol.MatchExact, "a"),
	}

	got := ExpandAliases("a", aliases)
	// Self-referencing alias terminates at the bound instead of hanging.
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("got %v", got)
	}
}

func TestExactMatch(t *testing.T) {
	aliases := []protocol.Alias{
		alias("gc", protocol.MatchExact, "get coins from $*"),
	}

	got := ExpandAliases("GC corpse chest", aliases)
	if !reflect.DeepEqual(got, []string{"get coins from corpse chest"}) {
		t.Fatalf("exact match is case-insensitive on the verb: %v", got)
	}

	// The verb must be the whole first word.
	if got := ExpandAliases("gcx", aliases); !reflect.DeepEqual(got, []string{"gcx"}) {
		t.Fatalf("got %v", got)
	}
}

func TestStartsWithMatch(t *testing.T) {
	aliases := []protocol.Alias{
		alias("tel b", protocol.MatchStartsWith, "tell bob $*"),
	}

	got := ExpandAliases("tel b hello there", aliases)
	if !reflect.DeepEqual(got, []string{"tell bob hello there"}) {
		t.Fatalf("got %v", got)
	}
	if got := ExpandAliases("tel bob hi", aliases); !reflect.DeepEqual(got, []string{"tel bob hi"}) {
		t.Fatalf("prefix must stop at a word boundary: %v", got)
	}
}

func TestTinTinAlias(t *testing.T) {
	aliases := []protocol.Alias{
		alias("k %1 with %2", protocol.MatchTinTin, "kill %1; wield %2"),
	}

	got := ExpandAliases("k orc with sword", aliases)
	want := []string{"kill orc", "wield sword"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRegexAlias(t *testing.T) {
	aliases := []protocol.Alias{
		alias(`^buy (\d+) (\w+)$`, protocol.MatchRegex, "order $1 units of $2"),
	}

	got := ExpandAliases("buy 5 bread", aliases)
	if !reflect.DeepEqual(got, []string{"order 5 units of bread"}) {
		t.Fatalf("got %v", got)
	}
}

func TestFirstMatchingAliasWins(t *testing.T) {
	aliases := []protocol.Alias{
		alias("go", protocol.MatchExact, "north"),
		alias("go", protocol.MatchExact, "south"),
	}
	if got := ExpandAliases("go", aliases); !reflect.DeepEqual(got, []string{"north"}) {
		t.Fatalf("got %v", got)
	}
}

func TestDisabledAliasSkipped(t *testing.T) {
	aliases := []protocol.Alias{
		{Pattern: "go", MatchType: protocol.MatchExact, Replacement: "north", Enabled: false},
	}
	if got := ExpandAliases("go", aliases); !reflect.DeepEqual(got, []string{"go"}) {
		t.Fatalf("got %v", got)
	}
}
