// internal/pinyin/table.go
package pinyin

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// vowels mark the start of a final. "v" stands in for ü.
const vowels = "aeiouv"

// Components is the phonetic split of one syllable.
type Components struct {
	Initial string `json:"initial"`
	Final   string `json:"final"`
}

// Table maps a character to the components of its most frequent reading.
// A Table is read-only once built and safe for concurrent use.
type Table struct {
	chars map[rune]Components
}

// Split divides a toneless syllable into initial and final. The initial is
// everything before the first vowel. Syllables without a vowel (hm, ng) have
// no final and are rejected.
func Split(syllable string) (Components, bool) {
	idx := strings.IndexAny(syllable, vowels)
	if idx < 0 {
		return Components{}, false
	}
	return Components{Initial: syllable[:idx], Final: syllable[idx:]}, true
}

// NewTable builds a table from character -> syllable pairs.
func NewTable(readings map[rune]string) *Table {
	t := &Table{chars: make(map[rune]Components, len(readings))}
	for c, py := range readings {
		if comps, ok := Split(py); ok {
			t.chars[c] = comps
		}
	}
	return t
}

type reading struct {
	syllable string
	freq     uint64
}

// LoadTable parses "char,pinyin,freq" lines. When a character has several
// readings the most frequent one wins, ties broken by the lexically smaller
// syllable. Malformed lines are skipped.
func LoadTable(r io.Reader) (*Table, error) {
	raw := make(map[rune][]reading)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 3 {
			continue
		}
		charField := strings.TrimSpace(parts[0])
		if charField == "" {
			continue
		}
		c := []rune(charField)[0]
		freq, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil {
			freq = 0
		}
		raw[c] = append(raw[c], reading{syllable: strings.TrimSpace(parts[1]), freq: freq})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read pinyin table: %w", err)
	}

	t := &Table{chars: make(map[rune]Components, len(raw))}
	for c, list := range raw {
		sort.Slice(list, func(i, j int) bool {
			if list[i].freq != list[j].freq {
				return list[i].freq > list[j].freq
			}
			return list[i].syllable < list[j].syllable
		})
		if comps, ok := Split(list[0].syllable); ok {
			t.chars[c] = comps
		}
	}
	return t, nil
}

// LoadTableFile opens path and parses it with LoadTable.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pinyin table %s: %w", path, err)
	}
	defer f.Close()
	return LoadTable(f)
}

// Len reports how many characters the table knows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.chars)
}

// Lookup returns the components of c. A nil table knows nothing.
func (t *Table) Lookup(c rune) (Components, bool) {
	if t == nil {
		return Components{}, false
	}
	comps, ok := t.chars[c]
	return comps, ok
}

// Components collects the initials and finals used by text. Unknown
// characters contribute nothing.
func (t *Table) Components(text string) (initials, finals Set) {
	initials, finals = Set{}, Set{}
	for _, c := range text {
		if comps, ok := t.Lookup(c); ok {
			initials.Add(comps.Initial)
			finals.Add(comps.Final)
		}
	}
	return initials, finals
}

// Catalogue returns every initial and final present in the table, sorted.
func (t *Table) Catalogue() (initials, finals []string) {
	is, fs := Set{}, Set{}
	if t != nil {
		for _, comps := range t.chars {
			is.Add(comps.Initial)
			fs.Add(comps.Final)
		}
	}
	return is.Sorted(), fs.Sorted()
}

// Validate checks that c is known and uses neither a banned initial nor a
// banned final. The error text is meant for the player.
func (t *Table) Validate(c rune, bannedInitials, bannedFinals Set) error {
	comps, ok := t.Lookup(c)
	if !ok {
		return fmt.Errorf("Char '%c' invalid (not in table).", c)
	}
	if bannedInitials.Has(comps.Initial) {
		return fmt.Errorf("Char '%c' uses banned initial '%s'.", c, comps.Initial)
	}
	if bannedFinals.Has(comps.Final) {
		return fmt.Errorf("Char '%c' uses banned final '%s'.", c, comps.Final)
	}
	return nil
}
