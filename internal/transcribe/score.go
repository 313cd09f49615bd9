package transcribe

import (
	"strings"
	"unicode"
)

// Score compares a transcript against a known-good reference text.
type Score struct {
	WER           float64 // (Substitutions+Insertions+Deletions) / RefWords
	Substitutions int
	Insertions    int
	Deletions     int
	RefWords      int
}

type editOp uint8

const (
	opMatch editOp = iota
	opSub
	opDel
	opIns
)

type editCell struct {
	cost int
	op   editOp
}

// ComputeWER returns the word error rate of hypothesis against reference.
// Both texts are lowercased and stripped of punctuation before splitting on
// whitespace. Combining marks are kept, so vowel signs in Indic scripts stay
// part of their word. An empty reference scores zero.
func ComputeWER(reference, hypothesis string) Score {
	ref := tokenize(reference)
	hyp := tokenize(hypothesis)
	if len(ref) == 0 {
		return Score{}
	}

	grid := alignWords(ref, hyp)

	s := Score{RefWords: len(ref)}
	for i, j := len(ref), len(hyp); i > 0 || j > 0; {
		switch grid[i][j].op {
		case opMatch:
			i, j = i-1, j-1
		case opSub:
			s.Substitutions++
			i, j = i-1, j-1
		case opDel:
			s.Deletions++
			i--
		case opIns:
			s.Insertions++
			j--
		}
	}
	s.WER = float64(s.Substitutions+s.Insertions+s.Deletions) / float64(s.RefWords)
	return s
}

// alignWords fills a Levenshtein grid over words, recording for each cell
// the edit that reached it. Ties prefer the diagonal, then deletion.
func alignWords(ref, hyp []string) [][]editCell {
	grid := make([][]editCell, len(ref)+1)
	for i := range grid {
		grid[i] = make([]editCell, len(hyp)+1)
		grid[i][0] = editCell{cost: i, op: opDel}
	}
	for j := 1; j <= len(hyp); j++ {
		grid[0][j] = editCell{cost: j, op: opIns}
	}

	for i := 1; i <= len(ref); i++ {
		for j := 1; j <= len(hyp); j++ {
			best := editCell{cost: grid[i-1][j-1].cost, op: opMatch}
			if ref[i-1] != hyp[j-1] {
				best = editCell{cost: best.cost + 1, op: opSub}
			}
			if c := grid[i-1][j].cost + 1; c < best.cost {
				best = editCell{cost: c, op: opDel}
			}
			if c := grid[i][j-1].cost + 1; c < best.cost {
				best = editCell{cost: c, op: opIns}
			}
			grid[i][j] = best
		}
	}
	return grid
}

func tokenize(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(cleaned)
}
