package search

import (
	"sync"

	"github.com/sajari/fuzzy"
)

// minCorrectLen is the shortest word that is spell-corrected. Shorter words
// are within edit distance 2 of too many unrelated terms.
const minCorrectLen = 4

// vocabulary seeds the spelling model. It holds the synonym keys plus a few
// other site terms that users commonly misspell.
var vocabulary = []string{
	"cable", "resistor", "conduit", "brick", "excavator", "bulldozer", "crane",
}

var speller = sync.OnceValue(func() *fuzzy.Model {
	model := fuzzy.NewModel()
	model.SetThreshold(1)
	model.SetDepth(2)
	model.Train(vocabulary)
	return model
})

// CorrectWord returns the vocabulary term closest to w, or w unchanged when
// no term is within two edits.
func CorrectWord(w string) string {
	if len(w) < minCorrectLen {
		return w
	}
	if c := speller().SpellCheck(w); c != "" {
		return c
	}
	return w
}
