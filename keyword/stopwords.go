package keyword

import "strings"

// englishStopwords is the default stopword set, matching the common English
// list used by text-vectorization toolkits.
var englishStopwords = func() map[string]struct{} {
	words := strings.Fields(`
a about above after again against all am an and any are as at be because been
before being below between both but by cannot could did do does doing down
during each few for from further had has have having he her here hers herself
him himself his how i if in into is it its itself just me more most my myself
no nor not now of off on once only or other our ours ourselves out over own
same she should so some such than that the their theirs them themselves then
there these they this those through to too under until up very was we were
what when where which while who whom why will with you your yours yourself
yourselves`)

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// EnglishStopwords returns a copy of the default stopword set, for callers
// that want to extend it.
func EnglishStopwords() map[string]struct{} {
	out := make(map[string]struct{}, len(englishStopwords))
	for w := range englishStopwords {
		out[w] = struct{}{}
	}
	return out
}
