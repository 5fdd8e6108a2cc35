package stss

import "strings"

// crisprTypes maps each subtype to its expected protein complement.
// Each inner slice is one complement member with its accepted
// alternate names; a locus is complete when every member has at least
// one observed match.
var crisprTypes = map[string][][]string{
	"I-A":   {{"Cas1"}, {"Cas2"}, {"Cas3"}, {"Cas4"}, {"Cas5"}, {"Cas6"}, {"Cas7"}, {"Cas8a", "Cst1"}},
	"I-B":   {{"Cas1"}, {"Cas2"}, {"Cas3"}, {"Cas4"}, {"Cas5"}, {"Cas6"}, {"Cas7"}, {"Cas8b", "Cst2"}},
	"I-C":   {{"Cas1"}, {"Cas2"}, {"Cas3"}, {"Cas4"}, {"Cas5"}, {"Cas7"}, {"Cas8c", "Csd1"}},
	"I-D":   {{"Cas1"}, {"Cas2"}, {"Cas3"}, {"Cas4"}, {"Cas5"}, {"Cas6"}, {"Cas7"}, {"Cas10d"}},
	"I-E":   {{"Cas1"}, {"Cas2"}, {"Cas3"}, {"Cas5"}, {"Cas6"}, {"Cas7"}, {"Cas8e", "Cse1"}, {"Cse2"}},
	"I-F":   {{"Cas1"}, {"Cas2"}, {"Cas3"}, {"Cas5"}, {"Cas6f", "Csy4"}, {"Cas7f", "Csy3"}, {"Cas8f", "Csy1"}},
	"II-A":  {{"Cas1"}, {"Cas2"}, {"Cas9", "Csn1"}, {"Csn2"}},
	"II-B":  {{"Cas1"}, {"Cas2"}, {"Cas4"}, {"Cas9", "Csn1"}},
	"II-C":  {{"Cas1"}, {"Cas2"}, {"Cas9", "Csn1"}},
	"III-A": {{"Cas1"}, {"Cas2"}, {"Cas6"}, {"Cas10"}, {"Csm2"}, {"Csm3"}, {"Csm4"}, {"Csm5"}},
	"III-B": {{"Cas6"}, {"Cas10"}, {"Cmr1"}, {"Cmr3"}, {"Cmr4"}, {"Cmr5"}, {"Cmr6"}},
	"IV":    {{"Csf1"}, {"Csf2"}, {"Csf3"}},
	"V-A":   {{"Cas1"}, {"Cas2"}, {"Cas4"}, {"Cas12a", "Cpf1"}},
	"V-B":   {{"Cas1"}, {"Cas2"}, {"Cas4"}, {"Cas12b", "C2c1"}},
	"VI-A":  {{"Cas1"}, {"Cas2"}, {"Cas13a", "C2c2"}},
	"VI-B":  {{"Cas13b", "C2c6"}},
}

// casSynonyms maps a canonical protein name to its most common
// alternate, used when reporting identified proteins.
var casSynonyms = map[string]string{
	"Cas9":   "Csn1",
	"Cas12a": "Cpf1",
	"Cas12b": "C2c1",
	"Cas13a": "C2c2",
	"Cas13b": "C2c6",
	"Cas8a":  "Cst1",
	"Cas8b":  "Cst2",
	"Cas8c":  "Csd1",
	"Cas8e":  "Cse1",
	"Cas8f":  "Csy1",
	"Cas7f":  "Csy3",
	"Cas6f":  "Csy4",
}

// repeatFamilyTypes maps a repeat covariance-model name (the bundled
// nhmmer models are named after the subtype whose repeat family they
// describe; a trailing R marks the reversed model) to the candidate
// subtypes it implies.
var repeatFamilyTypes = map[string][]string{
	"I-A":   {"I-A"},
	"I-B":   {"I-B"},
	"I-C":   {"I-C"},
	"I-D":   {"I-D"},
	"I-E":   {"I-E"},
	"I-F":   {"I-F"},
	"II-A":  {"II-A"},
	"II-B":  {"II-B"},
	"II-C":  {"II-A", "II-B", "II-C"},
	"III-A": {"III-A"},
	"III-B": {"III-B"},
	"V-A":   {"V-A"},
	"V-B":   {"V-B"},
	"VI-A":  {"VI-A"},
	"VI-B":  {"VI-B"},
}

// expectedArrayDirections gives the transcription direction of the
// array relative to the cas operon per subtype: +1 when the cas genes
// sit upstream of the array leader, -1 when downstream.
var expectedArrayDirections = map[string]int{
	"I-A": 1, "I-B": 1, "I-C": 1, "I-D": 1, "I-E": 1, "I-F": 1,
	"II-A": 1, "II-B": 1, "II-C": 1,
	"III-A": -1, "III-B": -1,
	"V-A": 1, "V-B": 1,
	"VI-A": 1, "VI-B": 1,
}

// casRule is one entry of the protein-name match table: a lowercase
// substring pattern, the canonical label it maps to, and the subtypes
// whose complement carries the protein.
type casRule struct {
	pattern string
	name    string
	types   []string
}

// casRules is evaluated in order with the last match winning, so a
// short alias like "cas1" cannot mask a longer, more specific name
// like "cas12a" that appears later in the table.
var casRules = buildCasRules()

func buildCasRules() []casRule {
	order := []string{
		"Cas1", "Cas2", "Cas3", "Cas4", "Cas5", "Cas6", "Cas7", "Cas9", "Cas10",
		"Csn1", "Csn2", "Cse1", "Cse2", "Csy1", "Csy3", "Csy4",
		"Csd1", "Cst1", "Cst2",
		"Csm2", "Csm3", "Csm4", "Csm5",
		"Cmr1", "Cmr3", "Cmr4", "Cmr5", "Cmr6",
		"Csf1", "Csf2", "Csf3",
		"Cpf1", "C2c1", "C2c2", "C2c6",
		"Cas6f", "Cas7f",
		"Cas8a", "Cas8b", "Cas8c", "Cas8e", "Cas8f",
		"Cas10d",
		"Cas12a", "Cas12b", "Cas13a", "Cas13b",
	}

	canonical := map[string]string{}
	for name, alt := range casSynonyms {
		canonical[alt] = name
	}

	rules := make([]casRule, 0, len(order))
	for _, label := range order {
		name := label
		if c, ok := canonical[label]; ok {
			name = c
		}
		rules = append(rules, casRule{
			pattern: strings.ToLower(label),
			name:    name,
			types:   typesCarrying(name),
		})
	}
	return rules
}

// typesCarrying returns the subtypes whose complement includes name.
func typesCarrying(name string) []string {
	var out []string
	for subtype, members := range crisprTypes {
		for _, member := range members {
			for _, alt := range member {
				if alt == name {
					out = append(out, subtype)
				}
			}
		}
	}
	return out
}

// matchCasProtein scans product text against the rule table and
// returns the canonical name and candidate subtypes of the last
// matching rule.
func matchCasProtein(product string) (string, []string, bool) {
	text := strings.ToLower(product)
	var hit *casRule
	for i := range casRules {
		if strings.Contains(text, casRules[i].pattern) {
			hit = &casRules[i]
		}
	}
	if hit == nil {
		return "", nil, false
	}
	return hit.name, hit.types, true
}

// subtypeToken extracts an explicit subtype claim embedded in product
// text, e.g. "type II-A CRISPR..." yields "II-A" and "type II Cas9"
// yields "II". Words ending in "type" (like "wild-type") do not count.
func subtypeToken(product string) (string, bool) {
	words := strings.Fields(product)
	for i, word := range words {
		if i == len(words)-1 || !strings.EqualFold(word, "type") {
			continue
		}
		token := strings.ToUpper(strings.Trim(words[i+1], ".,;:()"))
		if token != "" {
			return token, true
		}
	}
	return "", false
}

// upweightTypes returns the candidate subtypes consistent with an
// explicit subtype token in product text. Adding them to the tally a
// second time weights the annotated family over mere membership.
func upweightTypes(product string, types []string) []string {
	token, ok := subtypeToken(product)
	if !ok {
		return nil
	}
	var extra []string
	for _, t := range types {
		family, _, _ := strings.Cut(t, "-")
		if t == token || family == token {
			extra = append(extra, t)
		}
	}
	return extra
}
