// ruled/tools/rule_gen/main.go

package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"ruled/pkg/ruleset"
)

var (
	numDocs      int
	rulesPerDoc  int
	outDir       string
	seed         int64
	yamlOutput   bool
	reactPercent int
)

func init() {
	flag.IntVar(&numDocs, "docs", 5, "Number of rule documents to generate")
	flag.IntVar(&rulesPerDoc, "rules", 4, "Number of rules per document")
	flag.StringVar(&outDir, "out", "rules", "Output directory for generated documents")
	flag.Int64Var(&seed, "seed", 0, "Random seed (0 uses the current time)")
	flag.BoolVar(&yamlOutput, "yaml", false, "Emit YAML documents instead of JSON")
	flag.IntVar(&reactPercent, "react", 40, "Percentage of react actions")
}

var priorities = []ruleset.Priority{
	ruleset.PriorityLow, ruleset.PriorityMedium, ruleset.PriorityHigh,
}

var commandNamespaces = []string{"Code", "Project", "Docs", "Test", "Deploy"}

var lifecycleEvents = []string{
	"session.start", "session.end", "project.open", "project.close",
}

func main() {
	flag.Parse()
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	gofakeit.Seed(seed)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Printf("Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	format := ruleset.FormatJSON
	ext := ".json"
	if yamlOutput {
		format = ruleset.FormatYAML
		ext = ".yaml"
	}

	for i := 0; i < numDocs; i++ {
		doc := &ruleset.Document{}
		for j := 0; j < rulesPerDoc; j++ {
			doc.Rules = append(doc.Rules, generateRule(rng))
		}

		data, err := ruleset.EncodeDocument(doc, format)
		if err != nil {
			fmt.Printf("Failed to encode document: %v\n", err)
			os.Exit(1)
		}

		name := filepath.Join(outDir, fmt.Sprintf("generated_%02d%s", i, ext))
		if err := os.WriteFile(name, data, 0o644); err != nil {
			fmt.Printf("Failed to write %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%d rules)\n", name, rulesPerDoc)
	}
}

func generateRule(rng *rand.Rand) ruleset.Rule {
	name := fmt.Sprintf("%s-%s-%d", gofakeit.Verb(), gofakeit.NounAbstract(), rng.Intn(1000))
	name = strings.ToLower(strings.ReplaceAll(name, " ", "-"))

	rule := ruleset.Rule{
		Name:    name,
		Filters: []ruleset.Filter{generateFilter(rng)},
		Metadata: ruleset.Metadata{
			Priority: priorities[rng.Intn(len(priorities))],
			Version:  fmt.Sprintf("%d.%d.%d", rng.Intn(3), rng.Intn(10), rng.Intn(10)),
		},
	}

	// Some rules list alternative trigger phrasings for the same actions.
	if rule.Filters[0].Type == ruleset.FilterKindCommand && rng.Float32() < 0.3 {
		ns := commandNamespaces[rng.Intn(len(commandNamespaces))]
		rule.Filters = append(rule.Filters, ruleset.Filter{
			Type:    ruleset.FilterKindCommand,
			Pattern: fmt.Sprintf(`%s.%s:(.*)`, ns, gofakeit.Verb()),
		})
	}

	// React templates reference $1, so only rules whose filters capture a
	// group get one.
	hasCapture := rule.Filters[0].Type != ruleset.FilterKindEvent
	if hasCapture && rng.Intn(100) < reactPercent {
		rule.Actions = append(rule.Actions, ruleset.Action{
			Type:     ruleset.ActionKindReact,
			Template: fmt.Sprintf("%s report for $1", gofakeit.Adjective()),
			Target:   "reports/$1.md",
		})
	} else {
		rule.Actions = append(rule.Actions, ruleset.Action{
			Type:    ruleset.ActionKindSuggest,
			Message: gofakeit.Sentence(8),
		})
	}

	return rule
}

func generateFilter(rng *rand.Rand) ruleset.Filter {
	switch rng.Intn(3) {
	case 0:
		ns := commandNamespaces[rng.Intn(len(commandNamespaces))]
		return ruleset.Filter{
			Type:    ruleset.FilterKindCommand,
			Pattern: fmt.Sprintf(`%s.%s:(.*)`, ns, gofakeit.Verb()),
		}
	case 1:
		return ruleset.Filter{
			Type:    ruleset.FilterKindFileChange,
			Pattern: `(\w+)\.swift`,
		}
	default:
		return ruleset.Filter{
			Type:    ruleset.FilterKindEvent,
			Pattern: lifecycleEvents[rng.Intn(len(lifecycleEvents))],
		}
	}
}
