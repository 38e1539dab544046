package stylesheet

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// Validate parses css and checks that every selector compiles. It guards the
// hand-written selector tables against typos that a browser would silently
// drop.
func Validate(css string) error {
	sheet, err := parser.Parse(css)
	if err != nil {
		return fmt.Errorf("parse stylesheet: %w", err)
	}
	return validateRules(sheet.Rules)
}

func validateRules(rules []*cssast.Rule) error {
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		switch rule.Kind {
		case cssast.QualifiedRule:
			if len(rule.Declarations) == 0 {
				return fmt.Errorf("rule %q has no declarations", rule.Prelude)
			}
			if _, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ",")); err != nil {
				return fmt.Errorf("selector %q: %w", rule.Prelude, err)
			}
		case cssast.AtRule:
			if rule.EmbedsRules() {
				if err := validateRules(rule.Rules); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
