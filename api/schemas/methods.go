// File: api/schemas/methods.go
package schemas

import "fmt"

// Method identifies a candidate generation strategy. The set is closed;
// generator registries are expected to cover every constant below.
type Method string

const (
	MethodClarity        Method = "clarity"
	MethodSpecificity    Method = "specificity"
	MethodStructure      Method = "structure"
	MethodChainOfThought Method = "chain_of_thought"
	MethodFewShot        Method = "few_shot"
)

// AllMethods returns every known method in its canonical order.
func AllMethods() []Method {
	return []Method{
		MethodClarity,
		MethodSpecificity,
		MethodStructure,
		MethodChainOfThought,
		MethodFewShot,
	}
}

// ParseMethod validates a string-typed method identifier from configuration.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	switch m {
	case MethodClarity, MethodSpecificity, MethodStructure, MethodChainOfThought, MethodFewShot:
		return m, nil
	default:
		return "", fmt.Errorf("unknown improvement method: %q", s)
	}
}
