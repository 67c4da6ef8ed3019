package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a string literal that libinjection flagged.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Literal     string // The literal body that was checked
}

// CheckLiteral uses libinjection to detect SQL injection patterns inside a
// string literal body. Generated queries should compare against plain values;
// a literal such as "x' OR '1'='1" means the model smuggled SQL into data.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	CheckLiteral("shipped")                 // nil
//	CheckLiteral("'; DROP TABLE users--")   // IsSQLi == true, Fingerprint "s&1c" or similar
func CheckLiteral(body string) *InjectionCheckResult {
	if body == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(body)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Literal:     body,
	}
}

// CheckLiterals scans every string literal in sqlQuery. Queries that do not
// tokenize yield no results; the validator reports those as syntax errors.
func CheckLiterals(sqlQuery string) []*InjectionCheckResult {
	toks, err := tokenize(sqlQuery)
	if err != nil {
		return nil
	}
	var results []*InjectionCheckResult
	for _, t := range toks {
		if t.kind != tokString {
			continue
		}
		if res := CheckLiteral(t.text); res != nil {
			results = append(results, res)
		}
	}
	return results
}
