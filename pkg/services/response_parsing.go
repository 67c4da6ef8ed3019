package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
)

// generatedTriple is the question/answer/SQL object the model is asked for.
// Some models answer with "query" instead of "sql", and some give the answer
// as a number or a row.
type generatedTriple struct {
	Question string          `json:"question"`
	Answer   json.RawMessage `json:"answer"`
	SQL      string          `json:"sql"`
	Query    string          `json:"query"`
}

type parsedTriple struct {
	Question string
	Answer   string
	SQL      string
}

// parseGenerationResponse extracts the triple from a raw response. The
// response may carry <think> blocks, code fences or an array of objects, in
// which case the first element is used.
func parseGenerationResponse(response string) (parsedTriple, error) {
	raw, err := llm.ExtractJSON(response)
	if err != nil {
		return parsedTriple{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidResponse, err)
	}

	var triple generatedTriple
	if strings.HasPrefix(raw, "[") {
		var list []generatedTriple
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return parsedTriple{}, fmt.Errorf("%w: unmarshal array: %w", apperrors.ErrInvalidResponse, err)
		}
		if len(list) == 0 {
			return parsedTriple{}, fmt.Errorf("%w: empty array", apperrors.ErrInvalidResponse)
		}
		triple = list[0]
	} else if err := json.Unmarshal([]byte(raw), &triple); err != nil {
		return parsedTriple{}, fmt.Errorf("%w: unmarshal object: %w", apperrors.ErrInvalidResponse, err)
	}

	out := parsedTriple{
		Question: strings.TrimSpace(triple.Question),
		Answer:   strings.TrimSpace(jsonutil.FlexibleString(triple.Answer)),
		SQL:      cleanSQL(triple.SQL),
	}
	if out.SQL == "" {
		out.SQL = cleanSQL(triple.Query)
	}

	var missing []string
	if out.Question == "" {
		missing = append(missing, "question")
	}
	if out.Answer == "" {
		missing = append(missing, "answer")
	}
	if out.SQL == "" {
		missing = append(missing, "sql")
	}
	if len(missing) > 0 {
		return parsedTriple{}, fmt.Errorf("%w: missing %s", apperrors.ErrInvalidResponse, strings.Join(missing, ", "))
	}
	return out, nil
}

// parseRepairResponse accepts {"sql": ...}, {"query": ...}, a fenced block or bare SQL.
func parseRepairResponse(response string) (string, error) {
	if raw, err := llm.ExtractJSON(response); err == nil && strings.HasPrefix(raw, "{") {
		var obj struct {
			SQL   string `json:"sql"`
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			if s := cleanSQL(obj.SQL); s != "" {
				return s, nil
			}
			if s := cleanSQL(obj.Query); s != "" {
				return s, nil
			}
		}
	}

	if s := cleanSQL(llm.StripThinking(response)); s != "" && !strings.HasPrefix(s, "{") {
		return s, nil
	}
	return "", fmt.Errorf("%w: repair response has no SQL", apperrors.ErrInvalidResponse)
}

// cleanSQL strips a code fence the model may have put inside the field.
func cleanSQL(s string) string {
	return llm.StripCodeFence(strings.TrimSpace(s))
}
