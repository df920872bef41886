package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatlens/server/internal/analyzer/model"
	logx "github.com/chatlens/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxErrSnippet = 200
)

type rawPlan struct {
	Intent             string         `json:"intent"`
	Entities           map[string]any `json:"entities"`
	SegmentInstruction string         `json:"segment_instruction"`
}

// ParsePlan parses the planning model's free-text reply into a Plan.
// The reply is expected to be a JSON object, possibly wrapped in
// markdown code fences or surrounded by prose. A plan without a usable
// segment_instruction is an error: an empty instruction is useless to
// every downstream segment.
func ParsePlan(content string) (*model.Plan, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "plan_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("planner reply truncated due to size limit")
		content = content[:maxContentLen]
	}

	body, ok := extractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in planner reply: %s", safeSnippet(content))
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("planner reply is not valid JSON: %w", err)
	}

	instruction := strings.TrimSpace(raw.SegmentInstruction)
	if instruction == "" {
		return nil, fmt.Errorf("planner reply has no usable segment_instruction")
	}

	entities := make(map[string]string, len(raw.Entities))
	for k, v := range raw.Entities {
		switch vv := v.(type) {
		case string:
			entities[k] = vv
		case nil:
			// skip nulls
		default:
			entities[k] = fmt.Sprint(vv)
		}
	}

	return &model.Plan{
		Intent:             strings.TrimSpace(raw.Intent),
		Entities:           entities,
		SegmentInstruction: instruction,
	}, nil
}

// extractJSONObject cuts the outermost {...} span out of the reply,
// tolerating code fences and leading/trailing prose.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
