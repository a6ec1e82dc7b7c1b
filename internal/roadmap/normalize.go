package roadmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Outcome tells which branch of Normalize produced a Result.
type Outcome int

const (
	// Structured means the reply decoded as the expected JSON object.
	Structured Outcome = iota
	// Fallback means the reply was kept verbatim under a placeholder timeline.
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Structured:
		return "structured"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the normalized form of a model reply.
type Result struct {
	Title      string
	Content    string
	VisualData *VisualData
	Outcome    Outcome
	// DecodeErr is set on Fallback and explains why strict parsing failed.
	DecodeErr error
}

// Bounded returns a copy of r with the title clamped to MaxTitleLength.
func (r Result) Bounded() Result {
	r.Title = truncateRunes(r.Title, MaxTitleLength)
	return r
}

const fence = "```"

// fenceTagRe matches the optional language tag right after an opening fence.
var fenceTagRe = regexp.MustCompile(`^[A-Za-z0-9_+.-]*`)

// fenceRe matches the first fenced block. Only used when prose follows the
// closing fence.
var fenceRe = regexp.MustCompile("```(?:[A-Za-z0-9_+.-]+)?\\s*([\\s\\S]*?)\\s*```")

// payload mirrors the JSON object the model is instructed to return.
type payload struct {
	Title      *string     `json:"title"`
	Content    *string     `json:"content"`
	VisualData *VisualData `json:"visual_data"`
}

// Normalize turns a raw model reply into a roadmap Result. It never fails:
// replies that do not decode as the expected object are kept verbatim as
// the content of a Fallback result.
func Normalize(raw, query string) Result {
	trimmed := strings.TrimSpace(raw)

	p, err := decodePayload(extractCandidate(trimmed))
	if err != nil {
		return Result{
			Title:      FallbackTitle(query),
			Content:    trimmed,
			VisualData: placeholderVisualData(),
			Outcome:    Fallback,
			DecodeErr:  err,
		}
	}

	res := Result{Outcome: Structured, VisualData: p.VisualData}
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		res.Title = *p.Title
	} else {
		res.Title = FallbackTitle(query)
	}
	if p.Content != nil {
		res.Content = *p.Content
	}
	return res
}

// extractCandidate unwraps a fenced reply. Unfenced text is returned as is.
// A reply that both opens and closes with a fence keeps everything between
// the outer fences, so code blocks nested in the content survive.
func extractCandidate(trimmed string) string {
	if !strings.HasPrefix(trimmed, fence) {
		return trimmed
	}
	if len(trimmed) >= 2*len(fence) && strings.HasSuffix(trimmed, fence) {
		body := trimmed[len(fence) : len(trimmed)-len(fence)]
		body = body[len(fenceTagRe.FindString(body)):]
		return strings.TrimSpace(body)
	}
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

var errNotObject = errors.New("reply is not a JSON object")

func decodePayload(candidate string) (payload, error) {
	data := bytes.TrimSpace([]byte(candidate))
	if len(data) == 0 || data[0] != '{' {
		return payload{}, errNotObject
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return payload{}, fmt.Errorf("decoding roadmap JSON: %w", err)
	}
	return p, nil
}
