package questionnaire

import (
	"encoding/json"
	"fmt"
)

// Progress is a user's position in the catalog and the answers given so
// far. Its JSON form is stored on the profile.
type Progress struct {
	Current int
	Answers map[string]Answer
}

type progressJSON struct {
	Current int                   `json:"current"`
	Answers map[string]answerJSON `json:"answers,omitempty"`
}

// MarshalJSON encodes answers with a kind discriminator.
func (p Progress) MarshalJSON() ([]byte, error) {
	out := progressJSON{Current: p.Current}
	if len(p.Answers) > 0 {
		out.Answers = make(map[string]answerJSON, len(p.Answers))
		for id, answer := range p.Answers {
			encoded, err := encodeAnswer(answer)
			if err != nil {
				return nil, fmt.Errorf("answer %s: %w", id, err)
			}
			out.Answers[id] = encoded
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (p *Progress) UnmarshalJSON(data []byte) error {
	var in progressJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Current = in.Current
	p.Answers = make(map[string]Answer, len(in.Answers))
	for id, raw := range in.Answers {
		answer, err := decodeAnswer(raw)
		if err != nil {
			return fmt.Errorf("answer %s: %w", id, err)
		}
		p.Answers[id] = answer
	}
	return nil
}

// DecodeProgress reads stored progress. Empty input is a fresh start.
// Answers to questions no longer in the catalog, or whose kind changed,
// are dropped and the position is clamped.
func (c *Catalog) DecodeProgress(raw json.RawMessage) (Progress, error) {
	progress := Progress{Answers: make(map[string]Answer)}
	if len(raw) == 0 || string(raw) == "null" {
		return progress, nil
	}
	if err := json.Unmarshal(raw, &progress); err != nil {
		return Progress{Answers: make(map[string]Answer)}, fmt.Errorf("decode progress: %w", err)
	}
	for id, answer := range progress.Answers {
		q, _, ok := c.Lookup(id)
		if !ok || q.Kind != answer.Kind() {
			delete(progress.Answers, id)
		}
	}
	progress.Current = c.clamp(progress.Current)
	return progress, nil
}

// Encode returns the JSON stored on the profile.
func (p Progress) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}
	return data, nil
}

// Record stores answer for questionID, removing it when unanswered.
func (p *Progress) Record(questionID string, answer Answer) {
	if p.Answers == nil {
		p.Answers = make(map[string]Answer)
	}
	if answer == nil || !answer.Answered() {
		delete(p.Answers, questionID)
		return
	}
	p.Answers[questionID] = answer
}

// Advance moves to the next question and reports whether the current one
// was the last.
func (p *Progress) Advance(c *Catalog) bool {
	if p.Current >= c.Len()-1 {
		p.Current = c.Len() - 1
		return true
	}
	p.Current++
	return false
}

// Back moves to the previous question, stopping at the first.
func (p *Progress) Back() {
	if p.Current > 0 {
		p.Current--
	}
}

// Percent is the share of questions reached, counting the current one.
func (p Progress) Percent(c *Catalog) int {
	if c.Len() == 0 {
		return 0
	}
	return (c.clamp(p.Current) + 1) * 100 / c.Len()
}
