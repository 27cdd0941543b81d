package questionnaire

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Form field names read by ParseAnswer.
const (
	FieldAnswer  = "answer"
	FieldDetail  = "detail"
	FieldCountry = "country"
	FieldCity    = "city"
)

const maxTextLength = 500

var (
	ErrRequired      = errors.New("answer is required")
	ErrInvalidOption = errors.New("answer is not one of the options")
	ErrInvalidNumber = errors.New("answer is not a number")
	ErrOutOfRange    = errors.New("answer is out of range")
	ErrTooLong       = errors.New("answer is too long")
	ErrDetailMissing = errors.New("answer detail is required")
)

// Answer is one submitted value. The concrete types are TextAnswer,
// ChoiceAnswer, MultiChoiceAnswer, NumberAnswer and LocationAnswer.
type Answer interface {
	Kind() Kind
	// Answered reports whether the value counts as a response.
	Answered() bool
	isAnswer()
}

type TextAnswer struct {
	Long  bool
	Value string
}

func (a TextAnswer) Kind() Kind {
	if a.Long {
		return KindLongText
	}
	return KindText
}
func (a TextAnswer) Answered() bool { return strings.TrimSpace(a.Value) != "" }
func (TextAnswer) isAnswer()        {}

type ChoiceAnswer struct {
	Value  string
	Detail string
}

func (ChoiceAnswer) Kind() Kind       { return KindSingleChoice }
func (a ChoiceAnswer) Answered() bool { return a.Value != "" }
func (ChoiceAnswer) isAnswer()        {}

type MultiChoiceAnswer struct {
	Values []string
	Detail string
}

func (MultiChoiceAnswer) Kind() Kind       { return KindMultiChoice }
func (a MultiChoiceAnswer) Answered() bool { return len(a.Values) > 0 }
func (MultiChoiceAnswer) isAnswer()        {}

// NumberAnswer treats zero as unanswered.
type NumberAnswer struct {
	Value float64
}

func (NumberAnswer) Kind() Kind       { return KindNumber }
func (a NumberAnswer) Answered() bool { return a.Value != 0 }
func (NumberAnswer) isAnswer()        {}

type LocationAnswer struct {
	Country string
	City    string
}

func (LocationAnswer) Kind() Kind { return KindLocation }
func (a LocationAnswer) Answered() bool {
	return a.Country != "" && strings.TrimSpace(a.City) != ""
}
func (LocationAnswer) isAnswer() {}

// ParseAnswer reads the answer to q from submitted form values. Optional
// questions accept an empty submission and return an unanswered value.
func (c *Catalog) ParseAnswer(q Question, form url.Values) (Answer, error) {
	answer, err := c.parse(q, form)
	if err != nil {
		return nil, err
	}
	if !answer.Answered() && !q.Optional {
		return nil, ErrRequired
	}
	return answer, nil
}

func (c *Catalog) parse(q Question, form url.Values) (Answer, error) {
	switch q.Kind {
	case KindText, KindLongText:
		value := strings.TrimSpace(form.Get(FieldAnswer))
		if len([]rune(value)) > maxTextLength {
			return nil, ErrTooLong
		}
		return TextAnswer{Long: q.Kind == KindLongText, Value: value}, nil

	case KindSingleChoice:
		value := strings.TrimSpace(form.Get(FieldAnswer))
		if value == "" {
			return ChoiceAnswer{}, nil
		}
		option, ok := q.Option(value)
		if !ok {
			return nil, ErrInvalidOption
		}
		detail, err := parseDetail(form, option.Detail)
		if err != nil {
			return nil, err
		}
		return ChoiceAnswer{Value: value, Detail: detail}, nil

	case KindMultiChoice:
		var values []string
		needsDetail := false
		for _, raw := range form[FieldAnswer] {
			value := strings.TrimSpace(raw)
			if value == "" || slices.Contains(values, value) {
				continue
			}
			option, ok := q.Option(value)
			if !ok {
				return nil, ErrInvalidOption
			}
			needsDetail = needsDetail || option.Detail
			values = append(values, value)
		}
		detail, err := parseDetail(form, needsDetail)
		if err != nil {
			return nil, err
		}
		return MultiChoiceAnswer{Values: values, Detail: detail}, nil

	case KindNumber:
		raw := strings.TrimSpace(form.Get(FieldAnswer))
		if raw == "" {
			return NumberAnswer{}, nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, ErrInvalidNumber
		}
		if (q.Min != nil && value < *q.Min) || (q.Max != nil && value > *q.Max) {
			return nil, ErrOutOfRange
		}
		if q.Step > 0 {
			base := 0.0
			if q.Min != nil {
				base = *q.Min
			}
			if steps := (value - base) / q.Step; math.Abs(steps-math.Round(steps)) > 1e-9 {
				return nil, ErrOutOfRange
			}
		}
		return NumberAnswer{Value: value}, nil

	case KindLocation:
		country := strings.ToUpper(strings.TrimSpace(form.Get(FieldCountry)))
		city := strings.TrimSpace(form.Get(FieldCity))
		if country != "" {
			if _, ok := c.Country(country); !ok {
				return nil, ErrInvalidOption
			}
		}
		if len([]rune(city)) > maxTextLength {
			return nil, ErrTooLong
		}
		return LocationAnswer{Country: country, City: city}, nil
	}
	return nil, fmt.Errorf("question %s: unknown kind %q", q.ID, q.Kind)
}

func parseDetail(form url.Values, required bool) (string, error) {
	if !required {
		return "", nil
	}
	detail := strings.TrimSpace(form.Get(FieldDetail))
	if detail == "" {
		return "", ErrDetailMissing
	}
	if len([]rune(detail)) > maxTextLength {
		return "", ErrTooLong
	}
	return detail, nil
}

// answerJSON is the stored form of an Answer, discriminated by kind.
type answerJSON struct {
	Kind    Kind     `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Choice  string   `json:"choice,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Detail  string   `json:"detail,omitempty"`
	Number  float64  `json:"number,omitempty"`
	Country string   `json:"country,omitempty"`
	City    string   `json:"city,omitempty"`
}

func encodeAnswer(answer Answer) (answerJSON, error) {
	switch a := answer.(type) {
	case TextAnswer:
		return answerJSON{Kind: a.Kind(), Text: a.Value}, nil
	case ChoiceAnswer:
		return answerJSON{Kind: KindSingleChoice, Choice: a.Value, Detail: a.Detail}, nil
	case MultiChoiceAnswer:
		return answerJSON{Kind: KindMultiChoice, Choices: a.Values, Detail: a.Detail}, nil
	case NumberAnswer:
		return answerJSON{Kind: KindNumber, Number: a.Value}, nil
	case LocationAnswer:
		return answerJSON{Kind: KindLocation, Country: a.Country, City: a.City}, nil
	}
	return answerJSON{}, fmt.Errorf("unsupported answer type %T", answer)
}

func decodeAnswer(raw answerJSON) (Answer, error) {
	switch raw.Kind {
	case KindText:
		return TextAnswer{Value: raw.Text}, nil
	case KindLongText:
		return TextAnswer{Long: true, Value: raw.Text}, nil
	case KindSingleChoice:
		return ChoiceAnswer{Value: raw.Choice, Detail: raw.Detail}, nil
	case KindMultiChoice:
		return MultiChoiceAnswer{Values: raw.Choices, Detail: raw.Detail}, nil
	case KindNumber:
		return NumberAnswer{Value: raw.Number}, nil
	case KindLocation:
		return LocationAnswer{Country: raw.Country, City: raw.City}, nil
	}
	return nil, fmt.Errorf("unknown answer kind %q", raw.Kind)
}
