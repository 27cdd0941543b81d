package templates

import (
	"context"
	"io"
	"slices"
	"strconv"

	"github.com/a-h/templ"
	"github.com/kumia-devs/onboarding/internal/services/web/questionnaire"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
)

// QuestionField names the hidden field carrying the answered question id.
const QuestionField = "question"

// OnboardingView is the onboarding screen positioned on one question.
type OnboardingView struct {
	Question  questionnaire.Question
	StepTitle string
	// Index is zero based.
	Index     int
	Total     int
	Percent   int
	Answer    questionnaire.Answer
	ErrorKey  string
	Countries []questionnaire.Option
}

func (v OnboardingView) first() bool { return v.Index == 0 }
func (v OnboardingView) last() bool  { return v.Index >= v.Total-1 }

// OnboardingPage renders the questionnaire wizard.
func OnboardingPage(page PageContext, view OnboardingView) templ.Component {
	lang := normalizeTag(page.Lang).String()
	return Layout(LayoutOptionsForPage(page, "onboarding.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="onboarding">`)
		h.element("p", "step-title", view.StepTitle)
		h.raw(`<div class="progress" role="progressbar" aria-valuemin="0" aria-valuemax="100"`)
		h.attr("aria-valuenow", strconv.Itoa(view.Percent))
		h.attr("aria-label", T(page.Loc, "onboarding.progress"))
		h.raw(`><span style="width: `)
		h.text(strconv.Itoa(view.Percent))
		h.raw(`%"></span></div>`)
		h.element("p", "question-of", T(page.Loc, "onboarding.question_of", view.Index+1, view.Total))

		h.raw(`<form method="post"`)
		h.action(routepath.OnboardingAnswer)
		h.attr("data-question", view.Question.ID)
		h.raw(">")
		h.hidden(QuestionField, view.Question.ID)
		h.element("h1", "", view.Question.Prompt.In(lang))
		writeFormError(h, page.Loc, view.ErrorKey)
		writeQuestion(h, page.Loc, lang, view)

		submitKey := "onboarding.continue"
		if view.last() {
			submitKey = "onboarding.finish"
		}
		h.raw(`<button type="submit">`)
		h.text(T(page.Loc, submitKey))
		h.raw("</button></form>")

		if !view.first() {
			h.raw(`<form method="post"`)
			h.action(routepath.OnboardingBack)
			h.raw(`><button type="submit" class="secondary">`)
			h.text(T(page.Loc, "onboarding.previous"))
			h.raw("</button></form>")
		}
		h.raw("</section>")
		return h.err
	}))
}

func writeQuestion(h *htmlWriter, loc Localizer, lang string, view OnboardingView) {
	q := view.Question
	placeholder := q.Placeholder.In(lang)
	switch q.Kind {
	case questionnaire.KindText:
		var value string
		if a, ok := view.Answer.(questionnaire.TextAnswer); ok {
			value = a.Value
		}
		h.raw(`<input type="text"`)
		h.attr("name", questionnaire.FieldAnswer)
		h.attr("value", value)
		h.attr("placeholder", placeholder)
		h.boolAttr("required", !q.Optional)
		h.raw(">")

	case questionnaire.KindLongText:
		var value string
		if a, ok := view.Answer.(questionnaire.TextAnswer); ok {
			value = a.Value
		}
		h.raw(`<textarea rows="4"`)
		h.attr("name", questionnaire.FieldAnswer)
		h.attr("placeholder", placeholder)
		h.boolAttr("required", !q.Optional)
		h.raw(">")
		h.text(value)
		h.raw("</textarea>")

	case questionnaire.KindSingleChoice:
		var selected []string
		var detail string
		if a, ok := view.Answer.(questionnaire.ChoiceAnswer); ok {
			selected, detail = []string{a.Value}, a.Detail
		}
		writeOptions(h, loc, lang, q, "radio", selected, detail)

	case questionnaire.KindMultiChoice:
		var selected []string
		var detail string
		if a, ok := view.Answer.(questionnaire.MultiChoiceAnswer); ok {
			selected, detail = a.Values, a.Detail
		}
		writeOptions(h, loc, lang, q, "checkbox", selected, detail)

	case questionnaire.KindNumber:
		var value string
		if a, ok := view.Answer.(questionnaire.NumberAnswer); ok && a.Answered() {
			value = formatNumber(a.Value)
		}
		h.raw(`<input type="number"`)
		h.attr("name", questionnaire.FieldAnswer)
		h.attr("value", value)
		if q.Min != nil {
			h.attr("min", formatNumber(*q.Min))
		}
		if q.Max != nil {
			h.attr("max", formatNumber(*q.Max))
		}
		if q.Step > 0 {
			h.attr("step", formatNumber(q.Step))
		}
		h.boolAttr("required", !q.Optional)
		h.raw(">")

	case questionnaire.KindLocation:
		var answer questionnaire.LocationAnswer
		if a, ok := view.Answer.(questionnaire.LocationAnswer); ok {
			answer = a
		}
		h.raw(`<div class="field"><select`)
		h.attr("name", questionnaire.FieldCountry)
		h.boolAttr("required", !q.Optional)
		h.raw(`><option value="">`)
		h.text(T(loc, "onboarding.select_country"))
		h.raw("</option>")
		for _, country := range view.Countries {
			h.raw("<option")
			h.attr("value", country.Value)
			h.boolAttr("selected", country.Value == answer.Country)
			h.raw(">")
			h.text(country.Label.In(lang))
			h.raw("</option>")
		}
		h.raw(`</select></div><div class="field"><label for="city">`)
		h.text(T(loc, "onboarding.city"))
		h.raw(`</label><input type="text" id="city"`)
		h.attr("name", questionnaire.FieldCity)
		h.attr("value", answer.City)
		h.boolAttr("required", !q.Optional)
		h.raw("></div>")
	}
}

func writeOptions(h *htmlWriter, loc Localizer, lang string, q questionnaire.Question, inputType string, selected []string, detail string) {
	detailWanted := false
	hasDetail := false
	h.raw(`<fieldset class="options">`)
	for _, option := range q.Options {
		checked := slices.Contains(selected, option.Value)
		if option.Detail {
			hasDetail = true
			detailWanted = detailWanted || checked
		}
		h.raw("<label><input")
		h.attr("type", inputType)
		h.attr("name", questionnaire.FieldAnswer)
		h.attr("value", option.Value)
		h.boolAttr("checked", checked)
		h.boolAttr("data-detail", option.Detail)
		h.raw(">")
		h.text(option.Label.In(lang))
		h.raw("</label>")
	}
	h.raw("</fieldset>")
	if !hasDetail {
		return
	}
	h.raw(`<div class="detail field"`)
	h.boolAttr("hidden", !detailWanted)
	h.raw("><label for=\"detail\">")
	h.text(T(loc, "onboarding.specify"))
	h.raw(`</label><input type="text" id="detail"`)
	h.attr("name", questionnaire.FieldDetail)
	h.attr("value", detail)
	h.raw("></div>")
}
