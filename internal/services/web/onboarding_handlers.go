package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kumia-devs/onboarding/internal/services/web/guard"
	webi18n "github.com/kumia-devs/onboarding/internal/services/web/i18n"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/httpx"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
	"github.com/kumia-devs/onboarding/internal/services/web/questionnaire"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	"github.com/kumia-devs/onboarding/internal/services/web/templates"
)

const (
	msgOnboardingIncomplete = "onboarding.error.incomplete"
	msgOnboardingSaveFailed = "onboarding.error.save_failed"
)

// answerErrorKey maps answer validation errors to their localized message.
func answerErrorKey(err error) string {
	switch {
	case errors.Is(err, questionnaire.ErrRequired):
		return "onboarding.error.required"
	case errors.Is(err, questionnaire.ErrInvalidOption):
		return "onboarding.error.invalid_option"
	case errors.Is(err, questionnaire.ErrInvalidNumber):
		return "onboarding.error.invalid_number"
	case errors.Is(err, questionnaire.ErrOutOfRange):
		return "onboarding.error.out_of_range"
	case errors.Is(err, questionnaire.ErrTooLong):
		return "onboarding.error.too_long"
	case errors.Is(err, questionnaire.ErrDetailMissing):
		return "onboarding.error.detail_missing"
	default:
		return "onboarding.error.required"
	}
}

// loadProgress reads the saved questionnaire progress. A missing profile
// starts an empty questionnaire.
func (h *handler) loadProgress(ctx context.Context, userID string) (questionnaire.Progress, error) {
	p, err := h.profiles.GetProfile(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		return questionnaire.Progress{}, nil
	}
	if err != nil {
		return questionnaire.Progress{}, fmt.Errorf("load onboarding progress: %w", err)
	}
	return h.catalog.DecodeProgress(p.Progress)
}

func (h *handler) saveProgress(ctx context.Context, userID string, progress questionnaire.Progress) error {
	raw, err := progress.Encode()
	if err != nil {
		return err
	}
	if err := h.profiles.UpsertProfile(ctx, userID, profile.Patch{Progress: raw}); err != nil {
		return fmt.Errorf("save onboarding progress: %w", err)
	}
	return nil
}

func (h *handler) clampIndex(index int) int {
	if index < 0 {
		return 0
	}
	if last := h.catalog.Len() - 1; index > last {
		return last
	}
	return index
}

// onboardingView positions the wizard on the question at index.
func (h *handler) onboardingView(r *http.Request, progress questionnaire.Progress, index int) templates.OnboardingView {
	lang := webi18n.FromContext(r.Context()).Lang()
	index = h.clampIndex(index)
	q := h.catalog.Question(index)
	at := progress
	at.Current = index
	return templates.OnboardingView{
		Question:  q,
		StepTitle: h.catalog.Steps[h.catalog.StepOf(index)].Title.In(lang),
		Index:     index,
		Total:     h.catalog.Len(),
		Percent:   at.Percent(h.catalog),
		Answer:    progress.Answers[q.ID],
		Countries: h.catalog.Countries,
	}
}

func (h *handler) handleOnboardingPage(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	progress, err := h.loadProgress(r.Context(), snap.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render onboarding", "user_id", snap.UserID, "error", err)
		h.renderError(w, r, http.StatusServiceUnavailable)
		return
	}
	view := h.onboardingView(r, progress, progress.Current)
	h.render(w, r, http.StatusOK, templates.OnboardingPage(h.page(w, r), view))
}

func (h *handler) handleOnboardingAnswer(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest)
		return
	}
	progress, err := h.loadProgress(r.Context(), snap.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "answer onboarding question", "user_id", snap.UserID, "error", err)
		h.renderError(w, r, http.StatusServiceUnavailable)
		return
	}
	q, index, found := h.catalog.Lookup(r.PostForm.Get(templates.QuestionField))
	if !found {
		httpx.WriteRedirect(w, r, routepath.Onboarding)
		return
	}
	answer, err := h.catalog.ParseAnswer(q, r.PostForm)
	if err != nil {
		view := h.onboardingView(r, progress, index)
		view.ErrorKey = answerErrorKey(err)
		h.render(w, r, http.StatusUnprocessableEntity, templates.OnboardingPage(h.page(w, r), view))
		return
	}

	progress.Record(q.ID, answer)
	progress.Current = index
	finished := progress.Advance(h.catalog)
	if finished {
		if missing := h.catalog.Missing(progress); len(missing) > 0 {
			_, first, _ := h.catalog.Lookup(missing[0])
			progress.Current = first
			finished = false
			h.flash.Write(w, r, flash.Error(msgOnboardingIncomplete))
		}
	}
	if err := h.saveProgress(r.Context(), snap.UserID, progress); err != nil {
		h.logger.ErrorContext(r.Context(), "answer onboarding question", "user_id", snap.UserID, "error", err)
		view := h.onboardingView(r, progress, index)
		view.ErrorKey = msgOnboardingSaveFailed
		h.render(w, r, http.StatusServiceUnavailable, templates.OnboardingPage(h.page(w, r), view))
		return
	}
	if !finished {
		httpx.WriteRedirect(w, r, routepath.Onboarding)
		return
	}
	h.completeOnboarding(w, r)
}

func (h *handler) handleOnboardingBack(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	progress, err := h.loadProgress(r.Context(), snap.UserID)
	if err == nil {
		progress.Back()
		err = h.saveProgress(r.Context(), snap.UserID, progress)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "step back in onboarding", "user_id", snap.UserID, "error", err)
		h.flash.Write(w, r, flash.Error(msgOnboardingSaveFailed))
	}
	httpx.WriteRedirect(w, r, routepath.Onboarding)
}

// handleOnboardingComplete finishes onboarding once every required answer
// is saved.
func (h *handler) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	progress, err := h.loadProgress(r.Context(), snap.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "complete onboarding", "user_id", snap.UserID, "error", err)
		h.flash.Write(w, r, flash.Error(msgOnboardingSaveFailed))
		httpx.WriteRedirect(w, r, routepath.Onboarding)
		return
	}
	if missing := h.catalog.Missing(progress); len(missing) > 0 {
		_, first, _ := h.catalog.Lookup(missing[0])
		progress.Current = first
		if err := h.saveProgress(r.Context(), snap.UserID, progress); err != nil {
			h.logger.WarnContext(r.Context(), "move to missing answer", "user_id", snap.UserID, "error", err)
		}
		h.flash.Write(w, r, flash.Error(msgOnboardingIncomplete))
		httpx.WriteRedirect(w, r, routepath.Onboarding)
		return
	}
	h.completeOnboarding(w, r)
}

// completeOnboarding navigates to the dashboard only after the completion
// flag was confirmed; a failure keeps the user on onboarding.
func (h *handler) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	res := c.CompleteOnboarding(r.Context())
	if !res.Success {
		h.flash.Write(w, r, flash.Error(res.MessageKey))
		httpx.WriteRedirect(w, r, routepath.Onboarding)
		return
	}
	h.flash.Write(w, r, flash.Success(session.MsgOnboardingComplete))
	httpx.WriteRedirect(w, r, routepath.Dashboard)
}
