package templates

import (
	"net/url"
	"testing"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type langFakeLocalizer struct{}

func (langFakeLocalizer) Sprintf(key message.Reference, _ ...any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return ""
}

func TestNormalizeTag(t *testing.T) {
	t.Run("regional english", func(t *testing.T) {
		if tag := normalizeTag("en-US"); tag != language.English {
			t.Fatalf("normalizeTag(en-US) = %s, want en", tag)
		}
	})

	t.Run("empty string returns default", func(t *testing.T) {
		if tag := normalizeTag(""); tag != language.Spanish {
			t.Fatalf("normalizeTag(\"\") = %s, want es", tag)
		}
	})

	t.Run("invalid tag returns default", func(t *testing.T) {
		if tag := normalizeTag("zzz-invalid"); tag != language.Spanish {
			t.Fatalf("normalizeTag(invalid) = %s, want es", tag)
		}
	})
}

func TestLanguageLabel(t *testing.T) {
	loc := langFakeLocalizer{}
	if got := languageLabel(loc, language.BrazilianPortuguese); got != "core.lang.pt" {
		t.Fatalf("languageLabel(pt-BR) = %q", got)
	}
	if got := languageLabel(loc, language.English); got != "core.lang.en" {
		t.Fatalf("languageLabel(en) = %q", got)
	}
}

func TestLanguageURL(t *testing.T) {
	t.Run("empty path defaults to /", func(t *testing.T) {
		if got := LanguageURL(PageContext{}, "en"); got != "/?lang=en" {
			t.Fatalf("LanguageURL() = %q", got)
		}
	})

	t.Run("preserves existing query params", func(t *testing.T) {
		page := PageContext{CurrentPath: "/onboarding", CurrentQuery: "step=2&lang=es"}
		got := LanguageURL(page, "pt")
		parsed, err := url.Parse(got)
		if err != nil {
			t.Fatalf("parse %q: %v", got, err)
		}
		if parsed.Path != "/onboarding" || parsed.Query().Get("step") != "2" || parsed.Query().Get("lang") != "pt" {
			t.Fatalf("unexpected url %q", got)
		}
	})

	t.Run("malformed query handled", func(t *testing.T) {
		page := PageContext{CurrentPath: "/test", CurrentQuery: "%ZZinvalid"}
		if got := LanguageURL(page, "en"); got != "/test?lang=en" {
			t.Fatalf("LanguageURL() = %q", got)
		}
	})
}

func TestLanguageOptions(t *testing.T) {
	page := PageContext{Lang: "en-GB", Loc: langFakeLocalizer{}}
	options := LanguageOptions(page)
	if len(options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(options))
	}

	active := 0
	for _, opt := range options {
		if opt.Tag == "" || opt.Label == "" || opt.URL == "" {
			t.Fatalf("incomplete option %+v", opt)
		}
		if opt.Active {
			active++
			if opt.Tag != "en" {
				t.Fatalf("expected en active, got %s", opt.Tag)
			}
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active option, got %d", active)
	}
}

func TestActiveLanguageLabelFallsBackToDefault(t *testing.T) {
	page := PageContext{Lang: "ja-JP", Loc: langFakeLocalizer{}}
	if got := ActiveLanguageLabel(page); got != "core.lang.es" {
		t.Fatalf("ActiveLanguageLabel() = %q", got)
	}
}
