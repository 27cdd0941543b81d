package catalog

import (
	"testing"
	"testing/fstest"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	for _, locale := range []string{"es", "en", "pt"} {
		if !bundle.HasLocale(locale) {
			t.Fatalf("expected locale %s", locale)
		}
	}
	if got := len(bundle.NamespaceMessages("es", "auth")); got == 0 {
		t.Fatal("expected es auth namespace messages")
	}
}

func TestLoadFromFSRejectsKeyOutsideNamespace(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/es/auth.yaml": {Data: []byte("locale: es\nnamespace: auth\nmessages:\n  core.bad: \"nope\"\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected namespace prefix error")
	}
}

func TestLoadFromFSRejectsLocaleMismatch(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/es/auth.yaml": {Data: []byte("locale: en\nnamespace: auth\nmessages:\n  auth.a: \"a\"\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected locale mismatch error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en/auth.yaml": {Data: []byte("locale: en\nnamespace: auth\nmessages:\n  auth.a: \"a\"\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestLoadFromFSRequiresKeyParity(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/es/auth.yaml": {Data: []byte("locale: es\nnamespace: auth\nmessages:\n  auth.a: \"a\"\n  auth.b: \"b\"\n")},
		"locales/en/auth.yaml": {Data: []byte("locale: en\nnamespace: auth\nmessages:\n  auth.a: \"a\"\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected parity error")
	}
}

func TestMessageFallsBackToBase(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	es, ok := bundle.Message("es", "core.app_name")
	if !ok {
		t.Fatal("expected core.app_name")
	}
	fr, ok := bundle.Message("fr", "core.app_name")
	if !ok || fr != es {
		t.Fatalf("expected base fallback %q, got %q", es, fr)
	}
}

func TestDefaultRegistersPrinters(t *testing.T) {
	bundle := Default()
	want, _ := bundle.Message("en", "auth.login.submit")
	got := message.NewPrinter(language.English).Sprintf("auth.login.submit")
	if got != want {
		t.Fatalf("printer = %q, want %q", got, want)
	}
}
