package i18n

import "testing"

func TestGetCatalogFallsBackToBase(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	if got := GetCatalog("zz-XX"); got != base {
		t.Fatal("expected fallback to en-US catalog")
	}
	if got := GetCatalog(""); got != base {
		t.Fatal("expected empty locale to resolve to en-US")
	}
}

func TestGetCatalogMatchesLanguage(t *testing.T) {
	ptBR := GetCatalog("pt-BR")
	if ptBR.Locale() != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", ptBR.Locale())
	}
	// "pt" has no exact catalog but should match the registered pt-BR one.
	if got := GetCatalog("pt"); got != ptBR {
		t.Fatalf("expected pt to resolve to pt-BR, got %q", got.Locale())
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	cat := GetCatalog("en-US")
	got := cat.Format(CodeInsufficientRP, map[string]string{"Have": "10", "Need": "40"})
	want := "Insufficient research points: have 10, need 40"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestFormatFallsBackToCode(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})
	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if cat.Format("code", nil) != "hello <no value>" {
		t.Fatal("expected template to render without metadata")
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"bad-parse": "{{ if .Name }}",
		"bad-exec":  "{{ call .Name }}",
	})
	if cat.Format("bad-parse", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected raw template on parse error")
	}
	if cat.Format("bad-exec", map[string]string{"Name": "X"}) != "{{ call .Name }}" {
		t.Fatal("expected raw template on execute error")
	}
}
