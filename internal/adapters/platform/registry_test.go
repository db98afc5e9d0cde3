package platform

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

type prefixResolver struct {
	name   string
	prefix string
}

func (p prefixResolver) Name() string { return p.name }

func (p prefixResolver) Matches(url string) bool { return strings.HasPrefix(url, p.prefix) }

func (p prefixResolver) Fetch(context.Context, string) (domain.MediaResult, error) {
	return domain.MediaResult{Platform: p.name, DownloadURL: "https://cdn/" + p.name}, nil
}

func TestRegistryFirstMatchWins(t *testing.T) {
	reg := NewRegistry(zerolog.Nop(),
		prefixResolver{name: "Broad", prefix: "https://"},
		prefixResolver{name: "Narrow", prefix: "https://narrow."},
	)

	res, ok := reg.ResolverFor("https://narrow.example/v/1")
	if !ok {
		t.Fatal("expected a resolver")
	}
	if res.Name() != "Broad" {
		t.Fatalf("registration order must win, got %s", res.Name())
	}
}

func TestRegistryNoMatch(t *testing.T) {
	reg := NewRegistry(zerolog.Nop(), prefixResolver{name: "A", prefix: "https://a."})
	if _, ok := reg.ResolverFor("https://b.example"); ok {
		t.Fatal("expected no resolver")
	}
}

func TestRegistrySupportedNamesOrdered(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Register(prefixResolver{name: "TikTok"}).Register(prefixResolver{name: "Other"})

	names := reg.SupportedNames()
	if len(names) != 2 || names[0] != "TikTok" || names[1] != "Other" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestDefaultRegistryKnowsTikTok(t *testing.T) {
	reg := NewDefaultRegistry(nil, "https://api.example/download", zerolog.Nop())
	if got := reg.SupportedNames(); len(got) != 1 || got[0] != "TikTok" {
		t.Fatalf("SupportedNames() = %v", got)
	}
	res, ok := reg.ResolverFor("https://vm.tiktok.com/ZM123/")
	if !ok || res.Name() != "TikTok" {
		t.Fatalf("tiktok link not resolved: %v %v", res, ok)
	}
	if _, ok := reg.ResolverFor("https://example.com/video"); ok {
		t.Fatal("unexpected resolver for unknown host")
	}
}
