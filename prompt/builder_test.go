package prompt

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/anuraag-khare/prompt-fence/fence"
)

func testKeypair(t *testing.T, seedByte byte) (privateKey, publicKey string) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return base64.StdEncoding.EncodeToString(seed), base64.StdEncoding.EncodeToString(pub)
}

func TestBuilder_Chaining(t *testing.T) {
	b := NewBuilder().
		TrustedInstructions("Instruction 1").
		UntrustedContent("Content 1").
		DataSegment("Data 1", fence.RatingPartiallyTrusted)

	if b.Len() != 3 {
		t.Fatalf("expected 3 segments, got %d", b.Len())
	}
}

func TestBuilder_SegmentDefaults(t *testing.T) {
	priv, _ := testKeypair(t, 0xA1)
	p, err := NewBuilder().
		TrustedInstructions("Test instruction").
		UntrustedContent("User input", WithSource("user_upload")).
		Build(priv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	segs := p.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Type != fence.TypeInstructions || segs[0].Rating != fence.RatingTrusted || segs[0].Source != "system" {
		t.Fatalf("trusted instructions defaults: %+v", segs[0])
	}
	if segs[1].Rating != fence.RatingUntrusted || segs[1].Source != "user_upload" {
		t.Fatalf("untrusted content: %+v", segs[1])
	}
	for _, s := range segs {
		if s.Signature == "" {
			t.Fatal("built segments must be signed")
		}
	}
}

func TestBuilder_CustomSegment(t *testing.T) {
	priv, _ := testKeypair(t, 0xA1)
	p, err := NewBuilder().
		CustomSegment("Custom", fence.TypeContent, fence.RatingTrusted, WithSource("custom_source")).
		Build(priv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := p.Segments()[0]
	if s.Type != fence.TypeContent || s.Rating != fence.RatingTrusted || s.Source != "custom_source" {
		t.Fatalf("custom segment: %+v", s)
	}
}

func TestBuild_AssemblesPreambleThenFences(t *testing.T) {
	priv, pub := testKeypair(t, 0xA1)
	p, err := NewBuilder().TrustedInstructions("Analyze this review.").
		UntrustedContent("Great product!").
		Build(priv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := p.String()
	if !strings.HasPrefix(s, fence.AwarenessInstructions()) {
		t.Error("assembled prompt must start with the awareness preamble")
	}
	if !p.HasAwareness() {
		t.Error("HasAwareness must be true with the default preamble")
	}
	if strings.Count(s, "<sec:fence") != 2 {
		t.Errorf("expected 2 fences in output")
	}

	ok, err := fence.Validate(s, pub)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok {
		t.Fatal("freshly built prompt must validate")
	}
}

func TestBuild_EmptyPreambleDisablesAwareness(t *testing.T) {
	original := fence.AwarenessInstructions()
	defer fence.SetAwarenessInstructions(original)
	fence.SetAwarenessInstructions("")

	priv, _ := testKeypair(t, 0xA1)
	p, err := NewBuilder().TrustedInstructions("Test").Build(priv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.HasAwareness() {
		t.Error("HasAwareness must be false")
	}
	if strings.Contains(p.String(), "CRITICAL SECURITY RULES") {
		t.Error("disabled preamble must not appear")
	}
	if !strings.HasPrefix(p.String(), "<sec:fence") {
		t.Error("output must start directly with the first fence")
	}
}

func TestBuild_AwarenessOverride(t *testing.T) {
	original := fence.AwarenessInstructions()
	defer fence.SetAwarenessInstructions(original)
	fence.SetAwarenessInstructions("CUSTOM AWARENESS INSTRUCTIONS")

	priv, _ := testKeypair(t, 0xA1)
	p, err := NewBuilder().TrustedInstructions("Foo").Build(priv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(p.String(), "CUSTOM AWARENESS INSTRUCTIONS") {
		t.Error("custom preamble must appear in the assembled prompt")
	}
}

func TestBuild_KeyResolution(t *testing.T) {
	priv, _ := testKeypair(t, 0xA1)

	t.Run("NoKeyAnywhereIsConfigError", func(t *testing.T) {
		t.Setenv("PROMPT_FENCE_PRIVATE_KEY", "")
		_, err := NewBuilder().TrustedInstructions("Foo").Build("")
		if !fence.IsKind(err, fence.KindConfig) {
			t.Fatalf("expected config error, got %v", err)
		}
	})

	t.Run("EnvFallback", func(t *testing.T) {
		t.Setenv("PROMPT_FENCE_PRIVATE_KEY", priv)
		p, err := NewBuilder().TrustedInstructions("Foo").Build("")
		if err != nil {
			t.Fatalf("Build with env key: %v", err)
		}
		if len(p.Segments()) != 1 {
			t.Fatalf("expected 1 segment")
		}
	})

	t.Run("BadKeyIsCryptoError", func(t *testing.T) {
		_, err := NewBuilder().TrustedInstructions("Foo").Build("@@@")
		if !fence.IsKind(err, fence.KindCrypto) {
			t.Fatalf("expected crypto error, got %v", err)
		}
	})
}

func TestBuild_ExplicitTimestampDeterminism(t *testing.T) {
	priv, _ := testKeypair(t, 0xA1)
	ts := "2025-01-15T10:00:00.000Z"

	p, err := NewBuilder().
		TrustedInstructions("A", WithTimestamp(ts)).
		Build(priv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Segments()[0].Timestamp != ts {
		t.Fatalf("explicit timestamp not honored: %q", p.Segments()[0].Timestamp)
	}

	_, err = NewBuilder().TrustedInstructions("A", WithTimestamp("2025-01-15")).Build(priv)
	if err == nil {
		t.Fatal("malformed explicit timestamp must fail the build")
	}
}

func TestBuild_InsertionOrderPreserved(t *testing.T) {
	priv, _ := testKeypair(t, 0xA1)
	p, err := NewBuilder().
		TrustedInstructions("one").
		UntrustedContent("two").
		TrustedInstructions("three").
		Build(priv)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	segs := p.Segments()
	if segs[0].Content != "one" || segs[1].Content != "two" || segs[2].Content != "three" {
		t.Fatal("segments must keep insertion order")
	}

	s := p.String()
	if !(strings.Index(s, segs[0].ID) < strings.Index(s, segs[1].ID) &&
		strings.Index(s, segs[1].ID) < strings.Index(s, segs[2].ID)) {
		t.Fatal("encoded fences must keep insertion order")
	}
}
