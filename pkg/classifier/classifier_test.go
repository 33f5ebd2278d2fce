package classifier

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/internal/pngtest"
	"github.com/banyuechenjiang/cardsort/pkg/pngchunk"
)

func text(kv ...string) []pngchunk.TextChunk {
	var chunks []pngchunk.TextChunk
	for i := 0; i+1 < len(kv); i += 2 {
		chunks = append(chunks, pngchunk.TextChunk{
			Type:       "tEXt",
			Keyword:    kv[i],
			Value:      []byte(kv[i+1]),
			PayloadLen: len(kv[i]) + 1 + len(kv[i+1]),
		})
	}
	return chunks
}

const naiComment = `{"prompt":"1girl","steps":28,"sampler":"k_euler","seed":1,"strength":0.7,"noise":0.2,"scale":5}`

func TestClassifier_Classify(t *testing.T) {
	cls := NewClassifier()

	testCases := []struct {
		name     string
		chunks   []pngchunk.TextChunk
		expected Category
	}{
		{"no chunks", nil, PlainImage},
		{"chara wins over everything", text("Software", "NovelAI", "Comment", naiComment, "chara", pngtest.Card(map[string]any{"name": "X"})), IdentityCard},
		{"novelai", text("Software", "NovelAI", "Comment", naiComment), ParamSetA},
		{"novelai missing two comment keys", text("Software", "NovelAI", "Comment", `{"prompt":"a","steps":1,"sampler":"x","seed":2,"strength":1,"noise":0}`), Unclassified},
		{"novelai comment not json", text("Software", "NovelAI", "Comment", "steps 28"), Unclassified},
		{"parameters beats novelai", text("Software", "NovelAI", "Comment", naiComment, "parameters", "a cat\nSteps: 20, Sampler: Euler a, CFG scale: 7"), ParamSetB},
		{"sd webui", text("parameters", "a cat\nNegative prompt: dog\nSteps: 20, Seed: 42"), ParamSetB},
		{"parameters single marker", text("parameters", "Steps: 20"), Unclassified},
		{"mixed source", text("Software", "NovelAI", "Source", "Stable Diffusion XL C1E1DE52"), MixedSource},
		{"source without vendor", text("Software", "Photoshop", "Source", "Stable Diffusion"), Unclassified},
		{"vendor with own source", text("Software", "NovelAI", "Source", "NovelAI Diffusion V4"), Unclassified},
		{"unrecognized", text("Author", "someone"), Unclassified},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := cls.Classify(tc.chunks)
			if res.Category != tc.expected {
				t.Errorf("Classify() = %v, want %v", res.Category, tc.expected)
			}
		})
	}
}

func TestClassifier_IdentityCard(t *testing.T) {
	cls := NewClassifier()

	testCases := []struct {
		name   string
		value  string
		reason IdentityReason
		key    string
	}{
		{"top level name", pngtest.Card(map[string]any{"name": "Aria", "first_mes": "Hi"}), Named, "Aria"},
		{"nested name first", pngtest.Card(map[string]any{"name": "Outer", "data": map[string]any{"name": "Inner"}}), Named, "Inner"},
		{"char_name fallback", pngtest.Card(map[string]any{"char_name": "Bob"}), Named, "Bob"},
		{"sanitized", pngtest.Card(map[string]any{"name": " A/B:C? "}), Named, "A_B_C_"},
		{"compressed", pngtest.CompressedCard(map[string]any{"name": "Zip"}), Named, "Zip"},
		{"no name", pngtest.Card(map[string]any{"first_mes": "Hi"}), NameUnknown, ""},
		{"blank name", pngtest.Card(map[string]any{"name": "   "}), NameUnknown, ""},
		{"not base64", "!!!not base64!!!", ParseError, ""},
		{"base64 of non-json", "aGVsbG8gd29ybGQ=", ParseError, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := cls.Classify(text("chara", tc.value))
			if res.Category != IdentityCard {
				t.Fatalf("Category = %v, want IdentityCard", res.Category)
			}
			if res.Identity.Reason != tc.reason {
				t.Errorf("Reason = %v, want %v", res.Identity.Reason, tc.reason)
			}
			if res.Identity.Name != tc.key {
				t.Errorf("Name = %q, want %q", res.Identity.Name, tc.key)
			}
			if tc.reason == ParseError && !errors.Is(res.Err, internal.ErrDecode) {
				t.Errorf("Err = %v, want ErrDecode", res.Err)
			}
			if tc.reason != ParseError && res.Payload == nil {
				t.Error("Expected payload to be kept for parsed cards")
			}
		})
	}
}

func TestClassifier_MetadataSize(t *testing.T) {
	cls := NewClassifier()

	chunks := []pngchunk.TextChunk{
		{Keyword: "parameters", Value: []byte("x"), PayloadLen: 1024},
		{Keyword: "Author", Value: []byte("y"), PayloadLen: 1},
	}
	if got := cls.Classify(chunks).MetadataSizeKB; got != 2 {
		t.Errorf("MetadataSizeKB = %d, want 2", got)
	}

	if got := cls.Classify(nil).MetadataSizeKB; got != 0 {
		t.Errorf("PlainImage MetadataSizeKB = %d, want 0", got)
	}
}

func TestClassifier_ClassifyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	cls := NewClassifier()

	files := map[string][]byte{
		"/a.png":      pngtest.Encode(pngtest.Solid(8, 8, 10), pngtest.Text{Keyword: "chara", Value: pngtest.Card(map[string]any{"name": "Aria", "first_mes": "Hi"})}),
		"/plain.png":  pngtest.Plain(3),
		"/broken.png": []byte("definitely not a png"),
	}
	for name, data := range files {
		if err := afero.WriteFile(fs, name, data, 0644); err != nil {
			t.Fatalf("写入测试文件失败: %v", err)
		}
	}

	res := cls.ClassifyFile(fs, "/a.png")
	if res.Category != IdentityCard || res.Identity.Name != "Aria" || res.Identity.Reason != Named {
		t.Errorf("ClassifyFile(a.png) = %+v", res)
	}

	res = cls.ClassifyFile(fs, "/plain.png")
	if res.Category != PlainImage || res.MetadataSizeKB != 0 {
		t.Errorf("ClassifyFile(plain.png) = %+v", res)
	}

	res = cls.ClassifyFile(fs, "/broken.png")
	if res.Category != ReadError || !errors.Is(res.Err, internal.ErrContainerFormat) {
		t.Errorf("ClassifyFile(broken.png) = %+v", res)
	}
}

func TestClassifier_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	cls := NewClassifier()
	data := pngtest.Encode(pngtest.Solid(8, 8, 10), pngtest.Text{Keyword: "chara", Value: pngtest.Card(map[string]any{"name": "Aria"})})
	if err := afero.WriteFile(fs, "/a.png", data, 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	first := cls.ClassifyFile(fs, "/a.png")
	second := cls.ClassifyFile(fs, "/a.png")
	if first.Category != second.Category || first.Identity != second.Identity {
		t.Errorf("reclassification differs: %+v vs %+v", first, second)
	}
}

func TestClassifier_LoadCard(t *testing.T) {
	fs := afero.NewMemMapFs()
	cls := NewClassifier()
	data := pngtest.Encode(pngtest.Solid(8, 8, 10), pngtest.Text{Keyword: "chara", Value: pngtest.Card(map[string]any{"name": "Aria"})})
	if err := afero.WriteFile(fs, "/a.png", data, 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	if err := afero.WriteFile(fs, "/plain.png", pngtest.Plain(1), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	payload, err := cls.LoadCard(fs, "/a.png")
	if err != nil {
		t.Fatalf("LoadCard() error = %v", err)
	}
	if payload["name"] != "Aria" {
		t.Errorf("payload name = %v", payload["name"])
	}

	if _, err := cls.LoadCard(fs, "/plain.png"); err == nil {
		t.Error("Expected error for file without chara chunk")
	}
}

func TestSanitize(t *testing.T) {
	testCases := map[string]string{
		"Aria":       "Aria",
		"  spaced  ": "spaced",
		"a|b":        "a_b",
		"dots...":    "dots",
		"角色":         "角色",
		"tab\tname":  "tab_name",
	}
	for in, want := range testCases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdentity_Key(t *testing.T) {
	a := Identity{Name: "Aria", Reason: Named}
	b := Identity{Reason: NameUnknown}
	c := Identity{Reason: ParseError}
	if a.Key() == b.Key() || b.Key() == c.Key() || a.Key() == c.Key() {
		t.Error("identity keys should be distinct per reason")
	}
	if a.String() != "Aria" {
		t.Errorf("String() = %q", a.String())
	}
}
