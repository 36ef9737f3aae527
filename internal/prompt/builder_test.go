package prompt

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Conceptual-Machines/blessing-api/internal/corpus"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
)

// layerFS builds a tree where each layer's content is its own path
func layerFS() fstest.MapFS {
	files := fstest.MapFS{"theme.txt": {Data: []byte("THEME\n")}}
	for _, rel := range models.Relationships {
		files["relationship/"+string(rel)+".txt"] = &fstest.MapFile{Data: []byte("REL:" + string(rel))}
	}
	for _, style := range models.Styles {
		files["style/"+string(style)+".txt"] = &fstest.MapFile{Data: []byte("STYLE:" + string(style))}
	}
	for _, length := range models.Lengths {
		files["length/"+string(length)+".txt"] = &fstest.MapFile{Data: []byte("LEN:" + string(length))}
	}
	return files
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewPromptBuilderWithLoader(NewPromptLoaderFS(layerFS()))
	if err != nil {
		t.Fatalf("NewPromptBuilderWithLoader() returned error: %v", err)
	}
	return b
}

func TestNewPromptBuilder(t *testing.T) {
	builder, err := NewPromptBuilder()
	if err != nil {
		t.Fatalf("NewPromptBuilder() returned error: %v", err)
	}
	if builder.loader == nil {
		t.Fatal("NewPromptBuilder() created builder with nil loader")
	}
}

func TestNewPromptBuilderMissingLayer(t *testing.T) {
	files := layerFS()
	delete(files, "length/long.txt")

	if _, err := NewPromptBuilderWithLoader(NewPromptLoaderFS(files)); err == nil {
		t.Fatal("expected error when a layer is missing")
	}
}

func TestBuildLayerOrder(t *testing.T) {
	b := testBuilder(t)
	req := models.GenerationRequest{
		Relationship: models.RelationshipFriend,
		Style:        models.StyleAbstract,
		Length:       models.LengthShort,
	}

	p := b.Build(req, nil)

	want := "THEME" + SectionDelimiter + "REL:friend" + SectionDelimiter + "STYLE:abstract" + SectionDelimiter + "LEN:short"
	if p.System != want {
		t.Errorf("System = %q, want %q", p.System, want)
	}
	if strings.Contains(p.User, "个性化要求") {
		t.Error("User message has a personalization block without personalization")
	}
	if strings.Contains(p.User, "5.") {
		t.Error("User message has the examples item without examples")
	}
}

func TestBuildEmbeddedFriendAbstractShort(t *testing.T) {
	b, err := NewPromptBuilder()
	if err != nil {
		t.Fatalf("NewPromptBuilder() returned error: %v", err)
	}
	loader := NewPromptLoader()
	friend, _ := loader.GetRelationship(models.RelationshipFriend)
	abstract, _ := loader.GetStyle(models.StyleAbstract)
	short, _ := loader.GetLength(models.LengthShort)

	p := b.Build(models.GenerationRequest{
		Relationship: models.RelationshipFriend,
		Style:        models.StyleAbstract,
		Length:       models.LengthShort,
	}, nil)

	iFriend := strings.Index(p.System, friend)
	iAbstract := strings.Index(p.System, abstract)
	iShort := strings.Index(p.System, short)
	if iFriend < 0 || iAbstract < 0 || iShort < 0 {
		t.Fatal("System message is missing a layer")
	}
	if !(iFriend < iAbstract && iAbstract < iShort) {
		t.Errorf("layers out of order: friend=%d abstract=%d short=%d", iFriend, iAbstract, iShort)
	}
	if strings.Contains(p.User, "个性化要求") {
		t.Error("unexpected personalization block")
	}
}

func TestBuildPersonalization(t *testing.T) {
	b := testBuilder(t)
	req := models.GenerationRequest{
		Relationship: models.RelationshipElder,
		Style:        models.StyleNormal,
		Length:       models.LengthMedium,
		Name:         "奶奶",
		Reference:    "去年的祝福",
	}

	p := b.Build(req, nil)

	if !strings.Contains(p.User, "个性化要求：") {
		t.Fatal("missing personalization block")
	}
	if !strings.Contains(p.User, "- 祝福对象的称呼：奶奶") {
		t.Error("missing name bullet")
	}
	if strings.Contains(p.User, "补充信息") {
		t.Error("note bullet present without a note")
	}
	if !strings.Contains(p.User, "\"去年的祝福\"") || !strings.Contains(p.User, "不要重复或抄袭") {
		t.Error("reference bullet should quote the reference and ask not to copy")
	}
}

func TestBuildFewShotIntroByMatchLevel(t *testing.T) {
	b := testBuilder(t)
	req := models.GenerationRequest{Relationship: models.RelationshipLeader, Style: models.StyleLiterary, Length: models.LengthLong}

	tests := []struct {
		level corpus.MatchLevel
		intro string
	}{
		{corpus.MatchExact, "以下是该场景的优秀范文"},
		{corpus.MatchRelaxed, "以下是类似场景的参考"},
		{corpus.MatchCrossRelationship, "以下仅供语感参考"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			p := b.Build(req, &corpus.FewShot{Examples: []string{"甲", "乙"}, MatchLevel: tt.level})

			if !strings.Contains(p.System, SectionDelimiter+tt.intro) {
				t.Errorf("System missing intro %q", tt.intro)
			}
			if !strings.HasSuffix(p.System, "\n范文1：甲\n范文2：乙") {
				t.Errorf("System has unexpected examples block: %q", p.System)
			}
			if !strings.HasSuffix(p.User, "5. 不要照搬参考范文，要有独创性") {
				t.Error("User message missing the originality item")
			}
		})
	}
}

func TestBuildEmptyFewShotIsSkipped(t *testing.T) {
	b := testBuilder(t)
	req := models.GenerationRequest{Relationship: models.RelationshipLeader, Style: models.StyleLiterary, Length: models.LengthLong}

	withEmpty := b.Build(req, &corpus.FewShot{MatchLevel: corpus.MatchCrossRelationship})
	without := b.Build(req, nil)

	if withEmpty != without {
		t.Error("an empty selection should build the same prompt as no selection")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := testBuilder(t)
	req := models.GenerationRequest{Relationship: models.RelationshipPartner, Style: models.StyleNormal, Length: models.LengthShort, Note: "异地"}
	fs := &corpus.FewShot{Examples: []string{"x"}, MatchLevel: corpus.MatchExact}

	if b.Build(req, fs) != b.Build(req, fs) {
		t.Error("Build() is not deterministic")
	}
}
