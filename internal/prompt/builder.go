package prompt

import (
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/blessing-api/internal/corpus"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
)

// SectionDelimiter separates the layers of the system message
const SectionDelimiter = "\n\n---\n\n"

var fewShotIntro = map[corpus.MatchLevel]string{
	corpus.MatchExact:             "以下是该场景的优秀范文，请参考风格和结构（不要照搬）：",
	corpus.MatchRelaxed:           "以下是类似场景的参考，注意调整以匹配用户需求：",
	corpus.MatchCrossRelationship: "以下仅供语感参考，请根据实际需求创作：",
}

// Prompt is the message pair sent upstream
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Builder assembles prompts from preloaded layers. Build never touches the filesystem.
type Builder struct {
	loader        *Loader
	theme         string
	relationships map[models.Relationship]string
	styles        map[models.Style]string
	lengths       map[models.Length]string
}

// NewPromptBuilder creates a builder over the embedded layers
func NewPromptBuilder() (*Builder, error) {
	return NewPromptBuilderWithLoader(NewPromptLoader())
}

// NewPromptBuilderWithLoader preloads every layer and fails if one is missing
func NewPromptBuilderWithLoader(loader *Loader) (*Builder, error) {
	b := &Builder{
		loader:        loader,
		relationships: make(map[models.Relationship]string, len(models.Relationships)),
		styles:        make(map[models.Style]string, len(models.Styles)),
		lengths:       make(map[models.Length]string, len(models.Lengths)),
	}

	var err error
	if b.theme, err = loader.GetTheme(); err != nil {
		return nil, err
	}
	for _, rel := range models.Relationships {
		if b.relationships[rel], err = loader.GetRelationship(rel); err != nil {
			return nil, err
		}
	}
	for _, style := range models.Styles {
		if b.styles[style], err = loader.GetStyle(style); err != nil {
			return nil, err
		}
	}
	for _, length := range models.Lengths {
		if b.lengths[length], err = loader.GetLength(length); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Build is deterministic in its inputs. fewShot may be nil.
func (b *Builder) Build(req models.GenerationRequest, fewShot *corpus.FewShot) Prompt {
	system := strings.Join([]string{
		b.theme,
		b.relationships[req.Relationship],
		b.styles[req.Style],
		b.lengths[req.Length],
	}, SectionDelimiter)

	hasExamples := !fewShot.Empty()
	if hasExamples {
		system += SectionDelimiter + buildExamplesBlock(fewShot)
	}

	return Prompt{
		System: system,
		User:   buildUserMessage(req, hasExamples),
	}
}

func buildExamplesBlock(fewShot *corpus.FewShot) string {
	intro, ok := fewShotIntro[fewShot.MatchLevel]
	if !ok {
		intro = fewShotIntro[corpus.MatchCrossRelationship]
	}

	var sb strings.Builder
	sb.WriteString(intro)
	for i, text := range fewShot.Examples {
		fmt.Fprintf(&sb, "\n范文%d：%s", i+1, text)
	}
	return sb.String()
}

func buildUserMessage(req models.GenerationRequest, hasExamples bool) string {
	var sb strings.Builder
	sb.WriteString("请根据以上要求，生成一条马年春节祝福语。")

	if req.HasPersonalization() {
		sb.WriteString("\n\n个性化要求：")
		if req.Name != "" {
			fmt.Fprintf(&sb, "\n- 祝福对象的称呼：%s，请在祝福语中自然地使用这个称呼", req.Name)
		}
		if req.Note != "" {
			fmt.Fprintf(&sb, "\n- 补充信息：%s，请将这些信息巧妙融入祝福内容", req.Note)
		}
		if req.Reference != "" {
			fmt.Fprintf(&sb, "\n- 往年祝福参考：以下是用户之前给这个人发过的拜年信息，请参考其风格和内容方向，但不要重复或抄袭，要有新意：\n\"%s\"", req.Reference)
		}
	}

	sb.WriteString("\n\n要求：")
	sb.WriteString("\n1. 直接输出祝福语正文，不要加标题、引号或其他格式标记")
	sb.WriteString("\n2. 自然融入马年元素")
	sb.WriteString("\n3. 语气和内容严格匹配关系和风格要求")
	sb.WriteString("\n4. 严格遵守字数范围")
	if hasExamples {
		sb.WriteString("\n5. 不要照搬参考范文，要有独创性")
	}
	return sb.String()
}
