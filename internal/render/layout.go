package render

import (
	"sort"

	"cvforge/internal/i18n"
	"cvforge/internal/resume"
)

// Columns 是版式的分栏方式。
type Columns string

const (
	ColumnsSingle   Columns = "single"
	ColumnsSidebar  Columns = "sidebar"
	ColumnsTimeline Columns = "timeline"
	ColumnsSplit    Columns = "split"
)

// ImageShape 是头像裁剪形状。
type ImageShape string

const (
	ShapeCircle  ImageShape = "circle"
	ShapeRounded ImageShape = "rounded"
	ShapeNone    ImageShape = "none"
)

// Indicator 是语言熟练度的展示方式。
type Indicator string

const (
	IndicatorRing Indicator = "ring"
	IndicatorBar  Indicator = "bar"
	IndicatorText Indicator = "text"
)

// Section 标识一个内容区块。
type Section string

const (
	SectionContact      Section = "contact"
	SectionSummary      Section = "summary"
	SectionExperience   Section = "experience"
	SectionEducation    Section = "education"
	SectionProjects     Section = "projects"
	SectionPublications Section = "publications"
	SectionSkills       Section = "skills"
	SectionInterests    Section = "interests"
	SectionLanguages    Section = "languages"
	SectionSignature    Section = "signature"
)

// Heading 选择区块标题使用的标签。
type Heading int

const (
	HeadingDefault Heading = iota
	HeadingProfessional
	HeadingCore
	HeadingNone
)

// Slot 是版式中一个区块的位置与标题选择。
type Slot struct {
	Section Section
	Heading Heading
}

// Layout 是模板的声明式描述，渲染规则统一由引擎执行。
type Layout struct {
	Key        string
	Columns    Columns
	Image      ImageShape
	Indicator  Indicator
	Months     MonthStyle
	HeaderBand bool
	Main       []Slot
	Side       []Slot
}

func (s Slot) title(labels i18n.Labels) string {
	if s.Heading == HeadingNone {
		return ""
	}
	switch s.Section {
	case SectionContact:
		return labels.Contact
	case SectionSummary:
		if s.Heading == HeadingProfessional {
			return labels.ProfessionalSummary
		}
		return labels.Summary
	case SectionExperience:
		if s.Heading == HeadingProfessional {
			return labels.ProfessionalExperience
		}
		return labels.Experience
	case SectionEducation:
		return labels.Education
	case SectionProjects:
		return labels.Projects
	case SectionPublications:
		return labels.Publications
	case SectionSkills:
		if s.Heading == HeadingCore {
			return labels.CoreSkills
		}
		return labels.Skills
	case SectionInterests:
		return labels.Interests
	case SectionLanguages:
		return labels.Languages
	case SectionSignature:
		return ""
	}
	return ""
}

func slots(sections ...Section) []Slot {
	out := make([]Slot, len(sections))
	for i, s := range sections {
		out[i] = Slot{Section: s}
	}
	return out
}

var builtinLayouts = []Layout{
	{
		Key:       resume.DefaultTemplate,
		Columns:   ColumnsSingle,
		Image:     ShapeCircle,
		Indicator: IndicatorRing,
		Months:    MonthShort,
		Main: []Slot{
			{Section: SectionSummary, Heading: HeadingProfessional},
			{Section: SectionExperience, Heading: HeadingProfessional},
			{Section: SectionProjects},
			{Section: SectionPublications},
			{Section: SectionEducation},
			{Section: SectionSkills, Heading: HeadingCore},
			{Section: SectionInterests},
			{Section: SectionLanguages},
			{Section: SectionSignature},
		},
	},
	{
		Key:        "modern",
		Columns:    ColumnsSingle,
		Image:      ShapeCircle,
		Indicator:  IndicatorRing,
		Months:     MonthShort,
		HeaderBand: true,
		Main: append([]Slot{{Section: SectionSummary, Heading: HeadingProfessional}}, slots(
			SectionExperience, SectionProjects, SectionPublications, SectionEducation,
			SectionSkills, SectionInterests, SectionLanguages, SectionSignature,
		)...),
	},
	{
		Key:       "minimal",
		Columns:   ColumnsSingle,
		Image:     ShapeCircle,
		Indicator: IndicatorText,
		Months:    MonthShort,
		Main: append([]Slot{{Section: SectionSummary, Heading: HeadingNone}}, slots(
			SectionExperience, SectionProjects, SectionPublications, SectionEducation,
			SectionSkills, SectionInterests, SectionLanguages, SectionSignature,
		)...),
	},
	{
		Key:       "minimal-image",
		Columns:   ColumnsSplit,
		Image:     ShapeRounded,
		Indicator: IndicatorText,
		Months:    MonthShort,
		Side:      slots(SectionContact, SectionEducation, SectionSkills, SectionLanguages),
		Main: slots(
			SectionSummary, SectionExperience, SectionProjects, SectionPublications,
			SectionInterests, SectionSignature,
		),
	},
	{
		Key:       resume.SidebarTemplateKey,
		Columns:   ColumnsSidebar,
		Image:     ShapeCircle,
		Indicator: IndicatorBar,
		Months:    MonthShort,
		Side: []Slot{
			{Section: SectionContact, Heading: HeadingNone},
			{Section: SectionSummary, Heading: HeadingProfessional},
			{Section: SectionSkills},
			{Section: SectionInterests},
			{Section: SectionLanguages},
		},
		Main: []Slot{
			{Section: SectionExperience, Heading: HeadingProfessional},
			{Section: SectionEducation},
			{Section: SectionProjects},
			{Section: SectionPublications},
			{Section: SectionSignature},
		},
	},
	{
		Key:       "neo timeline",
		Columns:   ColumnsTimeline,
		Image:     ShapeRounded,
		Indicator: IndicatorBar,
		Months:    MonthShort,
		Main: []Slot{
			{Section: SectionSummary, Heading: HeadingProfessional},
			{Section: SectionExperience, Heading: HeadingProfessional},
			{Section: SectionEducation},
			{Section: SectionProjects},
			{Section: SectionSkills},
			{Section: SectionLanguages},
			{Section: SectionInterests},
			{Section: SectionPublications},
			{Section: SectionSignature},
		},
	},
}

// Registry 按模板 key 查找渲染器，未知 key 回退到 classic。
type Registry struct {
	renderers map[string]*Renderer
	fallback  *Renderer
}

// NewRegistry 注册内置版式，可追加自定义版式。
func NewRegistry(extra ...Layout) *Registry {
	r := &Registry{renderers: make(map[string]*Renderer)}
	for _, l := range append(append([]Layout(nil), builtinLayouts...), extra...) {
		r.renderers[l.Key] = &Renderer{layout: l}
	}
	r.fallback = r.renderers[resume.DefaultTemplate]
	return r
}

// Lookup 精确匹配 key；不存在时返回默认模板，从不报错。
func (r *Registry) Lookup(key string) *Renderer {
	if rd, ok := r.renderers[key]; ok {
		return rd
	}
	return r.fallback
}

// Has 表示 key 是否为已注册模板。
func (r *Registry) Has(key string) bool {
	_, ok := r.renderers[key]
	return ok
}

// Keys 返回全部已注册模板 key（排序后）。
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.renderers))
	for k := range r.renderers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
