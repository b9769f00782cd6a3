// Package render 实现简历模板渲染：一个统一的排版引擎加若干声明式版式。
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"regexp"

	"cvforge/internal/i18n"
	"cvforge/internal/resume"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("resume").ParseFS(templateFS, "templates/*.html"))

// ringRadius 与圆环 SVG 的 r 属性一致。
const ringRadius = 32

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ImageResolver 把图片变体解析为可用于 <img src> 的地址。
type ImageResolver interface {
	ResolveImage(ctx context.Context, img resume.Image) (string, error)
}

// RemoteOnly 只解析远程图片，待上传图片视为不存在。
type RemoteOnly struct{}

func (RemoteOnly) ResolveImage(_ context.Context, img resume.Image) (string, error) {
	return img.URL(), nil
}

// Options 是单次渲染的参数。
type Options struct {
	AccentColor  string
	ShowImage    bool
	Language     i18n.Language
	SidebarColor string
	Images       ImageResolver
}

// Renderer 按某个版式渲染简历。
type Renderer struct {
	layout Layout
}

func (r *Renderer) Key() string    { return r.layout.Key }
func (r *Renderer) Layout() Layout { return r.layout }

// Render 生成简历 HTML 片段。
func (r *Renderer) Render(ctx context.Context, doc *resume.Document, opts Options) (template.HTML, error) {
	if doc == nil {
		return "", fmt.Errorf("render %s: nil document", r.layout.Key)
	}
	lang := opts.Language
	if lang == "" {
		lang = i18n.EN
	}
	labels, err := i18n.LabelsFor(lang)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", r.layout.Key, err)
	}
	resolver := opts.Images
	if resolver == nil {
		resolver = RemoteOnly{}
	}

	v, err := r.buildView(ctx, doc, opts, labels, resolver)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "page", v); err != nil {
		return "", fmt.Errorf("execute %s template: %w", r.layout.Key, err)
	}
	return template.HTML(buf.String()), nil
}

type pageView struct {
	Key          string
	Columns      string
	ImageShape   string
	HeaderBand   bool
	HasSide      bool
	Lang         string
	Accent       template.CSS
	SidebarColor template.CSS
	Person       personView
	Main         []sectionView
	Side         []sectionView
}

type personView struct {
	Name       string
	Profession string
	ImageURL   string
	ImageStyle template.CSS
	Contacts   []contactLine
}

type contactLine struct {
	Kind  string
	Value string
}

type sectionView struct {
	Kind      string
	Title     string
	Accent    template.CSS
	Timeline  bool
	Indicator string
	Text      string
	Entries   []entryView
	Tags      []string
	Languages []languageView
	Contacts  []contactLine
	Signature *signatureView
}

type entryView struct {
	Title    string
	Subtitle string
	Meta     string
	Period   string
	Location string
	Link     string
	Bullets  []string
}

type languageView struct {
	Indicator  string
	Accent     template.CSS
	Name       string
	Band       string
	Percent    int
	BarWidth   template.CSS
	DashArray  string
	DashOffset string
}

type signatureView struct {
	Declaration string
	ImageURL    string
	DateLabel   string
	Date        string
}

func (r *Renderer) buildView(ctx context.Context, doc *resume.Document, opts Options, labels i18n.Labels, images ImageResolver) (*pageView, error) {
	accent := safeColor(opts.AccentColor, resume.DefaultAccentColor)
	l := r.layout
	v := &pageView{
		Key:          l.Key,
		Columns:      string(l.Columns),
		ImageShape:   string(l.Image),
		HeaderBand:   l.HeaderBand,
		HasSide:      len(l.Side) > 0,
		Lang:         string(labels.Language),
		Accent:       accent,
		SidebarColor: safeColor(opts.SidebarColor, resume.DefaultSidebarColor),
		Person: personView{
			Name:       doc.PersonalInfo.FullName,
			Profession: doc.PersonalInfo.Profession,
			Contacts:   contactsOf(doc.PersonalInfo),
		},
	}

	if opts.ShowImage && l.Image != ShapeNone && !doc.PersonalInfo.Image.IsNone() {
		url, err := images.ResolveImage(ctx, doc.PersonalInfo.Image)
		if err != nil {
			return nil, fmt.Errorf("resolve profile image: %w", err)
		}
		if url != "" {
			v.Person.ImageURL = url
			v.Person.ImageStyle = PositionStyle(doc.PersonalInfo).CSS()
		}
	}

	var err error
	if v.Main, err = r.sections(ctx, l.Main, doc, labels, accent, images); err != nil {
		return nil, err
	}
	if v.Side, err = r.sections(ctx, l.Side, doc, labels, accent, images); err != nil {
		return nil, err
	}
	return v, nil
}

// sections 按版式顺序构建区块，内容为空的区块连同标题一起省略。
func (r *Renderer) sections(ctx context.Context, slots []Slot, doc *resume.Document, labels i18n.Labels, accent template.CSS, images ImageResolver) ([]sectionView, error) {
	l := r.layout
	out := make([]sectionView, 0, len(slots))
	for _, slot := range slots {
		s := sectionView{
			Kind:      string(slot.Section),
			Title:     slot.title(labels),
			Accent:    accent,
			Timeline:  l.Columns == ColumnsTimeline,
			Indicator: string(l.Indicator),
		}
		switch slot.Section {
		case SectionContact:
			s.Contacts = contactsOf(doc.PersonalInfo)
			if len(s.Contacts) == 0 {
				continue
			}
		case SectionSummary:
			if doc.ProfessionalSummary == "" {
				continue
			}
			s.Text = doc.ProfessionalSummary
		case SectionExperience:
			for _, e := range doc.Experience {
				s.Entries = append(s.Entries, entryView{
					Title:    e.Position,
					Subtitle: e.Company,
					Location: e.Location,
					Period:   FormatPeriod(e.StartDate, e.EndDate, e.IsCurrent, labels, l.Months),
					Bullets:  descriptionLines(e.Description),
				})
			}
		case SectionEducation:
			for _, e := range doc.Education {
				degree := e.Degree
				if e.Field != "" {
					degree = joinNonEmpty(" in ", e.Degree, e.Field)
				}
				period := FormatDate(e.GraduationDate, labels, l.Months)
				if e.IsCurrent {
					period = labels.Present
				}
				meta := ""
				if e.GPA != "" {
					meta = "GPA: " + e.GPA
				}
				s.Entries = append(s.Entries, entryView{
					Title:    degree,
					Subtitle: e.Institution,
					Location: e.Location,
					Period:   period,
					Meta:     meta,
					Bullets:  descriptionLines(e.Description),
				})
			}
		case SectionProjects:
			for _, p := range doc.Projects {
				s.Entries = append(s.Entries, entryView{
					Title:    p.Name,
					Subtitle: p.Type,
					Bullets:  descriptionLines(p.Description),
				})
			}
		case SectionPublications:
			for _, p := range doc.Publications {
				s.Entries = append(s.Entries, entryView{
					Title:    p.Title,
					Subtitle: p.Publication,
					Meta:     p.Authors,
					Period:   FormatDate(p.Date, labels, l.Months),
					Link:     p.URL,
					Bullets:  descriptionLines(p.Description),
				})
			}
		case SectionSkills:
			s.Tags = nonEmpty(doc.Skills)
		case SectionInterests:
			s.Tags = nonEmpty(doc.Interests)
		case SectionLanguages:
			for _, lang := range doc.Languages {
				s.Languages = append(s.Languages, languageOf(lang, labels, l.Indicator, accent))
			}
		case SectionSignature:
			sig, err := signatureOf(ctx, doc.Signature, labels, images)
			if err != nil {
				return nil, err
			}
			if sig == nil {
				continue
			}
			s.Signature = sig
		}
		if isEmptySection(s) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func isEmptySection(s sectionView) bool {
	return s.Text == "" &&
		len(s.Entries) == 0 &&
		len(s.Tags) == 0 &&
		len(s.Languages) == 0 &&
		len(s.Contacts) == 0 &&
		s.Signature == nil
}

func languageOf(lang resume.Language, labels i18n.Labels, indicator Indicator, accent template.CSS) languageView {
	ratio := lang.Ratio()
	circumference := 2 * math.Pi * ringRadius
	return languageView{
		Indicator:  string(indicator),
		Accent:     accent,
		Name:       lang.Name,
		Band:       labels.Band(resume.Band(lang.Proficiency)),
		Percent:    int(math.Round(ratio * 100)),
		BarWidth:   template.CSS(fmt.Sprintf("width: %s%%;", formatNumber(ratio*100))),
		DashArray:  fmt.Sprintf("%.2f", circumference),
		DashOffset: fmt.Sprintf("%.2f", circumference*(1-ratio)),
	}
}

func signatureOf(ctx context.Context, sig resume.Signature, labels i18n.Labels, images ImageResolver) (*signatureView, error) {
	if sig.IsEmpty() {
		return nil, nil
	}
	v := &signatureView{DateLabel: labels.Date}
	if sig.ShowDeclaration {
		v.Declaration = labels.Declaration
	}
	if !sig.Image.IsNone() {
		url, err := images.ResolveImage(ctx, sig.Image)
		if err != nil {
			return nil, fmt.Errorf("resolve signature image: %w", err)
		}
		v.ImageURL = url
	}
	v.Date = FormatSignatureDate(sig.Date, sig.EffectiveDateFormat(), labels)
	if v.Declaration == "" && v.ImageURL == "" && v.Date == "" {
		return nil, nil
	}
	return v, nil
}

func contactsOf(p resume.PersonalInfo) []contactLine {
	var out []contactLine
	add := func(kind, value string) {
		if value != "" {
			out = append(out, contactLine{Kind: kind, Value: value})
		}
	}
	add("location", p.Location)
	add("phone", p.Phone)
	add("email", p.Email)
	add("birth_date", p.BirthDate)
	add("nationality", p.Nationality)
	add("driving_license", p.DrivingLicense)
	add("linkedin", p.LinkedIn)
	add("website", p.Website)
	return out
}

func safeColor(value, fallback string) template.CSS {
	if colorPattern.MatchString(value) {
		return template.CSS(value)
	}
	return template.CSS(fallback)
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	var buf bytes.Buffer
	for _, p := range parts {
		if p == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(p)
	}
	return buf.String()
}
