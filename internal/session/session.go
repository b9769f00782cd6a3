// Package session 是简历编辑会话：分区导航、草稿切片替换、预览、显式保存与双语切换。
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"cvforge/internal/blobcache"
	"cvforge/internal/i18n"
	"cvforge/internal/preview"
	"cvforge/internal/render"
	"cvforge/internal/resume"
	"cvforge/internal/translate"
)

// Section 是表单分区。
type Section string

const (
	SectionPersonal     Section = "personal"
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

// Sections 是固定的分区顺序。
var Sections = []Section{
	SectionPersonal,
	SectionSummary,
	SectionExperience,
	SectionEducation,
	SectionProjects,
	SectionPublications,
	SectionSkills,
	SectionInterests,
	SectionLanguages,
	SectionSignature,
}

// ErrClosed 表示会话已关闭。
var ErrClosed = errors.New("session closed")

// UpdateRequest 对应 PUT /resumes/update。Data 可以是完整简历或部分字段。
type UpdateRequest struct {
	ResumeID                  string
	Data                      any
	Image                     resume.Image
	Signature                 resume.Image
	RemoveBackground          bool
	RemoveSignatureBackground bool
}

// Backend 是会话依赖的远端接口。
type Backend interface {
	GetResume(ctx context.Context, resumeID string) (*resume.Document, error)
	UpdateResume(ctx context.Context, req UpdateRequest) (*resume.Document, error)
}

// Deps 是创建会话所需的协作者。Images 与 Translator 可为空。
type Deps struct {
	Backend    Backend
	Composer   *preview.Composer
	Images     *blobcache.Resolver
	Translator translate.Translator
	Language   i18n.Language
}

// Session 是单个用户对单份简历的编辑会话，草稿只在 Save 时持久化。
type Session struct {
	backend  Backend
	composer *preview.Composer
	images   *blobcache.Resolver
	swap     *translate.Swap

	mu                        sync.Mutex
	id                        string
	draft                     *resume.Document
	section                   int
	dirty                     bool
	closed                    bool
	removeBackground          bool
	removeSignatureBackground bool
}

func newSession(deps Deps, id string, draft *resume.Document) *Session {
	lang := deps.Language
	if lang == "" {
		lang = i18n.EN
	}
	composer := deps.Composer
	if composer == nil {
		var resolver render.ImageResolver
		if deps.Images != nil {
			resolver = deps.Images
		}
		composer = preview.NewComposer(nil, resolver)
	}
	s := &Session{
		backend:  deps.Backend,
		composer: composer,
		images:   deps.Images,
		id:       id,
		draft:    draft,
	}
	if deps.Translator != nil {
		s.swap = translate.NewSwap(deps.Translator, lang)
	}
	return s
}

// Open 加载已持久化的简历作为初始草稿。
func Open(ctx context.Context, deps Deps, resumeID string) (*Session, error) {
	doc, err := deps.Backend.GetResume(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("open resume %s: %w", resumeID, err)
	}
	if doc.ID == "" {
		doc.ID = resumeID
	}
	return newSession(deps, resumeID, doc), nil
}

// New 以默认值开始一份尚未持久化的草稿。
func New(deps Deps, title string) *Session {
	return newSession(deps, "", resume.New(title))
}

// ID 返回简历 id。
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Draft 返回当前草稿的副本。
func (s *Session) Draft() *resume.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Dirty 表示是否有未保存的修改。
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Language 返回当前草稿语言。
func (s *Session) Language() i18n.Language {
	if s.swap == nil {
		return i18n.EN
	}
	return s.swap.Language()
}

// Current 返回当前分区。
func (s *Session) Current() Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Sections[s.section]
}

// Index 返回当前分区下标。
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.section
}

// Next 前进一个分区，到末尾后保持不动。
func (s *Session) Next() Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.section < len(Sections)-1 {
		s.section++
	}
	return Sections[s.section]
}

// Previous 后退一个分区，到开头后保持不动。
func (s *Session) Previous() Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.section > 0 {
		s.section--
	}
	return Sections[s.section]
}

// Jump 直接跳到指定分区。
func (s *Session) Jump(section Section) error {
	for i, sec := range Sections {
		if sec == section {
			s.mu.Lock()
			s.section = i
			s.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("unknown section %q", section)
}

// mutate 在锁内修改草稿并标记为脏。
func (s *Session) mutate(fn func(d *resume.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn(s.draft)
	s.dirty = true
	return nil
}

// 以下 setter 都整体替换对应切片，不做局部合并。

func (s *Session) SetPersonalInfo(info resume.PersonalInfo) error {
	var released []resume.Image
	err := s.mutate(func(d *resume.Document) {
		if !d.PersonalInfo.Image.Equal(info.Image) {
			released = append(released, d.PersonalInfo.Image)
		}
		d.PersonalInfo = info.Clone()
	})
	if err != nil {
		return err
	}
	s.release(released...)
	return nil
}

func (s *Session) SetSummary(text string) error {
	return s.mutate(func(d *resume.Document) { d.ProfessionalSummary = text })
}

func (s *Session) SetExperience(items []resume.Experience) error {
	return s.mutate(func(d *resume.Document) { d.Experience = append([]resume.Experience{}, items...) })
}

func (s *Session) SetEducation(items []resume.Education) error {
	return s.mutate(func(d *resume.Document) { d.Education = append([]resume.Education{}, items...) })
}

func (s *Session) SetProjects(items []resume.Project) error {
	return s.mutate(func(d *resume.Document) { d.Projects = append([]resume.Project{}, items...) })
}

func (s *Session) SetPublications(items []resume.Publication) error {
	return s.mutate(func(d *resume.Document) { d.Publications = append([]resume.Publication{}, items...) })
}

func (s *Session) SetSkills(items []string) error {
	return s.mutate(func(d *resume.Document) { d.Skills = append([]string{}, items...) })
}

func (s *Session) SetInterests(items []string) error {
	return s.mutate(func(d *resume.Document) { d.Interests = append([]string{}, items...) })
}

func (s *Session) SetLanguages(items []resume.Language) error {
	return s.mutate(func(d *resume.Document) { d.Languages = append([]resume.Language{}, items...) })
}

func (s *Session) SetSignature(sig resume.Signature) error {
	var released []resume.Image
	err := s.mutate(func(d *resume.Document) {
		if !d.Signature.Image.Equal(sig.Image) {
			released = append(released, d.Signature.Image)
		}
		d.Signature = sig
	})
	if err != nil {
		return err
	}
	s.release(released...)
	return nil
}

func (s *Session) SetTitle(title string) error {
	return s.mutate(func(d *resume.Document) { d.Title = strings.TrimSpace(title) })
}

// SetTemplate 任何 key 都被接受，渲染时未知 key 回退到默认模板。
func (s *Session) SetTemplate(key string) error {
	return s.mutate(func(d *resume.Document) { d.Template = key })
}

func (s *Session) SetAccentColor(color string) error {
	return s.mutate(func(d *resume.Document) { d.AccentColor = color })
}

// SetShowImage 设置某个模板是否显示头像。
func (s *Session) SetShowImage(templateKey string, show bool) error {
	return s.mutate(func(d *resume.Document) {
		settings := cloneSettings(d.TemplateSettings)
		setting := settings[templateKey]
		setting.ShowImage = &show
		settings[templateKey] = setting
		d.TemplateSettings = settings
	})
}

// SetSidebarColor 设置侧边栏模板的背景色。
func (s *Session) SetSidebarColor(color string) error {
	return s.mutate(func(d *resume.Document) {
		settings := cloneSettings(d.TemplateSettings)
		setting := settings[resume.SidebarTemplateKey]
		setting.SidebarColor = color
		settings[resume.SidebarTemplateKey] = setting
		d.TemplateSettings = settings
	})
}

// RepositionImage 在用户拖动头像时调用，坐标被限制在 [0,100]。
func (s *Session) RepositionImage(x, y float64) error {
	return s.mutate(func(d *resume.Document) {
		pos := resume.ClampPosition(resume.ImagePosition{X: x, Y: y})
		d.PersonalInfo.ImagePosition = &pos
	})
}

// ZoomImage 缩放被限制在 [1,2]。
func (s *Session) ZoomImage(scale float64) error {
	return s.mutate(func(d *resume.Document) {
		v := resume.ClampScale(scale)
		d.PersonalInfo.ImageScale = &v
	})
}

// ResetImagePosition 恢复 50/50 与 1 倍缩放。
func (s *Session) ResetImagePosition() error {
	return s.mutate(func(d *resume.Document) {
		pos := resume.ImagePosition{X: resume.DefaultImagePosition, Y: resume.DefaultImagePosition}
		scale := resume.DefaultImageScale
		d.PersonalInfo.ImagePosition = &pos
		d.PersonalInfo.ImageScale = &scale
	})
}

// SetImage 替换头像；被替换的待上传图片的预览地址立即撤销。
func (s *Session) SetImage(img resume.Image, removeBackground bool) error {
	var old resume.Image
	err := s.mutate(func(d *resume.Document) {
		old = d.PersonalInfo.Image
		d.PersonalInfo.Image = img
		s.removeBackground = removeBackground
	})
	if err != nil {
		return err
	}
	if !old.Equal(img) {
		s.release(old)
	}
	return nil
}

// SetSignatureImage 替换签名图片。
func (s *Session) SetSignatureImage(img resume.Image, removeBackground bool) error {
	var old resume.Image
	err := s.mutate(func(d *resume.Document) {
		old = d.Signature.Image
		d.Signature.Image = img
		s.removeSignatureBackground = removeBackground
	})
	if err != nil {
		return err
	}
	if !old.Equal(img) {
		s.release(old)
	}
	return nil
}

// release 撤销不再被草稿引用的预览地址；头像与签名共用同一张图片时保留。
func (s *Session) release(imgs ...resume.Image) {
	if s.images == nil {
		return
	}
	s.mu.Lock()
	inUse := []resume.Image{s.draft.PersonalInfo.Image, s.draft.Signature.Image}
	s.mu.Unlock()
	for _, img := range imgs {
		if slices.ContainsFunc(inUse, img.Equal) {
			continue
		}
		_ = s.images.Release(context.Background(), img)
	}
}

// Preview 用当前草稿与语言组合预览页面。
func (s *Session) Preview(ctx context.Context) (preview.Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return preview.Page{}, ErrClosed
	}
	doc := s.draft.Clone()
	s.mu.Unlock()
	return s.composer.Compose(ctx, preview.Request{Document: doc, Language: s.Language()})
}

// Save 把完整草稿连同待上传图片一起持久化；失败时草稿保持原样。
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	doc := s.draft.Clone()
	req := UpdateRequest{
		ResumeID:                  s.id,
		Data:                      doc,
		RemoveBackground:          s.removeBackground,
		RemoveSignatureBackground: s.removeSignatureBackground,
	}
	if doc.PersonalInfo.Image.Kind() == resume.ImagePending {
		req.Image = doc.PersonalInfo.Image
	}
	if doc.Signature.Image.Kind() == resume.ImagePending {
		req.Signature = doc.Signature.Image
	}
	s.mu.Unlock()

	saved, err := s.backend.UpdateResume(ctx, req)
	if err != nil {
		return fmt.Errorf("save resume: %w", err)
	}

	s.mu.Lock()
	if saved != nil {
		if saved.ID != "" {
			s.id = saved.ID
		}
		s.draft = saved.Clone()
	}
	s.dirty = false
	s.removeBackground = false
	s.removeSignatureBackground = false
	s.mu.Unlock()
	s.release(req.Image, req.Signature)
	return nil
}

// SetPublic 立即持久化公开状态。
func (s *Session) SetPublic(ctx context.Context, public bool) error {
	if _, err := s.patch(ctx, map[string]any{"public": public}); err != nil {
		return err
	}
	return s.apply(func(d *resume.Document) { d.Public = public })
}

// SetSlug 规范化并校验 slug，校验失败时不发起请求；空字符串清除 slug。
func (s *Session) SetSlug(ctx context.Context, raw string) error {
	slug := resume.NormalizeSlug(raw)
	if err := resume.ValidateSlug(slug); err != nil {
		return err
	}
	var value any = slug
	if slug == "" {
		value = nil
	}
	if _, err := s.patch(ctx, map[string]any{"slug": value}); err != nil {
		return err
	}
	return s.apply(func(d *resume.Document) { d.Slug = slug })
}

// PersistAppearance 只保存模板与主题色，用于最终预览页切换模板。
func (s *Session) PersistAppearance(ctx context.Context, templateKey, accentColor string) error {
	if _, err := s.patch(ctx, map[string]any{"template": templateKey, "accent_color": accentColor}); err != nil {
		return err
	}
	return s.apply(func(d *resume.Document) {
		d.Template = templateKey
		d.AccentColor = accentColor
	})
}

func (s *Session) patch(ctx context.Context, fields map[string]any) (*resume.Document, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	id := s.id
	s.mu.Unlock()
	if id == "" {
		return nil, errors.New("resume has not been saved yet")
	}
	saved, err := s.backend.UpdateResume(ctx, UpdateRequest{ResumeID: id, Data: fields})
	if err != nil {
		return nil, fmt.Errorf("update resume: %w", err)
	}
	return saved, nil
}

// apply 修改已持久化的字段，不影响脏标记。
func (s *Session) apply(fn func(d *resume.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn(s.draft)
	return nil
}

// Translate 把草稿翻译到目标语言；失败时草稿与语言不变，已处于目标语言时不标记修改。
func (s *Session) Translate(ctx context.Context, target i18n.Language) error {
	if s.swap == nil {
		return errors.New("translation is not configured")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	doc := s.draft.Clone()
	s.mu.Unlock()

	before := s.swap.Language()
	out, err := s.swap.Translate(ctx, doc, target)
	if err != nil {
		return err
	}
	if before == target {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = out
	s.dirty = true
	return nil
}

// SwitchToOriginal 恢复翻译前的草稿，不调用翻译服务。
func (s *Session) SwitchToOriginal() bool {
	if s.swap == nil {
		return false
	}
	restored, ok := s.swap.Revert()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = restored
	return true
}

// ShareURL 返回公开访问地址，优先使用 slug。
func (s *Session) ShareURL(base string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.draft.Slug
	if key == "" {
		key = s.id
	}
	return strings.TrimRight(base, "/") + "/view/" + key
}

// Close 撤销所有临时预览地址并丢弃未保存的修改。
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.dirty = false
	s.draft = resume.New("")
	s.mu.Unlock()
	if s.images != nil {
		return s.images.Close(ctx)
	}
	return nil
}

func cloneSettings(in resume.TemplateSettings) resume.TemplateSettings {
	out := make(resume.TemplateSettings, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
