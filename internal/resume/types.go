package resume

import (
	"encoding/json"
	"time"
)

// 默认模板与主题色，和前端保持一致。
const (
	DefaultTemplate     = "classic"
	DefaultAccentColor  = "#3B82F6"
	SidebarTemplateKey  = "professional-sidebar"
	DefaultSidebarColor = "#4a4a4a"
)

// Document 表示一份完整的简历内容（resumeData）。
type Document struct {
	ID                  string           `json:"_id,omitempty"`
	UserID              string           `json:"userId,omitempty"`
	Title               string           `json:"title"`
	Slug                string           `json:"slug,omitempty"`
	Public              bool             `json:"public"`
	PersonalInfo        PersonalInfo     `json:"personal_info"`
	ProfessionalSummary string           `json:"professional_summary"`
	Experience          []Experience     `json:"experience"`
	Education           []Education      `json:"education"`
	Projects            []Project        `json:"project"`
	Publications        []Publication    `json:"publication"`
	Skills              []string         `json:"skills"`
	Interests           []string         `json:"interests"`
	Languages           []Language       `json:"languages"`
	Signature           Signature        `json:"signature"`
	Template            string           `json:"template"`
	AccentColor         string           `json:"accent_color"`
	TemplateSettings    TemplateSettings `json:"template_settings"`
	Annexes             []AnnexeRef      `json:"annexes"`
	UpdatedAt           time.Time        `json:"updatedAt,omitzero"`
}

// PersonalInfo 描述简历头部的个人信息。
type PersonalInfo struct {
	FullName       string         `json:"full_name,omitempty"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Location       string         `json:"location,omitempty"`
	Profession     string         `json:"profession,omitempty"`
	LinkedIn       string         `json:"linkedin,omitempty"`
	Website        string         `json:"website,omitempty"`
	BirthDate      string         `json:"birth_date,omitempty"`
	Nationality    string         `json:"nationality,omitempty"`
	DrivingLicense string         `json:"driving_license,omitempty"`
	Image          Image          `json:"image,omitzero"`
	ImagePosition  *ImagePosition `json:"image_position,omitempty"`
	ImageScale     *float64       `json:"image_scale,omitempty"`
}

// ImagePosition 是头像裁剪位置，单位为百分比。
type ImagePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UnmarshalJSON 缺省坐标按 50 处理。
func (p *ImagePosition) UnmarshalJSON(data []byte) error {
	type alias ImagePosition
	aux := alias{X: DefaultImagePosition, Y: DefaultImagePosition}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = ImagePosition(aux)
	return nil
}

type Experience struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	Location    string `json:"location,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
	IsCurrent   bool   `json:"is_current"`
}

type Education struct {
	Institution    string `json:"institution"`
	Degree         string `json:"degree"`
	Field          string `json:"field,omitempty"`
	Location       string `json:"location,omitempty"`
	GraduationDate string `json:"graduation_date,omitempty"`
	GPA            string `json:"gpa,omitempty"`
	Description    string `json:"description,omitempty"`
	IsCurrent      bool   `json:"is_current"`
}

type Project struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

type Publication struct {
	Title       string `json:"title"`
	Publication string `json:"publication,omitempty"`
	Authors     string `json:"authors,omitempty"`
	Date        string `json:"date,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Language 是语言能力条目，Proficiency 取值 [0,100]。
type Language struct {
	Name        string `json:"name"`
	Proficiency int    `json:"proficiency"`
}

// 签名日期格式。
const (
	DateFormatLong  = "long"
	DateFormatShort = "short"
)

// Signature 描述签名区域。
type Signature struct {
	Image           Image  `json:"image,omitzero"`
	Date            string `json:"date,omitempty"`
	DateFormat      string `json:"date_format,omitempty"`
	ShowDeclaration bool   `json:"show_declaration"`
}

// IsEmpty 表示签名区域无需渲染。
func (s Signature) IsEmpty() bool {
	return s.Image.IsNone() && s.Date == "" && !s.ShowDeclaration
}

// EffectiveDateFormat 返回签名日期格式，缺省为 long。
func (s Signature) EffectiveDateFormat() string {
	if s.DateFormat == DateFormatShort {
		return DateFormatShort
	}
	return DateFormatLong
}

// TemplateSetting 是单个模板的覆盖配置。
type TemplateSetting struct {
	ShowImage    *bool  `json:"show_image,omitempty"`
	SidebarColor string `json:"sidebar_color,omitempty"`
}

// TemplateSettings 以模板 key 为索引。
type TemplateSettings map[string]TemplateSetting

// ShowImage 只有显式设置为 false 时才隐藏头像。
func (s TemplateSettings) ShowImage(templateKey string) bool {
	setting, ok := s[templateKey]
	if !ok || setting.ShowImage == nil {
		return true
	}
	return *setting.ShowImage
}

// SidebarColor 返回侧边栏模板的背景色。
func (s TemplateSettings) SidebarColor() string {
	if setting, ok := s[SidebarTemplateKey]; ok && setting.SidebarColor != "" {
		return setting.SidebarColor
	}
	return DefaultSidebarColor
}

// AnnexeRef 是简历对附件的弱引用，Order 从 1 开始连续递增。
type AnnexeRef struct {
	AnnexeID string `json:"annexeId"`
	Order    int    `json:"order"`
}

// Annexe 是用户上传的独立 PDF 附件。
type Annexe struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	FileName  string    `json:"fileName"`
	Size      int64     `json:"size"`
	FileURL   string    `json:"fileUrl"`
	CreatedAt time.Time `json:"createdAt"`

	// StorageKey 是对象存储中的 key，只在服务端使用。
	StorageKey string `json:"-"`
}

// New 返回新建简历时的默认草稿。
func New(title string) *Document {
	return &Document{
		Title:            title,
		Experience:       []Experience{},
		Education:        []Education{},
		Projects:         []Project{},
		Publications:     []Publication{},
		Skills:           []string{},
		Interests:        []string{},
		Languages:        []Language{},
		Template:         DefaultTemplate,
		AccentColor:      DefaultAccentColor,
		TemplateSettings: TemplateSettings{},
		Annexes:          []AnnexeRef{},
	}
}
