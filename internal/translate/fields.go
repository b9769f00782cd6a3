package translate

import "cvforge/internal/resume"

// Payload 是允许发送给翻译服务的字段子集。日期、熟练度、模板设置与 id 不在其中。
type Payload struct {
	PersonalInfo        *PersonalText     `json:"personal_info,omitempty"`
	ProfessionalSummary string            `json:"professional_summary,omitempty"`
	Experience          []ExperienceText  `json:"experience,omitempty"`
	Education           []EducationText   `json:"education,omitempty"`
	Projects            []ProjectText     `json:"project,omitempty"`
	Publications        []PublicationText `json:"publication,omitempty"`
	Skills              []string          `json:"skills,omitempty"`
	Interests           []string          `json:"interests,omitempty"`
}

type PersonalText struct {
	Profession     string `json:"profession,omitempty"`
	Location       string `json:"location,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	DrivingLicense string `json:"driving_license,omitempty"`
}

type ExperienceText struct {
	Position    string `json:"position,omitempty"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

type EducationText struct {
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Institution string `json:"institution,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

type ProjectText struct {
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

type PublicationText struct {
	Title       string `json:"title,omitempty"`
	Publication string `json:"publication,omitempty"`
	Description string `json:"description,omitempty"`
}

// Extract 从简历中取出可翻译字段。
func Extract(doc *resume.Document) Payload {
	p := Payload{
		ProfessionalSummary: doc.ProfessionalSummary,
		Skills:              append([]string(nil), doc.Skills...),
		Interests:           append([]string(nil), doc.Interests...),
	}
	info := doc.PersonalInfo
	if info.Profession != "" || info.Location != "" || info.Nationality != "" || info.DrivingLicense != "" {
		p.PersonalInfo = &PersonalText{
			Profession:     info.Profession,
			Location:       info.Location,
			Nationality:    info.Nationality,
			DrivingLicense: info.DrivingLicense,
		}
	}
	for _, e := range doc.Experience {
		p.Experience = append(p.Experience, ExperienceText{
			Position: e.Position, Company: e.Company, Location: e.Location, Description: e.Description,
		})
	}
	for _, e := range doc.Education {
		p.Education = append(p.Education, EducationText{
			Degree: e.Degree, Field: e.Field, Institution: e.Institution, Location: e.Location, Description: e.Description,
		})
	}
	for _, pr := range doc.Projects {
		p.Projects = append(p.Projects, ProjectText{Name: pr.Name, Type: pr.Type, Description: pr.Description})
	}
	for _, pub := range doc.Publications {
		p.Publications = append(p.Publications, PublicationText{
			Title: pub.Title, Publication: pub.Publication, Description: pub.Description,
		})
	}
	return p
}

// Merge 把译文合并到简历副本上，返回新文档，原文档不变。
// 列表条目按下标合并，超出原列表长度的条目被忽略；空译文保留原值。
func Merge(doc *resume.Document, t Payload) *resume.Document {
	out := doc.Clone()
	if t.PersonalInfo != nil {
		pick(&out.PersonalInfo.Profession, t.PersonalInfo.Profession)
		pick(&out.PersonalInfo.Location, t.PersonalInfo.Location)
		pick(&out.PersonalInfo.Nationality, t.PersonalInfo.Nationality)
		pick(&out.PersonalInfo.DrivingLicense, t.PersonalInfo.DrivingLicense)
	}
	pick(&out.ProfessionalSummary, t.ProfessionalSummary)
	for i := range min(len(out.Experience), len(t.Experience)) {
		e, tr := &out.Experience[i], t.Experience[i]
		pick(&e.Position, tr.Position)
		pick(&e.Company, tr.Company)
		pick(&e.Location, tr.Location)
		pick(&e.Description, tr.Description)
	}
	for i := range min(len(out.Education), len(t.Education)) {
		e, tr := &out.Education[i], t.Education[i]
		pick(&e.Degree, tr.Degree)
		pick(&e.Field, tr.Field)
		pick(&e.Institution, tr.Institution)
		pick(&e.Location, tr.Location)
		pick(&e.Description, tr.Description)
	}
	for i := range min(len(out.Projects), len(t.Projects)) {
		p, tr := &out.Projects[i], t.Projects[i]
		pick(&p.Name, tr.Name)
		pick(&p.Type, tr.Type)
		pick(&p.Description, tr.Description)
	}
	for i := range min(len(out.Publications), len(t.Publications)) {
		p, tr := &out.Publications[i], t.Publications[i]
		pick(&p.Title, tr.Title)
		pick(&p.Publication, tr.Publication)
		pick(&p.Description, tr.Description)
	}
	if len(t.Skills) > 0 {
		out.Skills = append([]string(nil), t.Skills...)
	}
	if len(t.Interests) > 0 {
		out.Interests = append([]string(nil), t.Interests...)
	}
	return out
}

func pick(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
