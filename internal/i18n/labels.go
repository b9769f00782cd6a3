// Package i18n 提供简历模板使用的本地化标签。
package i18n

import (
	"errors"
	"fmt"
	"strings"

	"cvforge/internal/resume"
)

// Language 是受支持的界面语言。
type Language string

const (
	EN Language = "en"
	FR Language = "fr"
)

// ErrUnsupportedLanguage 表示请求了未收录的语言。
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Languages 返回全部受支持语言。
func Languages() []Language { return []Language{EN, FR} }

// ParseLanguage 解析语言代码，大小写不敏感；未知语言直接报错而不是回退到英文。
func ParseLanguage(code string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(code))) {
	case EN:
		return EN, nil
	case FR:
		return FR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
}

// Labels 是一种语言下模板需要的全部固定文案。
type Labels struct {
	Language Language

	ProfessionalSummary    string
	Summary                string
	ProfessionalExperience string
	Experience             string
	Education              string
	Skills                 string
	CoreSkills             string
	Interests              string
	Projects               string
	Publications           string
	Languages              string
	Contact                string
	Signature              string
	Date                   string
	Present                string
	Declaration            string

	Native       string
	Fluent       string
	Intermediate string
	Basic        string
	Beginner     string

	ShortMonths [12]string
	LongMonths  [12]string
}

var catalog = map[Language]Labels{
	EN: {
		Language:               EN,
		ProfessionalSummary:    "PROFESSIONAL SUMMARY",
		Summary:                "SUMMARY",
		ProfessionalExperience: "PROFESSIONAL EXPERIENCE",
		Experience:             "EXPERIENCE",
		Education:              "EDUCATION",
		Skills:                 "SKILLS",
		CoreSkills:             "CORE SKILLS",
		Interests:              "INTERESTS",
		Projects:               "PROJECTS",
		Publications:           "PUBLICATIONS",
		Languages:              "LANGUAGES",
		Contact:                "CONTACT",
		Signature:              "SIGNATURE",
		Date:                   "Date",
		Present:                "Present",
		Declaration:            "I hereby declare that the information provided above is true and correct to the best of my knowledge.",
		Native:                 "Native",
		Fluent:                 "Fluent",
		Intermediate:           "Intermediate",
		Basic:                  "Basic",
		Beginner:               "Beginner",
		ShortMonths:            [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		LongMonths:             [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
	},
	FR: {
		Language:               FR,
		ProfessionalSummary:    "RÉSUMÉ PROFESSIONNEL",
		Summary:                "RÉSUMÉ",
		ProfessionalExperience: "EXPÉRIENCE PROFESSIONNELLE",
		Experience:             "EXPÉRIENCE",
		Education:              "FORMATION",
		Skills:                 "COMPÉTENCES",
		CoreSkills:             "COMPÉTENCES CLÉS",
		Interests:              "CENTRES D'INTÉRÊT",
		Projects:               "PROJETS",
		Publications:           "PUBLICATIONS",
		Languages:              "LANGUES",
		Contact:                "CONTACT",
		Signature:              "SIGNATURE",
		Date:                   "Date",
		Present:                "Présent",
		Declaration:            "Je certifie que les informations ci-dessus sont exactes et complètes.",
		Native:                 "Natif",
		Fluent:                 "Courant",
		Intermediate:           "Intermédiaire",
		Basic:                  "Basique",
		Beginner:               "Débutant",
		ShortMonths:            [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
		LongMonths:             [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
	},
}

// LabelsFor 返回指定语言的标签集。
func LabelsFor(lang Language) (Labels, error) {
	labels, ok := catalog[lang]
	if !ok {
		return Labels{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, string(lang))
	}
	return labels, nil
}

// MustLabelsFor 仅用于编译期常量语言。
func MustLabelsFor(lang Language) Labels {
	labels, err := LabelsFor(lang)
	if err != nil {
		panic(err)
	}
	return labels
}

// Band 返回熟练度分档的本地化名称。
func (l Labels) Band(p resume.Proficiency) string {
	switch p {
	case resume.Native:
		return l.Native
	case resume.Fluent:
		return l.Fluent
	case resume.Intermediate:
		return l.Intermediate
	case resume.Basic:
		return l.Basic
	default:
		return l.Beginner
	}
}
