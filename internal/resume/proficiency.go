package resume

// Proficiency 是语言熟练度分档。
type Proficiency int

const (
	Beginner Proficiency = iota
	Basic
	Intermediate
	Fluent
	Native
)

func (p Proficiency) String() string {
	switch p {
	case Native:
		return "native"
	case Fluent:
		return "fluent"
	case Intermediate:
		return "intermediate"
	case Basic:
		return "basic"
	default:
		return "beginner"
	}
}

// Band 把 0-100 的熟练度映射到分档，下界包含在内。
func Band(proficiency int) Proficiency {
	switch {
	case proficiency >= 90:
		return Native
	case proficiency >= 70:
		return Fluent
	case proficiency >= 50:
		return Intermediate
	case proficiency >= 30:
		return Basic
	default:
		return Beginner
	}
}

// Ratio 返回 [0,1] 区间的熟练度比例，用于进度条与圆环。
func (l Language) Ratio() float64 {
	switch {
	case l.Proficiency <= 0:
		return 0
	case l.Proficiency >= 100:
		return 1
	default:
		return float64(l.Proficiency) / 100
	}
}
