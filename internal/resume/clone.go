package resume

// Clone 返回文档的深拷贝，修改副本不会影响原文档。
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.PersonalInfo = d.PersonalInfo.Clone()
	out.Experience = cloneSlice(d.Experience)
	out.Education = cloneSlice(d.Education)
	out.Projects = cloneSlice(d.Projects)
	out.Publications = cloneSlice(d.Publications)
	out.Skills = cloneSlice(d.Skills)
	out.Interests = cloneSlice(d.Interests)
	out.Languages = cloneSlice(d.Languages)
	out.Annexes = cloneSlice(d.Annexes)
	out.Signature.Image = d.Signature.Image.clone()
	if d.TemplateSettings != nil {
		out.TemplateSettings = make(TemplateSettings, len(d.TemplateSettings))
		for key, setting := range d.TemplateSettings {
			if setting.ShowImage != nil {
				v := *setting.ShowImage
				setting.ShowImage = &v
			}
			out.TemplateSettings[key] = setting
		}
	}
	return &out
}

// Clone 返回个人信息的深拷贝。
func (p PersonalInfo) Clone() PersonalInfo {
	out := p
	out.Image = p.Image.clone()
	if p.ImagePosition != nil {
		pos := *p.ImagePosition
		out.ImagePosition = &pos
	}
	if p.ImageScale != nil {
		scale := *p.ImageScale
		out.ImageScale = &scale
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
