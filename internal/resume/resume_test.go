package resume

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandBoundaries(t *testing.T) {
	cases := map[int]Proficiency{
		100: Native,
		90:  Native,
		89:  Fluent,
		70:  Fluent,
		69:  Intermediate,
		50:  Intermediate,
		49:  Basic,
		30:  Basic,
		29:  Beginner,
		0:   Beginner,
		-5:  Beginner,
	}
	for p, want := range cases {
		assert.Equal(t, want, Band(p), "proficiency %d", p)
	}
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"", "john-doe", "cv2024", "a-b-c"}
	for _, s := range valid {
		assert.NoError(t, ValidateSlug(s), s)
	}
	invalid := []string{"-john", "john-", "john--doe", "John", "jo hn", "jöhn", "john_doe"}
	for _, s := range invalid {
		assert.ErrorIs(t, ValidateSlug(s), ErrInvalidSlug, s)
	}
	assert.Equal(t, "john-doe", NormalizeSlug("  John-Doe "))
}

func TestClampPositionAndScale(t *testing.T) {
	assert.Equal(t, ImagePosition{X: 0, Y: 100}, ClampPosition(ImagePosition{X: -20, Y: 140}))
	assert.Equal(t, ImagePosition{X: 33, Y: 67}, ClampPosition(ImagePosition{X: 33.4, Y: 66.6}))
	assert.Equal(t, 1.0, ClampScale(0.2))
	assert.Equal(t, 2.0, ClampScale(3))
	assert.Equal(t, 1.35, ClampScale(1.35))
}

func TestImageJSON(t *testing.T) {
	var info PersonalInfo
	require.NoError(t, json.Unmarshal([]byte(`{"full_name":"A","image":"https://cdn/x.png"}`), &info))
	assert.Equal(t, ImageRemote, info.Image.Kind())
	assert.Equal(t, "https://cdn/x.png", info.Image.URL())

	require.NoError(t, json.Unmarshal([]byte(`{"image":{}}`), &info))
	assert.True(t, info.Image.IsNone())

	info.Image = PendingImage([]byte{1, 2, 3}, "me.png", "image/png")
	out, err := json.Marshal(info)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"image"`)
}

func TestPendingImagesAreOmittedFromDocumentJSON(t *testing.T) {
	doc := New("CV")
	doc.PersonalInfo.Image = PendingImage([]byte{1}, "me.png", "image/png")
	doc.Signature.Image = PendingImage([]byte{1}, "sig.png", "image/png")
	doc.Signature.ShowDeclaration = true

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"image"`)
	assert.False(t, doc.Signature.IsEmpty())

	doc.PersonalInfo.Image = RemoteImage("https://cdn/me.png")
	out, err = json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"image":"https://cdn/me.png"`)
}

func TestImagePositionDefaults(t *testing.T) {
	var info PersonalInfo
	require.NoError(t, json.Unmarshal([]byte(`{"image_position":{"x":20}}`), &info))
	require.NotNil(t, info.ImagePosition)
	assert.Equal(t, ImagePosition{X: 20, Y: 50}, *info.ImagePosition)
}

func TestCloneIsDeep(t *testing.T) {
	show := false
	scale := 1.5
	doc := New("CV")
	doc.PersonalInfo.ImageScale = &scale
	doc.Experience = []Experience{{Company: "Acme"}}
	doc.Skills = []string{"Go"}
	doc.TemplateSettings["modern"] = TemplateSetting{ShowImage: &show}
	doc.Signature.Image = PendingImage([]byte("sig"), "sig.png", "image/png")

	cp := doc.Clone()
	require.Equal(t, doc, cp)

	cp.Experience[0].Company = "Other"
	cp.Skills[0] = "Rust"
	*cp.PersonalInfo.ImageScale = 2
	*cp.TemplateSettings["modern"].ShowImage = true
	cp.Signature.Image.Data()[0] = 'X'

	assert.Equal(t, "Acme", doc.Experience[0].Company)
	assert.Equal(t, "Go", doc.Skills[0])
	assert.Equal(t, 1.5, *doc.PersonalInfo.ImageScale)
	assert.False(t, *doc.TemplateSettings["modern"].ShowImage)
	assert.Equal(t, []byte("sig"), doc.Signature.Image.Data())
}

func TestSortedAnnexeIDsDropsDangling(t *testing.T) {
	catalog := CatalogOf([]Annexe{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	refs := []AnnexeRef{
		{AnnexeID: "c", Order: 1},
		{AnnexeID: "gone", Order: 2},
		{AnnexeID: "a", Order: 3},
		{AnnexeID: "", Order: 4},
	}
	assert.Equal(t, []string{"c", "a"}, SortedAnnexeIDs(refs, catalog))
}

func TestAssignmentsFromIsDense(t *testing.T) {
	refs := AssignmentsFrom([]string{"x", "y", "z"})
	for i, ref := range refs {
		assert.Equal(t, i+1, ref.Order)
	}
}

func TestTemplateSettings(t *testing.T) {
	hide := false
	settings := TemplateSettings{"modern": {ShowImage: &hide}}
	assert.False(t, settings.ShowImage("modern"))
	assert.True(t, settings.ShowImage("classic"))
	assert.Equal(t, DefaultSidebarColor, settings.SidebarColor())

	settings[SidebarTemplateKey] = TemplateSetting{SidebarColor: "#112233"}
	assert.Equal(t, "#112233", settings.SidebarColor())
}

func TestValidateJSON(t *testing.T) {
	assert.NoError(t, ValidateJSON([]byte(`{"title":"CV","languages":[{"name":"French","proficiency":80}]}`)))

	err := ValidateJSON([]byte(`{"languages":[{"name":"French","proficiency":180}]}`))
	assert.ErrorIs(t, err, ErrSchema)

	err = ValidateJSON([]byte(`{"signature":{"date_format":"iso"}}`))
	assert.ErrorIs(t, err, ErrSchema)
}
