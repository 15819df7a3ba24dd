package insight

import "strings"

// Role is the classifier-assigned orientation of a product photo.
type Role string

const (
	RoleFront Role = "front"
	RoleBack  Role = "back"
	RoleSide  Role = "side"
	RoleOther Role = "other"
)

var roleSet = map[Role]struct{}{
	RoleFront: {},
	RoleBack:  {},
	RoleSide:  {},
	RoleOther: {},
}

// ParseRole converts a string into a known Role, defaulting to RoleOther.
func ParseRole(value string) Role {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleSet[normalized]; ok {
		return normalized
	}
	return RoleOther
}

// ImageInsight is the classifier's structured description of one image.
// It is read-only downstream except for Role, which the role corrector may
// override.
type ImageInsight struct {
	Key           string  `json:"key"`
	Role          Role    `json:"role"`
	Brand         string  `json:"brand"`
	Product       string  `json:"product"`
	Variant       string  `json:"variant"`
	Size          string  `json:"size"`
	Category      string  `json:"category"`
	ExtractedText string  `json:"extracted_text"`
	Description   string  `json:"description"`
	Color         string  `json:"color"`
	Confidence    float64 `json:"confidence"`
}

// HasBrand reports whether the classifier produced a usable brand string.
func (i ImageInsight) HasBrand() bool {
	brand := strings.ToLower(strings.TrimSpace(i.Brand))
	return brand != "" && brand != "unknown"
}
