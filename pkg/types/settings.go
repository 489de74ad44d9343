package types

type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageHindi    Language = "hi"
	LanguageGujarati Language = "gu"
)

func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageGujarati:
		return true
	}
	return false
}

type Settings struct {
	Enabled  bool     `json:"enabled"`
	Language Language `json:"language"`
	SafeMode bool     `json:"safe_mode"`
}

func DefaultSettings() Settings {
	return Settings{Enabled: true, Language: LanguageEnglish}
}

// SettingsPatch carries a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	Enabled  *bool     `json:"enabled,omitempty"`
	Language *Language `json:"language,omitempty"`
	SafeMode *bool     `json:"safe_mode,omitempty"`
}

func (s Settings) Apply(p SettingsPatch) Settings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.SafeMode != nil {
		s.SafeMode = *p.SafeMode
	}
	return s
}
