package domain

// Layout templates for the preview and the exported document.
const (
	TemplateClassic = "classic"
	TemplateModern  = "modern"
	TemplateMinimal = "minimal"
)

var templates = []string{TemplateClassic, TemplateModern, TemplateMinimal}

func Templates() []string {
	return append([]string(nil), templates...)
}

func KnownTemplate(name string) bool {
	for _, t := range templates {
		if t == name {
			return true
		}
	}
	return false
}
