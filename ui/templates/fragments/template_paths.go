// Package fragments provides template path constants for organized template management
package fragments

// Template names as defined in the embedded files
const (
	Index   = "index.html"
	Balance = "balance"
	Log     = "log"
	Flash   = "flash"
)

// Template files relative to the ui package
const (
	PagesPattern     = "templates/*.html"
	FragmentsPattern = "templates/fragments/*.html"
)

// GetAllTemplatePaths returns the glob patterns parsed at startup
func GetAllTemplatePaths() []string {
	return []string{PagesPattern, FragmentsPattern}
}
