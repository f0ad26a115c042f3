package model

// Centralized icons for the UI components
// Using simple single-width characters for consistent terminal rendering
const (
	IconActive    = "*" // Currently active environment
	IconMissing   = "✗" // Thin X (activation script gone)
	IconOK        = " " // Space (OK - no icon to reduce noise)
	IconCurrent   = "◆" // Mapping for the current directory
	IconArrow     = "→"
	IconHint      = "💡"
	IconSuccess   = "✅"
	IconFailure   = "❌"
	IconWarning   = "⚠️ "
	IconPython    = "🐍"
	IconFolder    = "📁"
	IconPackage   = "📦"
	IconSearching = "🔍"
)
