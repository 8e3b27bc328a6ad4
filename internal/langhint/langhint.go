// Package langhint guesses the programming language of a file from its name.
// The guess is only a hint for the model's prompt; an unrecognized extension
// is fine and simply yields no hint.
package langhint

import (
	"path/filepath"
	"strings"
)

var extToName = map[string]string{
	".go":    "Go",
	".rb":    "Ruby",
	".py":    "Python",
	".rs":    "Rust",
	".js":    "JavaScript",
	".mjs":   "JavaScript",
	".cjs":   "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".c":     "C",
	".h":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".cxx":   "C++",
	".hpp":   "C++",
	".hh":    "C++",
	".hxx":   "C++",
	".cs":    "C#",
	".csx":   "C#",
	".php":   "PHP",
	".phtml": "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".kts":   "Kotlin",
	".scala": "Scala",
	".m":     "Objective-C",
	".mm":    "Objective-C",
	".sh":    "Shell",
	".bash":  "Shell",
	".pl":    "Perl",
	".lua":   "Lua",
	".sql":   "SQL",
}

// ForFile returns the human name of the language suggested by name's
// extension ("Python", "Go", ...), or "" when the extension is unknown.
func ForFile(name string) string {
	return extToName[strings.ToLower(filepath.Ext(name))]
}
