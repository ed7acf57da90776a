package usecases

import (
	"regexp"
	"strings"
)

// GenericTechnology is reported when no heuristic matches.
const GenericTechnology = "Generic"

// techRule maps a language keyword to its framework refinements.
type techRule struct {
	keywords   []string
	label      string
	frameworks []techFramework
}

type techFramework struct {
	keyword string
	label   string
}

// techRules are checked in order against the lower-cased document.
var techRules = []techRule{
	{keywords: []string{"python"}, label: "Python", frameworks: []techFramework{
		{"flask", "Python Flask"}, {"django", "Python Django"}, {"fastapi", "Python FastAPI"},
	}},
	{keywords: []string{"node", "npm"}, label: "Node.js", frameworks: []techFramework{
		{"react", "Node.js React"}, {"express", "Node.js Express"}, {"next", "Next.js"},
	}},
	{keywords: []string{"java"}, label: "Java", frameworks: []techFramework{
		{"spring", "Java Spring"}, {"maven", "Java Maven"},
	}},
	{keywords: []string{"rust", "cargo "}, label: "Rust"},
	{keywords: []string{"golang", "go build", "go mod", "go.mod"}, label: "Go"},
	{keywords: []string{"php"}, label: "PHP"},
	{keywords: []string{"ruby"}, label: "Ruby"},
}

// baseImageHints map a base image substring to a technology.
var baseImageHints = []techFramework{
	{"python", "Python"},
	{"node", "Node.js"},
	{"openjdk", "Java"},
	{"java", "Java"},
	{"golang", "Go"},
	{"go:", "Go"},
}

// DetectTechnology guesses the primary stack of a Dockerfile.
// It only biases enrichment queries; unknown inputs yield GenericTechnology.
func DetectTechnology(doc string) string {
	lower := strings.ToLower(doc)
	for _, rule := range techRules {
		if !containsAny(lower, rule.keywords...) {
			continue
		}
		for _, fw := range rule.frameworks {
			if strings.Contains(lower, fw.keyword) {
				return fw.label
			}
		}
		return rule.label
	}

	image := strings.ToLower(BaseImage(doc))
	for _, hint := range baseImageHints {
		if strings.Contains(image, hint.keyword) {
			return hint.label
		}
	}
	return GenericTechnology
}

// BaseImage returns the image reference of the first FROM instruction.
func BaseImage(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.EqualFold(fields[0], "FROM") {
			continue
		}
		// FROM [--platform=...] image [AS name]
		for _, f := range fields[1:] {
			if !strings.HasPrefix(f, "--") {
				return f
			}
		}
	}
	return ""
}

var packagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:apt-get|apt)\s+install\s+([^&;|]+)`),
	regexp.MustCompile(`apk\s+add\s+([^&;|]+)`),
	regexp.MustCompile(`(?:yum|dnf|microdnf)\s+install\s+([^&;|]+)`),
	regexp.MustCompile(`pip3?\s+install\s+([^&;|]+)`),
	regexp.MustCompile(`npm\s+(?:install|i)\s+([^&;|]+)`),
}

// ExtractPackages lists package names installed by RUN instructions.
// Flags, requirement files and version pins are dropped; order is first-seen.
func ExtractPackages(doc string) []string {
	seen := make(map[string]bool)
	var packages []string
	// Join line continuations so multi-line installs are seen whole.
	joined := strings.ReplaceAll(doc, "\\\n", " ")
	for _, line := range strings.Split(joined, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToUpper(trimmed), "RUN") {
			continue
		}
		for _, re := range packagePatterns {
			for _, m := range re.FindAllStringSubmatch(trimmed, -1) {
				for _, tok := range strings.Fields(m[1]) {
					name := packageName(tok)
					if name == "" || seen[name] {
						continue
					}
					seen[name] = true
					packages = append(packages, name)
				}
			}
		}
	}
	return packages
}

// packageName strips version pins from an install token; flags and paths give "".
func packageName(tok string) string {
	if strings.HasPrefix(tok, "-") {
		return ""
	}
	if i := strings.IndexAny(tok, "=<>@~!"); i == 0 {
		return ""
	} else if i > 0 {
		tok = tok[:i]
	}
	if strings.ContainsAny(tok, "/.$") {
		return ""
	}
	return tok
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
