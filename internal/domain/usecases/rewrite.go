package usecases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// LLMRewriter asks a language model for an optimized Dockerfile.
type LLMRewriter struct {
	llm ports.LLMService
}

// NewLLMRewriter creates a rewriter over llm.
func NewLLMRewriter(llm ports.LLMService) *LLMRewriter {
	return &LLMRewriter{llm: llm}
}

// Rewrite returns the Dockerfile body of the model's answer.
func (r *LLMRewriter) Rewrite(ctx context.Context, original, technology string, clauses []entities.Clause) (string, error) {
	notes := make([]string, 0, len(clauses))
	for _, c := range clauses {
		notes = append(notes, fmt.Sprintf("Lines %v:\n%s\n\nRecommendations:\n%s", c.LineNumbers, c.Content, c.Recommendations))
	}

	answer, err := r.llm.Generate(ctx, buildRewritePrompt(original, technology), notes)
	if err != nil {
		return "", fmt.Errorf("generating optimized dockerfile: %w", err)
	}

	dockerfile := ExtractDockerfile(answer)
	if dockerfile == "" {
		return "", fmt.Errorf("model answer contained no dockerfile")
	}
	return dockerfile, nil
}

func buildRewritePrompt(original, technology string) string {
	var sb strings.Builder
	sb.WriteString("You are a Docker expert. Rewrite the following ")
	sb.WriteString(technology)
	sb.WriteString(" Dockerfile applying the per-clause recommendations given as context.\n")
	sb.WriteString("Keep the application behaviour identical. Prefer multi-stage builds, pinned base images, ")
	sb.WriteString("fewer layers, cache-friendly ordering and a non-root user where it is safe.\n")
	sb.WriteString("Return only the complete Dockerfile inside a single ```dockerfile code block.\n\n")
	sb.WriteString("Original Dockerfile:\n```dockerfile\n")
	sb.WriteString(original)
	if !strings.HasSuffix(original, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
	return sb.String()
}

// ExtractDockerfile pulls the Dockerfile out of a model answer. The first
// fenced block wins; an unfenced answer is returned trimmed.
func ExtractDockerfile(answer string) string {
	lines := strings.Split(answer, "\n")
	var body []string
	inBlock, found := false, false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inBlock {
				break
			}
			inBlock, found = true, true
			continue
		}
		if inBlock {
			body = append(body, line)
		}
	}
	if !found {
		return strings.TrimSpace(answer)
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// imageRef matches a FROM argument: a registry path, tag, digest or build arg.
var imageRef = regexp.MustCompile(`^[A-Za-z0-9_${][A-Za-z0-9._/:@${}-]*$`)

// validDockerfile reports whether text reads as a Dockerfile: it has a
// well-formed FROM and every other significant line opens an instruction,
// continues one after a trailing backslash, or sits inside a heredoc.
func validDockerfile(text string) error {
	hasFrom := false
	continued := false
	heredoc := ""
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case heredoc != "":
			if trimmed == heredoc {
				heredoc = ""
			}
			continue
		case !isSignificant(line):
			continue
		case continued:
		case IsStarter(line):
			if strings.HasPrefix(trimmed, "FROM") {
				if !isFromInstruction(trimmed) {
					return fmt.Errorf("line %d is not a FROM instruction: %q", i+1, trimmed)
				}
				hasFrom = true
			}
		default:
			return fmt.Errorf("line %d is not an instruction: %q", i+1, trimmed)
		}
		continued = strings.HasSuffix(trimmed, "\\")
		heredoc = heredocDelimiter(trimmed)
	}
	if !hasFrom {
		return errors.New("output has no FROM instruction")
	}
	return nil
}

// isFromInstruction accepts FROM [--flag=value...] image [AS name].
func isFromInstruction(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "FROM" {
		return false
	}
	args := fields[1:]
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		args = args[1:]
	}
	switch {
	case len(args) == 1:
		return imageRef.MatchString(args[0])
	case len(args) == 3:
		return imageRef.MatchString(args[0]) && strings.EqualFold(args[1], "AS") && imageRef.MatchString(args[2])
	default:
		return false
	}
}

// heredocDelimiter returns the terminator of a <<EOF or <<-"EOF" opener on line.
func heredocDelimiter(line string) string {
	i := strings.Index(line, "<<")
	if i < 0 {
		return ""
	}
	rest := strings.TrimPrefix(line[i+2:], "-")
	if rest == "" || unicode.IsSpace(rune(rest[0])) {
		return ""
	}
	word := strings.Trim(strings.Fields(rest)[0], `"'`)
	if !imageRef.MatchString(word) {
		return ""
	}
	return word
}

// fallbackRewrite keeps the user's script and explains why it was not optimized.
func fallbackRewrite(original string, err error) string {
	reason := strings.ReplaceAll(err.Error(), "\n", " ")
	return fmt.Sprintf("# Optimized version could not be generated\n# Error: %s\n\n%s", reason, original)
}
