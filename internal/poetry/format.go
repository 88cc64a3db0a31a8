// Package poetry validates and repairs generated poem text. A valid poem has
// a 《title》 line, non-blank body lines, and then a line starting with an
// annotation marker.
package poetry

import (
	"strings"

	"github.com/zey041022/poem-web-app/internal/domain"
)

const (
	// AnnotationMarker starts the annotation line.
	AnnotationMarker = "【注释】"
	// altAnnotationMarker is accepted on input but never produced.
	altAnnotationMarker = "注释："

	defaultTitleLine      = "《无题》\n"
	defaultAnnotationLine = "\n" + AnnotationMarker + "根据您的描述生成的诗词。"
	untitled              = "无名"
)

// layout locates the structural lines of a text. Only whole lines count:
// 《》 or a marker inside a sentence is body content.
type layout struct {
	lines []string
	// title is the index of the title line, or -1 when the first non-blank
	// line is not one.
	title int
	// annotation is the index of the first marker line after the title, or -1.
	annotation int
	marker     string
}

func scan(text string) layout {
	l := layout{lines: strings.Split(text, "\n"), title: -1, annotation: -1}

	start := 0
	for i, line := range l.lines {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if isTitleLine(s) {
			l.title = i
			start = i + 1
		}
		break
	}

	for i := start; i < len(l.lines); i++ {
		if m := markerOf(strings.TrimSpace(l.lines[i])); m != "" {
			l.annotation, l.marker = i, m
			break
		}
	}
	return l
}

func isTitleLine(s string) bool {
	return strings.HasPrefix(s, "《") && strings.Contains(s, "》")
}

func markerOf(s string) string {
	for _, m := range []string{AnnotationMarker, altAnnotationMarker} {
		if strings.HasPrefix(s, m) {
			return m
		}
	}
	return ""
}

// body returns the lines between the title and the annotation.
func (l layout) body() []string {
	end := len(l.lines)
	if l.annotation >= 0 {
		end = l.annotation
	}
	return l.lines[l.title+1 : end]
}

// Validate reports whether text has a title line, at least one non-blank body
// line, and an annotation line after the body.
func Validate(text string) bool {
	l := scan(text)
	if l.title < 0 || l.annotation < 0 {
		return false
	}
	return strings.TrimSpace(strings.Join(l.body(), "\n")) != ""
}

// Correct adds a default title line when the first non-blank line is not a
// title, and a default annotation when no marker line follows. It is
// idempotent.
func Correct(text string) string {
	l := scan(text)
	if l.title < 0 {
		text = defaultTitleLine + text
	}
	if l.annotation < 0 {
		text += defaultAnnotationLine
	}
	return text
}

// Parse splits text into title, body and annotation. Missing parts are empty,
// except the title which falls back to 无名.
func Parse(text string) domain.TextArtifact {
	art := domain.TextArtifact{Text: text, Title: untitled}
	l := scan(text)

	if l.title >= 0 {
		s := strings.TrimPrefix(strings.TrimSpace(l.lines[l.title]), "《")
		if i := strings.Index(s, "》"); i >= 0 {
			s = s[:i]
		}
		if t := strings.TrimSpace(s); t != "" {
			art.Title = t
		}
	}

	art.Body = trimLines(strings.Join(l.body(), "\n"))

	if l.annotation >= 0 {
		first := strings.TrimPrefix(strings.TrimSpace(l.lines[l.annotation]), l.marker)
		rest := append([]string{first}, l.lines[l.annotation+1:]...)
		art.Annotation = strings.TrimSpace(strings.Join(rest, "\n"))
	}
	return art
}

func trimLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// FailureText is the artifact returned when every attempt failed. It passes
// Validate for any message.
func FailureText(lastErr string) string {
	return "《生成失败》\n生成诗词时遇到问题，请稍后重试。\n" + AnnotationMarker + lastErr + "，请检查网络连接或稍后再试。"
}
