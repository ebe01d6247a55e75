package planner

import (
	"errors"
	"strings"
)

var ErrNoCodeBlock = errors.New("response contains no fenced code block")

// CodeBlock is one fenced block found in a model response.
type CodeBlock struct {
	Language string
	Code     string
}

// ExtractCodeBlocks returns every closed ``` block in text, in order.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	rest := text
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			return blocks
		}
		rest = rest[open+3:]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return blocks
		}
		lang := strings.ToLower(strings.TrimSpace(rest[:nl]))
		body := rest[nl+1:]
		end := strings.Index(body, "```")
		if end < 0 {
			return blocks
		}
		code := strings.TrimSpace(body[:end])
		if code != "" {
			blocks = append(blocks, CodeBlock{Language: lang, Code: code})
		}
		rest = body[end+3:]
	}
}

// ExtractCodeBlock picks the first block tagged with lang, falling back to the
// first block of any language.
func ExtractCodeBlock(text, lang string) (CodeBlock, error) {
	blocks := ExtractCodeBlocks(text)
	if len(blocks) == 0 {
		return CodeBlock{}, ErrNoCodeBlock
	}
	lang = strings.ToLower(lang)
	for _, b := range blocks {
		if b.Language == lang || (lang == "bash" && (b.Language == "sh" || b.Language == "shell")) {
			return b, nil
		}
	}
	return blocks[0], nil
}
