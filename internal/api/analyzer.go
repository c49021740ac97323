package api

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/BhargavCodes/ai-vault/internal/models"
)

const notAnalyzedAnswer = "I can't see this file yet. Please click 'Analyze' first!"

type analysis struct {
	summary string
	tags    string
	ocrText string
	vision  string
}

// analyze is a deterministic stand-in for the OCR, vision and summarizer models.
func analyze(filename, fileType string, data []byte) analysis {
	var res analysis
	var tags []string
	switch {
	case strings.HasPrefix(fileType, "image/"):
		tags = append(tags, "image")
		res.vision = fmt.Sprintf("An image (%s) named %s.", fileType, filename)
	case fileType == "application/pdf":
		tags = append(tags, "document", "pdf")
	case strings.HasPrefix(fileType, "text/"):
		tags = append(tags, "text")
		res.ocrText = strings.TrimSpace(string(data))
	case strings.Contains(fileType, "wordprocessingml"):
		tags = append(tags, "document", "word")
	default:
		tags = append(tags, "file")
	}

	lower := strings.ToLower(res.ocrText + " " + filename)
	for _, kw := range []string{"invoice", "receipt", "contract", "report"} {
		if strings.Contains(lower, kw) {
			tags = append([]string{kw}, tags...)
		}
	}
	res.tags = strings.Join(tags, ",")

	if res.ocrText != "" {
		res.summary = firstSentence(res.ocrText, 160)
	} else {
		res.summary = fmt.Sprintf("%s file %s (%d bytes).", fileType, filename, len(data))
	}
	return res
}

func firstSentence(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.IndexAny(text, ".!?"); i >= 0 && i+1 <= max {
		return text[:i+1]
	}
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

// suggestName builds "<tag>_<yyyymmdd><ext>" from the analysis results.
func suggestName(f models.FileEntity) string {
	tag := "document"
	if t := strings.Split(f.Tags(), ","); len(t) > 0 && strings.TrimSpace(t[0]) != "" {
		tag = strings.TrimSpace(t[0])
	}
	ext := strings.ToLower(filepath.Ext(f.Filename))
	return fmt.Sprintf("%s_%s%s", tag, f.UploadedAt.Format("20060102"), ext)
}

// answer returns the first extracted line sharing a word with the question, or falls
// back to the summary.
func answer(f models.FileEntity, question string) string {
	if !f.IsAnalyzed {
		return notAnalyzedAnswer
	}
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if f.OCRText != nil {
		for _, line := range strings.Split(*f.OCRText, "\n") {
			l := strings.ToLower(line)
			for _, w := range words {
				if len(w) > 3 && strings.Contains(l, w) {
					return strings.TrimSpace(line)
				}
			}
		}
	}
	return "Based on the summary: " + f.SummaryText()
}
