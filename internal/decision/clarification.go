package decision

import (
	"fmt"
	"strings"
)

// Clarification is a single, targeted question or confirmation
// prompt shown to the user when a command's confidence is LOW (§4.5),
// paired with a handful of quick-reply chips.
type Clarification struct {
	Question      string
	Suggestions   map[string]string
	MissingFields []string
	QuickReplies  []string
	Confidence    float64
}

// IsConfirmation reports whether this clarification proposes a
// complete guess for the user to accept rather than asking a bare
// question.
func (c Clarification) IsConfirmation() bool { return c.Confidence >= 0.6 }

// template holds the per-intent, per-language phrasing the
// clarification generator fills in.
type template struct {
	confirmation  string
	questionTarget string
	questionLoc    string
	questionBoth   string
	defaultTarget  string
	defaultLoc     string
}

// templates mirrors the original system's INTENT_TEMPLATES, kept in
// both languages the agent ships with (§6: "three profiles", the
// agent's Language config knob).
var templates = map[string]map[string]template{
	"en": {
		"create_folder": {confirmation: `create a folder "%s" in %s?`, questionTarget: "what should the folder be called?", questionLoc: "where should the folder go?", questionBoth: "what should the folder be called, and where?", defaultTarget: "new_folder", defaultLoc: "desktop"},
		"create_file":   {confirmation: `create a file "%s" in %s?`, questionTarget: "what should the file be called?", questionLoc: "where should the file go?", questionBoth: "what should the file be called, and where?", defaultTarget: "new_file.txt", defaultLoc: "desktop"},
		"delete":        {confirmation: `delete "%s" from %s?`, questionTarget: "what should I delete?", defaultLoc: "desktop"},
		"watch":         {confirmation: "watch %s?", questionLoc: "which folder should I watch?", defaultLoc: "downloads"},
		"open":          {confirmation: "open %s?", questionTarget: "what should I open?"},
	},
	"ar": {
		"create_folder": {confirmation: `بدك أنشئ مجلد "%s" في %s؟`, questionTarget: "شو اسم المجلد؟", questionLoc: "وين بدك أنشئ المجلد؟", questionBoth: "شو اسم المجلد ووين؟", defaultTarget: "مجلد_جديد", defaultLoc: "سطح المكتب"},
		"create_file":   {confirmation: `بدك أنشئ ملف "%s" في %s؟`, questionTarget: "شو اسم الملف؟", questionLoc: "وين بدك أنشئ الملف؟", questionBoth: "شو اسم الملف ووين؟", defaultTarget: "ملف_جديد.txt", defaultLoc: "سطح المكتب"},
		"delete":        {confirmation: `متأكد تحذف "%s" من %s؟`, questionTarget: "شو بدك تحذف؟", defaultLoc: "سطح المكتب"},
		"watch":         {confirmation: "بدك راقب %s؟", questionLoc: "أي مجلد بدك راقب؟", defaultLoc: "التنزيلات"},
		"open":          {confirmation: "بدي افتح %s؟", questionTarget: "شو بدك افتح؟"},
	},
}

var quickConfirm = map[string][]string{
	"en": {"run it", "change name", "change location", "cancel"},
	"ar": {"نفّذ", "غير الاسم", "غير المكان", "لا"},
}

var quickQuestion = map[string][]string{
	"en": {"desktop", "downloads", "documents"},
	"ar": {"سطح المكتب", "التنزيلات", "المستندات"},
}

// GenerateClarification builds a single smart question or
// confirmation for intent, given its missing fields and whatever
// suggestions the World Model/Learning Store already filled in
// (§4.5). lang selects the phrasing; unrecognised languages fall back
// to English.
func GenerateClarification(intent string, missing []string, suggestions map[string]string, lang string) Clarification {
	byLang, ok := templates[lang]
	if !ok {
		lang = "en"
		byLang = templates["en"]
	}
	tmpl := byLang[intent]

	filled := fillSuggestions(missing, suggestions, tmpl)
	confidence := suggestionConfidence(missing, filled)

	var question string
	var quick []string
	if confidence >= 0.6 {
		question = buildConfirmation(intent, filled, tmpl)
		quick = quickConfirm[lang]
	} else {
		question = buildQuestion(missing, tmpl)
		quick = quickQuestion[lang]
	}

	return Clarification{
		Question:      question,
		Suggestions:   filled,
		MissingFields: missing,
		QuickReplies:  quick,
		Confidence:    confidence,
	}
}

func fillSuggestions(missing []string, provided map[string]string, tmpl template) map[string]string {
	result := make(map[string]string, len(provided))
	for k, v := range provided {
		result[k] = v
	}
	for _, field := range missing {
		if _, ok := result[field]; ok {
			continue
		}
		switch field {
		case "target":
			if tmpl.defaultTarget != "" {
				result[field] = tmpl.defaultTarget
			}
		case "loc":
			if tmpl.defaultLoc != "" {
				result[field] = tmpl.defaultLoc
			}
		}
	}
	return result
}

func suggestionConfidence(missing []string, suggestions map[string]string) float64 {
	if len(missing) == 0 {
		return 1.0
	}
	filled := 0
	for _, field := range missing {
		if suggestions[field] != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(missing))
}

func buildConfirmation(intent string, suggestions map[string]string, tmpl template) string {
	if tmpl.confirmation == "" {
		return fmt.Sprintf("run %s?", intent)
	}
	switch strings.Count(tmpl.confirmation, "%s") {
	case 2:
		return fmt.Sprintf(tmpl.confirmation, suggestions["target"], suggestions["loc"])
	case 1:
		if suggestions["target"] != "" {
			return fmt.Sprintf(tmpl.confirmation, suggestions["target"])
		}
		return fmt.Sprintf(tmpl.confirmation, suggestions["loc"])
	default:
		return tmpl.confirmation
	}
}

func buildQuestion(missing []string, tmpl template) string {
	has := func(field string) bool {
		for _, m := range missing {
			if m == field {
				return true
			}
		}
		return false
	}

	if len(missing) >= 2 && tmpl.questionBoth != "" {
		return tmpl.questionBoth
	}
	if has("target") && tmpl.questionTarget != "" {
		return tmpl.questionTarget
	}
	if has("loc") && tmpl.questionLoc != "" {
		return tmpl.questionLoc
	}
	return "can you tell me more?"
}

// ParseResponse interprets a free-text reply to a prior Clarification,
// recognising confirm/cancel phrases and a small set of location
// phrases in both languages, and falling back to treating a short
// reply as a target name when one is missing.
func ParseResponse(response string, clarification Clarification) (action string, updates map[string]string) {
	trimmed := strings.ToLower(strings.TrimSpace(response))

	for _, word := range []string{"run it", "yes", "ok", "نفّذ", "تمام", "أي", "ماشي"} {
		if trimmed == word {
			return "confirm", clarification.Suggestions
		}
	}
	for _, word := range []string{"cancel", "no", "لا", "إلغاء", "وقف"} {
		if trimmed == word {
			return "cancel", nil
		}
	}

	locationPhrases := map[string]string{
		"downloads": "downloads", "في التنزيلات": "downloads", "التنزيلات": "downloads",
		"documents": "documents", "في المستندات": "documents", "المستندات": "documents",
		"desktop": "desktop", "سطح المكتب": "desktop", "المكتب": "desktop",
	}
	for phrase, loc := range locationPhrases {
		if strings.Contains(trimmed, phrase) {
			return "update", map[string]string{"loc": loc}
		}
	}

	if len(strings.Fields(response)) <= 2 && containsMissing(clarification.MissingFields, "target") {
		return "update", map[string]string{"target": strings.TrimSpace(response)}
	}

	return "unknown", map[string]string{"raw": response}
}

func containsMissing(missing []string, field string) bool {
	for _, m := range missing {
		if m == field {
			return true
		}
	}
	return false
}
