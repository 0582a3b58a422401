package alerts

import (
	"log"
	"regexp"
	"strings"

	"github.com/technosupport/ts-alert-engine/internal/data"
)

// DefaultDedupTemplate rate-limits per camera and rule.
const DefaultDedupTemplate = "{camera_id}:{rule_id}"

// Matches any braced token, not just well-formed names: misspelled or
// miscased placeholders must hit the allow-list check and trigger the
// default-template fallback instead of passing through literally.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// buildDedupKey renders a rule's dedup key template. Placeholders are an
// allow-list ({camera_id}, {rule_id}, {object_type}); a template using any
// other name falls back to the default template with a warning rather than
// failing the rule.
func buildDedupKey(rule *data.AlertRule, event *data.Event, detections []*data.Detection) string {
	values := map[string]string{
		"camera_id":   event.CameraID,
		"rule_id":     rule.ID.String(),
		"object_type": firstObjectType(detections),
	}

	tpl := rule.DedupKeyTemplate
	if tpl == "" {
		tpl = DefaultDedupTemplate
	}

	key, ok := renderTemplate(tpl, values)
	if !ok {
		log.Printf("Rule %s: dedup template %q has unknown placeholder, using default", rule.ID, tpl)
		key, _ = renderTemplate(DefaultDedupTemplate, values)
	}
	return key
}

func renderTemplate(tpl string, values map[string]string) (string, bool) {
	ok := true
	out := placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		name := strings.Trim(m, "{}")
		v, known := values[name]
		if !known {
			ok = false
			return m
		}
		return v
	})
	return out, ok
}

func firstObjectType(detections []*data.Detection) string {
	if len(detections) > 0 && detections[0].ObjectType != nil && *detections[0].ObjectType != "" {
		return *detections[0].ObjectType
	}
	return "unknown"
}
