package alerts

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

func TestBuildDedupKey_DefaultTemplate(t *testing.T) {
	rule := &data.AlertRule{ID: uuid.New()}
	event := testEvent("front_door", nil)

	key := buildDedupKey(rule, event, nil)
	assert.Equal(t, "front_door:"+rule.ID.String(), key)
}

func TestBuildDedupKey_ObjectTypePlaceholder(t *testing.T) {
	rule := &data.AlertRule{ID: uuid.New(), DedupKeyTemplate: "{camera_id}:{rule_id}:{object_type}"}
	event := testEvent("front_door", nil)

	key := buildDedupKey(rule, event, []*data.Detection{personDetection(0.9)})
	assert.Equal(t, "front_door:"+rule.ID.String()+":person", key)

	// First detection's type wins even if later ones differ
	dets := []*data.Detection{
		{ID: uuid.New(), ObjectType: strPtr("car")},
		personDetection(0.9),
	}
	key = buildDedupKey(rule, event, dets)
	assert.Equal(t, "front_door:"+rule.ID.String()+":car", key)
}

func TestBuildDedupKey_NoDetectionsUsesUnknown(t *testing.T) {
	rule := &data.AlertRule{ID: uuid.New(), DedupKeyTemplate: "{object_type}"}
	key := buildDedupKey(rule, testEvent("cam-1", nil), nil)
	assert.Equal(t, "unknown", key)

	// Nil object_type on the first detection also maps to unknown
	dets := []*data.Detection{{ID: uuid.New()}}
	key = buildDedupKey(rule, testEvent("cam-1", nil), dets)
	assert.Equal(t, "unknown", key)
}

func TestBuildDedupKey_UnknownPlaceholderFallsBack(t *testing.T) {
	event := testEvent("front_door", nil)

	tests := []struct {
		name     string
		template string
	}{
		{"unrecognized name", "{camera_id}:{tenant_id}"},
		{"miscased name", "{CameraId}:{rule_id}"},
		{"numeric token", "a{0}b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &data.AlertRule{ID: uuid.New(), DedupKeyTemplate: tt.template}
			key := buildDedupKey(rule, event, nil)
			assert.Equal(t, "front_door:"+rule.ID.String(), key)
		})
	}
}

// A miscased placeholder must not survive as literal text: it would
// render the same key for every event and one camera's firing would
// cooldown-suppress all cameras on the rule.
func TestBuildDedupKey_MiscasedPlaceholderDoesNotCollapseCameras(t *testing.T) {
	rule := &data.AlertRule{ID: uuid.New(), DedupKeyTemplate: "{CameraId}:{rule_id}"}

	front := buildDedupKey(rule, testEvent("front_door", nil), nil)
	back := buildDedupKey(rule, testEvent("back_door", nil), nil)
	assert.NotEqual(t, front, back)
	assert.NotContains(t, front, "{CameraId}")
}

func TestRenderTemplate_LiteralTextPreserved(t *testing.T) {
	out, ok := renderTemplate("prefix-{camera_id}-suffix", map[string]string{"camera_id": "c1"})
	assert.True(t, ok)
	assert.Equal(t, "prefix-c1-suffix", out)

	// Any braced token is treated as a placeholder attempt, so an
	// unrecognized one reports not-ok instead of passing through.
	_, ok = renderTemplate("a{0}b", map[string]string{})
	assert.False(t, ok)
}
