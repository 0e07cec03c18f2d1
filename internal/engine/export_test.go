package engine

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layer-anything/internal/layer"
	"layer-anything/pkg/geometry"
)

// populatedEngine builds a graph with one of each layer type plus a
// few mutations, so exports carry history, masks, and scores.
func populatedEngine(t *testing.T) (*Engine, []string) {
	t.Helper()
	e := newTestEngine(t)

	textID, err := e.CreateTextLayer(layer.TextBlock{
		Text:       "Grand Opening Sale",
		BBox:       geometry.NewRect(40, 25, 300, 50),
		Confidence: 0.93,
		Type:       layer.GranularityLine,
		Language:   "eng",
	})
	require.NoError(t, err)

	objectID, err := e.CreateObjectLayer(testMask(t), geometry.NewRect(200, 150, 120, 180), layer.ObjectOptions{
		Category:   "Balloon",
		Confidence: 0.77,
	})
	require.NoError(t, err)

	require.True(t, e.MoveLayer(textID, geometry.NewPoint2D(12, -3)))
	require.True(t, e.ResizeLayer(objectID, 1.25))
	require.True(t, e.SetLayerLocked(objectID, true))

	return e, []string{e.GetLayers()[0].ID, textID, objectID}
}

func TestExportImportRoundTrip(t *testing.T) {
	e, ids := populatedEngine(t)

	data, err := e.ExportJSON()
	require.NoError(t, err)

	fresh := New()
	require.NoError(t, fresh.ImportJSON(data))

	origSrc, _ := e.Source()
	gotSrc, ok := fresh.Source()
	require.True(t, ok)
	assert.Equal(t, origSrc, gotSrc)

	origLayers := e.GetLayers()
	gotLayers := fresh.GetLayers()
	require.Len(t, gotLayers, len(origLayers))

	for i, orig := range origLayers {
		got := gotLayers[i]
		assert.Equal(t, orig.ID, got.ID)
		assert.Equal(t, orig.Type, got.Type)
		assert.Equal(t, orig.Name, got.Name)
		assert.Equal(t, orig.BBox, got.BBox)
		assert.Equal(t, orig.CurrentTransform, got.CurrentTransform)
		assert.Equal(t, orig.ZIndex, got.ZIndex)
		assert.Equal(t, orig.Visible, got.Visible)
		assert.Equal(t, orig.Locked, got.Locked)
		assert.Equal(t, orig.Opacity, got.Opacity)
		assert.Equal(t, orig.Scores, got.Scores)
		assert.InDelta(t, orig.AreaPct, got.AreaPct, 1e-9)

		require.Len(t, got.History, len(orig.History))
		for j := range orig.History {
			assert.Equal(t, orig.History[j].Operation, got.History[j].Operation)
			assert.Equal(t, orig.History[j].Params, got.History[j].Params)
		}

		switch orig.Type {
		case layer.TypeText:
			assert.Equal(t, orig.Text, got.Text)
			assert.Equal(t, orig.Granularity, got.Granularity)
			assert.Equal(t, orig.Language, got.Language)
			assert.Equal(t, orig.FontEstimate, got.FontEstimate)
			assert.Equal(t, orig.TextGeometry, got.TextGeometry)
		case layer.TypeObject:
			assert.Equal(t, orig.Category, got.Category)
			require.NotNil(t, got.Mask)
			assert.Equal(t, orig.Mask.Counts, got.Mask.Counts)
			assert.Equal(t, orig.Mask.Size, got.Mask.Size)
		case layer.TypeBackground:
			assert.Equal(t, ids[1:], got.ExcludedLayers)
		}
	}
}

func TestExportDocumentShape(t *testing.T) {
	e, ids := populatedEngine(t)

	data, err := e.ExportJSON()
	require.NoError(t, err)

	var doc struct {
		Version     int                        `json:"version"`
		Layers      map[string]json.RawMessage `json:"layers"`
		SourceImage layer.SourceImage          `json:"sourceImage"`
		ExportedAt  time.Time                  `json:"exportedAt"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, ExportVersion, doc.Version)
	assert.Len(t, doc.Layers, 3)
	for _, id := range ids {
		assert.Contains(t, doc.Layers, id)
	}
	assert.Equal(t, "test://photo.png", doc.SourceImage.URL)
	assert.WithinDuration(t, time.Now(), doc.ExportedAt, time.Minute)
}

func TestExportPreservesInsertionOrder(t *testing.T) {
	e, ids := populatedEngine(t)

	// Raise the first non-background layer so z-order and insertion
	// order disagree.
	require.True(t, e.SetLayerLocked(ids[2], false))
	require.True(t, e.BringToFront(ids[1]))

	data, err := e.ExportJSON()
	require.NoError(t, err)

	// Match the map keys, not id mentions inside excludedLayers.
	keyPositions := func(data []byte) []int {
		text := string(data)
		positions := make([]int, 0, len(ids))
		for _, id := range ids {
			p := strings.Index(text, `"`+id+`": {`)
			require.GreaterOrEqual(t, p, 0)
			positions = append(positions, p)
		}
		return positions
	}

	assert.IsIncreasing(t, keyPositions(data), "layer keys must stay in insertion order")

	// And the order survives a round trip.
	fresh := New()
	require.NoError(t, fresh.ImportJSON(data))
	reexported, err := fresh.ExportJSON()
	require.NoError(t, err)

	assert.IsIncreasing(t, keyPositions(reexported))
}

func TestExportUninitialized(t *testing.T) {
	e := New()
	_, err := e.ExportJSON()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestImportRejectsMalformed(t *testing.T) {
	valid, err := func() ([]byte, error) {
		e, _ := populatedEngine(t)
		return e.ExportJSON()
	}()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mangle func(doc map[string]json.RawMessage)
	}{
		{"no layers", func(doc map[string]json.RawMessage) {
			doc["layers"] = json.RawMessage(`{}`)
		}},
		{"zero width", func(doc map[string]json.RawMessage) {
			doc["sourceImage"] = json.RawMessage(`{"url":"x","width":0,"height":600}`)
		}},
		{"future version", func(doc map[string]json.RawMessage) {
			doc["version"] = json.RawMessage(`99`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(valid, &doc))
			tt.mangle(doc)
			data, err := json.Marshal(doc)
			require.NoError(t, err)

			e := newTestEngine(t)
			require.Error(t, e.ImportJSON(data))

			// Failed import leaves the engine untouched.
			assert.Equal(t, 1, e.LayerCount())
		})
	}

	e := newTestEngine(t)
	require.Error(t, e.ImportJSON([]byte(`{"layers": broken`)))
	assert.Equal(t, 1, e.LayerCount())
}

func TestImportRejectsGraphViolations(t *testing.T) {
	base := `{
		"version": 1,
		"sourceImage": {"url": "test://x.png", "width": 100, "height": 100},
		"layers": %s
	}`

	bg := `"bg": {"id": "bg", "type": "background", "name": "Background",
		"bbox": {"x":0,"y":0,"width":100,"height":100},
		"currentTransform": {"offsetX":0,"offsetY":0,"scale":1},
		"zIndex": 0, "visible": true, "locked": false, "opacity": 1,
		"history": [], "createdAt": "2026-08-23T10:00:00Z"}`

	tests := []struct {
		name   string
		layers string
	}{
		{"no background", `{"a": {"id": "a", "type": "text", "name": "t",
			"bbox": {"x":0,"y":0,"width":10,"height":10},
			"currentTransform": {"offsetX":0,"offsetY":0,"scale":1},
			"zIndex": 1, "visible": true, "locked": false, "opacity": 1,
			"history": [], "createdAt": "2026-08-23T10:00:00Z"}}`},
		{"duplicate z-index", `{` + bg + `, "a": {"id": "a", "type": "text", "name": "t",
			"bbox": {"x":0,"y":0,"width":10,"height":10},
			"currentTransform": {"offsetX":0,"offsetY":0,"scale":1},
			"zIndex": 0, "visible": true, "locked": false, "opacity": 1,
			"history": [], "createdAt": "2026-08-23T10:00:00Z"}}`},
		{"unknown type", `{` + bg + `, "a": {"id": "a", "type": "sticker", "name": "t",
			"bbox": {"x":0,"y":0,"width":10,"height":10},
			"currentTransform": {"offsetX":0,"offsetY":0,"scale":1},
			"zIndex": 1, "visible": true, "locked": false, "opacity": 1,
			"history": [], "createdAt": "2026-08-23T10:00:00Z"}}`},
		{"mismatched key", `{` + bg + `, "a": {"id": "b", "type": "text", "name": "t",
			"bbox": {"x":0,"y":0,"width":10,"height":10},
			"currentTransform": {"offsetX":0,"offsetY":0,"scale":1},
			"zIndex": 1, "visible": true, "locked": false, "opacity": 1,
			"history": [], "createdAt": "2026-08-23T10:00:00Z"}}`},
		{"bad mask", `{` + bg + `, "a": {"id": "a", "type": "object", "name": "t",
			"bbox": {"x":0,"y":0,"width":10,"height":10},
			"currentTransform": {"offsetX":0,"offsetY":0,"scale":1},
			"zIndex": 1, "visible": true, "locked": false, "opacity": 1,
			"history": [], "createdAt": "2026-08-23T10:00:00Z",
			"mask": {"counts": [3], "size": [2, 2]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			err := e.ImportJSON([]byte(strings.ReplaceAll(base, "%s", tt.layers)))
			require.Error(t, err)
			assert.Equal(t, 1, e.LayerCount())
		})
	}
}

func TestImportContinuesZSequence(t *testing.T) {
	e, _ := populatedEngine(t)
	data, err := e.ExportJSON()
	require.NoError(t, err)

	fresh := New()
	require.NoError(t, fresh.ImportJSON(data))

	imported := fresh.GetLayers()
	maxZ := imported[len(imported)-1].ZIndex

	id, err := fresh.CreateTextLayer(testBlock("new after import"))
	require.NoError(t, err)
	assert.Greater(t, fresh.GetLayer(id).ZIndex, maxZ)
}

func TestImportRecomputesAreaPct(t *testing.T) {
	e, ids := populatedEngine(t)
	data, err := e.ExportJSON()
	require.NoError(t, err)

	// Tamper with the stored derived value; import must not trust it.
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	var layersDoc map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["layers"], &layersDoc))
	layersDoc[ids[1]]["areaPct"] = json.RawMessage(`55.5`)
	patched, err := json.Marshal(layersDoc)
	require.NoError(t, err)
	doc["layers"] = patched
	data, err = json.Marshal(doc)
	require.NoError(t, err)

	fresh := New()
	require.NoError(t, fresh.ImportJSON(data))

	want := e.GetLayer(ids[1]).AreaPct
	assert.InDelta(t, want, fresh.GetLayer(ids[1]).AreaPct, 1e-9)
}
