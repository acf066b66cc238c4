package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCSV(t *testing.T) {
	data := "\xef\xbb\xbfCarimbo de data/hora,NOME,Nível do Rio (m)\n" +
		"15/03/2024 08:30:00,Ana,\"2,35\"\n" +
		",,\n" +
		"16/03/2024 08:30:00,Bruno\n"

	table, err := DecodeCSV([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Carimbo de data/hora", "NOME", "Nível do Rio (m)"}, table.Header)
	assert.Equal(t, [][]string{
		{"15/03/2024 08:30:00", "Ana", "2,35"},
		{"16/03/2024 08:30:00", "Bruno"},
	}, table.Rows)
}

func TestDecodeCSV_Empty(t *testing.T) {
	table, err := DecodeCSV(nil)
	require.NoError(t, err)
	assert.Empty(t, table.Header)
	assert.Empty(t, table.Rows)
}

func TestDecodeGViz(t *testing.T) {
	payload := `/*O_o*/
google.visualization.Query.setResponse({"version":"0.6","status":"ok","table":{
"cols":[{"id":"A","label":"Carimbo de data/hora","type":"datetime"},
        {"id":"B","label":"NOME","type":"string"},
        {"id":"C","label":"Nível do Rio (m)","type":"number"},
        {"id":"D","label":"","type":"boolean"},
        {"id":"E","label":"Hora","type":"timeofday"}],
"rows":[{"c":[{"v":"Date(2025,0,3,16,15,11)","f":"03/01/2025 16:15:11"},{"v":"Ana"},{"v":2.35},{"v":true},{"v":[8,5,0,0]}]},
        {"c":[null,null,null,null,null]},
        {"c":[{"v":"Date(2025,0,4,7,0,0)"},{"v":"Bruno"},null]}]}});`

	table, err := DecodeGViz([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, []string{"Carimbo de data/hora", "NOME", "Nível do Rio (m)", "D", "Hora"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Date(2025,0,3,16,15,11)", "Ana", "2.35", "true", "08:05:00"}, table.Rows[0])
	assert.Equal(t, []string{"Date(2025,0,4,7,0,0)", "Bruno", "", "", ""}, table.Rows[1])
}

func TestDecodeGViz_NormalizesEndToEnd(t *testing.T) {
	payload := `{"status":"ok","table":{"cols":[
{"id":"A","label":"Carimbo de data/hora","type":"datetime"},
{"id":"B","label":"NOME","type":"string"},
{"id":"C","label":"Nível do Rio (m)","type":"number"}],
"rows":[{"c":[{"v":"Date(2025,0,3,16,15,11)"},{"v":"Ana"},{"v":1e21}]}]}}`

	table, err := DecodeGViz([]byte(payload))
	require.NoError(t, err)
	readings, _, _, err := NewNormalizer(nil).Normalize(table)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "2025-01-03T16:15:11Z", readings[0].Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, 1e21, *readings[0].RiverLevelM)
}

func TestDecodeGViz_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		msg     string
	}{
		{"not json", "<html>login</html>", "no JSON object"},
		{"malformed", "{\"table\":", "no JSON object"},
		{"source error", `{"status":"error","errors":[{"reason":"access_denied","message":"Access denied","detailed_message":"Sheet is private"}]}`, "Sheet is private"},
		{"source error without detail", `{"status":"error","errors":[{"message":"Access denied"}]}`, "Access denied"},
		{"missing table", `{"status":"ok"}`, "missing table"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeGViz([]byte(tc.payload))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" GVIZ ")
	require.NoError(t, err)
	assert.Equal(t, FormatGViz, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
