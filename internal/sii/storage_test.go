package sii

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storageFrom(t *testing.T, body string) StorageOutcome {
	t.Helper()
	var outcome StorageOutcome
	require.NoError(t, json.Unmarshal([]byte(body), &outcome))
	return outcome
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		class    SyncClass
		warning  bool
		headline string
	}{
		{
			name:     "only new invoices",
			body:     `{"total_procesadas": 4, "nuevas_insertadas": 4, "actualizadas": 0, "errores": 0}`,
			class:    ClassAllNew,
			warning:  false,
			headline: "4 facturas procesadas correctamente",
		},
		{
			name:     "some updated",
			body:     `{"total_procesadas": 5, "nuevas_insertadas": 3, "actualizadas": 2, "errores": 0}`,
			class:    ClassUpdated,
			warning:  true,
			headline: "Nuevas: 3, actualizadas: 2",
		},
		{
			name:     "mixed without updates",
			body:     `{"total_procesadas": 5, "nuevas_insertadas": 3, "actualizadas": 0, "errores": 0}`,
			class:    ClassNoConflicts,
			warning:  false,
			headline: "5 facturas procesadas correctamente",
		},
		{
			name:     "errors take the headline",
			body:     `{"total_procesadas": 5, "nuevas_insertadas": 2, "actualizadas": 1, "errores": 2}`,
			class:    ClassUpdated,
			warning:  true,
			headline: "Procesadas: 5, errores: 2",
		},
		{
			name:     "nothing processed",
			body:     `{"total_procesadas": 0, "nuevas_insertadas": 0, "actualizadas": 0, "errores": 0}`,
			class:    ClassNothing,
			warning:  false,
			headline: "0 facturas procesadas correctamente",
		},
		{
			name:     "counts as empty strings",
			body:     `{"total_procesadas": "", "nuevas_insertadas": "", "actualizadas": "", "errores": ""}`,
			class:    ClassNothing,
			warning:  false,
			headline: "0 facturas procesadas correctamente",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Summarize(storageFrom(t, tt.body))
			assert.Equal(t, tt.class, summary.Class)
			assert.Equal(t, tt.warning, summary.Warning)
			assert.Equal(t, tt.headline, summary.Headline)
		})
	}
}

func TestSummarize_ErrorSample(t *testing.T) {
	outcome := storageFrom(t, `{"total_procesadas": 6, "nuevas_insertadas": 6, "errores": 0,
		"detalles_errores": ["folio 1", "folio 2", "folio 3", "folio 4", "folio 5"]}`)

	summary := Summarize(outcome)

	assert.Equal(t, []string{"folio 1", "folio 2", "folio 3"}, summary.ErrorSample)
	assert.Equal(t, 2, summary.MoreErrors)
	assert.True(t, summary.Warning, "error details alone raise a warning")
	assert.True(t, summary.HasErrors())
	assert.Equal(t, ClassAllNew, summary.Class)
}

func TestParseResponse_StorageNotAnObject(t *testing.T) {
	for _, storage := range []string{`[]`, `""`, `null`, `0`, `"sin datos"`} {
		t.Run(storage, func(t *testing.T) {
			resp, err := ParseResponse([]byte(`{"success": true, "message": "ok",
				"data": {"ventas": {"detalle": [{"folio": 7, "montoTotal": 1190}]}},
				"almacenamiento": ` + storage + `}`))
			require.NoError(t, err)

			assert.True(t, resp.Success.Value)
			assert.Equal(t, "ok", resp.Message.Value)
			assert.Nil(t, resp.Storage)
			require.Len(t, Normalize(resp.Payload(), KindSales).Records, 1)
		})
	}
}

func TestParseResponse_ErrorDetailsNotAList(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"success": true,
		"almacenamiento": {"total_procesadas": 2, "nuevas_insertadas": 2, "detalles_errores": "boom"}}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Storage)

	assert.Empty(t, resp.Storage.ErrorDetails)
	summary := Summarize(*resp.Storage)
	assert.Equal(t, int64(2), summary.Inserted)
	assert.Empty(t, summary.ErrorSample)
}
