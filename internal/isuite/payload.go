package isuite

import (
	"time"

	"snowalert/internal/types"
)

// Wire schema constants. The iFlow endpoint matches on these values; they
// must stay byte-compatible with the deployed integration flow.
const (
	sourceSystem  = "MVP1_SNOW"
	messageType   = "AVISO_METEOROLOGICO"
	schemaVersion = "1.0"
)

// Payload is the iFlow wire envelope. JSON keys (including the Spanish
// section names and the SAP PM field codes) are fixed by the external
// schema.
type Payload struct {
	Header  PayloadHeader  `json:"header"`
	Alerts  []AlertPayload `json:"avisos"`
	Weather WeatherPayload `json:"condiciones_meteorologicas"`
	Marwis  any            `json:"datos_marwis"`

	// DecisionLog is always present on the wire, empty when the engine
	// produced no evaluation trace.
	DecisionLog []string `json:"log_decisiones"`
}

// PayloadHeader identifies the message source and schema version.
type PayloadHeader struct {
	SourceSystem string `json:"source_system"`
	Timestamp    string `json:"timestamp"`
	MessageType  string `json:"message_type"`
	Version      string `json:"version"`
}

// AlertPayload is one flattened alert: the SAP PM routing fields passed
// through verbatim plus the engine's own metadata. Absent routing values
// serialize as empty strings, never null.
type AlertPayload struct {
	NotificationClass  string `json:"QMART"`
	Description        string `json:"QMTXT"`
	FunctionalLocation string `json:"TPLNR"`
	Plant              string `json:"SWERK"`
	PlannerGroup       string `json:"INGRP"`
	WorkCenter         string `json:"GEWRK"`
	Priority           string `json:"PRIOK"`
	CodeGroup          string `json:"QMGRP"`
	Code               string `json:"QMCOD"`

	AlertType        string   `json:"tipo_aviso"`
	AlertName        string   `json:"nombre_aviso"`
	AlertClass       string   `json:"clase_aviso"`
	InternalPriority int      `json:"prioridad_interna"`
	GeneratedAt      string   `json:"fecha_generacion"`
	Note             string   `json:"nota"`
	Tasks            []string `json:"tareas_procedimiento"`
}

// WeatherPayload echoes the evaluated snapshot. Unknown values serialize as
// null, matching the original schema.
type WeatherPayload struct {
	AmbientTemp    *float64 `json:"temperatura_ambiente"`
	DewPoint       *float64 `json:"temperatura_rocio"`
	PavementTemp   *float64 `json:"temperatura_pista"`
	PavementSource string   `json:"fuente_temp_pista"`
	Humidity       *float64 `json:"humedad"`
	Wind           *float64 `json:"viento"`
	RainProb       *float64 `json:"prob_lluvia"`
	SnowProb       *float64 `json:"prob_nieve"`
}

// MapBatch converts an AlertBatch into the iFlow wire payload. Pure
// structural transform: no I/O, no mutation of the batch.
func MapBatch(batch *types.AlertBatch) *Payload {
	p := &Payload{
		Header: PayloadHeader{
			SourceSystem: sourceSystem,
			Timestamp:    batch.EvaluatedAt.Format(time.RFC3339),
			MessageType:  messageType,
			Version:      schemaVersion,
		},
		Alerts: make([]AlertPayload, 0, len(batch.Alerts)),
		Weather: WeatherPayload{
			AmbientTemp:    batch.Snapshot.AmbientTempC,
			DewPoint:       batch.Snapshot.DewPointC,
			PavementTemp:   batch.Snapshot.PavementTempC,
			PavementSource: batch.Snapshot.PavementTempSource,
			Humidity:       batch.Snapshot.HumidityPct,
			Wind:           batch.Snapshot.WindSpeedKmh,
			RainProb:       batch.Snapshot.RainProbPct,
			SnowProb:       batch.Snapshot.SnowProbPct,
		},
	}

	if batch.Marwis != nil {
		p.Marwis = batch.Marwis
	} else {
		p.Marwis = map[string]any{}
	}
	p.DecisionLog = []string{}

	for _, a := range batch.Alerts {
		tasks := a.Tasks
		if tasks == nil {
			tasks = []string{}
		}
		p.Alerts = append(p.Alerts, AlertPayload{
			NotificationClass:  a.Rule.Routing.NotificationClass,
			Description:        a.Rule.Routing.Description,
			FunctionalLocation: a.Rule.Routing.FunctionalLocation,
			Plant:              a.Rule.Routing.Plant,
			PlannerGroup:       a.Rule.Routing.PlannerGroup,
			WorkCenter:         a.Rule.Routing.WorkCenter,
			Priority:           a.Rule.Routing.Priority,
			CodeGroup:          a.Rule.Routing.CodeGroup,
			Code:               a.Rule.Routing.Code,

			AlertType:        a.Code,
			AlertName:        a.Rule.Name,
			AlertClass:       a.Rule.Class,
			InternalPriority: a.Priority,
			GeneratedAt:      a.GeneratedAt.Format(time.RFC3339),
			Note:             a.Rule.Note,
			Tasks:            tasks,
		})
	}

	return p
}
