// Package rules defines the closed, versioned catalog of pavement alert
// rules. The catalog is constructed once at init and shared read-only across
// all evaluation calls; callers receive deep copies and can never mutate it.
package rules

import (
	"sort"

	"snowalert/internal/types"
)

func f(v float64) *float64 { return &v }

// defaultRouting is the SAP PM routing shared by every rule; per-rule fields
// (description, priority, failure mode) are overridden below.
func defaultRouting() types.RoutingMetadata {
	return types.RoutingMetadata{
		NotificationClass:  "O1",
		FunctionalLocation: "RGA-INF-PAVIM",
		Plant:              "RGA",
		PlannerGroup:       "OPE",
		WorkCenter:         "ADM_AD",
		CodeGroup:          "YB-DERR1",
	}
}

func route(description, priority, code string) types.RoutingMetadata {
	r := defaultRouting()
	r.Description = description
	r.Priority = priority
	r.Code = code
	return r
}

// catalog is the static rule table, indexed by RuleID. Adding a rule requires
// assigning it a unique priority rank; ranks drive batch ordering.
var catalog = [types.NumRules]types.AlertRule{
	types.RuleSubZero: {
		ID:    types.RuleSubZero,
		Name:  "Temperatura Bajo Cero - Riesgo Crítico de Hielo",
		Class: "CRITICO",
		Rank:  0,
		Note:  "Aviso crítico cuando la temperatura está bajo 0°C - Alto riesgo de formación de hielo",
		Thresholds: types.Thresholds{
			AmbientMaxC: f(0),
			WindMaxKmh:  f(100), // no effective wind limit
		},
		Routing: route("Temperatura Bajo Cero - Riesgo Crítico de Hielo", "1", "Y116"),
		Tasks: []string{
			"ALERTA CRÍTICA: Temperatura bajo cero detectada",
			"Activación INMEDIATA del protocolo de emergencia por hielo",
			"Inspección urgente de todas las superficies pavimentadas",
			"Aplicación preventiva de descongelantes (urea/glicol)",
			"Verificar condiciones de pista con MARWIS cada 15 minutos",
			"Comunicación inmediata con torre de control",
			"Posicionar equipos de control de hielo en standby",
			"Evaluar restricción de operaciones si es necesario",
			"Notificar a todas las áreas operativas",
			"Documentar todas las acciones tomadas",
		},
	},
	types.RuleAlertThreshold: {
		ID:    types.RuleAlertThreshold,
		Name:  "Umbral de Alerta",
		Class: "ALERTA",
		Rank:  6,
		Thresholds: types.Thresholds{
			AmbientMinC:    f(3),
			AmbientMaxC:    f(6),
			DewPointDeltaC: f(-3),
			PavementMaxC:   f(0),
			HumidityMinPct: f(56),
			WindMaxKmh:     f(36),
		},
		Routing: route("Umbral de Alerta", "2", "Y110"),
		Tasks: []string{
			"Monitorear condiciones meteorológicas cada 2 horas",
			"Verificar temperatura de pista mediante MARWIS",
			"Notificar al personal de operaciones",
			"Preparar equipos de control de hielo/nieve",
			"Revisar stock de descongelantes (urea/glicol)",
		},
	},
	types.RuleContingency: {
		ID:    types.RuleContingency,
		Name:  "Umbral de Contingencia",
		Class: "CONTINGENCIA",
		Rank:  5,
		Note:  "A futuro este aviso se convertirá en Incidencia",
		Thresholds: types.Thresholds{
			AmbientMinC:    f(-50), // extended range, overlaps the sub-zero rule
			AmbientMaxC:    f(3),
			DewPointDeltaC: f(-1),
			PavementMaxC:   f(0),
			HumidityMinPct: f(40),
			WindMaxKmh:     f(50),
		},
		Routing: route("Umbral de Contingencia", "1", "Y111"),
		Tasks: []string{
			"Activar protocolo de contingencia",
			"Inspección inmediata de pistas y rodajes",
			"Aplicación preventiva de descongelantes",
			"Posicionamiento de equipos en áreas críticas",
			"Comunicación con torre de control",
			"Evaluación de operaciones aeroportuarias",
		},
	},
	types.RuleConditionChange: {
		ID:    types.RuleConditionChange,
		Name:  "Alerta de cambio de condiciones meteorológicas",
		Rank:  4,
		Note:  "Genera automáticamente OT de Monitoreo de condiciones de superficies pavimentadas utilizando Marwis",
		Thresholds: types.Thresholds{
			AmbientMaxC:          f(0),
			DewPointDeltaC:       f(-1),
			PavementMaxC:         f(0),
			HumidityMinPct:       f(63),
			WindMaxKmh:           f(33),
			RequiresNoRecentRead: true,
		},
		Routing: route("Alerta de cambio de condiciones meteorológicas", "2", "Y112"),
		Tasks: []string{
			"Generar OT de Monitoreo de condiciones de superficies pavimentadas",
			"Realizar medición con MARWIS de pista/rodaje/apron",
			"Documentar condiciones de superficie",
			"Reportar hallazgos a operaciones",
			"Evaluar necesidad de tratamiento preventivo",
		},
	},
	types.RuleIce: {
		ID:   types.RuleIce,
		Name: "Alerta de hielo",
		Rank: 3,
		Thresholds: types.Thresholds{
			AmbientMaxC:        f(0),
			DewPointDeltaC:     f(-1),
			PavementMaxC:       f(0),
			HumidityMinPct:     f(63),
			WindMaxKmh:         f(33),
			RequiresSurfaceWet: true,
		},
		Routing: route("Alerta de hielo", "1", "Y113"),
		Tasks: []string{
			"Aplicación inmediata de descongelantes",
			"Tratamiento de todas las superficies pavimentadas",
			"Inspección continua cada 30 minutos",
			"Coordinar con torre de control",
			"Restringir operaciones si es necesario",
			"Documentar aplicación de químicos",
		},
	},
	types.RuleRain: {
		ID:   types.RuleRain,
		Name: "Alerta de lluvia",
		Rank: 2,
		Thresholds: types.Thresholds{
			AmbientMaxC:    f(0),
			DewPointDeltaC: f(-1),
			PavementMaxC:   f(0),
			HumidityMinPct: f(63),
			WindMaxKmh:     f(33),
			RainProbMinPct: f(50),
		},
		Routing: route("Alerta de lluvia", "2", "Y114"),
		Tasks: []string{
			"Preparar equipos de drenaje",
			"Inspeccionar sistemas de evacuación de agua",
			"Posicionar equipos de barrido",
			"Monitorear acumulación de agua",
			"Evaluar condiciones de fricción",
		},
	},
	types.RuleSnow: {
		ID:   types.RuleSnow,
		Name: "Alerta de nieve",
		Rank: 1,
		Thresholds: types.Thresholds{
			AmbientMaxC:    f(0),
			DewPointDeltaC: f(-1),
			PavementMaxC:   f(0),
			HumidityMinPct: f(63),
			WindMaxKmh:     f(33),
			SnowProbMinPct: f(30),
		},
		Routing: route("Alerta de nieve", "1", "Y115"),
		Tasks: []string{
			"Activar equipo completo de remoción de nieve",
			"Aplicación preventiva de descongelantes",
			"Posicionar tractores y equipos",
			"Preparar stock de urea y glicol",
			"Coordinar con meteorología",
			"Planificar turnos extendidos de personal",
		},
	},
}

// Get returns a deep copy of the rule for id. The second return value is
// false for identifiers outside the closed set.
func Get(id types.RuleID) (types.AlertRule, bool) {
	if !id.Valid() {
		return types.AlertRule{}, false
	}
	return catalog[id].Clone(), true
}

// All returns deep copies of every rule, ordered by ascending priority rank
// (ties broken by rule id, though the fixed catalog has none).
func All() []types.AlertRule {
	out := make([]types.AlertRule, 0, types.NumRules)
	for i := range catalog {
		out = append(out, catalog[i].Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TasksFor returns a copy of the remediation task list for id, or nil for
// identifiers outside the closed set.
func TasksFor(id types.RuleID) []string {
	r, ok := Get(id)
	if !ok {
		return nil
	}
	return r.Tasks
}
