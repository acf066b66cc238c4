// Package domain models the river-monitoring logs kept by water treatment
// station operators.
//
// # Data Source
//
// Each station (ETA Cubatão, ETA Piraí) has a Google Forms response sheet.
// Operators submit one row per observation; the sheet is read either as a CSV
// export or through the legacy Visualization API JSON endpoint.
//
// # Sheet Conventions
//
// Columns are located by header text, never by position:
//
//	"Carimbo de data/hora"    submission timestamp (required)
//	"NOME"                    operator name (required)
//	"Nível do Rio (m)"        river level in metres (required)
//	"Chuva (mm)"              rainfall in millimetres (optional)
//	"Assoreamento [Nova]"     silting status (optional, Cubatão)
//	"Captação [Gradeamento]"  intake screen status (optional, Piraí)
//
// Timestamps:
//
//	Day-first locale text, e.g. "15/03/2024 08:30:00".
//	The JSON endpoint emits "Date(2025,0,3,16,15,11)" with a zero-based month.
//	ISO forms are accepted as a fallback.
//	All are interpreted in the station timezone (America/Sao_Paulo by default).
//
// Numbers:
//
//	Decimal comma and a trailing unit are common: "2,35m", "12,0 mm".
//	Unparseable cells become nil, the row is kept.
//
// Zero level:
//
//	A level of exactly 0 marks a missing observation. Such rows count toward
//	totals but never toward mean, min, max or last value.
//
// # Pipeline
//
// [Normalizer.Normalize] turns a [RawTable] into sorted [Reading] values,
// [FilterValid] splits them into counting and statistics views,
// [ResolveRange] clamps the user's selection to the loaded data, and
// [AggregateDaily] reduces readings to per-day statistics. [BuildView]
// composes all of them for one request.
package domain
