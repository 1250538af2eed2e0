package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

// RiskPrompt builds the risk-scoring request for one region from its recent
// observations.
func RiskPrompt(region *models.Region, observations []models.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are the risk analysis engine of the Kenya NDMA disaster management system.
Analyse the following observations for %s County and assess its current disaster risk.

Observations:
`, region.Name)
	for _, o := range observations {
		fmt.Fprintf(&b, "- source=%s collected=%s payload=%s\n", o.Source, o.CollectedAt.Format(time.RFC3339), o.Payload)
	}
	b.WriteString(`
Respond with ONLY valid JSON (no markdown):
{"risk_score": <0-100>, "disaster_type": "<flood|wildfire|earthquake|drought|landslide|other|none>", "confidence": "<low|medium|high>", "reasoning": "<one sentence>"}`)
	return b.String()
}

// PredictionPrompt builds the single batch request of the predictive
// warning engine over the latest forecast observation of every region.
func PredictionPrompt(forecasts []models.Observation) string {
	var b strings.Builder
	b.WriteString(`You are the predictive warning engine of the Kenya NDMA disaster management system.
Below are multi-day weather forecasts, one per region. Identify regions facing an elevated
disaster threat within the next 72 hours. Return zero or one entry per region; omit regions
with no elevated threat.

Forecasts:
`)
	for _, o := range forecasts {
		fmt.Fprintf(&b, "- region=%s forecast=%s\n", o.RegionID, o.Payload)
	}
	b.WriteString(`
Respond with ONLY a valid JSON array (no markdown), echoing the region ids given above:
[{"region": "<region id>", "threat": "<flood|wildfire|earthquake|drought|landslide|other>", "probability": "<low|medium|high>", "estimated_time": "<e.g. within 48hrs>", "recommended_action": "<one sentence>"}]`)
	return b.String()
}

// AlertPrompt builds the bilingual SMS generation request for one disaster.
func AlertPrompt(d *models.Disaster, regionName string, refuges []models.RefugeSite, charLimit int) string {
	refugeNames := "nearest county offices"
	if len(refuges) > 0 {
		names := make([]string, 0, 2)
		for _, r := range refuges {
			names = append(names, r.Name)
			if len(names) == 2 {
				break
			}
		}
		refugeNames = strings.Join(names, ", ")
	}

	return fmt.Sprintf(`You are the Kenya NDMA emergency communications system.

Write two SMS alerts for a disaster event, one English, one Swahili.
STRICT REQUIREMENT: Each message must be under %d characters including spaces.
Include: alert keyword, disaster type, affected area, refuge location, emergency number.

Disaster:
- Type: %s
- Location: %s County
- Severity: %s
- People at risk: %d
- Nearest refuge: %s
- Emergency line: 1199

Respond with ONLY valid JSON (no markdown):
{"english": "<message under %d chars>", "swahili": "<message under %d chars>"}`,
		charLimit, d.Type, regionName, d.Severity, d.AffectedPeople, refugeNames, charLimit, charLimit)
}

// RationalePrompt asks for a short justification of the top dispatch
// recommendation.
func RationalePrompt(d *models.Disaster, w *models.Worker, distanceKM float64) string {
	return fmt.Sprintf(`You are assisting a Kenya NDMA dispatch operator.
A %s (%s severity) disaster is active in region %s. The top-ranked responder is
%s, role %s, currently %.1f km from the site.
In two sentences of plain text (no JSON, no markdown), explain why this responder is the
best match for this disaster.`, d.Type, d.Severity, d.RegionID, w.Name, w.Role, distanceKM)
}

// ReportStats summarises national state for the situation report.
type ReportStats struct {
	ActiveDisasters  int
	TotalAffected    int
	HighRiskRegions  int
	DeployedWorkers  int
	AvailableWorkers int
}

// ReportPrompt builds the national situation report request.
func ReportPrompt(stats ReportStats, active []models.Disaster, now time.Time) string {
	type incident struct {
		Type     models.DisasterType `json:"type"`
		Severity models.Severity     `json:"severity"`
		Region   string              `json:"region"`
		Affected int                 `json:"affected_people"`
		Desc     string              `json:"description"`
	}
	incidents := make([]incident, 0, 10)
	for _, d := range active {
		incidents = append(incidents, incident{d.Type, d.Severity, d.RegionID, d.AffectedPeople, d.Description})
		if len(incidents) == 10 {
			break
		}
	}
	blob, _ := json.MarshalIndent(incidents, "", "  ")

	return fmt.Sprintf(`You are the NDMA Kenya National Operations Centre AI system.
Generate a formal Situation Report (SitRep) for senior NDMA officers and Cabinet Secretary.

Date: %s

Current National Status:
- Active disaster incidents: %d
- Total estimated affected population: %d
- Counties at elevated risk (score >= 70): %d
- Field workers deployed: %d
- Field workers available for deployment: %d

Active Incidents:
%s

Write a professional markdown SitRep with these exact sections:
## Executive Summary
## Active Incidents
## Resource & Personnel Status
## Priority Actions (next 24 hours)
## 72-Hour Outlook

Use ## headers. Be concise, factual, and action-oriented. Do not use placeholder text.`,
		now.UTC().Format("02 January 2006, 15:04 UTC"),
		stats.ActiveDisasters, stats.TotalAffected, stats.HighRiskRegions,
		stats.DeployedWorkers, stats.AvailableWorkers, blob)
}
