package mermaid

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cleitonmarx/preflight"
)

var (
	// node styles
	styleReady    = Style{Fill: "#e8f5e9", Stroke: "#388e3c", StrokeWidth: "2px", Color: "#222222"}
	styleFailed   = Style{Fill: "#fce1e1", Stroke: "#a60202", StrokeWidth: "2px", Color: "#222222"}
	styleWarning  = Style{Fill: "#fff3e0", Stroke: "#f57c00", StrokeWidth: "2px", Color: "#222222"}
	styleSkipped  = Style{Fill: "#f0f0f0", Stroke: "#888888", StrokeWidth: "1px", StrokeDasharray: "4 4", Color: "#888888"}
	stylePlanned  = Style{Fill: "#e0f7fa", Stroke: "#00838f", StrokeWidth: "2px", Color: "#222222"}
	styleOptional = Style{Fill: "#e0f7fa", Stroke: "#00838f", StrokeWidth: "1px", StrokeDasharray: "4 4", Color: "#222222"}
	styleStage    = Style{Fill: "#fafafa", Stroke: "#6c47a6", StrokeWidth: "1px"}

	// sublines styles
	styleKind     = Style{Color: "darkgray", FontSize: "11px", IsHtml: true}
	styleEndpoint = Style{Color: "gray", FontSize: "11px", IsHtml: true}
	stylePolicy   = Style{Color: "darkblue", FontSize: "11px", IsHtml: true}
	styleDetail   = Style{Color: "#a60202", FontSize: "11px", IsHtml: true}
	styleInfo     = Style{Color: "green", FontSize: "11px", IsHtml: true}
)

// GeneratePlanGraph renders the stage graph without running it: one box per stage, one node
// per service with its kind, endpoint and effective policy. Optional services are dashed.
func GeneratePlanGraph(g *preflight.Graph) string {
	var mg Graph
	for i, st := range g.Stages() {
		sg := Subgraph{ID: stageID(i), Label: stageTitle(i, st.Name), Style: styleStage}
		for _, svc := range st.Services {
			sub := []string{Subline(styleKind, "%s%s", svc.Kind, requirement(svc.Required))}
			if t := target(svc); t != "" {
				sub = append(sub, Subline(styleEndpoint, "%s", t))
			}
			sub = append(sub, Subline(stylePolicy, "%d × %s, every %s, within %s",
				svc.Policy.MaxAttempts, svc.Policy.AttemptTimeout, svc.Policy.Interval, svc.Policy.TotalTimeout))

			style := stylePlanned
			if !svc.Required {
				style = styleOptional
			}
			sg.Nodes = append(sg.Nodes, Node{
				ID:    serviceID(svc.Name),
				Label: LabelBuilder{Label: svc.Name, Bold: svc.Required, SubLines: sub}.ToHTML(),
				Style: style,
			})
		}
		mg.Subgraphs = append(mg.Subgraphs, sg)
	}
	mg.Edges = stageEdges(len(mg.Subgraphs), nil)
	return mg.RenderTD()
}

// GenerateReportGraph renders a readiness report: services are colored by their final status
// and the edge leaving the stage that blocked the run is labeled with the root cause.
func GenerateReportGraph(r preflight.Report) string {
	var mg Graph
	blocked := make(map[int]string)
	for _, res := range r.Results() {
		for len(mg.Subgraphs) <= res.Stage {
			idx := len(mg.Subgraphs)
			mg.Subgraphs = append(mg.Subgraphs, Subgraph{ID: stageID(idx), Label: stageTitle(idx, ""), Style: styleStage})
		}
		if res.StageName != "" {
			mg.Subgraphs[res.Stage].Label = stageTitle(res.Stage, res.StageName)
		}

		sub := []string{Subline(styleKind, "%s%s", res.Kind, requirement(res.Required))}
		status := string(res.Status)
		if res.Skipped {
			status = "skipped"
		}
		sub = append(sub, Subline(stylePolicy, "%s, attempts %d, %s", status, res.Attempts, res.Latency.Round(time.Millisecond)))
		switch {
		case res.Ready() && res.Info != "":
			sub = append(sub, Subline(styleInfo, "%s", res.Info))
		case !res.Ready() && !res.Skipped:
			sub = append(sub, Subline(styleDetail, "%s", res.Detail()))
		}

		mg.Subgraphs[res.Stage].Nodes = append(mg.Subgraphs[res.Stage].Nodes, Node{
			ID:    serviceID(res.Service),
			Label: LabelBuilder{Label: res.Service, Bold: res.Required, SubLines: sub}.ToHTML(),
			Style: resultStyle(res),
		})
		if res.Service == r.RootCause() {
			blocked[res.Stage] = res.Service
		}
	}
	mg.Edges = stageEdges(len(mg.Subgraphs), blocked)
	return mg.RenderTD()
}

// stageEdges links every stage to the next one. A stage listed in blocked gets a dotted edge
// labeled with the service that blocked it.
func stageEdges(stages int, blocked map[int]string) []Edge {
	var edges []Edge
	for i := 0; i+1 < stages; i++ {
		e := Edge{From: stageID(i), To: stageID(i + 1)}
		if svc, ok := blocked[i]; ok {
			e.Arrow = "-.->"
			e.Text = "blocked by " + svc
		}
		edges = append(edges, e)
	}
	return edges
}

func resultStyle(res preflight.ProbeResult) Style {
	switch {
	case res.Ready():
		return styleReady
	case res.Skipped:
		return styleSkipped
	case !res.Required:
		return styleWarning
	}
	return styleFailed
}

func target(svc preflight.Service) string {
	switch svc.Kind {
	case preflight.KindModel:
		return svc.Endpoint + " (" + svc.ModelName() + ")"
	case preflight.KindComposite:
		names := make([]string, 0, len(svc.Members))
		for _, m := range svc.Members {
			names = append(names, m.Name)
		}
		return fmt.Sprintf("all of %v", names)
	}
	return svc.Endpoint
}

func requirement(required bool) string {
	if required {
		return ""
	}
	return ", optional"
}

func stageID(idx int) string {
	return "stage_" + strconv.Itoa(idx)
}

func serviceID(name string) string {
	return "svc_" + name
}

func stageTitle(idx int, name string) string {
	if name == "" {
		return fmt.Sprintf("%d. stage-%d", idx+1, idx+1)
	}
	return fmt.Sprintf("%d. %s", idx+1, name)
}
